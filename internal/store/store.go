// Package store persists verdict rows in PostgreSQL so validation runs can
// be queried and compared after the fact.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hipc-validation/virus-strain-validator/internal/engine"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
	"github.com/hipc-validation/virus-strain-validator/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
    id                BIGSERIAL PRIMARY KEY,
    run_id            TEXT        NOT NULL,
    endpoint          TEXT        NOT NULL,
    study_accession   TEXT        NOT NULL,
    reported_name     TEXT        NOT NULL,
    preferred_name    TEXT        NOT NULL,
    reported_outcome  TEXT        NOT NULL,
    preferred_outcome TEXT        NOT NULL,
    reported_comment  TEXT        NOT NULL,
    preferred_comment TEXT        NOT NULL,
    comments_match    BOOLEAN     NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS verdicts_run_idx ON verdicts (run_id);
CREATE INDEX IF NOT EXISTS verdicts_study_idx ON verdicts (study_accession);
`

// Row is one persisted verdict pair.
type Row struct {
	RunID          string
	Endpoint       string
	StudyAccession string
	ReportedName   string
	PreferredName  string
	Pair           engine.PairVerdict
}

// Store writes verdict rows to PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store and ensures its schema exists.
func New(ctx context.Context, db *postgres.Client) (*Store, error) {
	if _, err := db.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensuring verdicts schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.WithComponent("verdict-store"),
	}, nil
}

// SaveAll inserts the rows in one transaction.
func (s *Store) SaveAll(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO verdicts (
				run_id, endpoint, study_accession,
				reported_name, preferred_name,
				reported_outcome, preferred_outcome,
				reported_comment, preferred_comment,
				comments_match
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
		if err != nil {
			return fmt.Errorf("preparing verdict insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			_, err := stmt.ExecContext(ctx,
				row.RunID,
				row.Endpoint,
				row.StudyAccession,
				row.ReportedName,
				row.PreferredName,
				string(row.Pair.Reported.Outcome),
				string(row.Pair.Preferred.Outcome),
				row.Pair.Reported.Comment,
				row.Pair.Preferred.Comment,
				row.Pair.CommentsMatch,
			)
			if err != nil {
				return fmt.Errorf("inserting verdict for %q: %w", row.ReportedName, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("verdicts persisted",
		"rows", len(rows),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// CountByOutcome returns the reported-outcome histogram for a run.
func (s *Store) CountByOutcome(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT reported_outcome, COUNT(*)
		FROM verdicts
		WHERE run_id = $1
		GROUP BY reported_outcome`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scanning outcome count: %w", err)
		}
		counts[outcome] = count
	}
	return counts, rows.Err()
}
