// Package validator drives the batch validation pipeline: select studies
// per endpoint, obtain their records from the local cache or the ImmPort
// API, classify every (reported, preferred) strain-name pair, and write one
// TSV report per endpoint.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hipc-validation/virus-strain-validator/internal/engine"
	"github.com/hipc-validation/virus-strain-validator/internal/fetchcache"
	"github.com/hipc-validation/virus-strain-validator/internal/immport"
	"github.com/hipc-validation/virus-strain-validator/internal/report"
	"github.com/hipc-validation/virus-strain-validator/internal/store"
	"github.com/hipc-validation/virus-strain-validator/internal/studies"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
	"github.com/hipc-validation/virus-strain-validator/pkg/tracing"
)

// Request names one endpoint to validate and, optionally, the subset of
// study ids to restrict it to.
type Request struct {
	Endpoint immport.Endpoint
	StudyIDs []string
}

// Runner holds the collaborators of one validation run. Store may be nil.
type Runner struct {
	Engine  *engine.Engine
	Client  *immport.Client
	Cache   *fetchcache.Cache
	Store   *store.Store
	OutDir  string
	Token   string
	RunID   string
	logger  *slog.Logger
}

// NewRunner creates a Runner writing reports under outDir.
func NewRunner(e *engine.Engine, client *immport.Client, cache *fetchcache.Cache, outDir string) *Runner {
	return &Runner{
		Engine: e,
		Client: client,
		Cache:  cache,
		OutDir: outDir,
		RunID:  time.Now().UTC().Format("20060102T150405Z"),
		logger: logger.WithComponent("validator"),
	}
}

// Run validates every requested endpoint, processing endpoints
// concurrently. The engine's pair cache is shared across them.
func (r *Runner) Run(ctx context.Context, rows []studies.Info, requests []Request) error {
	if err := os.MkdirAll(r.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", r.OutDir, err)
	}

	ctx, root := tracing.StartSpan(ctx, "validation_run", r.RunID)
	defer func() {
		root.End()
		root.Log()
	}()

	g, ctx := errgroup.WithContext(ctx)
	for _, req := range requests {
		g.Go(func() error {
			return r.runEndpoint(ctx, rows, req)
		})
	}
	return g.Wait()
}

func (r *Runner) runEndpoint(ctx context.Context, rows []studies.Info, req Request) error {
	log := r.logger.With("endpoint", req.Endpoint.Name)
	ctx, span := tracing.StartChild(ctx, "endpoint_"+req.Endpoint.Name)
	defer span.End()

	ids, err := studies.IDsForTechnique(rows, req.Endpoint.Description)
	if err != nil {
		return err
	}
	log.Info("studies selected", "count", len(ids))
	if len(req.StudyIDs) > 0 {
		ids = studies.Filter(ids, req.StudyIDs)
		log.Info("studies filtered", "count", len(ids))
	}

	span.SetAttr("studies", len(ids))

	data := make(map[string][]immport.Record, len(ids))
	for _, sid := range ids {
		records, err := r.loadStudy(ctx, req.Endpoint.Name, sid)
		if err != nil {
			return err
		}
		data[sid] = records
	}

	var headers []string
	for _, sid := range ids {
		if len(data[sid]) > 0 {
			headers = report.Headers(data[sid])
			break
		}
	}
	if headers == nil {
		log.Warn("no data found for endpoint")
		return nil
	}

	outPath := filepath.Join(r.OutDir, req.Endpoint.Name+".tsv")
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", outPath, err)
	}
	defer out.Close()

	w := report.NewWriter(out, r.Engine)
	if err := w.WriteHeader(headers); err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}
	var storeRows []store.Row
	for _, sid := range ids {
		records := data[sid]
		if len(records) == 0 {
			log.Warn("no data found for study", "study", sid)
			continue
		}
		log.Info("processing records", "study", sid, "count", len(records))
		if err := w.WriteRecords(headers, records); err != nil {
			return fmt.Errorf("writing report rows for %s: %w", sid, err)
		}
		if r.Store != nil {
			batch, err := r.storeRows(req.Endpoint.Name, sid, records)
			if err != nil {
				return err
			}
			storeRows = append(storeRows, batch...)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing report %s: %w", outPath, err)
	}
	log.Info("report written", "path", outPath)

	if r.Store != nil {
		if err := r.Store.SaveAll(ctx, storeRows); err != nil {
			return err
		}
	}
	return nil
}

// loadStudy returns a study's records from the cache, falling back to the
// API and caching the result.
func (r *Runner) loadStudy(ctx context.Context, endpoint, sid string) ([]immport.Record, error) {
	records, ok, err := r.Cache.Get(endpoint, sid)
	if err != nil {
		return nil, err
	}
	if ok {
		r.logger.Debug("using cached study data", "endpoint", endpoint, "study", sid)
		return records, nil
	}

	if r.Token == "" {
		return nil, fmt.Errorf("no cached data for %s/%s and no API token available", endpoint, sid)
	}
	records, err = r.Client.FetchStudy(ctx, r.Token, endpoint, sid)
	if err != nil {
		return nil, err
	}
	if err := r.Cache.Put(endpoint, sid, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *Runner) storeRows(endpoint, sid string, records []immport.Record) ([]store.Row, error) {
	rows := make([]store.Row, 0, len(records))
	for _, record := range records {
		reported := record.StringField(report.ReportedField)
		preferred := record.StringField(report.PreferredField)
		pair, err := r.Engine.ClassifyPair(reported, preferred)
		if err != nil {
			return nil, err
		}
		rows = append(rows, store.Row{
			RunID:          r.RunID,
			Endpoint:       endpoint,
			StudyAccession: sid,
			ReportedName:   reported,
			PreferredName:  preferred,
			Pair:           pair,
		})
	}
	return rows, nil
}
