// Package studies reads the shared studies-info TSV and selects the study
// accession ids to validate for a given experiment measurement technique.
package studies

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	techniquesColumn    = "Experiment Measurement Techniques"
	supportingColumn    = "Supporting Data"
	headerBOMPrefix     = "\ufeff"
	accessionDigitsFrom = 3 // study ids look like SDY1234
)

// Info is one row of the studies-info table, keyed by column header.
type Info map[string]string

// Load parses a tab-separated studies-info table. The first row is the
// header; a UTF-8 BOM on the first header cell is stripped.
func Load(r io.Reader) ([]Info, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading studies-info header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], headerBOMPrefix)
	}

	var rows []Info
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading studies-info row: %w", err)
		}
		row := make(Info, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// IDsForTechnique returns the study ids whose measurement-techniques column
// matches the given technique description, case-insensitively. The result
// is sorted by the numeric part of the accession.
func IDsForTechnique(rows []Info, technique string) ([]string, error) {
	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(technique))
	if err != nil {
		return nil, fmt.Errorf("compiling technique pattern: %w", err)
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, row := range rows {
		if !pattern.MatchString(row[techniquesColumn]) {
			continue
		}
		id := strings.TrimSpace(row[supportingColumn])
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sortByAccession(ids)
	slog.Debug("selected studies", "technique", technique, "count", len(ids))
	return ids, nil
}

// Filter returns the requested ids that exist in available, preserving the
// requested order and logging the ones it drops.
func Filter(available, requested []string) []string {
	set := make(map[string]struct{}, len(available))
	for _, id := range available {
		set[id] = struct{}{}
	}
	var kept, dropped []string
	for _, id := range requested {
		if _, ok := set[id]; ok {
			kept = append(kept, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	if len(dropped) > 0 {
		slog.Warn("ignoring ids that are not studies of this type", "ids", dropped)
	}
	return kept
}

// sortByAccession orders ids like SDY80, SDY212, SDY1119 numerically.
func sortByAccession(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return accessionNumber(ids[i]) < accessionNumber(ids[j])
	})
}

func accessionNumber(id string) int {
	if len(id) <= accessionDigitsFrom {
		return 0
	}
	n, err := strconv.Atoi(id[accessionDigitsFrom:])
	if err != nil {
		return 0
	}
	return n
}
