// Package fetchcache stores fetched study payloads as JSON files under
// <dir>/<endpoint>/<studyID>.json so repeated validation runs do not re-hit
// the API.
package fetchcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hipc-validation/virus-strain-validator/internal/immport"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
)

// Cache is a read-through JSON file cache rooted at Dir.
type Cache struct {
	dir    string
	logger *slog.Logger
}

// New creates a Cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{
		dir:    dir,
		logger: logger.WithComponent("fetch-cache"),
	}
}

// Get loads the cached records for (endpoint, studyID). The second return
// is false when no cache file exists.
func (c *Cache) Get(endpoint, studyID string) ([]immport.Record, bool, error) {
	path := c.path(endpoint, studyID)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache file %s: %w", path, err)
	}

	records, err := immport.DecodeRecords(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding cache file %s: %w", path, err)
	}
	c.logger.Debug("cache hit", "endpoint", endpoint, "study", studyID, "records", len(records))
	return records, true, nil
}

// Put writes the records for (endpoint, studyID), creating the endpoint
// directory as needed.
func (c *Cache) Put(endpoint, studyID string, records []immport.Record) error {
	dir := filepath.Join(c.dir, endpoint)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding records for %s/%s: %w", endpoint, studyID, err)
	}
	path := c.path(endpoint, studyID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file %s: %w", path, err)
	}
	return nil
}

// Walk calls fn for every cached study of the endpoint, in directory order.
func (c *Cache) Walk(endpoint string, fn func(studyID string, records []immport.Record) error) error {
	dir := filepath.Join(c.dir, endpoint)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("listing cache directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		studyID := entry.Name()[:len(entry.Name())-len(".json")]
		records, ok, err := c.Get(endpoint, studyID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(studyID, records); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) path(endpoint, studyID string) string {
	return filepath.Join(c.dir, endpoint, studyID+".json")
}
