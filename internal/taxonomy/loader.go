package taxonomy

import (
	"fmt"
	"os"

	"github.com/hipc-validation/virus-strain-validator/pkg/config"
)

// Load builds a Graph from the configured reference data, preferring the
// taxdmp.zip archive when one is set.
func Load(cfg config.TaxonomyConfig) (*Graph, error) {
	if cfg.ArchivePath != "" {
		return LoadArchive(cfg.ArchivePath)
	}

	nodes, err := os.Open(cfg.NodesPath)
	if err != nil {
		return nil, fmt.Errorf("opening nodes file: %w", err)
	}
	defer nodes.Close()

	names, err := os.Open(cfg.NamesPath)
	if err != nil {
		return nil, fmt.Errorf("opening names file: %w", err)
	}
	defer names.Close()

	return Build(nodes, names)
}
