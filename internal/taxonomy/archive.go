package taxonomy

import (
	"archive/zip"
	"fmt"
)

const (
	nodesMember = "nodes.dmp"
	namesMember = "names.dmp"
)

// LoadArchive builds a Graph from the nodes.dmp and names.dmp members of an
// NCBI taxdmp.zip archive as distributed at
// ftp://ftp.ncbi.nih.gov/pub/taxonomy/taxdmp.zip.
func LoadArchive(path string) (*Graph, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening taxonomy archive %s: %w", path, err)
	}
	defer zr.Close()

	nodes, err := zr.Open(nodesMember)
	if err != nil {
		return nil, fmt.Errorf("archive %s has no %s: %w", path, nodesMember, err)
	}
	defer nodes.Close()

	names, err := zr.Open(namesMember)
	if err != nil {
		return nil, fmt.Errorf("archive %s has no %s: %w", path, namesMember, err)
	}
	defer names.Close()

	return Build(nodes, names)
}
