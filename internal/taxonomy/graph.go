// Package taxonomy builds an in-memory graph of the NCBI Taxonomy reference
// from the nodes.dmp and names.dmp dump files. The graph holds the parent
// pointer for every taxid plus four name indices used by name resolution:
// taxid to scientific name, scientific name to taxid, synonym to taxid, and
// a normalized-name index over every recorded name. A Graph is immutable
// once built and safe for concurrent readers.
package taxonomy

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	apperr "github.com/hipc-validation/virus-strain-validator/pkg/errors"
)

// Root is the taxid of the top of the taxonomy; it is its own parent.
const Root = "1"

// VirusRoot is the taxid of the "Viruses" node. Every viral taxon descends
// from it.
const VirusRoot = "10239"

const scientificNameKind = "scientific name"

// ParseError reports a malformed line in one of the dump files.
type ParseError struct {
	File string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: malformed taxonomy line %q", e.File, e.Line, e.Text)
}

func (e *ParseError) Unwrap() error {
	return apperr.ErrMalformedLine
}

// Graph is the parsed taxonomy: parent pointers plus name indices.
type Graph struct {
	parents           map[string]string
	taxidToScientific map[string]string
	scientificToTaxid map[string]string
	synonymToTaxid    map[string]string
	lowercaseToTaxid  map[string]string
}

// Build parses the nodes.dmp and names.dmp streams into a Graph. Lines with
// too few fields abort the build with a ParseError; no partial graph is
// returned.
func Build(nodes io.Reader, names io.Reader) (*Graph, error) {
	g := &Graph{
		parents:           make(map[string]string),
		taxidToScientific: make(map[string]string),
		scientificToTaxid: make(map[string]string),
		synonymToTaxid:    make(map[string]string),
		lowercaseToTaxid:  make(map[string]string),
	}
	if err := g.loadNodes(nodes); err != nil {
		return nil, err
	}
	if err := g.loadNames(names); err != nil {
		return nil, err
	}
	return g, nil
}

// loadNodes fills the parent map from nodes.dmp lines of the form
// "taxid | parent_taxid | rank | ...".
func (g *Graph) loadNodes(r io.Reader) error {
	sc := newDumpScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := splitDumpLine(line)
		if len(fields) < 2 {
			return &ParseError{File: "nodes.dmp", Line: lineNo, Text: line}
		}
		g.parents[fields[0]] = fields[1]
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading nodes.dmp: %w", err)
	}
	return nil
}

// loadNames fills the name indices from names.dmp lines of the form
// "taxid | name | unique name | name kind |". Scientific names feed the
// canonical indices; every other kind is a synonym. All names, regardless of
// kind, feed the normalized index. Last write wins on duplicate keys.
func (g *Graph) loadNames(r io.Reader) error {
	sc := newDumpScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := splitDumpLine(line)
		if len(fields) < 4 {
			return &ParseError{File: "names.dmp", Line: lineNo, Text: line}
		}
		taxid, name, kind := fields[0], fields[1], fields[3]
		if kind == scientificNameKind {
			g.taxidToScientific[taxid] = name
			g.scientificToTaxid[name] = taxid
		} else {
			g.synonymToTaxid[name] = taxid
		}
		g.lowercaseToTaxid[Normalize(name)] = taxid
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading names.dmp: %w", err)
	}
	return nil
}

// ParentOf returns the parent taxid of the given taxid.
func (g *Graph) ParentOf(taxid string) (string, bool) {
	parent, ok := g.parents[taxid]
	return parent, ok
}

// ScientificNameOf returns the scientific name recorded for a taxid.
func (g *Graph) ScientificNameOf(taxid string) (string, bool) {
	name, ok := g.taxidToScientific[taxid]
	return name, ok
}

// TaxidForScientificName looks up a name in the scientific-name index
// (exact, case-sensitive).
func (g *Graph) TaxidForScientificName(name string) (string, bool) {
	taxid, ok := g.scientificToTaxid[name]
	return taxid, ok
}

// TaxidForSynonym looks up a name in the synonym index (exact,
// case-sensitive).
func (g *Graph) TaxidForSynonym(name string) (string, bool) {
	taxid, ok := g.synonymToTaxid[name]
	return taxid, ok
}

// TaxidForNormalizedName looks up an already-normalized name in the
// normalized index. Callers normalize with Normalize.
func (g *Graph) TaxidForNormalizedName(normalized string) (string, bool) {
	taxid, ok := g.lowercaseToTaxid[normalized]
	return taxid, ok
}

// RangeScientificNames calls fn for every scientific name and its taxid
// until fn returns false. Iteration order is unspecified.
func (g *Graph) RangeScientificNames(fn func(name, taxid string) bool) {
	for name, taxid := range g.scientificToTaxid {
		if !fn(name, taxid) {
			return
		}
	}
}

// NodeCount returns the number of taxids in the parent map.
func (g *Graph) NodeCount() int {
	return len(g.parents)
}

// ScientificNameCount returns the number of entries in the scientific-name
// index.
func (g *Graph) ScientificNameCount() int {
	return len(g.scientificToTaxid)
}

// Normalize produces the lookup key for the normalized index: trimmed,
// lower-cased, with each doubled space collapsed to one in a single pass.
// The narrow collapsing rule is deliberate: tabs and residual runs from
// triple-or-more spaces are left alone, matching how the index is built.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "  ", " ")
}

// splitDumpLine trims the flanking pipe, tab, and space characters from a
// dump line, splits it on the pipe delimiter, and trims each field.
func splitDumpLine(line string) []string {
	line = strings.Trim(line, "|\n\t ")
	fields := strings.Split(line, "|")
	for i, f := range fields {
		fields[i] = strings.Trim(f, "\t ")
	}
	return fields
}

// newDumpScanner returns a line scanner with a buffer large enough for the
// longest names.dmp lines.
func newDumpScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return sc
}
