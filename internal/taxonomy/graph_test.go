package taxonomy

import (
	"errors"
	"strings"
	"testing"
)

const testNodes = "1\t|\t1\t|\tno rank\t|\n" +
	"10239\t|\t1\t|\tsuperkingdom\t|\n" +
	"11320\t|\t10239\t|\tspecies\t|\n"

const testNames = "1\t|\troot\t|\t\t|\tscientific name\t|\n" +
	"10239\t|\tViruses\t|\t\t|\tscientific name\t|\n" +
	"10239\t|\tVira\t|\t\t|\tsynonym\t|\n" +
	"11320\t|\tInfluenza A virus\t|\t\t|\tscientific name\t|\n" +
	"11320\t|\tinfluenza A\t|\t\t|\tgenbank common name\t|\n"

func buildTestGraph(t *testing.T, nodes, names string) *Graph {
	t.Helper()
	g, err := Build(strings.NewReader(nodes), strings.NewReader(names))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestBuildParentMap(t *testing.T) {
	g := buildTestGraph(t, testNodes, testNames)

	if got := g.NodeCount(); got != 3 {
		t.Fatalf("NodeCount = %d, want 3", got)
	}
	parent, ok := g.ParentOf("11320")
	if !ok || parent != "10239" {
		t.Errorf("ParentOf(11320) = %q, %v; want 10239, true", parent, ok)
	}
	parent, ok = g.ParentOf("1")
	if !ok || parent != "1" {
		t.Errorf("ParentOf(1) = %q, %v; want 1, true (root is its own parent)", parent, ok)
	}
	if _, ok := g.ParentOf("999"); ok {
		t.Error("ParentOf(999) reported a parent for an absent taxid")
	}
}

func TestBuildNameIndices(t *testing.T) {
	g := buildTestGraph(t, testNodes, testNames)

	taxid, ok := g.TaxidForScientificName("Influenza A virus")
	if !ok || taxid != "11320" {
		t.Errorf("TaxidForScientificName = %q, %v; want 11320, true", taxid, ok)
	}
	name, ok := g.ScientificNameOf("10239")
	if !ok || name != "Viruses" {
		t.Errorf("ScientificNameOf(10239) = %q, %v; want Viruses, true", name, ok)
	}

	// Non-scientific kinds go into the synonym index only.
	taxid, ok = g.TaxidForSynonym("Vira")
	if !ok || taxid != "10239" {
		t.Errorf("TaxidForSynonym(Vira) = %q, %v; want 10239, true", taxid, ok)
	}
	if _, ok := g.TaxidForScientificName("Vira"); ok {
		t.Error("synonym Vira leaked into the scientific-name index")
	}

	// Every name, regardless of kind, is in the normalized index.
	for _, tc := range []struct {
		normalized string
		taxid      string
	}{
		{"viruses", "10239"},
		{"vira", "10239"},
		{"influenza a virus", "11320"},
		{"influenza a", "11320"},
	} {
		got, ok := g.TaxidForNormalizedName(tc.normalized)
		if !ok || got != tc.taxid {
			t.Errorf("TaxidForNormalizedName(%q) = %q, %v; want %s, true", tc.normalized, got, ok, tc.taxid)
		}
	}
}

func TestBuildLastWriteWins(t *testing.T) {
	names := "2\t|\tShared name\t|\t\t|\tscientific name\t|\n" +
		"3\t|\tShared name\t|\t\t|\tscientific name\t|\n"
	g := buildTestGraph(t, "1\t|\t1\t|\n", names)

	taxid, ok := g.TaxidForScientificName("Shared name")
	if !ok || taxid != "3" {
		t.Errorf("TaxidForScientificName = %q, %v; want 3 (last write)", taxid, ok)
	}
}

func TestBuildMalformedNodesLine(t *testing.T) {
	_, err := Build(strings.NewReader("12345\n"), strings.NewReader(testNames))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Build = %v, want ParseError", err)
	}
	if parseErr.File != "nodes.dmp" || parseErr.Line != 1 {
		t.Errorf("ParseError = %+v, want nodes.dmp line 1", parseErr)
	}
}

func TestBuildMalformedNamesLine(t *testing.T) {
	_, err := Build(strings.NewReader(testNodes), strings.NewReader("10239\t|\tViruses\t|\n"))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Build = %v, want ParseError", err)
	}
	if parseErr.File != "names.dmp" {
		t.Errorf("ParseError.File = %q, want names.dmp", parseErr.File)
	}
}

func TestRangeScientificNamesStopsEarly(t *testing.T) {
	g := buildTestGraph(t, testNodes, testNames)

	calls := 0
	g.RangeScientificNames(func(name, taxid string) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Errorf("RangeScientificNames made %d calls after fn returned false, want 1", calls)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Influenza A virus", "influenza a virus"},
		{"  FOO  ", "foo"},
		{"a  b", "a b"},
		// A single pass over doubled spaces: three spaces leave a residue.
		{"a   b", "a  b"},
		{"a    b", "a  b"},
		// Tabs are not collapsed.
		{"a\t\tb", "a\t\tb"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
