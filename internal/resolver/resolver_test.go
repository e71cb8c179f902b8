package resolver

import (
	"strings"
	"testing"

	"github.com/hipc-validation/virus-strain-validator/internal/taxonomy"
)

func buildGraph(t *testing.T, nodes, names string) *taxonomy.Graph {
	t.Helper()
	g, err := taxonomy.Build(strings.NewReader(nodes), strings.NewReader(names))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

// referenceGraph mirrors the reference fixture: scientific name FOO and
// synonym bAR, both on taxid 1.
func referenceGraph(t *testing.T) *taxonomy.Graph {
	t.Helper()
	names := "1\t|\tFOO\t|\t\t|\tscientific name\t|\n" +
		"1\t|\tbAR\t|\t\t|\tsynonym\t|\n"
	return buildGraph(t, "1\t|\t1\t|\n", names)
}

func TestResolveExact(t *testing.T) {
	g := referenceGraph(t)

	got := Resolve("FOO", g)
	want := MatchResult{Input: "FOO", Taxid: "1", ScientificName: "FOO", Tier: TierExact}
	if got != want {
		t.Errorf("Resolve(FOO) = %+v, want %+v", got, want)
	}
}

func TestResolveNormalized(t *testing.T) {
	g := referenceGraph(t)

	got := Resolve("  FOO  ", g)
	want := MatchResult{Input: "  FOO  ", Taxid: "1", ScientificName: "FOO", Tier: TierNormalized, AutoReplaced: true}
	if got != want {
		t.Errorf("Resolve(  FOO  ) = %+v, want %+v", got, want)
	}
}

func TestResolveSynonym(t *testing.T) {
	g := referenceGraph(t)

	got := Resolve("bAR", g)
	want := MatchResult{Input: "bAR", Taxid: "1", ScientificName: "FOO", Tier: TierSynonym}
	if got != want {
		t.Errorf("Resolve(bAR) = %+v, want %+v", got, want)
	}
}

func TestResolveUniqueSubstring(t *testing.T) {
	g := referenceGraph(t)

	got := Resolve("FO", g)
	want := MatchResult{Input: "FO", Taxid: "1", ScientificName: "FOO", Tier: TierSubstring}
	if got != want {
		t.Errorf("Resolve(FO) = %+v, want %+v", got, want)
	}
}

func TestResolveAmbiguousSubstringIsNone(t *testing.T) {
	names := "2\t|\tInfluenza A virus\t|\t\t|\tscientific name\t|\n" +
		"3\t|\tInfluenza B virus\t|\t\t|\tscientific name\t|\n"
	g := buildGraph(t, "1\t|\t1\t|\n", names)

	got := Resolve("Influenza", g)
	if got.Tier != TierNone {
		t.Errorf("Resolve(Influenza) tier = %s, want none (two candidates)", got.Tier)
	}
	if got.Taxid != "" || got.ScientificName != "" {
		t.Errorf("ambiguous match leaked a resolution: %+v", got)
	}
}

func TestResolveSubstringIsCaseSensitive(t *testing.T) {
	names := "2\t|\tZika virus\t|\t\t|\tscientific name\t|\n"
	g := buildGraph(t, "1\t|\t1\t|\n", names)

	if got := Resolve("zika", g); got.Tier != TierNone {
		t.Errorf("Resolve(zika) tier = %s, want none (substring tier is case-sensitive)", got.Tier)
	}
	if got := Resolve("Zika", g); got.Tier != TierSubstring {
		t.Errorf("Resolve(Zika) tier = %s, want substring", got.Tier)
	}
}

func TestResolveEmptyName(t *testing.T) {
	g := referenceGraph(t)

	got := Resolve("", g)
	if got.Tier != TierNone || got.Matched() {
		t.Errorf("Resolve(\"\") = %+v, want tier none", got)
	}
}

// An exact scientific-name hit wins even when the same literal string is
// also recorded as a synonym of another taxon.
func TestResolveExactPrecedesSynonym(t *testing.T) {
	names := "2\t|\tMeasles virus\t|\t\t|\tscientific name\t|\n" +
		"3\t|\tRubella virus\t|\t\t|\tscientific name\t|\n" +
		"3\t|\tMeasles virus\t|\t\t|\tsynonym\t|\n"
	g := buildGraph(t, "1\t|\t1\t|\n", names)

	got := Resolve("Measles virus", g)
	if got.Tier != TierExact || got.Taxid != "2" {
		t.Errorf("Resolve = %+v, want exact match on taxid 2", got)
	}
}

// A normalized-tier hit on a taxon that has no recorded scientific name
// cannot be resolved.
func TestResolveNormalizedWithoutScientificName(t *testing.T) {
	names := "5\t|\tOrphan strain\t|\t\t|\tequivalent name\t|\n"
	g := buildGraph(t, "1\t|\t1\t|\n", names)

	got := Resolve("ORPHAN STRAIN", g)
	if got.Tier != TierNone {
		t.Errorf("Resolve tier = %s, want none (taxid 5 has no scientific name)", got.Tier)
	}
}
