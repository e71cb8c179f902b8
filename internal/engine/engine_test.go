package engine

import (
	"strings"
	"sync"
	"testing"

	"github.com/hipc-validation/virus-strain-validator/internal/resolver"
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

// virusGraph holds one virus strain ("Virus X", taxid 10239) and one
// non-virus taxon ("Homo sapiens", taxid 9606).
func virusGraph(t *testing.T) *taxonomy.Graph {
	t.Helper()
	nodes := "1\t|\t1\t|\n" +
		"10239\t|\t1\t|\n" +
		"9606\t|\t1\t|\n"
	names := "10239\t|\tVirus X\t|\t\t|\tscientific name\t|\n" +
		"10239\t|\tagent X\t|\t\t|\tsynonym\t|\n" +
		"9606\t|\tHomo sapiens\t|\t\t|\tscientific name\t|\n"
	return buildGraph(t, nodes, names)
}

func TestClassifyConfirmed(t *testing.T) {
	e := New(virusGraph(t))

	got, err := e.Classify("Virus X")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	want := Verdict{Outcome: OutcomeConfirmed}
	if got != want {
		t.Errorf("Classify(Virus X) = %+v, want %+v", got, want)
	}
}

func TestClassifyAutoCorrected(t *testing.T) {
	e := New(virusGraph(t))

	got, err := e.Classify("virus x")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Outcome != OutcomeAutoCorrected {
		t.Fatalf("outcome = %s, want auto-corrected", got.Outcome)
	}
	if got.Comment != `Automatically replaced "virus x" with "Virus X".` {
		t.Errorf("comment = %q", got.Comment)
	}
	if got.CorrectedName != "Virus X" {
		t.Errorf("corrected name = %q, want Virus X", got.CorrectedName)
	}
}

func TestClassifySuggestedFromSynonym(t *testing.T) {
	e := New(virusGraph(t))

	got, err := e.Classify("agent X")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Outcome != OutcomeSuggested {
		t.Fatalf("outcome = %s, want suggested", got.Outcome)
	}
	if got.Comment != "Suggestion: Virus X" {
		t.Errorf("comment = %q, want Suggestion: Virus X", got.Comment)
	}
	if got.CorrectedName != "" {
		t.Errorf("suggested verdict set CorrectedName = %q, want empty", got.CorrectedName)
	}
}

func TestClassifyNotAVirus(t *testing.T) {
	e := New(virusGraph(t))

	for _, name := range []string{"Homo sapiens", "homo  sapiens", "Homo sapi"} {
		got, err := e.Classify(name)
		if err != nil {
			t.Fatalf("Classify(%q): %v", name, err)
		}
		if got.Outcome != OutcomeNotAVirus || got.Comment != CommentNotAVirus {
			t.Errorf("Classify(%q) = %+v, want not-a-virus", name, got)
		}
	}
}

func TestClassifyUnresolved(t *testing.T) {
	e := New(virusGraph(t))

	for _, name := range []string{"", "Totally unknown agent"} {
		got, err := e.Classify(name)
		if err != nil {
			t.Fatalf("Classify(%q): %v", name, err)
		}
		if got.Outcome != OutcomeUnresolved || got.Comment != CommentUnresolved {
			t.Errorf("Classify(%q) = %+v, want unresolved", name, got)
		}
	}
}

// Non-virus verdicts apply on every tier: the reference fixture maps FOO,
// its synonym, its case-folded form, and its unique substring all to the
// root taxid.
func TestClassifyNonVirusAcrossTiers(t *testing.T) {
	names := "1\t|\tFOO\t|\t\t|\tscientific name\t|\n" +
		"1\t|\tbAR\t|\t\t|\tsynonym\t|\n"
	e := New(buildGraph(t, "1\t|\t1\t|\n", names))

	for _, name := range []string{"FOO", "  FOO  ", "FO", "bAR"} {
		got, err := e.Classify(name)
		if err != nil {
			t.Fatalf("Classify(%q): %v", name, err)
		}
		if got.Outcome != OutcomeNotAVirus {
			t.Errorf("Classify(%q) outcome = %s, want not-a-virus", name, got.Outcome)
		}
	}
}

func TestClassifyPair(t *testing.T) {
	e := New(virusGraph(t))

	pair, err := e.ClassifyPair("virus x", "Virus X")
	if err != nil {
		t.Fatalf("ClassifyPair: %v", err)
	}
	if pair.Reported.Outcome != OutcomeAutoCorrected {
		t.Errorf("reported outcome = %s, want auto-corrected", pair.Reported.Outcome)
	}
	if pair.Preferred.Outcome != OutcomeConfirmed {
		t.Errorf("preferred outcome = %s, want confirmed", pair.Preferred.Outcome)
	}
	if pair.CommentsMatch {
		t.Error("CommentsMatch = true for differing comments")
	}
}

// Two confirmed verdicts carry no comment, so their comments compare equal
// even for different input names.
func TestClassifyPairConfirmedCommentsMatch(t *testing.T) {
	nodes := "1\t|\t1\t|\n" +
		"10239\t|\t1\t|\n" +
		"11320\t|\t10239\t|\n" +
		"11520\t|\t10239\t|\n"
	names := "11320\t|\tInfluenza A virus\t|\t\t|\tscientific name\t|\n" +
		"11520\t|\tInfluenza B virus\t|\t\t|\tscientific name\t|\n"
	e := New(buildGraph(t, nodes, names))

	pair, err := e.ClassifyPair("Influenza A virus", "Influenza B virus")
	if err != nil {
		t.Fatalf("ClassifyPair: %v", err)
	}
	if !pair.CommentsMatch {
		t.Error("CommentsMatch = false for two confirmed verdicts")
	}
}

func TestClassifyPairMemoized(t *testing.T) {
	g := virusGraph(t)
	var calls int
	counting := func(name string, g *taxonomy.Graph) resolver.MatchResult {
		calls++
		return resolver.Resolve(name, g)
	}
	e := NewWithResolver(g, counting)

	first, err := e.ClassifyPair("virus x", "Virus X")
	if err != nil {
		t.Fatalf("ClassifyPair: %v", err)
	}
	second, err := e.ClassifyPair("virus x", "Virus X")
	if err != nil {
		t.Fatalf("ClassifyPair: %v", err)
	}

	if calls != 2 {
		t.Errorf("resolver called %d times, want 2 (one per name, once per pair)", calls)
	}
	if first != second {
		t.Errorf("memoized pair differs: %+v vs %+v", first, second)
	}
	if e.CachedPairs() != 1 {
		t.Errorf("CachedPairs = %d, want 1", e.CachedPairs())
	}
}

func TestClassifyPairConcurrent(t *testing.T) {
	e := New(virusGraph(t))

	var wg sync.WaitGroup
	results := make([]PairVerdict, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair, err := e.ClassifyPair("agent X", "Virus X")
			if err != nil {
				t.Errorf("ClassifyPair: %v", err)
				return
			}
			results[i] = pair
		}(i)
	}
	wg.Wait()

	for i, pair := range results {
		if pair != results[0] {
			t.Fatalf("result %d differs: %+v vs %+v", i, pair, results[0])
		}
	}
}

func TestClassifySurfacesIntegrityError(t *testing.T) {
	nodes := "1\t|\t1\t|\n" +
		"55\t|\t404\t|\n"
	names := "55\t|\tDangling virus\t|\t\t|\tscientific name\t|\n"
	e := New(buildGraph(t, nodes, names))

	if _, err := e.Classify("Dangling virus"); err == nil {
		t.Fatal("Classify succeeded despite a dangling parent reference")
	}
}
