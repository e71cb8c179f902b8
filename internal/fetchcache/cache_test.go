package fetchcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hipc-validation/virus-strain-validator/internal/immport"
)

func TestGetMissReturnsFalse(t *testing.T) {
	c := New(t.TempDir())
	_, ok, err := c.Get("hai", "SDY212")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Error("expected miss for empty cache")
	}
}

func TestPutThenGet(t *testing.T) {
	c := New(t.TempDir())
	records := []immport.Record{
		{"virusStrainReported": "A/Perth/16/2009", "virusStrainPreferred": "A/Perth/16/2009"},
	}
	if err := c.Put("hai", "SDY212", records); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	got, ok, err := c.Get("hai", "SDY212")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if len(got) != 1 || got[0].StringField("virusStrainReported") != "A/Perth/16/2009" {
		t.Errorf("unexpected records: %v", got)
	}
}

func TestEndpointsAreIsolated(t *testing.T) {
	c := New(t.TempDir())
	if err := c.Put("hai", "SDY212", []immport.Record{{"a": "1"}}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if _, ok, _ := c.Get("neutAbTiter", "SDY212"); ok {
		t.Error("cache entries must be scoped per endpoint")
	}
}

func TestWalkVisitsCachedStudies(t *testing.T) {
	c := New(t.TempDir())
	for _, sid := range []string{"SDY80", "SDY212"} {
		if err := c.Put("hai", sid, []immport.Record{{"study": sid}}); err != nil {
			t.Fatalf("Put(%s) error: %v", sid, err)
		}
	}

	seen := make(map[string]int)
	err := c.Walk("hai", func(studyID string, records []immport.Record) error {
		seen[studyID] = len(records)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(seen) != 2 || seen["SDY80"] != 1 || seen["SDY212"] != 1 {
		t.Errorf("unexpected walk result: %v", seen)
	}
}

func TestWalkMissingEndpointDir(t *testing.T) {
	c := New(t.TempDir())
	err := c.Walk("hai", func(string, []immport.Record) error {
		t.Fatal("callback must not run for a missing endpoint dir")
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
}

func TestWalkSkipsNonJSONEntries(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	if err := c.Put("hai", "SDY80", []immport.Record{{"a": "1"}}); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "hai", "README.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing stray file: %v", err)
	}

	var visits int
	if err := c.Walk("hai", func(string, []immport.Record) error {
		visits++
		return nil
	}); err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if visits != 1 {
		t.Errorf("expected 1 visit, got %d", visits)
	}
}
