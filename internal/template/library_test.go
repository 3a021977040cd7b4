package template

import (
	"testing"
	"time"
)

func TestNewLibrarySeedsBuiltins(t *testing.T) {
	l := NewLibrary()
	if l.Len() < 5 {
		t.Fatalf("Expected built-in catalogue, got %d templates", l.Len())
	}
	if _, ok := l.Get(FallbackTemplateID); !ok {
		t.Error("Built-in catalogue must contain the guaranteed fallback")
	}
}

func TestLibraryFindByKeyword(t *testing.T) {
	l := NewLibrary()

	results := l.Find([]string{"email"})
	if len(results) == 0 {
		t.Fatal("Expected matches for 'email'")
	}
	found := false
	for _, tmpl := range results {
		if tmpl.ID == "curated-email-digest" {
			found = true
		}
	}
	if !found {
		t.Error("Expected curated-email-digest among email matches")
	}
}

func TestLibraryFindEmptyQueryReturnsAll(t *testing.T) {
	l := NewLibrary()
	if got := len(l.Find(nil)); got != l.Len() {
		t.Errorf("Empty query returned %d, want full catalogue of %d", got, l.Len())
	}
}

func TestLibraryFindNoMatch(t *testing.T) {
	l := NewLibrary()
	if got := l.Find([]string{"zzzzzz"}); len(got) != 0 {
		t.Errorf("Expected no matches, got %d", len(got))
	}
}

func TestLibraryGetReturnsCopy(t *testing.T) {
	l := NewLibrary()
	first, _ := l.Get("curated-email-digest")
	first.Name = "mutated"
	first.Graph.Nodes[0].ID = "mutated"

	second, _ := l.Get("curated-email-digest")
	if second.Name == "mutated" || second.Graph.Nodes[0].ID == "mutated" {
		t.Error("Get must return an isolated copy")
	}
}

func TestLibraryRecordOutcome(t *testing.T) {
	l := NewLibrary()
	before, _ := l.Get("curated-email-digest")

	updated, ok := l.RecordOutcome("curated-email-digest", false)
	if !ok {
		t.Fatal("RecordOutcome failed for known template")
	}
	if updated.SuccessRate >= before.SuccessRate {
		t.Errorf("Failure should lower success rate: %f -> %f", before.SuccessRate, updated.SuccessRate)
	}
	if updated.UsageCount != before.UsageCount+1 {
		t.Errorf("UsageCount = %d, want %d", updated.UsageCount, before.UsageCount+1)
	}

	if _, ok := l.RecordOutcome("no-such-template", true); ok {
		t.Error("RecordOutcome should report unknown templates")
	}
}

func TestLibraryRestoreStats(t *testing.T) {
	l := NewLibrary()
	last := time.Now().Add(-time.Hour)
	l.RestoreStats("curated-email-digest", 0.42, 7, last)

	tmpl, _ := l.Get("curated-email-digest")
	if tmpl.SuccessRate != 0.42 {
		t.Errorf("SuccessRate = %f, want 0.42", tmpl.SuccessRate)
	}
	if tmpl.UsageCount != 7 {
		t.Errorf("UsageCount = %d, want 7", tmpl.UsageCount)
	}
	if !tmpl.LastUsed.Equal(last) {
		t.Errorf("LastUsed = %v, want %v", tmpl.LastUsed, last)
	}

	// Out-of-range rates and stale counts are ignored.
	l.RestoreStats("curated-email-digest", 1.5, 3, time.Time{})
	tmpl, _ = l.Get("curated-email-digest")
	if tmpl.SuccessRate != 0.42 || tmpl.UsageCount != 7 {
		t.Errorf("Restore should ignore invalid values, got %f/%d", tmpl.SuccessRate, tmpl.UsageCount)
	}
}

func TestGuaranteedFallbackShape(t *testing.T) {
	fb := GuaranteedFallback()
	if fb.SuccessRate < 0.99 {
		t.Errorf("Fallback success rate = %f, want >= 0.99", fb.SuccessRate)
	}
	if len(fb.Graph.Triggers()) == 0 {
		t.Error("Fallback must start with a trigger")
	}
	for _, n := range fb.Graph.Nodes {
		if !n.Type.Approved() {
			t.Errorf("Fallback node %s uses non-approved type %s", n.ID, n.Type)
		}
	}
}
