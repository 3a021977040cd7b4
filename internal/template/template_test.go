package template

import (
	"math"
	"testing"
)

func TestRecordOutcomeSeedsFirstObservation(t *testing.T) {
	tmpl := &Template{ID: "t"}
	tmpl.RecordOutcome(true, DefaultSuccessAlpha)

	if tmpl.SuccessRate != 1.0 {
		t.Errorf("First success should seed rate at 1.0, got %f", tmpl.SuccessRate)
	}
	if tmpl.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", tmpl.UsageCount)
	}
	if tmpl.LastUsed.IsZero() {
		t.Error("LastUsed should be set")
	}
}

func TestRecordOutcomeEMA(t *testing.T) {
	tmpl := &Template{ID: "t", SuccessRate: 0.9, UsageCount: 10}
	tmpl.RecordOutcome(false, 0.1)

	want := 0.9 * 0.9 // (1-alpha)*0.9 + alpha*0
	if math.Abs(tmpl.SuccessRate-want) > 1e-9 {
		t.Errorf("SuccessRate = %f, want %f", tmpl.SuccessRate, want)
	}
	if tmpl.UsageCount != 11 {
		t.Errorf("UsageCount = %d, want 11", tmpl.UsageCount)
	}
}

func TestRecordOutcomeInvalidAlphaFallsBack(t *testing.T) {
	a := &Template{ID: "a", SuccessRate: 0.5, UsageCount: 1}
	b := &Template{ID: "b", SuccessRate: 0.5, UsageCount: 1}
	a.RecordOutcome(true, 0)
	b.RecordOutcome(true, DefaultSuccessAlpha)
	if a.SuccessRate != b.SuccessRate {
		t.Errorf("Invalid alpha should use default: %f vs %f", a.SuccessRate, b.SuccessRate)
	}
}

func TestTemplateCloneIsDeep(t *testing.T) {
	orig := GuaranteedFallback()
	clone := orig.Clone()

	clone.Keywords[0] = "mutated"
	clone.Graph.Nodes[0].Parameters["path"] = "mutated"
	clone.Graph.Connections[0].From = "mutated"

	if orig.Keywords[0] == "mutated" {
		t.Error("Clone shares keyword slice with original")
	}
	if orig.Graph.Nodes[0].Parameters["path"] == "mutated" {
		t.Error("Clone shares node parameters with original")
	}
	if orig.Graph.Connections[0].From == "mutated" {
		t.Error("Clone shares connections with original")
	}
}

func TestWorkflowCloneNestedValues(t *testing.T) {
	wf := &Workflow{
		Name: "w",
		Nodes: []Node{{
			ID:   "n",
			Type: ActionTransform,
			Parameters: map[string]any{
				"nested": map[string]any{"list": []any{"a", "b"}},
			},
		}},
	}
	clone := wf.Clone()
	nested := clone.Nodes[0].Parameters["nested"].(map[string]any)
	nested["list"].([]any)[0] = "mutated"

	origNested := wf.Nodes[0].Parameters["nested"].(map[string]any)
	if origNested["list"].([]any)[0] == "mutated" {
		t.Error("Clone shares nested parameter values with original")
	}
}
