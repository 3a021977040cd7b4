package feasibility

import (
	"strings"
	"testing"

	"github.com/weavekit/weaver/internal/template"
)

func validWorkflow() *template.Workflow {
	return &template.Workflow{
		Name: "Valid",
		Nodes: []template.Node{
			{ID: "trigger", Type: template.ActionWebhookTrigger,
				Parameters: map[string]any{"path": "hook"}},
			{ID: "send", Type: template.ActionHTTP,
				Parameters: map[string]any{"url": "https://example.com", "method": "POST"}},
		},
		Connections: []template.Connection{{From: "trigger", To: "send"}},
	}
}

func TestCheckValidWorkflowPasses(t *testing.T) {
	c := NewChecker()
	result := c.Check(validWorkflow())

	if !result.Passed {
		t.Fatalf("Expected pass, got: %s", result.Summary)
	}
	if result.FailedStage != "" {
		t.Errorf("FailedStage = %q, want empty", result.FailedStage)
	}
	if len(result.Errors()) != 0 {
		t.Errorf("Expected no errors, got %v", result.Errors())
	}
	for _, stage := range []string{StageNodeCompliance, StageConfigCompleteness, StageStructuralDryRun} {
		if c.StageCount(stage) != 1 {
			t.Errorf("Stage %s ran %d times, want 1", stage, c.StageCount(stage))
		}
	}
}

func TestCheckDisallowedActionShortCircuits(t *testing.T) {
	c := NewChecker()
	wf := validWorkflow()
	wf.Nodes[1].Type = template.ActionSlack

	result := c.Check(wf)

	if result.Passed {
		t.Fatal("Expected failure for disallowed action")
	}
	if result.FailedStage != StageNodeCompliance {
		t.Errorf("FailedStage = %s, want %s", result.FailedStage, StageNodeCompliance)
	}
	if !result.ConfigCompleteness.Skipped || !result.StructuralDryRun.Skipped {
		t.Error("Later stages must be marked skipped")
	}
	// Short-circuit contract: stages two and three never executed.
	if c.StageCount(StageConfigCompleteness) != 0 || c.StageCount(StageStructuralDryRun) != 0 {
		t.Errorf("Later stages executed: config=%d structure=%d",
			c.StageCount(StageConfigCompleteness), c.StageCount(StageStructuralDryRun))
	}

	errs := result.Errors()
	if len(errs) != 1 || errs[0].Code != "disallowed_action" {
		t.Fatalf("Expected one disallowed_action error, got %v", errs)
	}
	// A chat integration has an approved substitute; it is suggested.
	found := false
	for _, w := range result.Warnings() {
		if strings.Contains(w, string(template.ActionHTTP)) {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected substitution suggestion in warnings, got %v", result.Warnings())
	}
}

func TestCheckMissingRequiredParams(t *testing.T) {
	c := NewChecker()
	wf := validWorkflow()
	wf.Nodes[1].Parameters = map[string]any{"url": ""}

	result := c.Check(wf)

	if result.FailedStage != StageConfigCompleteness {
		t.Fatalf("FailedStage = %s, want %s", result.FailedStage, StageConfigCompleteness)
	}
	if c.StageCount(StageStructuralDryRun) != 0 {
		t.Error("Structural stage must not run after config failure")
	}

	// Empty string counts as missing, so both url and method are reported.
	codes := 0
	for _, e := range result.Errors() {
		if e.Code == "missing_required_param" {
			codes++
		}
	}
	if codes != 2 {
		t.Errorf("Expected 2 missing_required_param errors, got %d", codes)
	}
}

func TestCheckWebhookPathIsWarningOnly(t *testing.T) {
	c := NewChecker()
	wf := validWorkflow()
	delete(wf.Nodes[0].Parameters, "path")

	result := c.Check(wf)
	if !result.Passed {
		t.Fatalf("Missing webhook path must not fail: %s", result.Summary)
	}
	if len(result.Warnings()) == 0 {
		t.Error("Expected a warning about the missing path")
	}
}

func TestCheckStructuralFindings(t *testing.T) {
	c := NewChecker()
	wf := &template.Workflow{
		Name: "Broken",
		Nodes: []template.Node{
			{ID: "only", Type: template.ActionTransform},
		},
		Connections: []template.Connection{{From: "only", To: "ghost"}},
	}

	result := c.Check(wf)
	if result.FailedStage != StageStructuralDryRun {
		t.Fatalf("FailedStage = %s, want %s", result.FailedStage, StageStructuralDryRun)
	}

	wantCodes := map[string]bool{"missing_trigger": false, "too_few_nodes": false, "dangling_connection": false}
	for _, e := range result.Errors() {
		wantCodes[e.Code] = true
	}
	for code, seen := range wantCodes {
		if !seen {
			t.Errorf("Expected %s error, got %v", code, result.Errors())
		}
	}
}

func TestCheckOrphanAndNoSideEffectWarnings(t *testing.T) {
	c := NewChecker()
	wf := &template.Workflow{
		Name: "Drifting",
		Nodes: []template.Node{
			{ID: "trigger", Type: template.ActionManualTrigger},
			{ID: "a", Type: template.ActionTransform},
			{ID: "b", Type: template.ActionFilter},
		},
		Connections: []template.Connection{{From: "trigger", To: "a"}},
	}

	result := c.Check(wf)
	if !result.Passed {
		t.Fatalf("Orphans and missing side effects are warnings, not errors: %s", result.Summary)
	}

	var orphan, sideEffect bool
	for _, w := range result.Warnings() {
		if strings.Contains(w, "not connected") {
			orphan = true
		}
		if strings.Contains(w, "side-effecting") {
			sideEffect = true
		}
	}
	if !orphan {
		t.Error("Expected orphan warning for node b")
	}
	if !sideEffect {
		t.Error("Expected no-side-effect warning")
	}
}

func TestCheckNilWorkflow(t *testing.T) {
	c := NewChecker()
	result := c.Check(nil)
	if result.Passed {
		t.Fatal("Nil workflow must fail")
	}
	if result.FailedStage != StageNodeCompliance {
		t.Errorf("FailedStage = %s, want %s", result.FailedStage, StageNodeCompliance)
	}
}

func TestSummaryText(t *testing.T) {
	c := NewChecker()
	result := c.Check(validWorkflow())
	if result.Summary != "feasible" {
		t.Errorf("Summary = %q, want %q", result.Summary, "feasible")
	}
}
