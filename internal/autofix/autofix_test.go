package autofix

import (
	"testing"

	"github.com/weavekit/weaver/internal/feasibility"
	"github.com/weavekit/weaver/internal/template"
)

func brokenWorkflow() *template.Workflow {
	return &template.Workflow{
		Name: "Broken",
		Nodes: []template.Node{
			{ID: "notify", Name: "Notify Team", Type: template.ActionSlack,
				Parameters: map[string]any{"channel": "#ops"}},
			{ID: "store", Name: "Store", Type: template.ActionDatabase},
		},
		Connections: []template.Connection{
			{From: "notify", To: "store"},
			{From: "store", To: "ghost"},
		},
	}
}

func TestRepairDoesNotMutateInput(t *testing.T) {
	e := NewEngine()
	wf := brokenWorkflow()

	e.Repair(wf)

	if wf.Nodes[0].Type != template.ActionSlack {
		t.Error("Repair must operate on a clone, input was mutated")
	}
	if len(wf.Connections) != 2 {
		t.Error("Repair must not prune the input's connections")
	}
}

func TestRepairMakesBrokenWorkflowFeasible(t *testing.T) {
	e := NewEngine()
	repaired, fixes := e.Repair(brokenWorkflow())

	if len(fixes) == 0 {
		t.Fatal("Expected fixes for a broken workflow")
	}

	result := feasibility.NewChecker().Check(repaired)
	if !result.Passed {
		t.Fatalf("Repaired workflow still infeasible: %s", result.Summary)
	}
}

func TestRepairInsertsDefaultTrigger(t *testing.T) {
	e := NewEngine()
	repaired, fixes := e.Repair(brokenWorkflow())

	if len(repaired.Triggers()) != 1 {
		t.Fatalf("Expected exactly one trigger, got %d", len(repaired.Triggers()))
	}
	trigger := repaired.Nodes[0]
	if trigger.Type != template.ActionWebhookTrigger {
		t.Errorf("Default trigger type = %s, want webhook", trigger.Type)
	}

	// The trigger is wired to what used to be the first node.
	wired := false
	for _, conn := range repaired.Connections {
		if conn.From == trigger.ID && conn.To == "notify" {
			wired = true
		}
	}
	if !wired {
		t.Error("Inserted trigger is not connected to the graph")
	}

	assertRuleApplied(t, fixes, RuleInsertTrigger)
}

func TestRepairSubstitutesDisallowedAction(t *testing.T) {
	e := NewEngine()
	repaired, fixes := e.Repair(brokenWorkflow())

	n := repaired.Node("notify")
	if n == nil {
		t.Fatal("Node notify disappeared")
	}
	if n.Type != template.ActionHTTP {
		t.Errorf("Type = %s, want %s", n.Type, template.ActionHTTP)
	}
	if emu, _ := n.StringParam("emulates"); emu != string(template.ActionSlack) {
		t.Errorf("emulates = %q, want original type", emu)
	}
	if url, ok := n.StringParam("url"); !ok || url == "" {
		t.Error("Substituted HTTP node needs a url placeholder")
	}
	if ch, _ := n.StringParam("channel"); ch != "#ops" {
		t.Error("Substitution must preserve existing parameters")
	}

	assertRuleApplied(t, fixes, RuleSubstituteAction)
}

func TestRepairFillsRequiredParams(t *testing.T) {
	e := NewEngine()
	repaired, fixes := e.Repair(brokenWorkflow())

	n := repaired.Node("store")
	if op, _ := n.StringParam("operation"); op == "" {
		t.Error("Expected placeholder for database operation")
	}
	if table, _ := n.StringParam("table"); table == "" {
		t.Error("Expected placeholder for database table")
	}

	assertRuleApplied(t, fixes, RuleFillParams)
}

func TestRepairPrunesDanglingConnections(t *testing.T) {
	e := NewEngine()
	repaired, fixes := e.Repair(brokenWorkflow())

	for _, conn := range repaired.Connections {
		if conn.To == "ghost" {
			t.Error("Dangling connection survived repair")
		}
	}
	assertRuleApplied(t, fixes, RulePruneConnections)
}

func TestRepairDedupesNodeIDs(t *testing.T) {
	e := NewEngine()
	wf := &template.Workflow{
		Name: "Dupes",
		Nodes: []template.Node{
			{ID: "trigger", Type: template.ActionManualTrigger},
			{ID: "step", Type: template.ActionTransform},
			{ID: "step", Type: template.ActionTransform},
		},
		Connections: []template.Connection{{From: "trigger", To: "step"}},
	}

	repaired, fixes := e.Repair(wf)

	seen := make(map[string]int)
	for _, n := range repaired.Nodes {
		seen[n.ID]++
	}
	for id, count := range seen {
		if count > 1 {
			t.Errorf("ID %q still duplicated %d times", id, count)
		}
	}
	assertRuleApplied(t, fixes, RuleDedupeIDs)
}

func TestRepairIdempotent(t *testing.T) {
	e := NewEngine()
	once, fixes := e.Repair(brokenWorkflow())
	if len(fixes) == 0 {
		t.Fatal("First repair should apply fixes")
	}

	_, again := e.Repair(once)
	if len(again) != 0 {
		t.Errorf("Second repair applied %d fixes, want 0: %+v", len(again), again)
	}
}

func TestRepairCleanWorkflowUntouched(t *testing.T) {
	e := NewEngine()
	clean := &template.Workflow{
		Name: "Clean",
		Nodes: []template.Node{
			{ID: "t", Type: template.ActionWebhookTrigger, Parameters: map[string]any{"path": "x"}},
			{ID: "a", Type: template.ActionHTTP, Parameters: map[string]any{"url": "https://example.com", "method": "GET"}},
		},
		Connections: []template.Connection{{From: "t", To: "a"}},
	}

	_, fixes := e.Repair(clean)
	if len(fixes) != 0 {
		t.Errorf("Clean workflow got %d fixes: %+v", len(fixes), fixes)
	}
}

func assertRuleApplied(t *testing.T, fixes []Fix, rule string) {
	t.Helper()
	for _, f := range fixes {
		if f.Rule == rule {
			return
		}
	}
	t.Errorf("Rule %s not applied; fixes: %+v", rule, fixes)
}
