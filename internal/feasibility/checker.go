// Package feasibility implements the three-stage gate a workflow must pass
// before being deployable: node compliance, config completeness, and a
// structural dry-run. Stages short-circuit: a failing stage stops the gate
// and later stages are marked skipped.
package feasibility

import (
	"fmt"
	"sync"

	"github.com/weavekit/weaver/internal/template"
)

// Stage names as they appear in results and metrics.
const (
	StageNodeCompliance     = "node_compliance"
	StageConfigCompleteness = "config_completeness"
	StageStructuralDryRun   = "structural_dry_run"
)

// minNodeCount is the smallest graph the dry-run accepts (trigger + action).
const minNodeCount = 2

// ValidationError is a hard finding that blocks finalization. Findings are
// aggregated values, never exceptions.
type ValidationError struct {
	NodeID   string `json:"node_id,omitempty"`
	NodeName string `json:"node_name,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StageResult holds one stage's outcome.
type StageResult struct {
	Passed     bool              `json:"passed"`
	Skipped    bool              `json:"skipped"`
	SkipReason string            `json:"skip_reason,omitempty"`
	Errors     []ValidationError `json:"errors,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// Result aggregates the three stage results. Passed is the conjunction of
// all executed stages.
type Result struct {
	Passed             bool        `json:"passed"`
	NodeCompliance     StageResult `json:"node_compliance"`
	ConfigCompleteness StageResult `json:"config_completeness"`
	StructuralDryRun   StageResult `json:"structural_dry_run"`
	FailedStage        string      `json:"failed_stage,omitempty"`
	Summary            string      `json:"summary"`
}

// Errors returns every hard error across stages.
func (r *Result) Errors() []ValidationError {
	var out []ValidationError
	out = append(out, r.NodeCompliance.Errors...)
	out = append(out, r.ConfigCompleteness.Errors...)
	out = append(out, r.StructuralDryRun.Errors...)
	return out
}

// Warnings returns every soft finding across stages.
func (r *Result) Warnings() []string {
	var out []string
	out = append(out, r.NodeCompliance.Warnings...)
	out = append(out, r.ConfigCompleteness.Warnings...)
	out = append(out, r.StructuralDryRun.Warnings...)
	return out
}

// Checker runs the gate. It keeps per-stage invocation counts so the
// short-circuit contract is observable.
type Checker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewChecker creates a feasibility checker.
func NewChecker() *Checker {
	return &Checker{counts: make(map[string]int)}
}

// StageCount reports how many times a stage has executed.
func (c *Checker) StageCount(stage string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[stage]
}

func (c *Checker) record(stage string) {
	c.mu.Lock()
	c.counts[stage]++
	c.mu.Unlock()
}

// Check runs the three stages against a workflow graph.
func (c *Checker) Check(wf *template.Workflow) *Result {
	result := &Result{Passed: true}

	result.NodeCompliance = c.checkNodeCompliance(wf)
	if !result.NodeCompliance.Passed {
		result.Passed = false
		result.FailedStage = StageNodeCompliance
		result.ConfigCompleteness = skipped("node compliance failed")
		result.StructuralDryRun = skipped("node compliance failed")
		result.Summary = summarize(result)
		return result
	}

	result.ConfigCompleteness = c.checkConfigCompleteness(wf)
	if !result.ConfigCompleteness.Passed {
		result.Passed = false
		result.FailedStage = StageConfigCompleteness
		result.StructuralDryRun = skipped("config completeness failed")
		result.Summary = summarize(result)
		return result
	}

	result.StructuralDryRun = c.checkStructure(wf)
	if !result.StructuralDryRun.Passed {
		result.Passed = false
		result.FailedStage = StageStructuralDryRun
	}
	result.Summary = summarize(result)
	return result
}

// checkNodeCompliance verifies every action type is allow-listed. A
// violation is a hard error naming the node; when an approved substitute
// exists it is suggested in the warnings.
func (c *Checker) checkNodeCompliance(wf *template.Workflow) StageResult {
	c.record(StageNodeCompliance)
	stage := StageResult{Passed: true}

	if wf == nil {
		stage.Passed = false
		stage.Errors = append(stage.Errors, ValidationError{
			Code: "nil_workflow", Message: "workflow graph is nil",
		})
		return stage
	}

	for _, n := range wf.Nodes {
		if n.Type.Approved() {
			continue
		}
		stage.Passed = false
		stage.Errors = append(stage.Errors, ValidationError{
			NodeID:   n.ID,
			NodeName: n.Name,
			Code:     "disallowed_action",
			Message:  fmt.Sprintf("action type %q is not allow-listed", n.Type),
		})
		if sub, ok := template.Substitute(n.Type); ok {
			stage.Warnings = append(stage.Warnings,
				fmt.Sprintf("node %s: %q can be emulated with %q", n.ID, n.Type, sub))
		}
	}
	return stage
}

// checkConfigCompleteness verifies type-specific required parameters. A
// missing webhook trigger path is a warning, not an error: the engine
// assigns one on deploy.
func (c *Checker) checkConfigCompleteness(wf *template.Workflow) StageResult {
	c.record(StageConfigCompleteness)
	stage := StageResult{Passed: true}

	for _, n := range wf.Nodes {
		if n.Type == template.ActionWebhookTrigger {
			if _, ok := n.StringParam("path"); !ok {
				stage.Warnings = append(stage.Warnings,
					fmt.Sprintf("node %s: webhook trigger has no path, one will be assigned", n.ID))
			}
		}
		for _, param := range template.RequiredParams(n.Type) {
			if !hasParam(&n, param) {
				stage.Passed = false
				stage.Errors = append(stage.Errors, ValidationError{
					NodeID:   n.ID,
					NodeName: n.Name,
					Code:     "missing_required_param",
					Message:  fmt.Sprintf("%s node requires parameter %q", n.Type, param),
				})
			}
		}
	}
	return stage
}

// checkStructure performs the structural dry-run: trigger presence,
// referential integrity of connections, orphan detection, minimum size, and
// at least one side-effecting action.
func (c *Checker) checkStructure(wf *template.Workflow) StageResult {
	c.record(StageStructuralDryRun)
	stage := StageResult{Passed: true}

	if len(wf.Triggers()) == 0 {
		stage.Passed = false
		stage.Errors = append(stage.Errors, ValidationError{
			Code:    "missing_trigger",
			Message: "workflow has no trigger node",
		})
	}

	if len(wf.Nodes) < minNodeCount {
		stage.Passed = false
		stage.Errors = append(stage.Errors, ValidationError{
			Code:    "too_few_nodes",
			Message: fmt.Sprintf("workflow has %d node(s), minimum is %d", len(wf.Nodes), minNodeCount),
		})
	}

	ids := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		ids[n.ID] = true
	}
	connected := make(map[string]bool)
	for _, conn := range wf.Connections {
		if !ids[conn.From] {
			stage.Passed = false
			stage.Errors = append(stage.Errors, ValidationError{
				NodeID:  conn.From,
				Code:    "dangling_connection",
				Message: fmt.Sprintf("connection references unknown source node %q", conn.From),
			})
		}
		if !ids[conn.To] {
			stage.Passed = false
			stage.Errors = append(stage.Errors, ValidationError{
				NodeID:  conn.To,
				Code:    "dangling_connection",
				Message: fmt.Sprintf("connection references unknown target node %q", conn.To),
			})
		}
		connected[conn.From] = true
		connected[conn.To] = true
	}

	sideEffects := 0
	for _, n := range wf.Nodes {
		if n.Type.SideEffecting() {
			sideEffects++
		}
		if n.Type.IsTrigger() {
			continue
		}
		if len(wf.Nodes) > 1 && !connected[n.ID] {
			stage.Warnings = append(stage.Warnings,
				fmt.Sprintf("node %s is not connected to the graph", n.ID))
		}
	}
	if sideEffects == 0 {
		stage.Warnings = append(stage.Warnings, "workflow has no side-effecting action")
	}

	return stage
}

func hasParam(n *template.Node, key string) bool {
	if n.Parameters == nil {
		return false
	}
	v, ok := n.Parameters[key]
	if !ok {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

func skipped(reason string) StageResult {
	return StageResult{Skipped: true, SkipReason: reason}
}

func summarize(r *Result) string {
	if r.Passed {
		warnings := len(r.Warnings())
		if warnings > 0 {
			return fmt.Sprintf("feasible with %d warning(s)", warnings)
		}
		return "feasible"
	}
	return fmt.Sprintf("failed at %s with %d error(s)", r.FailedStage, len(r.Errors()))
}
