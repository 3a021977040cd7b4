// Package feedback implements the error-feedback loop: deployment failures
// are bucketed into normalized patterns, layered repairs are retried against
// the failed graph, and the pattern table plus template statistics improve
// from each outcome.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/weavekit/weaver/internal/autofix"
	"github.com/weavekit/weaver/internal/feasibility"
	"github.com/weavekit/weaver/internal/metrics"
	"github.com/weavekit/weaver/internal/template"
)

// Repair strategy names, recorded on patterns and in metrics.
const (
	StrategyKnownFix   = "known_fix_table"
	StrategyActionType = "action_type_repair"
	StrategyStructural = "structural_repair"
	StrategyGenerative = "generative_repair"
)

// DeploymentError is the post-deployment failure report fed into the loop.
type DeploymentError struct {
	WorkflowID string            `json:"workflow_id"`
	TemplateID string            `json:"template_id,omitempty"`
	Raw        string            `json:"error"`
	NodeErrors map[string]string `json:"node_errors,omitempty"`
	Intent     string            `json:"intent,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// RepairOutcome reports what the loop did with a failure.
type RepairOutcome struct {
	Pattern     Pattern             `json:"pattern"`
	Strategies  []string            `json:"strategies_applied"`
	Repaired    *template.Workflow  `json:"repaired,omitempty"`
	Feasibility *feasibility.Result `json:"feasibility,omitempty"`
	Fixed       bool                `json:"fixed"`
}

// LanguageModelService is the last-resort generative repairer. It is
// explicitly best-effort: the loop degrades gracefully when it is absent,
// unreachable, or returns garbage.
type LanguageModelService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Loop buckets failures and drives layered repairs.
type Loop struct {
	table   *patternTable
	autofix *autofix.Engine
	checker *feasibility.Checker
	library *template.Library
	llm     LanguageModelService // nil disables generative repair
	store   PatternStore         // nil disables persistence
	metrics *metrics.Metrics     // nil disables metric recording
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLanguageModel attaches the generative repairer.
func WithLanguageModel(llm LanguageModelService) LoopOption {
	return func(l *Loop) { l.llm = llm }
}

// WithMetrics attaches the shared metric set. Pattern occurrences and
// repair outcomes are recorded per HandleFailure call.
func WithMetrics(m *metrics.Metrics) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

// WithPatternStore attaches persistent pattern storage. Previously known
// patterns are restored immediately; load failures are logged and skipped.
func WithPatternStore(store PatternStore) LoopOption {
	return func(l *Loop) {
		l.store = store
		patterns, err := store.LoadPatterns()
		if err != nil {
			log.Printf("[Feedback] Failed to restore patterns: %v", err)
			return
		}
		l.table.restore(patterns)
	}
}

// NewLoop creates the feedback loop.
func NewLoop(fix *autofix.Engine, checker *feasibility.Checker, library *template.Library, opts ...LoopOption) *Loop {
	l := &Loop{
		table:   newPatternTable(),
		autofix: fix,
		checker: checker,
		library: library,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Pattern returns the current state of a pattern by raw error text.
func (l *Loop) Pattern(raw string) (Pattern, bool) {
	return l.table.get(NormalizeSignature(raw))
}

// Patterns returns a snapshot of every known pattern.
func (l *Loop) Patterns() []Pattern {
	return l.table.all()
}

// RecordDeploymentOutcome folds a deployment result into the originating
// template's statistics. Success and failure both count.
func (l *Loop) RecordDeploymentOutcome(templateID string, success bool) {
	if templateID == "" || l.library == nil {
		return
	}
	if _, ok := l.library.RecordOutcome(templateID, success); !ok {
		log.Printf("[Feedback] Outcome for unknown template %s ignored", templateID)
	}
}

// HandleFailure processes one deployment failure: it observes the pattern,
// applies up to three deterministic repair strategies plus an optional
// generative one against a clone of the failed graph, re-checks feasibility
// once, and updates the pattern from the outcome.
func (l *Loop) HandleFailure(ctx context.Context, wf *template.Workflow, derr DeploymentError) *RepairOutcome {
	sig := NormalizeSignature(derr.Raw)
	pattern := l.table.observe(sig)
	log.Printf("[Feedback] Failure pattern %q (category %s, frequency %d)", truncate(sig, 60), pattern.Category, pattern.Frequency)
	if l.metrics != nil {
		l.metrics.RecordPatternObserved(pattern.Category)
	}

	if derr.TemplateID != "" {
		l.RecordDeploymentOutcome(derr.TemplateID, false)
	}

	outcome := &RepairOutcome{Pattern: pattern}
	if wf == nil {
		l.persistPattern(sig)
		return outcome
	}

	repaired := wf.Clone()
	var applied []string

	// (a) Known-fix table, shared with the auto-fix engine.
	if fixedGraph, fixes := l.autofix.Repair(repaired); len(fixes) > 0 {
		repaired = fixedGraph
		applied = append(applied, StrategyKnownFix)
	}

	// (b) Action-type-specific repairs.
	if l.applyActionTypeRepairs(repaired, derr) {
		applied = append(applied, StrategyActionType)
	}

	// (c) Structural repairs on mandatory top-level fields.
	if l.applyStructuralRepairs(repaired) {
		applied = append(applied, StrategyStructural)
	}

	// (d) Generative repair, only when nothing else applied and an intent
	// string is available.
	if len(applied) == 0 && derr.Intent != "" && l.llm != nil {
		if regenerated := l.generativeRepair(ctx, repaired, derr); regenerated != nil {
			repaired = regenerated
			applied = append(applied, StrategyGenerative)
		}
	}

	outcome.Strategies = applied
	outcome.Repaired = repaired
	outcome.Feasibility = l.checker.Check(repaired)
	outcome.Fixed = outcome.Feasibility.Passed && len(applied) > 0

	strategy := ""
	if len(applied) > 0 {
		strategy = applied[len(applied)-1]
	}
	outcome.Pattern = l.table.recordFix(sig, strategy, outcome.Fixed)
	if l.metrics != nil {
		l.metrics.RecordRepairOutcome(strategy, outcome.Fixed)
	}
	l.persistPattern(sig)
	return outcome
}

// applyActionTypeRepairs fills type-specific defaults that deployment
// failures commonly point at: trigger paths and HTTP request bodies.
func (l *Loop) applyActionTypeRepairs(wf *template.Workflow, derr DeploymentError) bool {
	changed := false
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		nodeFailed := len(derr.NodeErrors) == 0 || derr.NodeErrors[n.ID] != ""
		switch n.Type {
		case template.ActionWebhookTrigger:
			if _, ok := n.StringParam("path"); !ok {
				n.SetParam("path", "hook")
				changed = true
			}
		case template.ActionHTTP:
			if !nodeFailed {
				continue
			}
			if method, _ := n.StringParam("method"); method == "POST" {
				if _, ok := n.Parameters["body"]; !ok {
					n.SetParam("body", map[string]any{"payload": "{{ $json }}"})
					changed = true
				}
			}
		case template.ActionEmail:
			if _, ok := n.StringParam("subject"); !ok {
				n.SetParam("subject", template.PlaceholderValue(template.ActionEmail, "subject"))
				changed = true
			}
		}
	}
	return changed
}

// applyStructuralRepairs restores mandatory top-level fields.
func (l *Loop) applyStructuralRepairs(wf *template.Workflow) bool {
	changed := false
	if wf.Name == "" {
		wf.Name = "Recovered Workflow"
		changed = true
	}
	if wf.Settings == nil {
		wf.Settings = map[string]any{"timezone": "UTC"}
		changed = true
	}
	if wf.Connections == nil {
		wf.Connections = []template.Connection{}
		changed = true
	}
	return changed
}

// generativeRepair asks the language model to rewrite the failed graph. Any
// failure (service error, unparseable output, empty graph) is a logged
// no-op.
func (l *Loop) generativeRepair(ctx context.Context, wf *template.Workflow, derr DeploymentError) *template.Workflow {
	current, err := json.Marshal(wf)
	if err != nil {
		return nil
	}
	prompt := fmt.Sprintf(
		"A workflow deployment failed.\nUser intent: %s\nDeployment error: %s\nCurrent workflow JSON:\n%s\n\nReturn only the corrected workflow as JSON with the same schema.",
		derr.Intent, truncate(derr.Raw, 500), current)

	text, err := l.llm.Complete(ctx, prompt)
	if err != nil {
		log.Printf("[Feedback] Generative repair unavailable: %v", err)
		return nil
	}

	var repaired template.Workflow
	if err := json.Unmarshal([]byte(extractJSON(text)), &repaired); err != nil {
		log.Printf("[Feedback] Generative repair produced unparseable output: %v", err)
		return nil
	}
	if len(repaired.Nodes) == 0 {
		return nil
	}
	return &repaired
}

func (l *Loop) persistPattern(sig string) {
	if l.store == nil {
		return
	}
	if p, ok := l.table.get(sig); ok {
		if err := l.store.UpsertPattern(&p); err != nil {
			log.Printf("[Feedback] Failed to persist pattern: %v", err)
		}
	}
}

// extractJSON strips markdown fences and surrounding prose from model
// output, keeping the outermost JSON object.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
