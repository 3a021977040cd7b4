// Package orchestrator sequences the reliability pipeline: intent
// extraction, cache-aware discovery, augmentation, the feasibility gate,
// one bounded auto-fix cycle, and the guaranteed fallback. Reliability is a
// hard contract at this boundary: every path, including a panic anywhere in
// the sequence, ends in a feasible workflow.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/weavekit/weaver/internal/autofix"
	"github.com/weavekit/weaver/internal/discovery"
	"github.com/weavekit/weaver/internal/feasibility"
	"github.com/weavekit/weaver/internal/intent"
	"github.com/weavekit/weaver/internal/metrics"
	"github.com/weavekit/weaver/internal/telemetry"
	"github.com/weavekit/weaver/internal/template"
)

// Generation outcomes, used as metric labels.
const (
	OutcomeClean    = "clean"
	OutcomeRepaired = "repaired"
	OutcomeFallback = "fallback"
)

// repairPenalty is subtracted from the confidence of results that needed
// auto-fix; repaired graphs are deployable but less trusted.
const repairPenalty = 0.1

// fallbackConfidence is the floor confidence of the guaranteed fallback.
const fallbackConfidence = 0.95

// Request is one workflow-generation invocation.
type Request struct {
	UserID string `json:"user_id"`
	Intent string `json:"intent"`
}

// Result is a finalized, deployable workflow with its provenance.
type Result struct {
	Workflow    *template.Workflow  `json:"workflow"`
	TemplateID  string              `json:"template_id"`
	Confidence  float64             `json:"confidence"`
	Source      template.Source     `json:"source"`
	Repaired    bool                `json:"repaired"`
	Fixes       []autofix.Fix       `json:"fixes,omitempty"`
	Feasibility *feasibility.Result `json:"feasibility"`
	Fallback    bool                `json:"fallback"`
	Intent      intent.Intent       `json:"intent"`
	Outcome     string              `json:"outcome"`
}

// Orchestrator runs the pipeline. All collaborators are injected; there is
// no process-global state.
type Orchestrator struct {
	discovery *discovery.Service
	checker   *feasibility.Checker
	autofix   *autofix.Engine
	metrics   *metrics.Metrics
	fallback  *template.Template
}

// New builds an orchestrator and verifies the guaranteed fallback against
// the feasibility gate. A fallback that fails validation is a programming
// defect in a static pre-verified asset, so construction fails loudly.
func New(d *discovery.Service, checker *feasibility.Checker, fix *autofix.Engine, m *metrics.Metrics) (*Orchestrator, error) {
	fb := template.GuaranteedFallback()
	if result := feasibility.NewChecker().Check(fb.Graph); !result.Passed {
		return nil, fmt.Errorf("guaranteed fallback failed validation: %s", result.Summary)
	}
	return &Orchestrator{
		discovery: d,
		checker:   checker,
		autofix:   fix,
		metrics:   m,
		fallback:  fb,
	}, nil
}

// Generate produces a deployable workflow for the request. It never returns
// nil and never returns an infeasible workflow.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (result *Result) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "pipeline.generate")
	defer span.End()

	it := intent.Extract(req.Intent)
	span.SetAttributes(
		attribute.String("weaver.category", it.Category),
		attribute.Int("weaver.keywords", len(it.Keywords)),
	)

	// The outer reliability boundary: a panic anywhere below becomes the
	// guaranteed fallback, never a failed request.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Orchestrator] Recovered from panic, serving fallback: %v", r)
			result = o.serveFallback(it, req)
		}
		if result != nil && o.metrics != nil {
			o.metrics.RecordGeneration(result.Outcome, time.Since(start).Seconds(), result.Confidence)
		}
	}()

	matches := o.discovery.Discover(ctx, it)
	best := matches[0]

	graph := o.augment(best.Template.Graph.Clone(), req, it)

	check := o.checker.Check(graph)
	if o.metrics != nil {
		o.metrics.RecordFeasibility(check.Passed, check.FailedStage)
	}
	if check.Passed {
		return &Result{
			Workflow:    graph,
			TemplateID:  best.Template.ID,
			Confidence:  best.Confidence,
			Source:      best.Template.Source,
			Feasibility: check,
			Intent:      it,
			Outcome:     OutcomeClean,
		}
	}

	// One bounded repair cycle: auto-fix, then re-check exactly once.
	repaired, fixes := o.autofix.Repair(graph)
	if o.metrics != nil {
		for _, f := range fixes {
			o.metrics.RepairsApplied.WithLabelValues(f.Rule).Inc()
		}
	}
	recheck := o.checker.Check(repaired)
	if o.metrics != nil {
		o.metrics.RecordFeasibility(recheck.Passed, recheck.FailedStage)
	}
	if recheck.Passed {
		return &Result{
			Workflow:    repaired,
			TemplateID:  best.Template.ID,
			Confidence:  penalize(best.Confidence),
			Source:      best.Template.Source,
			Repaired:    true,
			Fixes:       fixes,
			Feasibility: recheck,
			Intent:      it,
			Outcome:     OutcomeRepaired,
		}
	}

	log.Printf("[Orchestrator] Repair failed (%s), serving fallback", recheck.Summary)
	return o.serveFallback(it, req)
}

// serveFallback returns the guaranteed fallback, augmented for the user and
// re-validated. The fallback was verified at construction; this check is the
// alert path for the one unrecoverable defect the design admits.
func (o *Orchestrator) serveFallback(it intent.Intent, req Request) *Result {
	graph := o.augment(o.fallback.Graph.Clone(), req, it)
	check := o.checker.Check(graph)
	if !check.Passed {
		// Augmentation must never break the fallback. If it did, deploy the
		// pristine graph and alert.
		log.Printf("[Orchestrator] ALERT: augmented fallback failed validation: %s", check.Summary)
		graph = o.fallback.Graph.Clone()
		check = o.checker.Check(graph)
	}
	if o.metrics != nil {
		o.metrics.FallbacksServed.Inc()
	}
	return &Result{
		Workflow:    graph,
		TemplateID:  o.fallback.ID,
		Confidence:  fallbackConfidence,
		Source:      o.fallback.Source,
		Feasibility: check,
		Fallback:    true,
		Intent:      it,
		Outcome:     OutcomeFallback,
	}
}

func penalize(confidence float64) float64 {
	c := confidence - repairPenalty
	if c < 0.3 {
		c = 0.3
	}
	return c
}
