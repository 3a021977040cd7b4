package template

import (
	"time"
)

// Source identifies where a template came from. TTLs and trust differ by
// source: curated templates are pre-verified, community templates came from
// the public catalogue, generated ones were produced for a single request.
type Source string

const (
	SourceCurated   Source = "curated"
	SourceCommunity Source = "community"
	SourceGenerated Source = "generated"
)

// Complexity tiers a template's graph size and branching.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Template is a pre-built or discovered workflow graph with reliability
// metadata. SuccessRate, UsageCount and LastUsed are mutated only through
// RecordOutcome, driven by real deployment reports.
type Template struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string     `json:"category" yaml:"category"`
	Keywords    []string   `json:"keywords" yaml:"keywords"`
	Graph       *Workflow  `json:"graph" yaml:"graph"`
	Complexity  Complexity `json:"complexity" yaml:"complexity"`
	SuccessRate float64    `json:"success_rate" yaml:"success_rate"`
	UsageCount  int        `json:"usage_count" yaml:"usage_count"`
	LastUsed    time.Time  `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	Source      Source     `json:"source" yaml:"source"`
}

// DefaultSuccessAlpha is the exponential-moving-average smoothing factor
// applied to SuccessRate when no override is configured.
const DefaultSuccessAlpha = 0.1

// RecordOutcome folds a deployment outcome into the template's success rate
// using an exponential moving average. The rate is never hard-reset; a
// template with history keeps it across restarts via the stats store.
func (t *Template) RecordOutcome(success bool, alpha float64) {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSuccessAlpha
	}
	observed := 0.0
	if success {
		observed = 1.0
	}
	if t.UsageCount == 0 && t.SuccessRate == 0 {
		// First observation seeds the average instead of dragging it from zero.
		t.SuccessRate = observed
	} else {
		t.SuccessRate = (1-alpha)*t.SuccessRate + alpha*observed
	}
	t.UsageCount++
	t.LastUsed = time.Now()
}

// Clone returns a deep copy of the template, including its graph.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := *t
	out.Keywords = append([]string(nil), t.Keywords...)
	out.Graph = t.Graph.Clone()
	return &out
}
