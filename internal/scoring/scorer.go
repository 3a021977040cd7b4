// Package scoring ranks (intent, template) pairs with a deterministic
// multi-factor confidence. Scoring is pure and synchronous; identical inputs
// always produce identical confidence.
package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/weavekit/weaver/internal/intent"
	"github.com/weavekit/weaver/internal/template"
)

// Factor weights. They sum to 1.0 so the weighted sum stays in [0,1].
const (
	weightKeyword    = 0.25
	weightNodes      = 0.20
	weightSuccess    = 0.20
	weightPopularity = 0.15
	weightComplexity = 0.10
	weightRecency    = 0.10
)

// MinConfidence is the inclusion threshold for discovery results. Candidates
// below it are excluded unless nothing clears the bar.
const MinConfidence = 0.3

// Match pairs a template with its scored confidence for one intent.
type Match struct {
	Template   *template.Template `json:"template"`
	Confidence float64            `json:"confidence"`
	Similarity float64            `json:"similarity"`
	Reason     string             `json:"reason"`
}

// Breakdown carries the individual normalized sub-scores.
type Breakdown struct {
	Keyword    float64 `json:"keyword_similarity"`
	Nodes      float64 `json:"node_compatibility"`
	Success    float64 `json:"success_score"`
	Popularity float64 `json:"popularity_score"`
	Complexity float64 `json:"complexity_score"`
	Recency    float64 `json:"recency_score"`
}

// Scorer computes confidences. The clock is injectable so recency scoring
// stays deterministic under test.
type Scorer struct {
	now func() time.Time
}

// NewScorer creates a scorer using the wall clock.
func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// NewScorerAt creates a scorer with a fixed clock.
func NewScorerAt(now func() time.Time) *Scorer {
	return &Scorer{now: now}
}

// Score computes the weighted confidence for one (intent, template) pair.
func (s *Scorer) Score(it intent.Intent, t *template.Template) Match {
	b := s.breakdown(it, t)

	confidence := weightKeyword*b.Keyword +
		weightNodes*b.Nodes +
		weightSuccess*b.Success +
		weightPopularity*b.Popularity +
		weightComplexity*b.Complexity +
		weightRecency*b.Recency

	return Match{
		Template:   t,
		Confidence: clamp01(confidence),
		Similarity: b.Keyword,
		Reason: fmt.Sprintf("keywords %.2f, nodes %.2f, success %.2f, popularity %.2f, complexity %.2f, recency %.2f",
			b.Keyword, b.Nodes, b.Success, b.Popularity, b.Complexity, b.Recency),
	}
}

func (s *Scorer) breakdown(it intent.Intent, t *template.Template) Breakdown {
	return Breakdown{
		Keyword:    keywordSimilarity(it.Keywords, t.Keywords),
		Nodes:      nodeCompatibility(t.Graph),
		Success:    successScore(t),
		Popularity: popularityScore(t.UsageCount),
		Complexity: complexityScore(t.Complexity),
		Recency:    s.recencyScore(t.LastUsed),
	}
}

// Rank sorts matches by confidence descending, breaking ties on the
// success sub-score (so a no-history template keeps its 0.5 default), then
// ID for full determinism.
func Rank(matches []Match) []Match {
	out := make([]Match, len(matches))
	copy(out, matches)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		si, sj := successScore(out[i].Template), successScore(out[j].Template)
		if si != sj {
			return si > sj
		}
		return out[i].Template.ID < out[j].Template.ID
	})
	return out
}

// keywordSimilarity is the fuzzy overlap of template keywords covered by the
// intent, normalized by the template's keyword count.
func keywordSimilarity(intentKeywords, templateKeywords []string) float64 {
	if len(templateKeywords) == 0 {
		return 0
	}
	covered := 0
	for _, tk := range templateKeywords {
		for _, ik := range intentKeywords {
			if fuzzyEqual(tk, ik) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(templateKeywords))
}

// fuzzyEqual tolerates prefixes and containment so "emails" still matches
// "email" without a stemmer.
func fuzzyEqual(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) >= 4 && len(b) >= 4 {
		if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
			return true
		}
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// nodeCompatibility is the fraction of the graph's action types on the
// approved allow-list.
func nodeCompatibility(wf *template.Workflow) float64 {
	if wf == nil || len(wf.Nodes) == 0 {
		return 0
	}
	approved := 0
	for _, n := range wf.Nodes {
		if n.Type.Approved() {
			approved++
		}
	}
	return float64(approved) / float64(len(wf.Nodes))
}

// successScore is the template's EMA success rate, defaulting to 0.5 when
// the template has no deployment history yet.
func successScore(t *template.Template) float64 {
	if t.UsageCount == 0 {
		return 0.5
	}
	return clamp01(t.SuccessRate)
}

// popularityScore saturates at 100 uses and floors at 0.1 so unused
// templates are not buried entirely.
func popularityScore(usageCount int) float64 {
	score := float64(usageCount) / 100.0
	if score > 1 {
		score = 1
	}
	if score < 0.1 {
		score = 0.1
	}
	return score
}

func complexityScore(c template.Complexity) float64 {
	switch c {
	case template.ComplexitySimple:
		return 1.0
	case template.ComplexityModerate:
		return 0.7
	case template.ComplexityComplex:
		return 0.4
	default:
		return 0.7
	}
}

// recencyScore steps down with the age of the template's last use. A
// never-used template gets the oldest bucket.
func (s *Scorer) recencyScore(lastUsed time.Time) float64 {
	if lastUsed.IsZero() {
		return 0.2
	}
	age := s.now().Sub(lastUsed)
	switch {
	case age <= 24*time.Hour:
		return 1.0
	case age <= 7*24*time.Hour:
		return 0.8
	case age <= 30*24*time.Hour:
		return 0.6
	case age <= 90*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
