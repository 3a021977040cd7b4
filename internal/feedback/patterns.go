package feedback

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// Pattern is a normalized, recurring deployment-failure signature. The loop
// creates one on first occurrence and updates it on every recurrence; the
// fix fields self-improve as repairs succeed or fail.
type Pattern struct {
	Signature        string    `json:"signature"`
	Category         string    `json:"category"`
	Frequency        int       `json:"frequency"`
	AutofixAvailable bool      `json:"autofix_available"`
	FixStrategy      string    `json:"fix_strategy,omitempty"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// maxSignatureLen bounds pattern keys regardless of raw error size.
const maxSignatureLen = 200

var digitRuns = regexp.MustCompile(`\d+`)

// NormalizeSignature collapses a raw deployment error into a stable pattern
// key: lower-cased, digit runs replaced with a placeholder, whitespace
// squeezed, truncated. "node 3 failed" and "node 47 failed" share a key.
func NormalizeSignature(raw string) string {
	sig := strings.ToLower(strings.TrimSpace(raw))
	sig = digitRuns.ReplaceAllString(sig, "#")
	sig = strings.Join(strings.Fields(sig), " ")
	if len(sig) > maxSignatureLen {
		sig = sig[:maxSignatureLen]
	}
	return sig
}

// classifySignature buckets a signature into a coarse failure category.
func classifySignature(sig string) string {
	switch {
	case strings.Contains(sig, "credential") || strings.Contains(sig, "auth") || strings.Contains(sig, "unauthorized"):
		return "auth"
	case strings.Contains(sig, "timeout") || strings.Contains(sig, "connection") || strings.Contains(sig, "refused") || strings.Contains(sig, "unreachable"):
		return "network"
	case strings.Contains(sig, "missing") || strings.Contains(sig, "required") || strings.Contains(sig, "invalid parameter"):
		return "config"
	case strings.Contains(sig, "node") || strings.Contains(sig, "trigger"):
		return "node"
	default:
		return "unknown"
	}
}

// PatternStore persists patterns across restarts. Implementations must
// tolerate concurrent upserts for the same signature.
type PatternStore interface {
	UpsertPattern(p *Pattern) error
	LoadPatterns() ([]*Pattern, error)
}

// patternTable is the process-local pattern index. Cross-instance
// consistency is eventual, via the shared store.
type patternTable struct {
	mu       sync.Mutex
	patterns map[string]*Pattern
}

func newPatternTable() *patternTable {
	return &patternTable{patterns: make(map[string]*Pattern)}
}

// observe records an occurrence, creating the pattern if new, and returns a
// copy of the current state.
func (t *patternTable) observe(sig string) Pattern {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.patterns[sig]
	if !ok {
		p = &Pattern{
			Signature: sig,
			Category:  classifySignature(sig),
			FirstSeen: time.Now(),
		}
		t.patterns[sig] = p
	}
	p.Frequency++
	p.LastSeen = time.Now()
	return *p
}

// recordFix updates a pattern's repair knowledge from an outcome.
func (t *patternTable) recordFix(sig, strategy string, fixed bool) Pattern {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.patterns[sig]
	if !ok {
		p = &Pattern{Signature: sig, Category: classifySignature(sig), FirstSeen: time.Now(), LastSeen: time.Now()}
		t.patterns[sig] = p
	}
	if fixed {
		p.AutofixAvailable = true
		p.FixStrategy = strategy
	} else if p.FixStrategy == strategy {
		// The remembered strategy stopped working.
		p.AutofixAvailable = false
	}
	return *p
}

func (t *patternTable) get(sig string) (Pattern, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.patterns[sig]
	if !ok {
		return Pattern{}, false
	}
	return *p, true
}

func (t *patternTable) restore(patterns []*Pattern) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range patterns {
		if p == nil || p.Signature == "" {
			continue
		}
		copied := *p
		t.patterns[p.Signature] = &copied
	}
}

func (t *patternTable) all() []Pattern {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Pattern, 0, len(t.patterns))
	for _, p := range t.patterns {
		out = append(out, *p)
	}
	return out
}
