package template

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Library is the curated template catalogue. It is always available: the
// built-in set is compiled in, an optional template directory layers on top,
// and the Error Feedback Loop mutates reliability statistics through it.
type Library struct {
	mu           sync.RWMutex
	templates    map[string]*Template
	successAlpha float64
}

// LibraryOption configures a Library.
type LibraryOption func(*Library)

// WithSuccessAlpha overrides the EMA smoothing factor for success rates.
func WithSuccessAlpha(alpha float64) LibraryOption {
	return func(l *Library) {
		if alpha > 0 && alpha <= 1 {
			l.successAlpha = alpha
		}
	}
}

// NewLibrary creates a library seeded with the built-in curated templates.
func NewLibrary(opts ...LibraryOption) *Library {
	l := &Library{
		templates:    make(map[string]*Template),
		successAlpha: DefaultSuccessAlpha,
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, t := range builtinTemplates() {
		l.templates[t.ID] = t
	}
	return l
}

// Add registers or replaces a template. Community and generated templates
// discovered at runtime land here too; templates are never deleted.
func (l *Library) Add(t *Template) {
	if t == nil || t.ID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[t.ID] = t
}

// Get returns a copy of the template with the given ID.
func (l *Library) Get(id string) (*Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.templates[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// All returns copies of every template, ordered by ID for determinism.
func (l *Library) All() []*Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Template, 0, len(l.templates))
	for _, t := range l.templates {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Find returns templates sharing at least one keyword with the query.
// Matching is tolerant: a query keyword hits on equality, prefix or
// substring. An empty query returns the whole catalogue so scoring can
// still rank something.
func (l *Library) Find(keywords []string) []*Template {
	if len(keywords) == 0 {
		return l.All()
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Template
	for _, t := range l.templates {
		if keywordHit(t, keywords) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func keywordHit(t *Template, keywords []string) bool {
	for _, q := range keywords {
		for _, k := range t.Keywords {
			if k == q || strings.Contains(k, q) || strings.Contains(q, k) {
				return true
			}
		}
		if strings.Contains(t.Category, q) {
			return true
		}
	}
	return false
}

// RecordOutcome updates a template's reliability statistics from a
// deployment report. Only the feedback loop calls this.
func (l *Library) RecordOutcome(id string, success bool) (*Template, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.templates[id]
	if !ok {
		return nil, false
	}
	t.RecordOutcome(success, l.successAlpha)
	return t.Clone(), true
}

// RestoreStats re-applies persisted statistics after a restart. It does not
// count as an outcome observation.
func (l *Library) RestoreStats(id string, successRate float64, usageCount int, lastUsed time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.templates[id]
	if !ok {
		return
	}
	if successRate >= 0 && successRate <= 1 {
		t.SuccessRate = successRate
	}
	if usageCount > t.UsageCount {
		t.UsageCount = usageCount
	}
	if lastUsed.After(t.LastUsed) {
		t.LastUsed = lastUsed
	}
}

// Len returns the catalogue size.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.templates)
}

// FallbackTemplateID names the guaranteed fallback in the catalogue.
const FallbackTemplateID = "curated-fallback-notify"

// GuaranteedFallback returns the static, pre-verified minimal workflow used
// when every generation and repair path fails. It must always pass the
// feasibility gate; the orchestrator asserts that at construction.
func GuaranteedFallback() *Template {
	return &Template{
		ID:          FallbackTemplateID,
		Name:        "Webhook Notification",
		Description: "Receives a webhook and forwards the payload over HTTP.",
		Category:    "communication",
		Keywords:    []string{"webhook", "notify", "http", "forward"},
		Complexity:  ComplexitySimple,
		SuccessRate: 0.99,
		Source:      SourceCurated,
		Graph: &Workflow{
			Name: "Webhook Notification",
			Nodes: []Node{
				{
					ID:   "trigger",
					Name: "Incoming Webhook",
					Type: ActionWebhookTrigger,
					Parameters: map[string]any{
						"path": "notify",
					},
				},
				{
					ID:   "forward",
					Name: "Forward Payload",
					Type: ActionHTTP,
					Parameters: map[string]any{
						"url":    "https://example.com/hook",
						"method": "POST",
					},
				},
			},
			Connections: []Connection{{From: "trigger", To: "forward"}},
			Settings:    map[string]any{"timezone": "UTC"},
		},
	}
}

// builtinTemplates is the compiled-in curated catalogue.
func builtinTemplates() []*Template {
	daily := "0 8 * * *"
	set := []*Template{
		GuaranteedFallback(),
		{
			ID:          "curated-email-digest",
			Name:        "Daily Email Digest",
			Description: "Fetches items on a schedule, summarizes them and emails a digest.",
			Category:    "communication",
			Keywords:    []string{"email", "digest", "daily", "summary", "newsletter", "send"},
			Complexity:  ComplexitySimple,
			SuccessRate: 0.97,
			Source:      SourceCurated,
			Graph: &Workflow{
				Name: "Daily Email Digest",
				Nodes: []Node{
					{ID: "schedule", Name: "Every Morning", Type: ActionScheduleTrigger,
						Parameters: map[string]any{"cron": daily}},
					{ID: "fetch", Name: "Fetch Items", Type: ActionHTTP,
						Parameters: map[string]any{"url": "https://example.com/items", "method": "GET"}},
					{ID: "summarize", Name: "Build Digest", Type: ActionTransform,
						Parameters: map[string]any{"expression": "{{ $json.items }}"}},
					{ID: "send", Name: "Send Digest", Type: ActionEmail,
						Parameters: map[string]any{"to": "{{ $json.userEmail }}", "subject": "Your daily digest"}},
				},
				Connections: []Connection{
					{From: "schedule", To: "fetch"},
					{From: "fetch", To: "summarize"},
					{From: "summarize", To: "send"},
				},
			},
		},
		{
			ID:          "curated-http-sync",
			Name:        "API Data Sync",
			Description: "Pulls records from one API and pushes them into another on a schedule.",
			Category:    "data_sync",
			Keywords:    []string{"sync", "api", "data", "transfer", "import", "export"},
			Complexity:  ComplexityModerate,
			SuccessRate: 0.94,
			Source:      SourceCurated,
			Graph: &Workflow{
				Name: "API Data Sync",
				Nodes: []Node{
					{ID: "schedule", Name: "Hourly", Type: ActionScheduleTrigger,
						Parameters: map[string]any{"cron": "0 * * * *"}},
					{ID: "pull", Name: "Pull Records", Type: ActionHTTP,
						Parameters: map[string]any{"url": "https://example.com/source", "method": "GET"}},
					{ID: "map", Name: "Map Fields", Type: ActionTransform,
						Parameters: map[string]any{"expression": "{{ $json.records }}"}},
					{ID: "push", Name: "Push Records", Type: ActionHTTP,
						Parameters: map[string]any{"url": "https://example.com/destination", "method": "POST"}},
				},
				Connections: []Connection{
					{From: "schedule", To: "pull"},
					{From: "pull", To: "map"},
					{From: "map", To: "push"},
				},
			},
		},
		{
			ID:          "curated-monitor-alert",
			Name:        "Endpoint Monitor Alert",
			Description: "Polls an endpoint and emails an alert when the check fails.",
			Category:    "monitoring",
			Keywords:    []string{"monitor", "alert", "uptime", "check", "status", "watch"},
			Complexity:  ComplexityModerate,
			SuccessRate: 0.95,
			Source:      SourceCurated,
			Graph: &Workflow{
				Name: "Endpoint Monitor Alert",
				Nodes: []Node{
					{ID: "schedule", Name: "Every 5 Minutes", Type: ActionScheduleTrigger,
						Parameters: map[string]any{"cron": "*/5 * * * *"}},
					{ID: "probe", Name: "Probe Endpoint", Type: ActionHTTP,
						Parameters: map[string]any{"url": "https://example.com/health", "method": "GET"}},
					{ID: "gate", Name: "Failed?", Type: ActionFilter,
						Parameters: map[string]any{"condition": "{{ $json.status >= 400 }}"}},
					{ID: "alert", Name: "Send Alert", Type: ActionEmail,
						Parameters: map[string]any{"to": "{{ $json.userEmail }}", "subject": "Endpoint check failed"}},
				},
				Connections: []Connection{
					{From: "schedule", To: "probe"},
					{From: "probe", To: "gate"},
					{From: "gate", To: "alert"},
				},
			},
		},
		{
			ID:          "curated-db-backup",
			Name:        "Scheduled Record Archive",
			Description: "Copies new records into an archive table every night.",
			Category:    "data_sync",
			Keywords:    []string{"backup", "archive", "database", "records", "nightly", "copy"},
			Complexity:  ComplexityModerate,
			SuccessRate: 0.92,
			Source:      SourceCurated,
			Graph: &Workflow{
				Name: "Scheduled Record Archive",
				Nodes: []Node{
					{ID: "schedule", Name: "Nightly", Type: ActionScheduleTrigger,
						Parameters: map[string]any{"cron": "0 2 * * *"}},
					{ID: "read", Name: "Read New Records", Type: ActionDatabase,
						Parameters: map[string]any{"operation": "select", "table": "events"}},
					{ID: "write", Name: "Write Archive", Type: ActionDatabase,
						Parameters: map[string]any{"operation": "insert", "table": "events_archive"}},
				},
				Connections: []Connection{
					{From: "schedule", To: "read"},
					{From: "read", To: "write"},
				},
			},
		},
		{
			ID:          "curated-form-intake",
			Name:        "Form Intake Pipeline",
			Description: "Accepts form submissions, filters spam and stores plus acknowledges them.",
			Category:    "communication",
			Keywords:    []string{"form", "intake", "submission", "contact", "store", "reply"},
			Complexity:  ComplexityComplex,
			SuccessRate: 0.9,
			Source:      SourceCurated,
			Graph: &Workflow{
				Name: "Form Intake Pipeline",
				Nodes: []Node{
					{ID: "webhook", Name: "Form Webhook", Type: ActionWebhookTrigger,
						Parameters: map[string]any{"path": "form"}},
					{ID: "spam", Name: "Spam Filter", Type: ActionFilter,
						Parameters: map[string]any{"condition": "{{ $json.score < 0.5 }}"}},
					{ID: "store", Name: "Store Submission", Type: ActionDatabase,
						Parameters: map[string]any{"operation": "insert", "table": "submissions"}},
					{ID: "ack", Name: "Acknowledge", Type: ActionEmail,
						Parameters: map[string]any{"to": "{{ $json.email }}", "subject": "We received your message"}},
				},
				Connections: []Connection{
					{From: "webhook", To: "spam"},
					{From: "spam", To: "store"},
					{From: "store", To: "ack"},
				},
			},
		},
	}
	return set
}
