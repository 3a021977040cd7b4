package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/weavekit/weaver/internal/intent"
	"github.com/weavekit/weaver/internal/template"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	urlPattern   = regexp.MustCompile(`https?://[^\s"']+`)
)

// augment fills user-specific parameters into a cloned graph: scoped
// workflow naming, a per-user webhook trigger path, and recipient/URL
// substitution from hints found in the raw intent text.
func (o *Orchestrator) augment(wf *template.Workflow, req Request, it intent.Intent) *template.Workflow {
	if req.UserID != "" {
		wf.Name = fmt.Sprintf("%s (%s)", wf.Name, req.UserID)
	}

	email := emailPattern.FindString(it.Raw)
	rawURL := urlPattern.FindString(it.Raw)

	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		switch n.Type {
		case template.ActionWebhookTrigger:
			n.SetParam("path", webhookPath(req.UserID))
		case template.ActionEmail:
			if email != "" {
				n.SetParam("to", email)
			}
		case template.ActionHTTP:
			if rawURL != "" {
				if current, _ := n.StringParam("url"); isPlaceholderURL(current) {
					n.SetParam("url", rawURL)
				}
			}
		}
	}
	return wf
}

// webhookPath derives a stable-prefix, collision-free trigger path.
func webhookPath(userID string) string {
	suffix := uuid.New().String()[:8]
	if userID == "" {
		return suffix
	}
	return fmt.Sprintf("%s-%s", sanitizePath(userID), suffix)
}

func sanitizePath(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

// isPlaceholderURL reports whether a URL is a template placeholder that a
// user-supplied URL should replace.
func isPlaceholderURL(u string) bool {
	return u == "" || strings.Contains(u, "example.com")
}
