// Package autofix applies deterministic repairs to a workflow graph that
// failed the feasibility gate. The engine runs a fixed rule table in one
// pass over a clone of the graph; the caller re-checks feasibility exactly
// once afterwards. Repairing an already-repaired graph changes nothing.
package autofix

import (
	"fmt"
	"time"

	"github.com/weavekit/weaver/internal/template"
)

// Fix records one applied repair.
type Fix struct {
	Rule   string `json:"rule"`
	NodeID string `json:"node_id,omitempty"`
	Detail string `json:"detail"`
}

// Rule names, also the metrics labels.
const (
	RuleInsertTrigger    = "insert_default_trigger"
	RuleSubstituteAction = "substitute_action_type"
	RuleFillParams       = "fill_required_params"
	RuleDedupeIDs        = "dedupe_node_ids"
	RulePruneConnections = "prune_dangling_connections"
)

// Engine applies the repair rule table.
type Engine struct {
	now func() time.Time
}

// NewEngine creates an auto-fix engine.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Repair applies every applicable rule once, in a fixed order, against a
// clone of the input graph. It returns the repaired clone and the applied
// fixes; an empty fix list means the graph was already clean.
func (e *Engine) Repair(wf *template.Workflow) (*template.Workflow, []Fix) {
	out := wf.Clone()
	var fixes []Fix

	fixes = append(fixes, e.insertDefaultTrigger(out)...)
	fixes = append(fixes, e.substituteDisallowed(out)...)
	fixes = append(fixes, e.fillRequiredParams(out)...)
	fixes = append(fixes, e.dedupeNodeIDs(out)...)
	fixes = append(fixes, e.pruneDanglingConnections(out)...)

	return out, fixes
}

// insertDefaultTrigger prepends a webhook trigger wired to the first node
// when the graph has none.
func (e *Engine) insertDefaultTrigger(wf *template.Workflow) []Fix {
	if len(wf.Triggers()) > 0 {
		return nil
	}

	trigger := template.Node{
		ID:   "trigger",
		Name: "Default Webhook",
		Type: template.ActionWebhookTrigger,
		Parameters: map[string]any{
			"path": "start",
		},
	}
	// Avoid colliding with an existing non-trigger node called "trigger".
	if wf.Node(trigger.ID) != nil {
		trigger.ID = fmt.Sprintf("trigger_%d", e.now().UnixNano()%100000)
	}

	var firstID string
	if len(wf.Nodes) > 0 {
		firstID = wf.Nodes[0].ID
	}
	wf.Nodes = append([]template.Node{trigger}, wf.Nodes...)
	if firstID != "" {
		wf.Connections = append(wf.Connections, template.Connection{From: trigger.ID, To: firstID})
	}

	return []Fix{{
		Rule:   RuleInsertTrigger,
		NodeID: trigger.ID,
		Detail: "inserted default webhook trigger",
	}}
}

// substituteDisallowed swaps blocked action types for their approved
// equivalent, preserving parameters and marking the node so the emulation
// target is visible.
func (e *Engine) substituteDisallowed(wf *template.Workflow) []Fix {
	var fixes []Fix
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if n.Type.Approved() {
			continue
		}
		sub, ok := template.Substitute(n.Type)
		if !ok {
			continue
		}
		original := n.Type
		n.Type = sub
		n.SetParam("emulates", string(original))
		if sub == template.ActionHTTP {
			if _, has := n.StringParam("url"); !has {
				n.SetParam("url", template.PlaceholderValue(sub, "url"))
			}
			if _, has := n.StringParam("method"); !has {
				n.SetParam("method", template.PlaceholderValue(sub, "method"))
			}
		}
		fixes = append(fixes, Fix{
			Rule:   RuleSubstituteAction,
			NodeID: n.ID,
			Detail: fmt.Sprintf("substituted %q with %q", original, sub),
		})
	}
	return fixes
}

// fillRequiredParams inserts placeholder values for missing required
// parameters.
func (e *Engine) fillRequiredParams(wf *template.Workflow) []Fix {
	var fixes []Fix
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		for _, param := range template.RequiredParams(n.Type) {
			if hasValue(n, param) {
				continue
			}
			n.SetParam(param, template.PlaceholderValue(n.Type, param))
			fixes = append(fixes, Fix{
				Rule:   RuleFillParams,
				NodeID: n.ID,
				Detail: fmt.Sprintf("filled %q with placeholder", param),
			})
		}
	}
	return fixes
}

// dedupeNodeIDs renames later occurrences of a colliding ID with a
// time-derived suffix and rewrites connections that pointed at the original.
// Connections keep referencing the first occurrence.
func (e *Engine) dedupeNodeIDs(wf *template.Workflow) []Fix {
	var fixes []Fix
	seen := make(map[string]bool, len(wf.Nodes))
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if !seen[n.ID] {
			seen[n.ID] = true
			continue
		}
		old := n.ID
		n.ID = fmt.Sprintf("%s_%d", old, e.now().UnixNano()%100000)
		seen[n.ID] = true
		fixes = append(fixes, Fix{
			Rule:   RuleDedupeIDs,
			NodeID: n.ID,
			Detail: fmt.Sprintf("renamed duplicate node id %q", old),
		})
	}
	return fixes
}

// pruneDanglingConnections drops edges referencing nodes that do not exist.
func (e *Engine) pruneDanglingConnections(wf *template.Workflow) []Fix {
	ids := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		ids[n.ID] = true
	}

	var fixes []Fix
	kept := wf.Connections[:0]
	for _, conn := range wf.Connections {
		if ids[conn.From] && ids[conn.To] {
			kept = append(kept, conn)
			continue
		}
		fixes = append(fixes, Fix{
			Rule:   RulePruneConnections,
			Detail: fmt.Sprintf("pruned connection %s -> %s", conn.From, conn.To),
		})
	}
	wf.Connections = kept
	return fixes
}

func hasValue(n *template.Node, key string) bool {
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
