package template

// Node is one typed step in a workflow graph.
type Node struct {
	ID         string         `json:"id" yaml:"id"`
	Name       string         `json:"name" yaml:"name"`
	Type       ActionType     `json:"type" yaml:"type"`
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Position   [2]int         `json:"position,omitempty" yaml:"position,omitempty"`
}

// Connection is a directed edge between two nodes, referenced by node ID.
type Connection struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Workflow is a deployable workflow graph.
type Workflow struct {
	Name        string         `json:"name" yaml:"name"`
	Nodes       []Node         `json:"nodes" yaml:"nodes"`
	Connections []Connection   `json:"connections" yaml:"connections"`
	Settings    map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Clone returns a deep copy of the workflow. Repair passes always operate on
// a clone so the cached original is never aliased.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := &Workflow{
		Name:        w.Name,
		Nodes:       make([]Node, len(w.Nodes)),
		Connections: make([]Connection, len(w.Connections)),
	}
	copy(out.Connections, w.Connections)
	for i, n := range w.Nodes {
		cn := n
		if n.Parameters != nil {
			cn.Parameters = make(map[string]any, len(n.Parameters))
			for k, v := range n.Parameters {
				cn.Parameters[k] = cloneValue(v)
			}
		}
		out.Nodes[i] = cn
	}
	if w.Settings != nil {
		out.Settings = make(map[string]any, len(w.Settings))
		for k, v := range w.Settings {
			out.Settings[k] = cloneValue(v)
		}
	}
	return out
}

// cloneValue copies the JSON-shaped values that appear in node parameters.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Node returns the node with the given ID, or nil.
func (w *Workflow) Node(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// Triggers returns the trigger nodes of the graph.
func (w *Workflow) Triggers() []*Node {
	var out []*Node
	for i := range w.Nodes {
		if w.Nodes[i].Type.IsTrigger() {
			out = append(out, &w.Nodes[i])
		}
	}
	return out
}

// StringParam returns a string parameter value, with ok=false when the
// parameter is absent or not a string.
func (n *Node) StringParam(key string) (string, bool) {
	if n.Parameters == nil {
		return "", false
	}
	v, ok := n.Parameters[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SetParam sets a parameter, allocating the map on first use.
func (n *Node) SetParam(key string, value any) {
	if n.Parameters == nil {
		n.Parameters = make(map[string]any)
	}
	n.Parameters[key] = value
}
