package canvas

import (
	"github.com/flowcanvas/flowcanvas/pkg/flow"
)

// Node is a vertex of the canvas graph.
type Node struct {
	// ID is the unique identifier of the node.
	ID string `json:"id"`

	// Type is the node kind. It never changes after creation.
	Type flow.Kind `json:"type"`

	// Position is the node location on the canvas.
	Position flow.Position `json:"position"`

	// Data is the rendered payload of the node.
	Data NodeData `json:"data"`

	// Measured is the rendered size, when known.
	Measured *flow.Dimensions `json:"measured,omitempty"`

	// Selected reports whether the node is part of the current selection.
	Selected bool `json:"selected,omitempty"`
}

// NodeData is the payload rendered for a node.
type NodeData struct {
	Title   string       `json:"title"`
	Acronym string       `json:"acronym"`
	Color   string       `json:"color"`
	Config  flow.Config  `json:"config"`
	Run     flow.RunData `json:"run,omitempty"`
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	out.Data.Config = n.Data.Config.Clone()
	out.Data.Run = n.Data.Run.Clone()
	if n.Measured != nil {
		m := *n.Measured
		out.Measured = &m
	}
	return out
}

// HandleLabel returns the label used as the implicit output handle of the
// node: the configured title, then the display title, then the id.
func (n Node) HandleLabel() string {
	if n.Data.Config.Title != "" {
		return n.Data.Config.Title
	}
	if n.Data.Title != "" {
		return n.Data.Title
	}
	return n.ID
}

// Edge is a directed connection between a named output of its source node and
// a named input of its target node.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
	Selected     bool   `json:"selected,omitempty"`
}

// sameConnection reports whether e and o join the same slots.
func (e Edge) sameConnection(o Edge) bool {
	return e.Source == o.Source &&
		e.Target == o.Target &&
		e.SourceHandle == o.SourceHandle &&
		e.TargetHandle == o.TargetHandle
}

// Connection is a request to join two nodes. Empty handles are derived from
// the source node.
type Connection struct {
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// Snapshot is a deep copy of the graph at one point in time.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Nodes: cloneNodes(s.Nodes),
		Edges: cloneEdges(s.Edges),
	}
}

func cloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// NodeFactory builds the default node instance of a type. It returns false
// for unknown type names.
type NodeFactory interface {
	Create(typeName, id string, pos flow.Position) (*Node, bool)
}

// SchemaDirection selects which schema of a node a field rename applies to.
type SchemaDirection string

const (
	DirectionInput  SchemaDirection = "input_schema"
	DirectionOutput SchemaDirection = "output_schema"
)

// Valid reports whether d is a known direction.
func (d SchemaDirection) Valid() bool {
	return d == DirectionInput || d == DirectionOutput
}

// InitResult reports what Initialize built.
type InitResult struct {
	Nodes int
	Edges int

	// Skipped lists node ids whose type could not be resolved.
	Skipped []string

	// DroppedLinks counts links whose endpoints were not built.
	DroppedLinks int
}
