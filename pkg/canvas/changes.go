package canvas

import "github.com/flowcanvas/flowcanvas/pkg/flow"

// ChangeType is the kind of a non-structural delta.
type ChangeType string

const (
	ChangePosition   ChangeType = "position"
	ChangeSelect     ChangeType = "select"
	ChangeDimensions ChangeType = "dimensions"
)

// NodeChange is a non-structural delta coming from direct manipulation:
// dragging, selecting or resizing a node.
type NodeChange struct {
	Type       ChangeType       `json:"type" yaml:"type"`
	ID         string           `json:"id" yaml:"id"`
	Position   *flow.Position   `json:"position,omitempty" yaml:"position,omitempty"`
	Dimensions *flow.Dimensions `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Selected   bool             `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// EdgeChange is a non-structural edge delta. Only selection is supported.
type EdgeChange struct {
	Type     ChangeType `json:"type" yaml:"type"`
	ID       string     `json:"id" yaml:"id"`
	Selected bool       `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// applyNodeChanges returns nodes with changes applied. Changes naming
// unknown ids or carrying no payload are skipped.
func applyNodeChanges(nodes []Node, changes []NodeChange) ([]Node, int) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	out := make([]Node, len(nodes))
	copy(out, nodes)

	applied := 0
	for _, c := range changes {
		i, ok := index[c.ID]
		if !ok {
			continue
		}
		switch c.Type {
		case ChangePosition:
			if c.Position == nil {
				continue
			}
			out[i].Position = *c.Position
		case ChangeSelect:
			out[i].Selected = c.Selected
		case ChangeDimensions:
			if c.Dimensions == nil {
				continue
			}
			d := *c.Dimensions
			out[i].Measured = &d
		default:
			continue
		}
		applied++
	}
	return out, applied
}

func applyEdgeChanges(edges []Edge, changes []EdgeChange) ([]Edge, int) {
	index := make(map[string]int, len(edges))
	for i, e := range edges {
		index[e.ID] = i
	}

	out := cloneEdges(edges)
	applied := 0
	for _, c := range changes {
		i, ok := index[c.ID]
		if !ok || c.Type != ChangeSelect {
			continue
		}
		out[i].Selected = c.Selected
		applied++
	}
	return out, applied
}
