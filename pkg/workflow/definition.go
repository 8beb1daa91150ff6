package workflow

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/flowcanvas/flowcanvas/pkg/flow"
)

// Definition is a stored workflow: node descriptors plus the links between
// them.
type Definition struct {
	Nodes      []NodeDefinition `json:"nodes" validate:"dive"`
	Links      []Link           `json:"links" validate:"dive"`
	TestInputs []flow.TestInput `json:"test_inputs,omitempty"`
}

// NodeDefinition describes one node of a stored workflow.
type NodeDefinition struct {
	// ID is the unique identifier of the node within the workflow.
	ID string `json:"id" validate:"required"`

	// NodeType is the registry type name (e.g., "RouterNode").
	NodeType string `json:"node_type" validate:"required"`

	// Coordinates is the node position on the canvas.
	Coordinates flow.Position `json:"coordinates"`

	// Config is the node configuration overlaid on the type defaults.
	Config flow.Config `json:"config"`

	// Title is the display title. When empty the node id is used.
	Title string `json:"title,omitempty"`
}

// Link connects the output of one node to the input of another.
type Link struct {
	SourceID string `json:"source_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`

	// SourceHandle and TargetHandle name the connected slots explicitly.
	// Links written without them are keyed by the source node's title.
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}

var validate = validator.New()

// Validate checks required fields, node id uniqueness and that every link
// references a declared node. All problems are reported together.
func (d *Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid workflow definition: %w", err)
	}

	var errs []error
	ids := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if _, dup := ids[n.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate node id: %s", n.ID))
		}
		ids[n.ID] = struct{}{}
	}

	for i, l := range d.Links {
		if _, ok := ids[l.SourceID]; !ok {
			errs = append(errs, fmt.Errorf("link %d references unknown source node %s", i, l.SourceID))
		}
		if _, ok := ids[l.TargetID]; !ok {
			errs = append(errs, fmt.Errorf("link %d references unknown target node %s", i, l.TargetID))
		}
	}

	seen := make(map[string]struct{}, len(d.TestInputs))
	for _, in := range d.TestInputs {
		if _, dup := seen[in.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate test input id: %s", in.ID))
		}
		seen[in.ID] = struct{}{}
	}

	return errors.Join(errs...)
}

// Node returns the descriptor with the given id.
func (d *Definition) Node(id string) (NodeDefinition, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeDefinition{}, false
}
