package flow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mohae/deepcopy"
)

// Position is a node's location on the canvas.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Dimensions is the measured size of a rendered node.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Schema maps field names to declared type names. Schemas are the contract
// other nodes read when offering available input variables.
type Schema map[string]string

// Clone returns a copy of s. A nil schema stays nil.
func (s Schema) Clone() Schema {
	if s == nil {
		return nil
	}
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Merge returns a new schema holding s overlaid key-by-key with patch.
func (s Schema) Merge(patch Schema) Schema {
	out := make(Schema, len(s)+len(patch))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Keys returns the field names in sorted order.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OrEmpty returns s, or an empty schema when s is nil.
func (s Schema) OrEmpty() Schema {
	if s == nil {
		return Schema{}
	}
	return s
}

// RunStatus is the execution status tag attached to a node.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCancelled RunStatus = "cancelled"
)

// ParseRunStatus accepts status tags in any case ("COMPLETED", "completed").
func ParseRunStatus(s string) (RunStatus, error) {
	status := RunStatus(strings.ToLower(strings.TrimSpace(s)))
	if err := status.Validate(); err != nil {
		return "", err
	}
	return status, nil
}

// IsTerminal returns true if no further status transitions are expected.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted,
		RunStatusFailed, RunStatusPaused, RunStatusCancelled:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// RunData holds the output values of a node's last execution.
type RunData map[string]any

// Clone returns a deep copy of r.
func (r RunData) Clone() RunData {
	if r == nil {
		return nil
	}
	return deepcopy.Copy(r).(RunData)
}

// TestInput is an ad-hoc named input record used to feed manual test runs.
// It is encoded as a flat object: {"id": "...", "<field>": <value>, ...}.
type TestInput struct {
	ID     string
	Values map[string]any
}

// Clone returns a deep copy of in.
func (in TestInput) Clone() TestInput {
	out := TestInput{ID: in.ID}
	if in.Values != nil {
		out.Values = deepcopy.Copy(in.Values).(map[string]any)
	}
	return out
}

// MarshalJSON writes the record as a flat object.
func (in TestInput) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(in.Values)+1)
	for k, v := range in.Values {
		m[k] = v
	}
	m["id"] = in.ID
	return json.Marshal(m)
}

// UnmarshalJSON reads a flat object with a string "id" field.
func (in *TestInput) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	id, ok := m["id"].(string)
	if !ok {
		return fmt.Errorf("test input: missing string id")
	}
	delete(m, "id")
	*in = TestInput{ID: id, Values: m}
	return nil
}
