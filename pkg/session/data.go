package session

import (
	"strings"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/nodedata"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
)

// SetNodeConfig merges patch into the node's config one key deep and
// mirrors it onto the canvas node when there is one. Node data may exist
// for ids that are not on the canvas.
func (s *Session) SetNodeConfig(id string, patch flow.Config) nodedata.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := nodedata.Patch{Config: &patch}
	node, onCanvas := s.canvas.Node(id)
	if onCanvas {
		kind := node.Type
		p.Kind = &kind
	}
	entry := s.data.Update(id, p)

	if onCanvas {
		if err := s.canvas.UpdateNodeConfig(id, patch); err != nil {
			_ = s.finish("set_node_config", id, err)
			return entry
		}
	}
	_ = s.finish("set_node_config", id, nil)
	return entry
}

// UpdateNodeData applies a partial update to the node data of id only.
func (s *Session) UpdateNodeData(id string, p nodedata.Patch) nodedata.Entry {
	entry := s.data.Update(id, p)
	s.tel.Metrics.RecordCommand("update_node_data", telemetry.OutcomeOK)
	return entry
}

// SetNodeRunData stores the output of the node's last execution.
func (s *Session) SetNodeRunData(id string, run flow.RunData) {
	s.data.SetRunData(id, run)
	s.tel.Metrics.RecordCommand("set_node_run_data", telemetry.OutcomeOK)
}

// SetNodeTaskStatus stores the node's execution status.
func (s *Session) SetNodeTaskStatus(id string, status flow.RunStatus) error {
	if err := status.Validate(); err != nil {
		return s.finish("set_node_task_status", id,
			canvas.NewInvalidError(err.Error(), err).WithResource(id).WithOperation("set_node_task_status"))
	}
	s.data.SetTaskStatus(id, status)
	if err := s.tel.Events.PublishRunStatus(id, strings.ToUpper(string(status))); err != nil {
		s.log.WithError(err).Debug("Dropped run.status event")
	}
	s.tel.Metrics.RecordCommand("set_node_task_status", telemetry.OutcomeOK)
	return nil
}

// ResetAllRuns clears run data and status of every node.
func (s *Session) ResetAllRuns() {
	s.data.ResetAllRuns()
	s.tel.Metrics.RecordCommand("reset_all_runs", telemetry.OutcomeOK)
}

// TestInputs returns the test inputs of the workflow.
func (s *Session) TestInputs() []flow.TestInput {
	return s.data.TestInputs()
}

// SetTestInputs replaces the test inputs.
func (s *Session) SetTestInputs(inputs []flow.TestInput) {
	s.data.SetTestInputs(inputs)
	s.tel.Metrics.RecordCommand("set_test_inputs", telemetry.OutcomeOK)
}

// AddTestInput appends a test input.
func (s *Session) AddTestInput(in flow.TestInput) error {
	if in.ID == "" {
		return s.finish("add_test_input", "", canvas.NewInvalidError("test input id is required", nil).
			WithOperation("add_test_input"))
	}
	for _, existing := range s.data.TestInputs() {
		if existing.ID == in.ID {
			return s.finish("add_test_input", in.ID, canvas.NewConflictError("test input already exists", nil).
				WithResource(in.ID).WithOperation("add_test_input"))
		}
	}
	s.data.AddTestInput(in)
	return s.finish("add_test_input", in.ID, nil)
}

// UpdateTestInput merges fields into a test input.
func (s *Session) UpdateTestInput(id string, fields map[string]any) error {
	if !s.data.UpdateTestInput(id, fields) {
		return s.finish("update_test_input", id, testInputNotFound("update_test_input", id))
	}
	return s.finish("update_test_input", id, nil)
}

// DeleteTestInput removes a test input.
func (s *Session) DeleteTestInput(id string) error {
	if !s.data.DeleteTestInput(id) {
		return s.finish("delete_test_input", id, testInputNotFound("delete_test_input", id))
	}
	return s.finish("delete_test_input", id, nil)
}

func testInputNotFound(op, id string) error {
	return canvas.NewReferentialError("test input not found", nil).
		WithResource(id).
		WithOperation(op)
}
