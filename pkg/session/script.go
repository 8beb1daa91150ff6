package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/router"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
)

// Script is a list of commands replayed against a session, used by the CLI
// and by tests to drive an editor without a UI.
//
//	name: wire a router
//	steps:
//	  - command: add_node
//	    type: RouterNode
//	    node: router-1
//	  - command: connect
//	    source: input-1
//	    target: router-1
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps" validate:"dive"`
}

// Step is one scripted command. Only the fields the command uses are read.
type Step struct {
	Command string `yaml:"command" validate:"required,oneof=add_node connect delete_node delete_edge select move rename_title rename_schema_field set_config set_status set_run reset_runs clear undo redo add_route remove_route add_condition remove_condition update_condition add_test_input update_test_input delete_test_input"`

	Node string  `yaml:"node,omitempty"`
	Type string  `yaml:"type,omitempty"`
	X    float64 `yaml:"x,omitempty"`
	Y    float64 `yaml:"y,omitempty"`

	Source       string `yaml:"source,omitempty"`
	Target       string `yaml:"target,omitempty"`
	SourceHandle string `yaml:"source_handle,omitempty"`
	TargetHandle string `yaml:"target_handle,omitempty"`
	Edge         string `yaml:"edge,omitempty"`

	Title     string `yaml:"title,omitempty"`
	Recorded  bool   `yaml:"recorded,omitempty"`
	Direction string `yaml:"direction,omitempty"`
	Old       string `yaml:"old,omitempty"`
	New       string `yaml:"new,omitempty"`

	Config map[string]any `yaml:"config,omitempty"`
	Status string         `yaml:"status,omitempty"`
	Run    map[string]any `yaml:"run,omitempty"`

	Route     int    `yaml:"route,omitempty"`
	Condition int    `yaml:"condition,omitempty"`
	Field     string `yaml:"field,omitempty"`
	Value     string `yaml:"value,omitempty"`

	Input  string         `yaml:"input,omitempty"`
	Values map[string]any `yaml:"values,omitempty"`
}

// StepResult is the outcome of one replayed step.
type StepResult struct {
	Index   int    `json:"index"`
	Command string `json:"command"`
	Error   string `json:"error,omitempty"`
}

// Report summarizes a replay.
type Report struct {
	Applied  int          `json:"applied"`
	Rejected []StepResult `json:"rejected,omitempty"`
}

var scriptValidate = validator.New()

// ParseScript decodes and validates a YAML script.
func ParseScript(data []byte) (*Script, error) {
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if err := scriptValidate.Struct(&sc); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &sc, nil
}

// LoadScript reads a YAML script from path.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// Replay applies every step to s in order. Rejected steps (unknown ids,
// invalid arguments, conflicts) are reported and skipped; any other failure
// stops the replay.
func (sc *Script) Replay(ctx context.Context, s *Session) (*Report, error) {
	_, span := s.tel.Tracer.StartScriptSpan(ctx, sc.Name, len(sc.Steps))
	defer span.End()

	report := &Report{}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			return report, err
		}

		err := s.Apply(step)
		switch {
		case err == nil:
			report.Applied++
		case canvas.IsReferential(err), canvas.IsInvalid(err), canvas.IsConflict(err):
			report.Rejected = append(report.Rejected, StepResult{Index: i, Command: step.Command, Error: err.Error()})
		default:
			err = fmt.Errorf("step %d (%s): %w", i, step.Command, err)
			telemetry.RecordError(span, err)
			return report, err
		}
	}

	span.SetAttributes(telemetry.AttrUpdates.Int(report.Applied))
	telemetry.RecordSuccess(span)
	return report, nil
}

// ErrUnknownCommand is returned by Apply for unsupported step commands.
var ErrUnknownCommand = errors.New("unknown command")

// Apply runs a single scripted step.
func (s *Session) Apply(step Step) error {
	switch step.Command {
	case "add_node":
		_, err := s.CreateNode(step.Type, step.Node, flow.Position{X: step.X, Y: step.Y})
		return err
	case "connect":
		_, err := s.Connect(canvas.Connection{
			Source:       step.Source,
			Target:       step.Target,
			SourceHandle: step.SourceHandle,
			TargetHandle: step.TargetHandle,
		})
		return err
	case "delete_node":
		return s.DeleteNode(step.Node)
	case "delete_edge":
		return s.DeleteEdge(step.Edge)
	case "select":
		return s.SetSelectedNode(step.Node)
	case "move":
		pos := flow.Position{X: step.X, Y: step.Y}
		if s.ApplyNodeChanges([]canvas.NodeChange{{Type: canvas.ChangePosition, ID: step.Node, Position: &pos}}) == 0 {
			return canvas.NewReferentialError("node not found", nil).WithResource(step.Node).WithOperation("move")
		}
		return nil
	case "rename_title":
		var opts []canvas.MutationOption
		if step.Recorded {
			opts = append(opts, canvas.Recorded())
		}
		return s.RenameTitle(step.Node, step.Title, opts...)
	case "rename_schema_field":
		return s.RenameSchemaField(step.Node, canvas.SchemaDirection(step.Direction), step.Old, step.New)
	case "set_config":
		cfg, err := decodeConfig(step.Config)
		if err != nil {
			return canvas.NewInvalidError(err.Error(), err).WithResource(step.Node).WithOperation("set_node_config")
		}
		s.SetNodeConfig(step.Node, cfg)
		return nil
	case "set_status":
		status, err := flow.ParseRunStatus(step.Status)
		if err != nil {
			return canvas.NewInvalidError(err.Error(), err).WithResource(step.Node).WithOperation("set_node_task_status")
		}
		return s.SetNodeTaskStatus(step.Node, status)
	case "set_run":
		s.SetNodeRunData(step.Node, flow.RunData(step.Run))
		return nil
	case "reset_runs":
		s.ResetAllRuns()
		return nil
	case "clear":
		s.Clear()
		return nil
	case "undo":
		s.Undo()
		return nil
	case "redo":
		s.Redo()
		return nil
	case "add_route":
		return s.RouterAddRoute(step.Node)
	case "remove_route":
		return s.RouterRemoveRoute(step.Node, step.Route)
	case "add_condition":
		return s.RouterAddCondition(step.Node, step.Route)
	case "remove_condition":
		return s.RouterRemoveCondition(step.Node, step.Route, step.Condition)
	case "update_condition":
		return s.RouterUpdateCondition(step.Node, step.Route, step.Condition, router.Field(step.Field), step.Value)
	case "add_test_input":
		return s.AddTestInput(flow.TestInput{ID: step.Input, Values: step.Values})
	case "update_test_input":
		return s.UpdateTestInput(step.Input, step.Values)
	case "delete_test_input":
		return s.DeleteTestInput(step.Input)
	default:
		return fmt.Errorf("%q: %w", step.Command, ErrUnknownCommand)
	}
}

// decodeConfig converts a generic map into a typed config through its JSON
// form, so known keys land in their typed fields.
func decodeConfig(raw map[string]any) (flow.Config, error) {
	var cfg flow.Config
	if len(raw) == 0 {
		return cfg, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
