package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
)

const routerScript = `
name: build a router
steps:
  - command: add_node
    type: InputNode
    node: in
  - command: add_node
    type: RouterNode
    node: r
    x: 200
  - command: add_node
    type: OutputNode
    node: accept
  - command: add_node
    type: OutputNode
    node: reject
  - command: connect
    source: in
    target: r
  - command: add_route
    node: r
  - command: connect
    source: r
    target: accept
    source_handle: Route_1
  - command: connect
    source: r
    target: reject
    source_handle: Route_2
  - command: update_condition
    node: r
    route: 0
    condition: 0
    field: variable
    value: Input.answer
  - command: remove_condition
    node: r
    route: 0
    condition: 0
  - command: delete_node
    node: ghost
  - command: set_config
    node: in
    config:
      output_schema:
        answer: str
      placeholder: type here
  - command: set_status
    node: r
    status: RUNNING
  - command: add_test_input
    input: t1
    values:
      answer: "yes"
`

func TestScriptReplay(t *testing.T) {
	sc, err := ParseScript([]byte(routerScript))
	require.NoError(t, err)

	exporter := tracetest.NewInMemoryExporter()
	tel := telemetry.NewNop()
	tel.Tracer = telemetry.NewTracerWithExporter("test", exporter)

	s := newTestSession(t, WithTelemetry(tel))
	report, err := sc.Replay(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 12, report.Applied)
	require.Len(t, report.Rejected, 2)
	assert.Equal(t, "remove_condition", report.Rejected[0].Command)
	assert.Equal(t, "delete_node", report.Rejected[1].Command)

	assert.Len(t, s.Nodes(), 4)
	assert.Len(t, s.Edges(), 3)

	routes, err := s.Routes("r")
	require.NoError(t, err)
	assert.Len(t, routes, 2)
	assert.Equal(t, "Input.answer", routes[0].Conditions[0].Variable)

	in, _ := s.NodeData("in")
	assert.Equal(t, flow.Schema{"answer": "str"}, in.Config.OutputSchema)
	assert.Equal(t, "type here", in.Config.Extra["placeholder"])

	r, _ := s.NodeData("r")
	assert.Equal(t, flow.RunStatusRunning, r.TaskStatus)
	assert.Len(t, s.TestInputs(), 1)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "script.replay", spans[0].Name)
}

func TestParseScript_RejectsUnknownCommand(t *testing.T) {
	_, err := ParseScript([]byte("steps:\n  - command: teleport\n"))
	assert.Error(t, err)

	_, err = ParseScript([]byte("steps:\n  - node: a\n"))
	assert.Error(t, err, "command is required")
}

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(routerScript), 0o644))

	sc, err := LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, "build a router", sc.Name)
	assert.Len(t, sc.Steps, 14)

	_, err = LoadScript(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestScriptReplay_StopsOnCancel(t *testing.T) {
	sc, err := ParseScript([]byte(routerScript))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := sc.Replay(ctx, newTestSession(t))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, report.Applied)
}
