package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/nodes"
	"github.com/flowcanvas/flowcanvas/pkg/poller"
	"github.com/flowcanvas/flowcanvas/pkg/router"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("e%d", n)
	}
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	reg, err := nodes.NewRegistry()
	require.NoError(t, err)

	opts = append([]Option{WithCanvasOptions(canvas.WithIDGenerator(sequentialIDs()))}, opts...)
	return New(reg, opts...)
}

// routerWorkflow is in -> r, with r's three routes feeding a, b and c.
func routerWorkflow() *workflow.Definition {
	return &workflow.Definition{
		Nodes: []workflow.NodeDefinition{
			{ID: "in", NodeType: "InputNode", Title: "question", Config: flow.Config{
				OutputSchema: flow.Schema{"question": "str"},
			}},
			{ID: "r", NodeType: "RouterNode", Title: "router", Config: flow.Config{
				Routes: []router.Route{{}, {}, {}},
			}},
			{ID: "a", NodeType: "OutputNode"},
			{ID: "b", NodeType: "OutputNode"},
			{ID: "c", NodeType: "OutputNode"},
		},
		Links: []workflow.Link{
			{SourceID: "in", TargetID: "r"},
			{SourceID: "r", TargetID: "a", SourceHandle: "Route_1"},
			{SourceID: "r", TargetID: "b", SourceHandle: "Route_2"},
			{SourceID: "r", TargetID: "c", SourceHandle: "Route_3"},
		},
		TestInputs: []flow.TestInput{{ID: "t1", Values: map[string]any{"question": "hi"}}},
	}
}

func loadedSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s := newTestSession(t, opts...)
	res := s.Initialize(routerWorkflow())
	require.Equal(t, 5, res.Nodes)
	require.Equal(t, 4, res.Edges)
	return s
}

func edgeHandles(s *Session) map[string]string {
	out := make(map[string]string)
	for _, e := range s.Edges() {
		out[e.ID] = e.SourceHandle + "->" + e.TargetHandle
	}
	return out
}

func TestInitialize_SeedsNodeData(t *testing.T) {
	s := loadedSession(t)

	r, ok := s.NodeData("r")
	require.True(t, ok)
	assert.Equal(t, flow.KindRouter, r.Kind)
	assert.Len(t, r.Config.Routes, 3)
	assert.Equal(t, flow.Schema{"Route_1": "any", "Route_2": "any", "Route_3": "any"}, r.Config.OutputSchema)
	assert.Equal(t, flow.RouterInputSchema, r.Config.InputSchema)

	assert.Equal(t, []flow.TestInput{{ID: "t1", Values: map[string]any{"question": "hi"}}}, s.TestInputs())
	assert.False(t, s.CanUndo(), "loading is not undoable")
}

func TestInitialize_SkipsUnknownTypes(t *testing.T) {
	s := newTestSession(t)
	res := s.Initialize(&workflow.Definition{
		Nodes: []workflow.NodeDefinition{
			{ID: "ok", NodeType: "InputNode"},
			{ID: "bad", NodeType: "TeleportNode"},
		},
		Links: []workflow.Link{{SourceID: "ok", TargetID: "bad"}},
	})

	assert.Equal(t, []string{"bad"}, res.Skipped)
	assert.Equal(t, 1, res.DroppedLinks)
	_, ok := s.NodeData("bad")
	assert.False(t, ok)
}

func TestDeleteNode_CascadesAcrossStores(t *testing.T) {
	s := loadedSession(t)

	require.NoError(t, s.DeleteNode("r"))

	for _, e := range s.Edges() {
		assert.NotEqual(t, "r", e.Source)
		assert.NotEqual(t, "r", e.Target)
	}
	assert.Len(t, s.Nodes(), 4)
	_, ok := s.NodeData("r")
	assert.False(t, ok)

	err := s.DeleteNode("r")
	assert.True(t, canvas.IsReferential(err))
	assert.ErrorIs(t, err, canvas.ErrNotFound)
}

func TestUndo_RestoresDeletedNodeData(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.DeleteNode("r"))

	require.True(t, s.Undo())

	r, ok := s.NodeData("r")
	require.True(t, ok, "node data follows the restored node")
	assert.Len(t, r.Config.Routes, 3)
	assert.Len(t, s.Edges(), 4)
}

func TestUndo_AddNodeDropsNodeData(t *testing.T) {
	s := newTestSession(t)
	_, err := s.CreateNode("InputNode", "in", flow.Position{})
	require.NoError(t, err)

	require.True(t, s.Undo())

	_, ok := s.NodeData("in")
	assert.False(t, ok, "node data leaves with the undone node")
	assert.Empty(t, s.Nodes())

	require.True(t, s.Redo())
	_, ok = s.NodeData("in")
	assert.True(t, ok, "redo brings the node data back")
}

func TestUndo_ReplacesNodeDataConfig(t *testing.T) {
	s := loadedSession(t)
	s.SetNodeConfig("a", flow.Config{Extra: map[string]any{"kept": true}})
	run := flow.RunData{"out": "x"}
	s.SetNodeRunData("a", run)
	require.NoError(t, s.SetNodeTaskStatus("a", flow.RunStatusCompleted))

	require.NoError(t, s.RouterAddRoute("r"))
	s.SetNodeConfig("a", flow.Config{Title: "answer", Extra: map[string]any{"note": "later"}})

	require.True(t, s.Undo())

	a, ok := s.NodeData("a")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"kept": true}, a.Config.Extra, "keys added after the step are gone")
	assert.NotEqual(t, "answer", a.Config.Title)
	assert.Equal(t, run, a.Run, "run state survives history travel")
	assert.Equal(t, flow.RunStatusCompleted, a.TaskStatus)

	require.True(t, s.Redo())
	a, _ = s.NodeData("a")
	assert.Equal(t, "later", a.Config.Extra["note"])
	assert.Equal(t, "answer", a.Config.Title)
}

func TestRenameTitle_PropagatesToBothStores(t *testing.T) {
	s := loadedSession(t)

	require.NoError(t, s.RenameTitle("in", "query"))

	assert.Equal(t, "query->query", edgeHandles(s)["e1"])
	in, _ := s.NodeData("in")
	assert.Equal(t, "query", in.Config.Title)
	node, _ := s.Node("in")
	assert.Equal(t, "query", node.Data.Title)
	assert.False(t, s.CanUndo(), "live renames are not recorded")

	require.NoError(t, s.RenameTitle("in", "prompt", canvas.Recorded()))
	assert.True(t, s.CanUndo())
}

func TestRenameSchemaField_ScopedToSource(t *testing.T) {
	s := loadedSession(t)

	require.NoError(t, s.RenameSchemaField("in", canvas.DirectionOutput, "question", "query"))

	handles := edgeHandles(s)
	assert.Equal(t, "query->query", handles["e1"])
	assert.Equal(t, "Route_1->Route_1", handles["e2"], "edges of other nodes untouched")

	in, _ := s.NodeData("in")
	assert.Equal(t, flow.Schema{"query": "str"}, in.Config.OutputSchema)
	assert.True(t, s.CanUndo())

	err := s.RenameSchemaField("in", "sideways", "a", "b")
	assert.True(t, canvas.IsInvalid(err))
}

func TestRouterAddRoute_AppendsHandle(t *testing.T) {
	s := loadedSession(t)

	require.NoError(t, s.RouterAddRoute("r"))

	r, _ := s.NodeData("r")
	assert.Equal(t, flow.Schema{
		"Route_1": "any", "Route_2": "any", "Route_3": "any", "Route_4": "any",
	}, r.Config.OutputSchema)

	node, _ := s.Node("r")
	assert.Equal(t, r.Config.OutputSchema, node.Data.Config.OutputSchema, "canvas mirrors node data")
	assert.Equal(t, "Route_2->Route_2", edgeHandles(s)["e3"], "existing handles keep their names")
	assert.True(t, s.CanUndo())
}

func TestRouterRemoveRoute_RenumbersAndRemaps(t *testing.T) {
	s := loadedSession(t)
	before := s.Canvas().Snapshot()

	require.NoError(t, s.RouterRemoveRoute("r", 1))

	r, _ := s.NodeData("r")
	assert.Len(t, r.Config.Routes, 2)
	assert.Equal(t, flow.Schema{"Route_1": "any", "Route_2": "any"}, r.Config.OutputSchema)

	handles := edgeHandles(s)
	assert.Equal(t, "Route_1->Route_1", handles["e2"])
	assert.NotContains(t, handles, "e3", "edge of the removed route is dropped")
	assert.Equal(t, "Route_2->Route_2", handles["e4"], "later route follows its new handle")

	require.True(t, s.Undo())
	if diff := cmp.Diff(before, s.Canvas().Snapshot(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("undo did not restore the graph (-want +got):\n%s", diff)
	}
	r, _ = s.NodeData("r")
	assert.Len(t, r.Config.Routes, 3, "undo resyncs node data")
}

func TestRouterRemoveRoute_OutOfRange(t *testing.T) {
	s := loadedSession(t)

	err := s.RouterRemoveRoute("r", 7)
	assert.True(t, canvas.IsInvalid(err))
	assert.ErrorIs(t, err, router.ErrIndexOutOfRange)
	assert.False(t, s.CanUndo())
}

func TestRouterRemoveCondition_LastConditionGuard(t *testing.T) {
	s := loadedSession(t)

	err := s.RouterRemoveCondition("r", 0, 0)
	assert.ErrorIs(t, err, router.ErrLastCondition)

	routes, err := s.Routes("r")
	require.NoError(t, err)
	assert.Len(t, routes[0].Conditions, 1)
}

func TestRouterConditionEdits(t *testing.T) {
	s := loadedSession(t)

	require.NoError(t, s.RouterAddCondition("r", 0))
	require.NoError(t, s.RouterUpdateCondition("r", 0, 1, router.FieldOperator, "equals"))
	require.NoError(t, s.RouterUpdateCondition("r", 0, 1, router.FieldValue, "yes"))
	require.NoError(t, s.RouterUpdateCondition("r", 0, 1, router.FieldLogicalOperator, "OR"))

	routes, err := s.Routes("r")
	require.NoError(t, err)
	require.Len(t, routes[0].Conditions, 2)
	assert.Equal(t, router.Condition{
		LogicalOperator: router.Or,
		Operator:        router.OpEquals,
		Value:           "yes",
	}, routes[0].Conditions[1])

	err = s.RouterUpdateCondition("r", 0, 0, router.FieldOperator, "resembles")
	assert.ErrorIs(t, err, router.ErrInvalidOperator)
}

func TestRouterEdits_RejectNonRouters(t *testing.T) {
	s := loadedSession(t)

	assert.True(t, canvas.IsInvalid(s.RouterAddRoute("a")))
	assert.True(t, canvas.IsReferential(s.RouterAddRoute("ghost")))
}

func TestSetNodeConfig_ShallowMergeMirrored(t *testing.T) {
	s := loadedSession(t)
	s.SetNodeConfig("a", flow.Config{Extra: map[string]any{"a": 0, "b": 2}})

	entry := s.SetNodeConfig("a", flow.Config{Extra: map[string]any{"a": 1}})

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, entry.Config.Extra)
	node, _ := s.Node("a")
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, node.Data.Config.Extra)

	detached := s.SetNodeConfig("not-on-canvas", flow.Config{Title: "x"})
	assert.Equal(t, "x", detached.Config.Title)
}

func TestSetNodeConfig_TitleRewritesHandles(t *testing.T) {
	s := newTestSession(t)
	_, err := s.CreateNode("InputNode", "in", flow.Position{})
	require.NoError(t, err)
	_, err = s.CreateNode("OutputNode", "out", flow.Position{X: 200})
	require.NoError(t, err)
	edge, err := s.Connect(canvas.Connection{Source: "in", Target: "out"})
	require.NoError(t, err)

	s.SetNodeConfig("in", flow.Config{Title: "renamed"})

	assert.Equal(t, "renamed->renamed", edgeHandles(s)[edge.ID])
	node, _ := s.Node("in")
	assert.Equal(t, "renamed", node.Data.Title)
	in, _ := s.NodeData("in")
	assert.Equal(t, "renamed", in.Config.Title)
}

func TestConnect_AndRedoInvalidation(t *testing.T) {
	s := loadedSession(t)

	edge, err := s.Connect(canvas.Connection{Source: "in", Target: "a"})
	require.NoError(t, err)
	assert.Equal(t, "question", edge.SourceHandle)

	require.True(t, s.Undo())
	require.True(t, s.CanRedo())

	require.NoError(t, s.DeleteEdge("e2"))
	assert.False(t, s.CanRedo())
	assert.False(t, s.Redo())
}

func TestCreateNode(t *testing.T) {
	s := newTestSession(t)

	node, err := s.CreateNode("RouterNode", "", flow.Position{X: 1, Y: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, node.ID)

	data, ok := s.NodeData(node.ID)
	require.True(t, ok)
	assert.Equal(t, flow.Schema{"Route_1": "any"}, data.Config.OutputSchema)

	_, err = s.CreateNode("TeleportNode", "x", flow.Position{})
	assert.True(t, canvas.IsInvalid(err))

	_, err = s.CreateNode("InputNode", node.ID, flow.Position{})
	assert.True(t, canvas.IsConflict(err))
}

func TestTestInputCommands(t *testing.T) {
	s := loadedSession(t)

	require.NoError(t, s.AddTestInput(flow.TestInput{ID: "t2", Values: map[string]any{"question": "bye"}}))
	assert.True(t, canvas.IsConflict(s.AddTestInput(flow.TestInput{ID: "t2"})))
	require.NoError(t, s.UpdateTestInput("t2", map[string]any{"lang": "en"}))
	assert.True(t, canvas.IsReferential(s.DeleteTestInput("ghost")))
	require.NoError(t, s.DeleteTestInput("t1"))

	def := s.Export()
	assert.Equal(t, []flow.TestInput{{ID: "t2", Values: map[string]any{"question": "bye", "lang": "en"}}}, def.TestInputs)
}

func TestRunState(t *testing.T) {
	s := loadedSession(t)

	s.SetNodeRunData("a", flow.RunData{"answer": "42"})
	require.NoError(t, s.SetNodeTaskStatus("a", flow.RunStatusCompleted))
	assert.True(t, canvas.IsInvalid(s.SetNodeTaskStatus("a", "exploded")))

	a, _ := s.NodeData("a")
	assert.Equal(t, flow.RunStatusCompleted, a.TaskStatus)

	s.ResetAllRuns()
	a, _ = s.NodeData("a")
	assert.Nil(t, a.Run)
	assert.False(t, s.CanUndo(), "run state is not part of history")
}

func TestEventsPublished(t *testing.T) {
	tel := telemetry.NewNop()
	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	require.NoError(t, err)
	tel.Events = events

	var types []string
	events.Subscribe(func(e telemetry.Event) { types = append(types, e.Type) }, nil)

	s := loadedSession(t, WithTelemetry(tel))
	require.NoError(t, s.DeleteEdge("e1"))
	s.Undo()
	s.Redo()
	_ = s.DeleteNode("ghost")

	assert.Equal(t, []string{
		telemetry.EventTypeCanvasInitialized,
		telemetry.EventTypeEdgeDeleted,
		telemetry.EventTypeHistoryUndo,
		telemetry.EventTypeHistoryRedo,
	}, types)
}

func TestMetricsRecorded(t *testing.T) {
	tel := telemetry.NewNop()
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "t"})
	require.NoError(t, err)
	tel.Metrics = metrics

	s := loadedSession(t, WithTelemetry(tel))
	_ = s.DeleteNode("ghost")
	require.NoError(t, s.DeleteNode("c"))

	families, err := metrics.Gather()
	require.NoError(t, err)

	outcomes := make(map[string]float64)
	var nodeGauge float64
	for _, f := range families {
		switch f.GetName() {
		case "t_commands_total":
			for _, m := range f.GetMetric() {
				labels := make(map[string]string)
				for _, l := range m.GetLabel() {
					labels[l.GetName()] = l.GetValue()
				}
				if labels["command"] == "delete_node" {
					outcomes[labels["outcome"]] += m.GetCounter().GetValue()
				}
			}
		case "t_graph_nodes":
			nodeGauge = f.GetMetric()[0].GetGauge().GetValue()
		}
	}

	assert.Equal(t, map[string]float64{telemetry.OutcomeOK: 1, telemetry.OutcomeRejected: 1}, outcomes)
	assert.Equal(t, float64(4), nodeGauge)
}

func TestPollerInterleavesWithEdits(t *testing.T) {
	s := loadedSession(t)
	src := poller.SourceFunc(func(context.Context) ([]poller.Update, error) {
		return []poller.Update{{NodeID: "a", Status: "RUNNING", Results: `{"partial": true}`}}, nil
	})
	p := poller.New(src, s.Data())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, _ = p.PollOnce(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = s.RouterAddRoute("r")
			s.Undo()
		}
	}()
	wg.Wait()

	a, _ := s.NodeData("a")
	assert.Equal(t, flow.RunStatusRunning, a.TaskStatus)
	assert.Equal(t, flow.RunData{"partial": true}, a.Run)

	r, _ := s.NodeData("r")
	assert.Len(t, r.Config.Routes, 3)
	assert.Len(t, s.Edges(), 4)
}

func TestApply_UnknownCommand(t *testing.T) {
	s := newTestSession(t)
	err := s.Apply(Step{Command: "teleport"})
	assert.True(t, errors.Is(err, ErrUnknownCommand))
}
