package nodedata

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcanvas/flowcanvas/pkg/flow"
)

func kindPtr(k flow.Kind) *flow.Kind             { return &k }
func statusPtr(s flow.RunStatus) *flow.RunStatus { return &s }

func TestSet_Normalizes(t *testing.T) {
	s := NewStore()

	e := s.Set("in", Entry{Kind: flow.KindInput})

	assert.NotNil(t, e.InputSchema)
	assert.NotNil(t, e.OutputSchema)
	assert.NotNil(t, e.Config.OutputSchema, "input nodes expose an output schema")
}

func TestSet_ReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.Set("n", Entry{Config: flow.Config{Title: "a", Extra: map[string]any{"x": 1}}})
	s.Set("n", Entry{Config: flow.Config{Title: "b"}})

	got, ok := s.Get("n")
	require.True(t, ok)
	assert.Equal(t, "b", got.Config.Title)
	assert.Nil(t, got.Config.Extra)
}

func TestUpdate_ShallowMerge(t *testing.T) {
	s := NewStore()
	s.Set("n", Entry{Config: flow.Config{Extra: map[string]any{"a": 0, "b": 2}}})

	got := s.Update("n", Patch{Config: &flow.Config{Extra: map[string]any{"a": 1}}})

	assert.Equal(t, map[string]any{"a": 1, "b": 2}, got.Config.Extra)
}

func TestUpdate_NestedValuesReplaced(t *testing.T) {
	s := NewStore()
	s.Set("n", Entry{Config: flow.Config{Extra: map[string]any{
		"llm": map[string]any{"model": "gpt-4o", "temperature": 0.7},
	}}})

	got := s.Update("n", Patch{Config: &flow.Config{Extra: map[string]any{
		"llm": map[string]any{"model": "o1-mini"},
	}}})

	assert.Equal(t, map[string]any{"model": "o1-mini"}, got.Config.Extra["llm"])
}

func TestUpdate_CreatesMissingEntry(t *testing.T) {
	s := NewStore()

	got := s.Update("in", Patch{
		Kind:         kindPtr(flow.KindInput),
		InputSchema:  flow.Schema{"q": "str"},
		OutputSchema: flow.Schema{"q": "str"},
	})

	assert.Equal(t, flow.KindInput, got.Kind)
	assert.Equal(t, flow.Schema{"q": "str"}, got.InputSchema)
	assert.NotNil(t, got.Config.OutputSchema)

	stored, ok := s.Get("in")
	require.True(t, ok)
	assert.Equal(t, got, stored)
}

func TestUpdate_SchemasMergePerField(t *testing.T) {
	s := NewStore()
	s.Update("n", Patch{OutputSchema: flow.Schema{"a": "str", "b": "int"}})

	got := s.Update("n", Patch{OutputSchema: flow.Schema{"b": "float", "c": "bool"}})

	assert.Equal(t, flow.Schema{"a": "str", "b": "float", "c": "bool"}, got.OutputSchema)
}

func TestUpdate_RouterHookRegeneratesSchema(t *testing.T) {
	s := NewStore()
	s.Set("r", Entry{Kind: flow.KindRouter})

	got, _ := s.Get("r")
	assert.Len(t, got.Config.Routes, 1)
	assert.Equal(t, flow.Schema{"Route_1": "any"}, got.Config.OutputSchema)
}

func TestRenameTitle(t *testing.T) {
	s := NewStore()

	assert.False(t, s.RenameTitle("ghost", "x"), "absent entries are not created")
	_, ok := s.Get("ghost")
	assert.False(t, ok)

	s.Set("n", Entry{})
	assert.True(t, s.RenameTitle("n", "summary"))
	got, _ := s.Get("n")
	assert.Equal(t, "summary", got.Config.Title)
}

func TestRenameSchemaField(t *testing.T) {
	s := NewStore()
	s.Set("n", Entry{Config: flow.Config{
		InputSchema:  flow.Schema{"topic": "str"},
		OutputSchema: flow.Schema{"x": "int"},
	}})

	assert.True(t, s.RenameSchemaField("n", true, "x", "y"))
	assert.False(t, s.RenameSchemaField("n", true, "missing", "z"))
	assert.True(t, s.RenameSchemaField("n", false, "topic", "subject"))

	got, _ := s.Get("n")
	assert.Equal(t, flow.Schema{"y": "int"}, got.Config.OutputSchema)
	assert.Equal(t, flow.Schema{"subject": "str"}, got.Config.InputSchema)
}

func TestRunState(t *testing.T) {
	s := NewStore()
	s.Set("a", Entry{Config: flow.Config{Title: "A"}})

	s.SetRunData("a", flow.RunData{"answer": "42"})
	s.SetTaskStatus("a", flow.RunStatusCompleted)
	s.SetTaskStatus("b", flow.RunStatusRunning)

	a, _ := s.Get("a")
	assert.Equal(t, flow.RunData{"answer": "42"}, a.Run)
	assert.Equal(t, flow.RunStatusCompleted, a.TaskStatus)

	b, ok := s.Get("b")
	require.True(t, ok, "status writes create the entry")
	assert.Equal(t, flow.RunStatusRunning, b.TaskStatus)

	s.ResetAllRuns()

	a, _ = s.Get("a")
	assert.Nil(t, a.Run)
	assert.Empty(t, a.TaskStatus)
	assert.Equal(t, "A", a.Config.Title, "reset keeps config")
}

func TestUpdate_OverwritesStatus(t *testing.T) {
	s := NewStore()
	s.SetTaskStatus("n", flow.RunStatusRunning)

	got := s.Update("n", Patch{TaskStatus: statusPtr(flow.RunStatusFailed)})
	assert.Equal(t, flow.RunStatusFailed, got.TaskStatus)
}

func TestDelete(t *testing.T) {
	s := NewStore()
	s.Set("n", Entry{})
	s.Delete("n")

	_, ok := s.Get("n")
	assert.False(t, ok)
	assert.Empty(t, s.IDs())
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := NewStore()
	s.SetRunData("n", flow.RunData{"k": []any{"a"}})

	got, _ := s.Get("n")
	got.Run["k"] = "mutated"

	again, _ := s.Get("n")
	assert.Equal(t, []any{"a"}, again.Run["k"])
}

func TestTestInputs(t *testing.T) {
	s := NewStore()

	s.SetTestInputs([]flow.TestInput{{ID: "t1", Values: map[string]any{"q": "hi"}}})
	s.AddTestInput(flow.TestInput{ID: "t2", Values: map[string]any{"q": "bye"}})

	assert.True(t, s.UpdateTestInput("t1", map[string]any{"q": "hello", "lang": "en", "id": "hijack"}))
	assert.False(t, s.UpdateTestInput("missing", map[string]any{"q": "x"}))

	inputs := s.TestInputs()
	require.Len(t, inputs, 2)
	assert.Equal(t, "t1", inputs[0].ID)
	assert.Equal(t, map[string]any{"q": "hello", "lang": "en"}, inputs[0].Values)

	assert.True(t, s.DeleteTestInput("t1"))
	assert.False(t, s.DeleteTestInput("t1"))
	assert.Len(t, s.TestInputs(), 1)
}

func TestConcurrentRunWrites(t *testing.T) {
	s := NewStore()
	s.Set("n", Entry{Config: flow.Config{Title: "n"}})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetTaskStatus("n", flow.RunStatusRunning)
		}()
		go func() {
			defer wg.Done()
			s.Update("n", Patch{Config: &flow.Config{Extra: map[string]any{"k": "v"}}})
		}()
	}
	wg.Wait()

	got, _ := s.Get("n")
	assert.Equal(t, "n", got.Config.Title)
	assert.Equal(t, flow.RunStatusRunning, got.TaskStatus)
}
