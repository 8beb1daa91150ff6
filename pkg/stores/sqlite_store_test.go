package stores

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testDefinition() *workflow.Definition {
	return &workflow.Definition{
		Nodes: []workflow.NodeDefinition{
			{ID: "in", NodeType: "InputNode", Title: "question"},
			{ID: "out", NodeType: "OutputNode", Coordinates: flow.Position{X: 300}},
		},
		Links: []workflow.Link{{SourceID: "in", TargetID: "out", SourceHandle: "question", TargetHandle: "question"}},
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: MemoryPath,
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Fatal("Expected health check to fail before Init")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("Expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"drafts", "audit"} {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Expected second migration to succeed, got: %v", err)
	}
}

func TestDraftCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	draft, err := NewDraft("wf-1", "demo", testDefinition())
	if err != nil {
		t.Fatalf("failed to build draft: %v", err)
	}
	if draft.NodeCount != 2 || draft.EdgeCount != 1 {
		t.Fatalf("Expected 2 nodes and 1 edge, got: %d/%d", draft.NodeCount, draft.EdgeCount)
	}

	if err := store.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("failed to save draft: %v", err)
	}

	got, err := store.GetDraft(ctx, draft.ID)
	if err != nil {
		t.Fatalf("failed to get draft: %v", err)
	}
	if got.ProjectName != "demo" || got.WorkflowID != "wf-1" {
		t.Errorf("Expected demo/wf-1, got: %s/%s", got.ProjectName, got.WorkflowID)
	}

	def, err := got.Decode()
	if err != nil {
		t.Fatalf("failed to decode draft: %v", err)
	}
	if len(def.Nodes) != 2 || def.Links[0].SourceHandle != "question" {
		t.Errorf("Expected decoded definition to round trip, got: %+v", def)
	}

	// Saving again with the same id updates in place.
	got.ProjectName = "renamed"
	if err := store.SaveDraft(ctx, got); err != nil {
		t.Fatalf("failed to update draft: %v", err)
	}
	all, err := store.ListDrafts(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list drafts: %v", err)
	}
	if len(all) != 1 || all[0].ProjectName != "renamed" {
		t.Fatalf("Expected one renamed draft, got: %+v", all)
	}

	if err := store.DeleteDraft(ctx, draft.ID); err != nil {
		t.Fatalf("failed to delete draft: %v", err)
	}
	if _, err := store.GetDraft(ctx, draft.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
	if err := store.DeleteDraft(ctx, draft.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got: %v", err)
	}
}

func TestSaveDraft_GeneratesID(t *testing.T) {
	store := setupTestStore(t)

	draft := &Draft{WorkflowID: "wf-1", Definition: `{"nodes":[],"links":[]}`}
	if err := store.SaveDraft(context.Background(), draft); err != nil {
		t.Fatalf("failed to save draft: %v", err)
	}
	if draft.ID == "" {
		t.Fatal("Expected generated id")
	}
	if draft.CreatedAt.IsZero() || draft.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}
}

func TestLatestAndPruneDrafts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 4; i++ {
		d, err := NewDraft("wf-1", "demo", testDefinition())
		if err != nil {
			t.Fatalf("failed to build draft: %v", err)
		}
		if err := store.SaveDraft(ctx, d); err != nil {
			t.Fatalf("failed to save draft: %v", err)
		}
		ids = append(ids, d.ID)
		time.Sleep(2 * time.Millisecond)
	}
	other, _ := NewDraft("wf-2", "other", testDefinition())
	if err := store.SaveDraft(ctx, other); err != nil {
		t.Fatalf("failed to save draft: %v", err)
	}

	latest, err := store.LatestDraft(ctx, "wf-1")
	if err != nil {
		t.Fatalf("failed to get latest draft: %v", err)
	}
	if latest.ID != ids[3] {
		t.Errorf("Expected latest draft %s, got: %s", ids[3], latest.ID)
	}

	if _, err := store.LatestDraft(ctx, "wf-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}

	wf := "wf-1"
	list, err := store.ListDrafts(ctx, &wf, 2, 0)
	if err != nil {
		t.Fatalf("failed to list drafts: %v", err)
	}
	if len(list) != 2 || list[0].ID != ids[3] || list[1].ID != ids[2] {
		t.Errorf("Expected the two newest drafts, got: %d", len(list))
	}

	n, err := store.PruneDrafts(ctx, "wf-1", 1)
	if err != nil {
		t.Fatalf("failed to prune drafts: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 drafts pruned, got: %d", n)
	}

	all, err := store.ListDrafts(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list drafts: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected the newest wf-1 draft and the wf-2 draft, got: %d", len(all))
	}
}

func TestAuditEntries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	target := "node-1"
	entries := []*AuditEntry{
		{Action: telemetry.EventTypeNodeAdded, Actor: "tester", TargetID: &target},
		{Action: telemetry.EventTypeNodeRenamed, Actor: "tester", TargetID: &target},
		{Action: telemetry.EventTypeCanvasCleared, Actor: "tester"},
	}
	for _, e := range entries {
		if err := store.CreateAuditEntry(ctx, e); err != nil {
			t.Fatalf("failed to create audit entry: %v", err)
		}
		if e.ID == 0 {
			t.Fatal("Expected audit entry id to be set")
		}
	}

	all, err := store.ListAuditEntries(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got: %d", len(all))
	}

	byTarget, err := store.ListAuditEntries(ctx, nil, &target, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(byTarget) != 2 {
		t.Errorf("Expected 2 entries for %s, got: %d", target, len(byTarget))
	}

	action := telemetry.EventTypeNodeRenamed
	byAction, err := store.ListAuditEntries(ctx, &action, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(byAction) != 1 || byAction[0].Action != action {
		t.Errorf("Expected one rename entry, got: %+v", byAction)
	}
}

func TestAuditRecorder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	pub, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true, BufferSize: 8})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	pub.Subscribe(NewAuditRecorder(store, "tester", zerolog.Nop()), nil)

	if err := pub.PublishNode(telemetry.EventTypeNodeDeleted, "n1", "Node deleted", map[string]any{"edges": 2}); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
	if err := pub.PublishEdge(telemetry.EventTypeEdgeDeleted, "e1", "Edge deleted", nil); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	entries, err := store.ListAuditEntries(ctx, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to list audit entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 audit entries, got: %d", len(entries))
	}

	var node *AuditEntry
	for _, e := range entries {
		if e.Action == telemetry.EventTypeNodeDeleted {
			node = e
		}
	}
	if node == nil || node.TargetID == nil || *node.TargetID != "n1" {
		t.Fatalf("Expected node.deleted entry targeting n1, got: %+v", node)
	}
	if node.Actor != "tester" {
		t.Errorf("Expected actor tester, got: %s", node.Actor)
	}
	if node.Details == nil || !strings.Contains(*node.Details, `"edges":2`) {
		t.Errorf("Expected details to carry event data, got: %v", node.Details)
	}
}

func TestAuditRecorder_LogsFailures(t *testing.T) {
	store := setupTestStore(t)
	_ = store.Close()

	var buf bytes.Buffer
	record := NewAuditRecorder(store, "tester", zerolog.New(&buf))
	record(telemetry.Event{Type: telemetry.EventTypeCanvasCleared, Timestamp: time.Now()})

	if !strings.Contains(buf.String(), "Failed to record audit entry") {
		t.Errorf("Expected failure to be logged, got: %s", buf.String())
	}
}

func TestRestoreLatest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	logger := zerolog.Nop()

	if d := RestoreLatest(ctx, store, "wf-1", logger); d != nil {
		t.Fatalf("Expected nil without drafts, got: %+v", d)
	}

	good, _ := NewDraft("wf-1", "demo", testDefinition())
	if err := store.SaveDraft(ctx, good); err != nil {
		t.Fatalf("failed to save draft: %v", err)
	}
	if d := RestoreLatest(ctx, store, "wf-1", logger); d == nil || d.ID != good.ID {
		t.Fatalf("Expected draft %s, got: %+v", good.ID, d)
	}

	time.Sleep(2 * time.Millisecond)
	bad := &Draft{WorkflowID: "wf-1", Definition: `{"nodes": "oops"}`}
	if err := store.SaveDraft(ctx, bad); err != nil {
		t.Fatalf("failed to save draft: %v", err)
	}
	if d := RestoreLatest(ctx, store, "wf-1", logger); d != nil {
		t.Errorf("Expected undecodable draft to be ignored, got: %+v", d)
	}
}
