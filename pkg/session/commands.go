package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/nodedata"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

// Initialize replaces the graph with def and reseeds the node data store
// from the built nodes. History is kept.
func (s *Session) Initialize(def *workflow.Definition, opts ...canvas.InitOption) canvas.InitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := s.canvas.Initialize(def, s.factory, opts...)

	s.data.Clear()
	for _, n := range s.canvas.Nodes() {
		s.data.Set(n.ID, nodedata.Entry{Kind: n.Type, Config: n.Data.Config})
	}
	s.data.SetTestInputs(def.TestInputs)

	for _, id := range result.Skipped {
		s.log.WithNodeID(id).Warn("Skipped node with unknown type")
	}
	if result.DroppedLinks > 0 {
		s.log.Warnf("Dropped %d links with missing endpoints", result.DroppedLinks)
	}

	s.publish(telemetry.Event{
		Type:    telemetry.EventTypeCanvasInitialized,
		Message: fmt.Sprintf("Loaded %d nodes and %d edges", result.Nodes, result.Edges),
		Data: map[string]any{
			"workflow_id": s.canvas.WorkflowID(),
			"skipped":     len(result.Skipped),
			"dropped":     result.DroppedLinks,
		},
	})
	_ = s.finish("initialize", s.canvas.WorkflowID(), nil)
	return result
}

// ApplyNodeChanges applies position, size and selection deltas.
func (s *Session) ApplyNodeChanges(changes []canvas.NodeChange) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := s.canvas.ApplyNodeChanges(changes)
	s.tel.Metrics.RecordCommand("apply_node_changes", telemetry.OutcomeOK)
	return applied
}

// ApplyEdgeChanges applies edge selection deltas.
func (s *Session) ApplyEdgeChanges(changes []canvas.EdgeChange) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := s.canvas.ApplyEdgeChanges(changes)
	s.tel.Metrics.RecordCommand("apply_edge_changes", telemetry.OutcomeOK)
	return applied
}

// Connect joins two nodes.
func (s *Session) Connect(conn canvas.Connection) (canvas.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, err := s.canvas.Connect(conn)
	if err == nil {
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeEdgeConnected,
			EdgeID:  edge.ID,
			Message: fmt.Sprintf("%s:%s -> %s:%s", edge.Source, edge.SourceHandle, edge.Target, edge.TargetHandle),
		})
	}
	return edge, s.finish("connect", conn.Source, err)
}

// AddNode inserts a fully formed node and seeds its node data.
func (s *Session) AddNode(node canvas.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addNode(node)
}

func (s *Session) addNode(node canvas.Node) error {
	err := s.canvas.AddNode(node)
	if err == nil {
		s.data.Set(node.ID, nodedata.Entry{Kind: node.Type, Config: node.Data.Config})
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeNodeAdded,
			NodeID:  node.ID,
			Message: fmt.Sprintf("Added %s", node.Type),
		})
	}
	return s.finish("add_node", node.ID, err)
}

// CreateNode builds a default node of typeName through the session's
// factory and adds it. An empty id is generated.
func (s *Session) CreateNode(typeName, id string, pos flow.Position) (canvas.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = fmt.Sprintf("%s-%s", typeName, uuid.NewString()[:8])
	}
	if s.factory == nil {
		return canvas.Node{}, s.finish("add_node", id, canvas.NewInternalError("session has no node factory", nil))
	}

	node, ok := s.factory.Create(typeName, id, pos)
	if !ok || node == nil {
		err := canvas.NewInvalidError("unknown node type", nil).
			WithResource(id).
			WithOperation("add_node").
			WithDetail("type", typeName)
		return canvas.Node{}, s.finish("add_node", id, err)
	}

	if err := s.addNode(*node); err != nil {
		return canvas.Node{}, err
	}
	return node.Clone(), nil
}

// DeleteNode removes the node, its incident edges and its node data.
func (s *Session) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.canvas.DeleteNode(id)
	if err == nil {
		s.data.Delete(id)
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeNodeDeleted,
			NodeID:  id,
			Message: fmt.Sprintf("Deleted node and %d edges", removed),
			Data:    map[string]any{"edges_removed": removed},
		})
	}
	return s.finish("delete_node", id, err)
}

// DeleteEdge removes one edge.
func (s *Session) DeleteEdge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.canvas.DeleteEdge(id)
	if err == nil {
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeEdgeDeleted,
			EdgeID:  id,
			Message: "Deleted edge",
		})
	}
	return s.finish("delete_edge", id, err)
}

// SetSelectedNode changes the selection.
func (s *Session) SetSelectedNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.finish("select_node", id, s.canvas.SetSelectedNode(id))
}

// RenameTitle renames a node in both stores and rewrites the handles of
// its outgoing edges. Pass canvas.Recorded to make the rename undoable.
func (s *Session) RenameTitle(id, title string, opts ...canvas.MutationOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rewritten, err := s.canvas.RenameNodeTitle(id, title, opts...)
	if err == nil {
		s.data.RenameTitle(id, title)
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeNodeRenamed,
			NodeID:  id,
			Message: fmt.Sprintf("Renamed to %q", title),
			Data:    map[string]any{"title": title, "edges_rewritten": rewritten},
		})
	}
	return s.finish("rename_title", id, err)
}

// RenameSchemaField renames a schema field in both stores and cascades the
// rename to the handles of connected edges in one undoable step.
func (s *Session) RenameSchemaField(id string, dir canvas.SchemaDirection, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rewritten, err := s.canvas.RenameSchemaField(id, dir, oldName, newName)
	if err == nil && oldName != newName {
		s.data.RenameSchemaField(id, dir == canvas.DirectionOutput, oldName, newName)
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeSchemaRenamed,
			NodeID:  id,
			Message: fmt.Sprintf("Renamed %s field %q to %q", dir, oldName, newName),
			Data:    map[string]any{"direction": string(dir), "edges_rewritten": rewritten},
		})
	}
	return s.finish("rename_schema_field", id, err)
}

// Clear empties the graph. Node data is kept so that undoing the clear
// restores nodes together with their data.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.canvas.Clear()
	s.publish(telemetry.Event{Type: telemetry.EventTypeCanvasCleared, Message: "Cleared canvas"})
	_ = s.finish("clear", "", nil)
}

// Undo restores the previous graph. It reports whether anything changed.
func (s *Session) Undo() bool {
	return s.travel("undo", telemetry.EventTypeHistoryUndo, s.canvas.Undo)
}

// Redo reapplies the last undone graph. It reports whether anything
// changed.
func (s *Session) Redo() bool {
	return s.travel("redo", telemetry.EventTypeHistoryRedo, s.canvas.Redo)
}

func (s *Session) travel(command, eventType string, step func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := step()
	s.tel.Metrics.RecordHistoryOperation(command, applied)
	if !applied {
		s.tel.Metrics.RecordCommand(command, telemetry.OutcomeNoop)
		return false
	}

	s.resyncData()
	s.publish(telemetry.Event{Type: eventType, Message: "History " + command})
	_ = s.finish(command, "", nil)
	return true
}

// resyncData mirrors the restored canvas into the node data store after
// history travel. Each node's config is replaced by its snapshot copy, with
// run state and top-level schemas kept, and entries of nodes the snapshot
// does not contain are dropped.
func (s *Session) resyncData() {
	nodes := s.canvas.Nodes()
	onCanvas := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		onCanvas[n.ID] = true
		existing, _ := s.data.Get(n.ID)
		s.data.Set(n.ID, nodedata.Entry{
			Kind:         n.Type,
			Config:       n.Data.Config,
			InputSchema:  existing.InputSchema,
			OutputSchema: existing.OutputSchema,
			Run:          existing.Run,
			TaskStatus:   existing.TaskStatus,
		})
	}
	for _, id := range s.data.IDs() {
		if !onCanvas[id] {
			s.data.Delete(id)
		}
	}
}
