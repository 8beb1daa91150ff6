package canvas

import (
	"sync"

	"github.com/google/uuid"

	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

// DefaultProjectName is the project name of a canvas that was never loaded.
const DefaultProjectName = "Untitled Project"

// state is the value every command transforms. Live node configs are never
// mutated in place: transitions replace the node with a modified clone, so
// shallow copies of the node slice are safe to hand to history.
type state struct {
	nodes    []Node
	edges    []Edge
	selected string
	history  history
}

func (s *state) snapshot() Snapshot {
	return Snapshot{Nodes: cloneNodes(s.nodes), Edges: cloneEdges(s.edges)}
}

func (s *state) install(snap Snapshot) {
	s.nodes = snap.Nodes
	s.edges = snap.Edges
}

// record pushes the pre-mutation graph. It must run in the same critical
// section as the mutation it guards.
func (s *state) record() {
	s.history.record(s.snapshot())
}

func (s *state) nodeIndex(id string) int {
	for i := range s.nodes {
		if s.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *state) edgeIndex(id string) int {
	for i := range s.edges {
		if s.edges[i].ID == id {
			return i
		}
	}
	return -1
}

// Canvas is the graph store of one editing session. All methods are safe for
// concurrent use; each command is applied atomically together with its
// history entry.
type Canvas struct {
	mu sync.Mutex
	st state

	workflowID  string
	projectName string

	newID func() string
}

// Option configures a Canvas.
type Option func(*Canvas)

// WithHistoryDepth bounds the undo stack. Zero means unbounded.
func WithHistoryDepth(depth int) Option {
	return func(c *Canvas) {
		c.st.history.maxDepth = depth
	}
}

// WithIDGenerator replaces the edge id generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Canvas) {
		c.newID = fn
	}
}

// New creates an empty canvas.
func New(opts ...Option) *Canvas {
	c := &Canvas{
		projectName: DefaultProjectName,
		newID:       uuid.NewString,
	}
	c.st.history.maxDepth = DefaultHistoryDepth
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MutationOption adjusts how a single command is applied.
type MutationOption func(*mutation)

type mutation struct {
	record bool
	config *flow.Config
}

// Recorded makes a command that is unrecorded by default push a history
// entry, e.g. a title rename that is part of a schema cascade.
func Recorded() MutationOption {
	return func(m *mutation) {
		m.record = true
	}
}

// WithNodeConfig replaces the target node's config in the same step as the
// command, so both are undone together.
func WithNodeConfig(cfg flow.Config) MutationOption {
	return func(m *mutation) {
		c := cfg.Clone()
		m.config = &c
	}
}

func buildMutation(opts []MutationOption) mutation {
	var m mutation
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// InitOption adjusts Initialize.
type InitOption func(*Canvas)

// WithWorkflow sets the workflow id and project name carried by the canvas.
func WithWorkflow(id, name string) InitOption {
	return func(c *Canvas) {
		c.workflowID = id
		if name != "" {
			c.projectName = name
		}
	}
}

// Initialize replaces the graph with the one described by def. Descriptors
// whose type the factory cannot resolve are skipped, and links whose
// endpoints were not built are dropped. History is left untouched.
func (c *Canvas) Initialize(def *workflow.Definition, factory NodeFactory, opts ...InitOption) InitResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, opt := range opts {
		opt(c)
	}

	var result InitResult
	nodes := make([]Node, 0, len(def.Nodes))
	built := make(map[string]int, len(def.Nodes))

	for _, nd := range def.Nodes {
		if _, dup := built[nd.ID]; dup {
			result.Skipped = append(result.Skipped, nd.ID)
			continue
		}
		node, ok := factory.Create(nd.NodeType, nd.ID, nd.Coordinates)
		if !ok || node == nil {
			result.Skipped = append(result.Skipped, nd.ID)
			continue
		}

		n := node.Clone()
		cfg := n.Data.Config.Merge(nd.Config)
		flow.ApplyHook(n.Type, &cfg)
		n.Data.Config = cfg
		n.Data.Title = nd.Title
		if n.Data.Title == "" {
			n.Data.Title = nd.ID
		}

		built[n.ID] = len(nodes)
		nodes = append(nodes, n)
	}

	edges := make([]Edge, 0, len(def.Links))
	for _, l := range def.Links {
		si, okSrc := built[l.SourceID]
		_, okTgt := built[l.TargetID]
		if !okSrc || !okTgt {
			result.DroppedLinks++
			continue
		}

		sourceHandle := l.SourceHandle
		if sourceHandle == "" {
			sourceHandle = nodes[si].HandleLabel()
		}
		targetHandle := l.TargetHandle
		if targetHandle == "" {
			targetHandle = sourceHandle
		}

		edges = append(edges, Edge{
			ID:           c.newID(),
			Source:       l.SourceID,
			Target:       l.TargetID,
			SourceHandle: sourceHandle,
			TargetHandle: targetHandle,
		})
	}

	c.st.nodes = nodes
	c.st.edges = edges
	c.st.selected = ""

	result.Nodes = len(nodes)
	result.Edges = len(edges)
	return result
}

// ApplyNodeChanges applies position, selection and size deltas. They are not
// undoable. It returns the number of changes applied.
func (c *Canvas) ApplyNodeChanges(changes []NodeChange) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	nodes, applied := applyNodeChanges(c.st.nodes, changes)
	c.st.nodes = nodes
	return applied
}

// ApplyEdgeChanges applies edge selection deltas. They are not undoable.
func (c *Canvas) ApplyEdgeChanges(changes []EdgeChange) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	edges, applied := applyEdgeChanges(c.st.edges, changes)
	c.st.edges = edges
	return applied
}

// Connect joins two nodes. Empty handles are derived from the source node:
// the source handle falls back to the source's handle label and the target
// handle to the resolved source handle. Connecting slots that are already
// joined returns the existing edge without a history entry.
func (c *Canvas) Connect(conn Connection) (Edge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	si := c.st.nodeIndex(conn.Source)
	if si < 0 {
		return Edge{}, nodeNotFound("connect", conn.Source)
	}
	if c.st.nodeIndex(conn.Target) < 0 {
		return Edge{}, nodeNotFound("connect", conn.Target)
	}

	sourceHandle := conn.SourceHandle
	if sourceHandle == "" {
		sourceHandle = c.st.nodes[si].HandleLabel()
	}
	targetHandle := conn.TargetHandle
	if targetHandle == "" {
		targetHandle = sourceHandle
	}

	edge := Edge{
		Source:       conn.Source,
		Target:       conn.Target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}
	for _, e := range c.st.edges {
		if e.sameConnection(edge) {
			return e, nil
		}
	}

	c.st.record()
	edge.ID = c.newID()
	c.st.edges = append(cloneEdges(c.st.edges), edge)
	return edge, nil
}

// AddNode appends a fully formed node.
func (c *Canvas) AddNode(node Node) error {
	if node.ID == "" {
		return NewInvalidError("node id is required", nil).WithOperation("add_node")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.st.nodeIndex(node.ID) >= 0 {
		return NewConflictError("node already exists", nil).
			WithResource(node.ID).
			WithOperation("add_node")
	}

	c.st.record()
	nodes := make([]Node, len(c.st.nodes), len(c.st.nodes)+1)
	copy(nodes, c.st.nodes)
	c.st.nodes = append(nodes, node.Clone())
	return nil
}

// DeleteNode removes a node together with every edge incident to it.
// It returns the number of edges removed by the cascade.
func (c *Canvas) DeleteNode(id string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.st.nodeIndex(id) < 0 {
		return 0, nodeNotFound("delete_node", id)
	}

	c.st.record()

	nodes := make([]Node, 0, len(c.st.nodes)-1)
	for _, n := range c.st.nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}

	edges := make([]Edge, 0, len(c.st.edges))
	for _, e := range c.st.edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	removed := len(c.st.edges) - len(edges)

	c.st.nodes = nodes
	c.st.edges = edges
	if c.st.selected == id {
		c.st.selected = ""
	}
	return removed, nil
}

// DeleteEdge removes a single edge.
func (c *Canvas) DeleteEdge(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.st.edgeIndex(id)
	if i < 0 {
		return edgeNotFound("delete_edge", id)
	}

	c.st.record()
	edges := make([]Edge, 0, len(c.st.edges)-1)
	edges = append(edges, c.st.edges[:i]...)
	c.st.edges = append(edges, c.st.edges[i+1:]...)
	return nil
}

// SetSelectedNode selects a node. An empty id clears the selection.
func (c *Canvas) SetSelectedNode(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id != "" && c.st.nodeIndex(id) < 0 {
		return nodeNotFound("select_node", id)
	}
	c.st.selected = id
	return nil
}

// RenameNodeTitle sets the node title and rewrites both handles of every
// edge leaving the node to the new title. Edges where the node is only the
// target keep their handles. The rename is not undoable unless Recorded is
// passed.
func (c *Canvas) RenameNodeTitle(id, title string, opts ...MutationOption) (int, error) {
	m := buildMutation(opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.st.nodeIndex(id)
	if i < 0 {
		return 0, nodeNotFound("rename_title", id)
	}

	if m.record {
		c.st.record()
	}

	n := c.st.nodes[i].Clone()
	if m.config != nil {
		n.Data.Config = *m.config
	}
	n.Data.Title = title
	n.Data.Config.Title = title
	c.st.nodes = replaceNode(c.st.nodes, i, n)

	return c.st.relabelOutgoing(id, title), nil
}

// relabelOutgoing sets both handles of every edge leaving id to label.
func (s *state) relabelOutgoing(id, label string) int {
	edges := cloneEdges(s.edges)
	rewritten := 0
	for j := range edges {
		if edges[j].Source == id {
			edges[j].SourceHandle = label
			edges[j].TargetHandle = label
			rewritten++
		}
	}
	s.edges = edges
	return rewritten
}

// UpdateNodeConfig merges patch into the node's config one key deep and
// re-applies the node kind's hook. A patch that changes the title of a
// single-output node relabels its outgoing edges as RenameNodeTitle does.
// It is not undoable unless Recorded is passed.
func (c *Canvas) UpdateNodeConfig(id string, patch flow.Config, opts ...MutationOption) error {
	m := buildMutation(opts)

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.st.nodeIndex(id)
	if i < 0 {
		return nodeNotFound("update_config", id)
	}

	if m.record {
		c.st.record()
	}

	n := c.st.nodes[i].Clone()
	oldLabel := n.HandleLabel()
	cfg := n.Data.Config.Merge(patch)
	flow.ApplyHook(n.Type, &cfg)
	n.Data.Config = cfg
	if cfg.Title != "" {
		n.Data.Title = cfg.Title
	}
	c.st.nodes = replaceNode(c.st.nodes, i, n)

	// Multi-output handles are route keys, not the title.
	if label := n.HandleLabel(); label != oldLabel && !n.Type.IsMultiOutput() {
		c.st.relabelOutgoing(id, label)
	}
	return nil
}

// Clear empties the graph and the selection. History is kept, so a clear
// can be followed by undo of earlier edits.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.st.nodes = nil
	c.st.edges = nil
	c.st.selected = ""
}

// Undo restores the graph recorded before the last undoable command.
// It returns false when there is nothing to undo.
func (c *Canvas) Undo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.st.history.undo(Snapshot{Nodes: c.st.nodes, Edges: c.st.edges})
	if !ok {
		return false
	}
	c.st.install(prev)
	c.dropStaleSelection()
	return true
}

// Redo re-applies the last undone command. It returns false when there is
// nothing to redo.
func (c *Canvas) Redo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, ok := c.st.history.redo(Snapshot{Nodes: c.st.nodes, Edges: c.st.edges})
	if !ok {
		return false
	}
	c.st.install(next)
	c.dropStaleSelection()
	return true
}

func (c *Canvas) dropStaleSelection() {
	if c.st.selected != "" && c.st.nodeIndex(c.st.selected) < 0 {
		c.st.selected = ""
	}
}

// SetProjectName renames the project shown for this canvas.
func (c *Canvas) SetProjectName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectName = name
}

// ProjectName returns the project name.
func (c *Canvas) ProjectName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectName
}

// WorkflowID returns the id of the workflow the canvas was loaded from.
func (c *Canvas) WorkflowID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workflowID
}

// Node returns a copy of the node with the given id.
func (c *Canvas) Node(id string) (Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.st.nodeIndex(id)
	if i < 0 {
		return Node{}, false
	}
	return c.st.nodes[i].Clone(), true
}

// Nodes returns a copy of all nodes in insertion order.
func (c *Canvas) Nodes() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneNodes(c.st.nodes)
}

// Edges returns a copy of all edges in insertion order.
func (c *Canvas) Edges() []Edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEdges(c.st.edges)
}

// SelectedNodeID returns the selected node id, or "" when none is selected.
func (c *Canvas) SelectedNodeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.selected
}

// Snapshot returns a deep copy of the current graph.
func (c *Canvas) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.snapshot()
}

// CanUndo reports whether Undo would change the graph.
func (c *Canvas) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.history.canUndo()
}

// CanRedo reports whether Redo would change the graph.
func (c *Canvas) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.history.canRedo()
}

// HistoryDepth returns the number of undo and redo entries.
func (c *Canvas) HistoryDepth() (past, future int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.st.history.past), len(c.st.history.future)
}

func replaceNode(nodes []Node, i int, n Node) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	out[i] = n
	return out
}
