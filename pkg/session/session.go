package session

import (
	"sync"

	"github.com/flowcanvas/flowcanvas/pkg/canvas"
	"github.com/flowcanvas/flowcanvas/pkg/nodedata"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
	"github.com/flowcanvas/flowcanvas/pkg/workflow"
)

// Session is one editing session: a graph store, the node data store that
// belongs to it and the type registry used to create nodes. Commands are
// serialized by the session; the node data store stays independently
// writable so a status poller never waits on structural edits.
type Session struct {
	mu sync.Mutex

	canvas  *canvas.Canvas
	data    *nodedata.Store
	factory canvas.NodeFactory

	tel *telemetry.Telemetry
	log *telemetry.Logger
}

type options struct {
	canvasOpts []canvas.Option
	data       *nodedata.Store
	tel        *telemetry.Telemetry
}

// Option configures a Session.
type Option func(*options)

// WithTelemetry wires logging, metrics and change events.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *options) {
		o.tel = tel
	}
}

// WithCanvasOptions passes options to the underlying canvas.
func WithCanvasOptions(opts ...canvas.Option) Option {
	return func(o *options) {
		o.canvasOpts = append(o.canvasOpts, opts...)
	}
}

// WithDataStore shares an existing node data store, e.g. one that a poller
// already writes into.
func WithDataStore(store *nodedata.Store) Option {
	return func(o *options) {
		o.data = store
	}
}

// New creates an empty session. factory resolves node type names.
func New(factory canvas.NodeFactory, opts ...Option) *Session {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.data == nil {
		o.data = nodedata.NewStore()
	}
	if o.tel == nil {
		o.tel = telemetry.NewNop()
	}

	return &Session{
		canvas:  canvas.New(o.canvasOpts...),
		data:    o.data,
		factory: factory,
		tel:     o.tel,
		log:     o.tel.Logger.NewComponentLogger("session"),
	}
}

// Canvas returns the graph store.
func (s *Session) Canvas() *canvas.Canvas {
	return s.canvas
}

// Data returns the node data store.
func (s *Session) Data() *nodedata.Store {
	return s.data
}

// Node returns a copy of the node with the given id.
func (s *Session) Node(id string) (canvas.Node, bool) {
	return s.canvas.Node(id)
}

// NodeData returns a copy of the node data of id.
func (s *Session) NodeData(id string) (nodedata.Entry, bool) {
	return s.data.Get(id)
}

// Nodes returns a copy of every node.
func (s *Session) Nodes() []canvas.Node {
	return s.canvas.Nodes()
}

// Edges returns a copy of every edge.
func (s *Session) Edges() []canvas.Edge {
	return s.canvas.Edges()
}

// SelectedNodeID returns the id of the selected node, or "".
func (s *Session) SelectedNodeID() string {
	return s.canvas.SelectedNodeID()
}

// CanUndo reports whether Undo would change the graph.
func (s *Session) CanUndo() bool {
	return s.canvas.CanUndo()
}

// CanRedo reports whether Redo would change the graph.
func (s *Session) CanRedo() bool {
	return s.canvas.CanRedo()
}

// Export returns the current graph and test inputs as a workflow
// definition.
func (s *Session) Export() *workflow.Definition {
	def := s.canvas.Export()
	def.TestInputs = s.data.TestInputs()
	return def
}

// finish logs and counts a command outcome and returns err unchanged.
// Referential errors are expected when the caller races with deletions and
// are only logged at debug level.
func (s *Session) finish(command, target string, err error) error {
	log := s.log.WithCommand(command)
	if target != "" {
		log = log.WithField("target", target)
	}

	outcome := telemetry.OutcomeOK
	switch {
	case err == nil:
		log.Debug("Command applied")
	case canvas.IsReferential(err):
		outcome = telemetry.OutcomeRejected
		log.WithError(err).Debug("Command ignored")
	case canvas.IsInvalid(err), canvas.IsConflict(err):
		outcome = telemetry.OutcomeRejected
		log.WithError(err).Warn("Command rejected")
	default:
		outcome = telemetry.OutcomeError
		log.WithError(err).Error("Command failed")
	}

	s.tel.Metrics.RecordCommand(command, outcome)
	s.recordSize()
	return err
}

func (s *Session) recordSize() {
	snap := s.canvas.Snapshot()
	past, future := s.canvas.HistoryDepth()
	s.tel.Metrics.SetGraphSize(len(snap.Nodes), len(snap.Edges), past, future)
}

func (s *Session) publish(e telemetry.Event) {
	if err := s.tel.Events.Publish(e); err != nil {
		s.log.WithError(err).Debugf("Dropped %s event", e.Type)
	}
}
