package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/flowcanvas/flowcanvas/pkg/flow"
	"github.com/flowcanvas/flowcanvas/pkg/telemetry"
)

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 5 * time.Second

// Update is one node status reported by a Source. Results holds the run
// output as JSON text and may be empty.
type Update struct {
	NodeID  string `json:"node_id" yaml:"node_id"`
	Status  string `json:"status" yaml:"status"`
	Results string `json:"results,omitempty" yaml:"results,omitempty"`
}

// Source reports the current execution status of nodes.
type Source interface {
	Poll(ctx context.Context) ([]Update, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Update, error)

// Poll calls f.
func (f SourceFunc) Poll(ctx context.Context) ([]Update, error) {
	return f(ctx)
}

// Sink receives run state. nodedata.Store implements it.
type Sink interface {
	SetTaskStatus(id string, status flow.RunStatus)
	SetRun(id string, run flow.RunData, status flow.RunStatus)
}

// Poller periodically copies node status from a Source into a Sink. It only
// writes run state and never touches graph structure.
type Poller struct {
	source     Source
	sink       Sink
	interval   time.Duration
	workflowID string

	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	events  *telemetry.EventPublisher
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the refresh period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger.With().Str("component", "poller").Logger()
	}
}

// WithTelemetry wires metrics, spans and run.status events.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(p *Poller) {
		if tel == nil {
			return
		}
		p.logger = tel.Logger.NewComponentLogger("poller").Zerolog()
		p.metrics = tel.Metrics
		p.tracer = tel.Tracer
		p.events = tel.Events
	}
}

// WithWorkflowID tags spans and logs with the workflow being refreshed.
func WithWorkflowID(id string) Option {
	return func(p *Poller) {
		p.workflowID = id
	}
}

// New creates a poller reading from source and writing into sink.
func New(source Source, sink Sink, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		sink:     sink,
		interval: DefaultInterval,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the refresh period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Run polls once immediately and then on every tick until ctx is cancelled.
// Source failures are logged and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Str("workflow_id", p.workflowID).
		Msg("Status refresh started")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn().Err(err).Msg("Status refresh failed")
		}

		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Status refresh stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce performs one refresh cycle and returns the number of nodes
// written.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	timer := telemetry.NewTimer()
	ctx, span := p.tracer.StartPollSpan(ctx, p.workflowID)
	defer span.End()

	updates, err := p.source.Poll(ctx)
	if err != nil {
		err = fmt.Errorf("poll source: %w", err)
		telemetry.RecordError(span, err)
		p.metrics.RecordPollCycle(telemetry.OutcomeError, 0, timer.Duration())
		return 0, err
	}

	written := 0
	for _, u := range updates {
		if p.apply(u) {
			written++
			telemetry.AddNodeEvent(span, u.NodeID, "status.updated", u.Status)
		}
	}

	span.SetAttributes(telemetry.AttrUpdates.Int(written))
	telemetry.RecordSuccess(span)
	p.metrics.RecordPollCycle(telemetry.OutcomeOK, written, timer.Duration())

	p.logger.Debug().
		Int("updates", len(updates)).
		Int("written", written).
		Msg("Status refresh complete")

	return written, nil
}

func (p *Poller) apply(u Update) bool {
	log := p.logger.With().Str("node_id", u.NodeID).Logger()

	if u.NodeID == "" {
		log.Warn().Msg("Ignoring status update without node id")
		return false
	}

	status, err := flow.ParseRunStatus(u.Status)
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring status update")
		return false
	}

	if strings.TrimSpace(u.Results) == "" {
		p.sink.SetTaskStatus(u.NodeID, status)
	} else if run, err := ParseResults(u.Results); err != nil {
		p.metrics.RecordParseError()
		log.Warn().Err(err).Msg("Discarding unparseable run results")
		p.sink.SetTaskStatus(u.NodeID, status)
	} else {
		p.sink.SetRun(u.NodeID, run, status)
	}

	_ = p.events.PublishRunStatus(u.NodeID, strings.ToUpper(string(status)))
	return true
}

// ParseResults decodes a run results payload. A JSON object becomes the
// run data as is; any other JSON value is stored under the "result" key.
func ParseResults(results string) (flow.RunData, error) {
	var v any
	if err := json.Unmarshal([]byte(results), &v); err != nil {
		return nil, fmt.Errorf("parse run results: %w", err)
	}
	switch typed := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return flow.RunData(typed), nil
	default:
		return flow.RunData{"result": typed}, nil
	}
}
