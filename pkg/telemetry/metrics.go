package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Outcome labels used by command and poll counters.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeNoop     = "noop"
	OutcomeError    = "error"
)

// Metrics provides Prometheus metrics for editing sessions.
// A Metrics created with collection disabled ignores every call.
type Metrics struct {
	config MetricsConfig

	commands    *prometheus.CounterVec
	historyOps  *prometheus.CounterVec
	historySize *prometheus.GaugeVec
	nodes       prometheus.Gauge
	edges       prometheus.Gauge

	pollCycles   *prometheus.CounterVec
	pollUpdates  prometheus.Counter
	parseErrors  prometheus.Counter
	pollDuration prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	ns := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "commands_total",
				Help:      "Canvas commands applied, by command and outcome",
			},
			[]string{"command", "outcome"},
		),
		historyOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "history_operations_total",
				Help:      "Undo and redo requests, by whether they changed the graph",
			},
			[]string{"operation", "applied"},
		),
		historySize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "history_depth",
				Help:      "Current number of snapshots on the undo and redo stacks",
			},
			[]string{"stack"},
		),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "graph_nodes",
			Help:      "Current number of nodes on the canvas",
		}),
		edges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "graph_edges",
			Help:      "Current number of edges on the canvas",
		}),

		pollCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "poll_cycles_total",
				Help:      "Status refresh cycles, by outcome",
			},
			[]string{"outcome"},
		),
		pollUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "poll_updates_total",
			Help:      "Node status updates written by the status refresher",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "poll_result_parse_errors_total",
			Help:      "Polled run results that could not be parsed",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "poll_duration_seconds",
			Help:      "Duration of status refresh cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.commands,
		m.historyOps,
		m.historySize,
		m.nodes,
		m.edges,
		m.pollCycles,
		m.pollUpdates,
		m.parseErrors,
		m.pollDuration,
	)

	return m, nil
}

// RecordCommand counts an applied command.
func (m *Metrics) RecordCommand(command, outcome string) {
	if m == nil || m.commands == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

// RecordHistoryOperation counts an undo or redo request.
func (m *Metrics) RecordHistoryOperation(operation string, applied bool) {
	if m == nil || m.historyOps == nil {
		return
	}
	label := "false"
	if applied {
		label = "true"
	}
	m.historyOps.WithLabelValues(operation, label).Inc()
}

// SetGraphSize records the current graph and history sizes.
func (m *Metrics) SetGraphSize(nodes, edges, past, future int) {
	if m == nil || m.nodes == nil {
		return
	}
	m.nodes.Set(float64(nodes))
	m.edges.Set(float64(edges))
	m.historySize.WithLabelValues("past").Set(float64(past))
	m.historySize.WithLabelValues("future").Set(float64(future))
}

// RecordPollCycle records one status refresh cycle.
func (m *Metrics) RecordPollCycle(outcome string, updates int, duration time.Duration) {
	if m == nil || m.pollCycles == nil {
		return
	}
	m.pollCycles.WithLabelValues(outcome).Inc()
	m.pollUpdates.Add(float64(updates))
	m.pollDuration.Observe(duration.Seconds())
}

// RecordParseError counts a polled result payload that failed to parse.
func (m *Metrics) RecordParseError() {
	if m == nil || m.parseErrors == nil {
		return
	}
	m.parseErrors.Inc()
}

// Gather returns the current metric families. It returns nil when
// collection is disabled.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	if m == nil || m.registry == nil {
		return nil, nil
	}
	return m.registry.Gather()
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is cancelled. It returns
// immediately when collection or the endpoint is disabled.
func (m *Metrics) Serve(ctx context.Context) error {
	if m == nil || m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
