// Package telemetry provides the observability stack shared by editing
// sessions, the status refresher and the canvasctl CLI.
//
// It combines structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and an in-process event publisher behind a single
// Telemetry value:
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// # Logging
//
// Loggers are scoped per component and enriched with canvas fields:
//
//	log := tel.Logger.NewComponentLogger("session").WithNodeID("n1")
//	log.Debug("title renamed")
//
// Levels are trace, debug, info, warn and error. Output is console or json.
//
// # Tracing
//
// Spans cover status refresh cycles and script replays. The exporter is
// otlp (gRPC), stdout or none. A disabled tracer hands out non-recording
// spans, so callers never need to check.
//
// # Metrics
//
// Metrics live in a private registry and are exposed by Metrics.Serve when
// a listen address is configured. Every Record method is a no-op on a
// disabled collector.
//
// # Events
//
// Every applied session command publishes an Event. Delivery is synchronous
// by default; asynchronous delivery uses a bounded buffer and reports
// ErrBufferFull instead of blocking.
package telemetry
