// Package stores persists editing sessions locally.
//
// The SQLite store keeps autosaved canvas drafts, keyed by workflow, and an
// audit trail of session commands fed from the telemetry event stream via
// NewAuditRecorder. Schema migrations are embedded and applied with
// golang-migrate. The database runs in WAL mode; ":memory:" is supported
// for tests and is limited to a single connection.
package stores
