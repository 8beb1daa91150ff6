// Package nodedata stores per-node configuration, schemas and run state,
// keyed by node id and independent of graph topology.
//
// Entries are created lazily by the first write. Update merges config one
// key deep: a patched key replaces the stored value as a whole. Run data and
// task status are execution telemetry and are not part of undo history.
//
// The store also keeps the ordered list of ad-hoc test inputs used for
// manual test runs.
package nodedata
