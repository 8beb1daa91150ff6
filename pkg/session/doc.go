// Package session exposes the command surface of one workflow editing
// session.
//
// A Session combines the graph store (canvas.Canvas), the node data store
// (nodedata.Store) and a node factory, and keeps the two stores consistent:
// title and schema-field renames are applied to both, router route edits
// regenerate the router's output schema in both and remap the router's
// outgoing edges, and history travel re-mirrors restored node configs into
// the node data store.
//
// Every command is logged, counted and published as a telemetry event.
// Commands that target missing nodes or edges return a referential
// canvas.Error and leave state unchanged; callers may ignore those.
//
// Scripts replay YAML command lists against a session, which is how the
// canvasctl CLI drives an editor without a UI.
package session
