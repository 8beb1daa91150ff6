// Package flow defines the value types shared by the canvas, the node data
// store and the node registry: node kinds, positions, schemas, configuration
// payloads and run status.
//
// Config is a tagged union keyed by Kind. The fields every editor feature
// reads (title and schemas) and the kind-specific shapes it edits (router
// routes, LLM settings) are typed, and every other key is carried in an
// extension map so definitions written by newer node types survive a round
// trip. Per-kind normalization (for example "input nodes always expose an
// output schema") lives in a single hook table applied through ApplyHook.
package flow
