// Package canvas implements the graph store of the workflow editor: nodes,
// edges, structural commands, handle identity and snapshot-based undo/redo.
//
// # Handles
//
// Every edge names the output slot of its source and the input slot of its
// target. A simple node has one implicit output whose handle is the node's
// label (config title, then display title, then id). Multi-output nodes such
// as routers expose one handle per output schema key. Renaming a title or a
// schema field rewrites the affected edges so that handles never dangle.
//
// # History
//
// Undoable commands record a deep copy of the graph before applying, in the
// same critical section as the mutation. A recorded command after an undo
// discards the redo stack. Non-structural deltas (drag, select, resize) and
// live title edits are not recorded; pass Recorded to opt a title rename in.
//
// # Usage Example
//
//	c := canvas.New(canvas.WithHistoryDepth(50))
//	c.Initialize(def, registry)
//	if _, err := c.Connect(canvas.Connection{Source: "in", Target: "llm"}); err != nil {
//	    if !canvas.IsReferential(err) {
//	        return err
//	    }
//	}
//	c.Undo()
package canvas
