package canvas

// DefaultHistoryDepth bounds the undo stack unless overridden.
const DefaultHistoryDepth = 100

// history holds the undo and redo stacks. The most recent entry of each
// stack is last.
type history struct {
	past     []Snapshot
	future   []Snapshot
	maxDepth int
}

// record pushes a pre-mutation snapshot and forks away the redo stack.
// The snapshot must already be a private copy.
func (h *history) record(s Snapshot) {
	h.past = append(h.past, s)
	h.future = nil
	if h.maxDepth > 0 && len(h.past) > h.maxDepth {
		// Drop the oldest entries without keeping the backing array alive.
		trimmed := make([]Snapshot, h.maxDepth)
		copy(trimmed, h.past[len(h.past)-h.maxDepth:])
		h.past = trimmed
	}
}

// undo pops the last past entry. live is pushed onto the redo stack.
func (h *history) undo(live Snapshot) (Snapshot, bool) {
	if len(h.past) == 0 {
		return Snapshot{}, false
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, live)
	return prev, true
}

// redo pops the last future entry. live is pushed onto the undo stack.
func (h *history) redo(live Snapshot) (Snapshot, bool) {
	if len(h.future) == 0 {
		return Snapshot{}, false
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, live)
	return next, true
}

func (h *history) canUndo() bool { return len(h.past) > 0 }
func (h *history) canRedo() bool { return len(h.future) > 0 }
