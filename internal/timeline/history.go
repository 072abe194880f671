package timeline

// History is a linear undo/redo stack of trim selections. Pushing after an undo
// discards the redo tail.
type History struct {
	entries []Range
	index   int
}

// NewHistory creates a history whose first entry is initial
func NewHistory(initial Range) *History {
	return &History{entries: []Range{initial}}
}

// Push records a new selection. Repeating the current selection is ignored.
func (h *History) Push(r Range) {
	if h.entries[h.index] == r {
		return
	}
	h.entries = append(h.entries[:h.index+1], r)
	h.index++
}

// Undo steps back one entry
func (h *History) Undo() (Range, bool) {
	if !h.CanUndo() {
		return h.entries[h.index], false
	}
	h.index--
	return h.entries[h.index], true
}

// Redo steps forward one entry
func (h *History) Redo() (Range, bool) {
	if !h.CanRedo() {
		return h.entries[h.index], false
	}
	h.index++
	return h.entries[h.index], true
}

func (h *History) CanUndo() bool { return h.index > 0 }

func (h *History) CanRedo() bool { return h.index < len(h.entries)-1 }
