package canvas

// DefaultHistoryCapacity is the number of snapshots History keeps when no
// capacity is given.
const DefaultHistoryCapacity = 50

// Snapshot is an immutable copy of a document's nodes and edges.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: append([]Edge(nil), s.Edges...),
	}
	for i, n := range s.Nodes {
		c.Nodes[i] = n.Clone()
	}
	if c.Edges == nil {
		c.Edges = []Edge{}
	}
	return c
}

// History is a bounded undo/redo stack of snapshots. Snapshots are copied
// on the way in and on the way out so callers can never alias stored state.
type History struct {
	states   []Snapshot
	current  int
	capacity int
	applying bool
}

// NewHistory creates a history keeping at most capacity snapshots.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		states:   make([]Snapshot, 0, capacity),
		current:  -1,
		capacity: capacity,
	}
}

// Commit records s as the newest state. Anything beyond the current
// position is discarded first; the oldest snapshot is dropped when the
// stack is full. Commit does nothing while a restore is being applied.
func (h *History) Commit(s Snapshot) bool {
	if h.applying {
		return false
	}
	if h.current < len(h.states)-1 {
		h.states = h.states[:h.current+1]
	}
	h.states = append(h.states, s.Clone())
	if len(h.states) > h.capacity {
		h.states = append(h.states[:0], h.states[1:]...)
	} else {
		h.current++
	}
	return true
}

// CanUndo reports whether Undo would move.
func (h *History) CanUndo() bool {
	return h.current > 0
}

// CanRedo reports whether Redo would move.
func (h *History) CanRedo() bool {
	return h.current < len(h.states)-1
}

// Undo steps back and returns the snapshot at the new position.
func (h *History) Undo() (Snapshot, bool) {
	if !h.CanUndo() {
		return Snapshot{}, false
	}
	h.current--
	return h.states[h.current].Clone(), true
}

// Redo steps forward and returns the snapshot at the new position.
func (h *History) Redo() (Snapshot, bool) {
	if !h.CanRedo() {
		return Snapshot{}, false
	}
	h.current++
	return h.states[h.current].Clone(), true
}

// Current returns the snapshot at the current position.
func (h *History) Current() (Snapshot, bool) {
	if h.current < 0 {
		return Snapshot{}, false
	}
	return h.states[h.current].Clone(), true
}

// Apply runs fn with commits suppressed, so restoring a snapshot cannot
// re-enter the stack as a new entry.
func (h *History) Apply(fn func()) {
	prev := h.applying
	h.applying = true
	defer func() { h.applying = prev }()
	fn()
}

// Applying reports whether a restore is in progress.
func (h *History) Applying() bool {
	return h.applying
}

// Len returns the number of retained snapshots.
func (h *History) Len() int {
	return len(h.states)
}

// Position returns the zero-based index of the current snapshot, -1 when
// empty.
func (h *History) Position() int {
	return h.current
}

// Capacity returns the maximum number of retained snapshots.
func (h *History) Capacity() int {
	return h.capacity
}

// Clear drops every snapshot.
func (h *History) Clear() {
	h.states = h.states[:0]
	h.current = -1
}
