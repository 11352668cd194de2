package core

// history.go keeps a bounded undo log of destructive operations.
//
// Entries are index-addressed, oldest first. Pushing past the bound drops
// the oldest entry. Undo pops the newest entry only; there is no redo.
// Peek and Discard let a caller pop the newest entry only once its undo
// has succeeded.

import (
	"sync"
	"time"
)

// DefaultHistorySize is the number of undoable operations kept.
const DefaultHistorySize = 10

// OperationKind names an undoable operation.
type OperationKind string

const (
	OpRemoveFile OperationKind = "remove-file"
)

// HistoryEntry records one operation. Payload holds whatever the undo
// needs and is not serialized.
type HistoryEntry struct {
	Kind        OperationKind `json:"kind"`
	Description string        `json:"description"`
	Timestamp   time.Time     `json:"timestamp"`
	Payload     any           `json:"-"`

	seq uint64
}

// History is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	max     int
	entries []HistoryEntry
	seq     uint64
	now     func() time.Time
}

// NewHistory creates a log holding at most max entries.
func NewHistory(max int) *History {
	if max <= 0 {
		max = DefaultHistorySize
	}
	return &History{max: max, now: time.Now}
}

// Push appends an entry and returns it.
func (h *History) Push(kind OperationKind, description string, payload any) HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	e := HistoryEntry{Kind: kind, Description: description, Timestamp: h.now(), Payload: payload, seq: h.seq}
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.max; over > 0 {
		clear(h.entries[:over])
		h.entries = h.entries[over:]
	}
	return e
}

// Undo removes and returns the newest entry.
func (h *History) Undo() (HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	if n == 0 {
		return HistoryEntry{}, ErrNothingToUndo
	}
	e := h.entries[n-1]
	h.entries[n-1] = HistoryEntry{}
	h.entries = h.entries[:n-1]
	return e, nil
}

// Peek returns the newest entry without removing it.
func (h *History) Peek() (HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	if n == 0 {
		return HistoryEntry{}, ErrNothingToUndo
	}
	return h.entries[n-1], nil
}

// Discard removes e if it is still the newest entry.
func (h *History) Discard(e HistoryEntry) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries)
	if n == 0 || h.entries[n-1].seq != e.seq {
		return false
	}
	h.entries[n-1] = HistoryEntry{}
	h.entries = h.entries[:n-1]
	return true
}

// At returns the entry at index i.
func (h *History) At(i int) (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i < 0 || i >= len(h.entries) {
		return HistoryEntry{}, false
	}
	return h.entries[i], true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Entries returns a copy of the log, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
