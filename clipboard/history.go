// Package clipboard maintains the in-memory clipboard history and the
// background monitor that feeds it.
package clipboard

import (
	"sync"
	"time"
)

// Snapshot is a single observed clipboard value. Snapshots are immutable;
// identity for deduplication is exact content equality.
type Snapshot struct {
	Content    string    `json:"content"`
	CapturedAt time.Time `json:"captured_at"`
}

// History is a bounded, deduplicated, most-recent-first sequence of
// clipboard snapshots. All methods are safe for concurrent use; each
// operation is atomic relative to the others.
type History struct {
	mu       sync.Mutex
	capacity int
	items    []Snapshot
}

// NewHistory creates a history holding at most capacity snapshots.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		capacity: capacity,
		items:    make([]Snapshot, 0, capacity),
	}
}

// Observe applies the move-to-front rule for content and reports whether
// the history changed. Content equal to the current head is a no-op.
// Content matching a non-head entry is moved to the front. New content is
// inserted at the front, evicting the oldest entry when over capacity.
func (h *History) Observe(content string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) > 0 && h.items[0].Content == content {
		return false
	}

	// Remove an existing occurrence so the fresh copy lands at the front.
	for i, s := range h.items {
		if s.Content == content {
			h.items = append(h.items[:i], h.items[i+1:]...)
			break
		}
	}

	h.items = append([]Snapshot{{Content: content, CapturedAt: time.Now()}}, h.items...)
	if len(h.items) > h.capacity {
		h.items = h.items[:h.capacity]
	}

	return true
}

// List returns a copy of the history, most recent first.
func (h *History) List() []Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Snapshot, len(h.items))
	copy(out, h.items)
	return out
}

// At returns the snapshot at the given position (0 is most recent).
func (h *History) At(index int) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if index < 0 || index >= len(h.items) {
		return Snapshot{}, false
	}
	return h.items[index], true
}

// Head returns the most recent snapshot.
func (h *History) Head() (Snapshot, bool) {
	return h.At(0)
}

// Len returns the number of stored snapshots.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.items)
}

// Clear empties the history and reports whether anything was removed.
// Idempotent.
func (h *History) Clear() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return false
	}
	h.items = h.items[:0]
	return true
}
