// Package dedup suppresses repeated delivery of the same inbound event.
// Slack may redeliver an event when the acknowledgment is slow or lost.
package dedup

import (
	"strings"
	"sync"
)

const DefaultCapacity = 10

// Window is a fixed-capacity ordered set of recently seen event ids.
// Inserting one id past capacity evicts the oldest. Safe for concurrent use.
type Window struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]bool
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		seen:     make(map[string]bool, capacity),
	}
}

// IsDuplicate reports whether eventID was already seen, recording it when
// new. An empty id is treated as always unique and never recorded.
func (w *Window) IsDuplicate(eventID string) bool {
	if w == nil {
		return false
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.seen[eventID] {
		return true
	}
	if len(w.order) >= w.capacity {
		oldest := w.order[0]
		w.order = w.order[1:]
		delete(w.seen, oldest)
	}
	w.order = append(w.order, eventID)
	w.seen[eventID] = true
	return false
}

// Len returns the number of ids currently tracked.
func (w *Window) Len() int {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.order)
}
