// Package dedupe remembers recently handled message ids so redelivered
// profile events are applied once.
package dedupe

import (
	"sync"
)

// DefaultWindow is the number of ids remembered when no size is configured.
const DefaultWindow = 4096

// Window is a bounded set of recently seen ids. When full, the oldest id is
// forgotten first. Safe for concurrent use.
type Window struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
	size int
}

// New creates a Window.
func New(opts ...Option) *Window {
	w := &Window{size: DefaultWindow}
	for _, opt := range opts {
		opt(w)
	}
	w.seen = make(map[string]struct{}, w.size)
	w.ring = make([]string, w.size)
	return w
}

// SeenAndRecord reports whether id was already in the window and records it
// if not. Empty ids are never recorded.
func (w *Window) SeenAndRecord(id string) bool {
	if id == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; ok {
		return true
	}
	if old := w.ring[w.next]; old != "" {
		delete(w.seen, old)
	}
	w.ring[w.next] = id
	w.seen[id] = struct{}{}
	w.next = (w.next + 1) % w.size
	return false
}

// Forget removes id so a later delivery is handled again.
func (w *Window) Forget(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.seen[id]; !ok {
		return
	}
	delete(w.seen, id)
	for i, v := range w.ring {
		if v == id {
			w.ring[i] = ""
			break
		}
	}
}

// Len returns the number of remembered ids.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
