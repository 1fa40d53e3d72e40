package workflow

import (
	"sync"

	"github.com/start-berlin/cockpit/pkg/events"
)

// waiter is one suspended WaitForEvent call. The owning run blocks on ch
// until a correlated event arrives or its deadline elapses.
type waiter struct {
	id        string
	eventType events.EventType
	match     func(data map[string]any) bool
	ch        chan map[string]any
}

// waiterRegistry correlates inbound events with suspended runs.
type waiterRegistry struct {
	mu      sync.Mutex
	waiters map[string]*waiter
}

func newWaiterRegistry() *waiterRegistry {
	return &waiterRegistry{waiters: make(map[string]*waiter)}
}

func (wr *waiterRegistry) add(w *waiter) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	wr.waiters[w.id] = w
}

func (wr *waiterRegistry) remove(id string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	delete(wr.waiters, id)
}

// notify resumes every waiter whose type and predicate match the event.
// Matched waiters are removed before delivery so a second event cannot
// resume the same call twice.
func (wr *waiterRegistry) notify(event events.Event) {
	data := events.Data(event)

	wr.mu.Lock()

	matched := make([]*waiter, 0, 1)

	for id, w := range wr.waiters {
		if w.eventType != event.GetType() {
			continue
		}

		if w.match != nil && !w.match(data) {
			continue
		}

		matched = append(matched, w)
		delete(wr.waiters, id)
	}

	wr.mu.Unlock()

	for _, w := range matched {
		w.ch <- data
	}
}

func (wr *waiterRegistry) size() int {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return len(wr.waiters)
}
