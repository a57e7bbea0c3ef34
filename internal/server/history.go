package server

import (
	"sync"

	"github.com/antigravity-labs/reflex-engine/internal/models"
)

// eventRing is a bounded, in-memory ring of the most recent events, serving
// GET /v1/events/history independent of whatever persistence sink is wired in.
type eventRing struct {
	mu       sync.Mutex
	capacity int
	events   []models.Event
	next     int
	full     bool
}

func newEventRing(capacity int) *eventRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &eventRing{capacity: capacity, events: make([]models.Event, capacity)}
}

func (r *eventRing) push(e models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = e
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// all returns the buffered events in chronological order, oldest first.
func (r *eventRing) all() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		out := make([]models.Event, r.next)
		copy(out, r.events[:r.next])
		return out
	}
	out := make([]models.Event, r.capacity)
	copy(out, r.events[r.next:])
	copy(out[r.capacity-r.next:], r.events[:r.next])
	return out
}
