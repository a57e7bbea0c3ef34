package server

import (
	"github.com/antigravity-labs/reflex-engine/internal/eventbus"
	"github.com/antigravity-labs/reflex-engine/internal/models"
)

// subscription wraps an eventbus.Subscription with a non-blocking drain, used
// by handleTickIngest to observe the events a single IngestTick call produced.
type subscription struct {
	bus *eventbus.Bus
	sub *eventbus.Subscription
}

func newSubscription(bus *eventbus.Bus) *subscription {
	return &subscription{bus: bus, sub: bus.Subscribe()}
}

// drain returns every event currently buffered without blocking.
func (s *subscription) drain() []models.Event {
	var events []models.Event
	for {
		select {
		case event, ok := <-s.sub.Events:
			if !ok {
				return events
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

func (s *subscription) close() {
	s.bus.Unsubscribe(s.sub)
}
