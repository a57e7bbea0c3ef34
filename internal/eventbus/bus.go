// Package eventbus fans reflex-engine events out to subscribers (the HTTP/WS
// server's monitor connections, its event-history ring, and the tick-ingest
// handler's per-request subscription) from a single writer — the
// engine — under drop-oldest backpressure, generalized from a websocket
// broadcaster that dropped the newest message on a full client queue instead.
// Here a slow subscriber must never make the engine block, and dropping the
// newest event would hide the most recent state; dropping the oldest buffered
// event preserves recency at the cost of history.
package eventbus

import (
	"sync"

	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultSubscriberBuffer bounds each subscriber's pending-event queue.
const DefaultSubscriberBuffer = 64

// Subscription is a live handle to a subscriber's event channel.
type Subscription struct {
	id     uint64
	Events <-chan models.Event
}

// Bus is a single-writer, multi-reader event broadcaster.
type Bus struct {
	log  *logrus.Entry
	mu   sync.Mutex
	subs map[uint64]chan models.Event
	next uint64
}

// New creates an empty Bus.
func New(log *logrus.Entry) *Bus {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Bus{log: log, subs: make(map[uint64]chan models.Event)}
}

// Subscribe registers a new subscriber and returns its handle. Callers should
// range over Events until Unsubscribe is called.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan models.Event, DefaultSubscriberBuffer)
	b.subs[id] = ch
	return &Subscription{id: id, Events: ch}
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(ch)
	}
}

// Publish fans event out to every current subscriber. A subscriber whose queue
// is full has its oldest buffered event dropped to make room — Publish never
// blocks the caller (the reflex engine).
func (b *Bus) Publish(event models.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
				b.log.WithField("subscriber", id).Warn("eventbus: subscriber still full after drop, skipping event")
			}
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
