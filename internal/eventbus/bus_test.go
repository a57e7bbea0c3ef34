package eventbus

import (
	"testing"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(models.Event{Type: models.EventDebug})

	select {
	case ev := <-sub.Events:
		require.Equal(t, models.EventDebug, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 0; i < DefaultSubscriberBuffer+10; i++ {
		b.Publish(models.Event{Type: models.EventDebug})
	}

	require.Len(t, sub.Events, DefaultSubscriberBuffer)
}

func TestDropOldestKeepsMostRecent(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 0; i < DefaultSubscriberBuffer; i++ {
		b.Publish(models.Event{Type: models.EventDebug, Payload: i})
	}
	b.Publish(models.Event{Type: models.EventDebug, Payload: "newest"})

	var last models.Event
	for i := 0; i < DefaultSubscriberBuffer; i++ {
		last = <-sub.Events
	}
	require.Equal(t, "newest", last.Payload)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())

	b.Publish(models.Event{Type: models.EventDebug})
	_, ok := <-sub.Events
	require.False(t, ok)
}
