package sse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesOnlyKeySubscribers(t *testing.T) {
	hub := NewHub()

	alice, cleanupAlice := hub.Subscribe("alice")
	defer cleanupAlice()
	bob, cleanupBob := hub.Subscribe("bob")
	defer cleanupBob()

	hub.Publish("alice", Event{Event: "conflict", Data: "c-1"})

	select {
	case ev := <-alice:
		assert.Equal(t, "alice", ev.Key)
		assert.Equal(t, "conflict", ev.Event)
		assert.Equal(t, "c-1", ev.Data)
	default:
		t.Fatal("expected event for alice")
	}

	select {
	case ev := <-bob:
		t.Fatalf("unexpected event for bob: %+v", ev)
	default:
	}
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	ch, cleanup := hub.Subscribe("ui")
	defer cleanup()

	for i := 0; i < hub.bufSize+5; i++ {
		hub.Publish("ui", Event{Event: "badge", Data: i})
	}
	assert.Len(t, ch, hub.bufSize)
}

func TestHub_CleanupIsIdempotent(t *testing.T) {
	hub := NewHub()
	_, cleanup := hub.Subscribe("ui")
	_, cleanup2 := hub.Subscribe("ui")
	require.Equal(t, 2, hub.SubscriberCount("ui"))

	cleanup()
	cleanup()
	assert.Equal(t, 1, hub.SubscriberCount("ui"))

	cleanup2()
	assert.Equal(t, 0, hub.SubscriberCount("ui"))
	assert.Equal(t, 0, hub.TotalSubscribers())
}

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEvent(&buf, "badge", map[string]int{"count": 3}))
	assert.Equal(t, "event: badge\ndata: {\"count\":3}\n\n", buf.String())
}
