package notice

import (
	"testing"

	"github.com/cmlabs-hris/hris-sync/internal/domain/notification"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Notify(t *testing.T) {
	hub := sse.NewHub()
	ch, cleanup := hub.Subscribe("ui")
	defer cleanup()

	p := NewPublisher(hub, "ui", nil)
	p.Notify(notification.Notification{
		Type:    notification.TypeSyncSucceeded,
		Level:   notification.LevelSuccess,
		Title:   "Changes synced",
		Message: "2 changes were saved",
	})

	select {
	case ev := <-ch:
		assert.Equal(t, EventNotice, ev.Event)
		n, ok := ev.Data.(notification.Notification)
		require.True(t, ok)
		assert.NotEmpty(t, n.ID)
		assert.False(t, n.CreatedAt.IsZero())
		assert.Equal(t, "Changes synced", n.Title)
	default:
		t.Fatal("expected a notice event")
	}
}
