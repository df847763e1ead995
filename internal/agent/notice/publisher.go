package notice

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/notification"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
	"github.com/google/uuid"
)

// EventNotice is the SSE event name of a notification.
const EventNotice = "notice"

// Publisher fans notifications out to the UI stream and logs them.
type Publisher struct {
	hub    *sse.Hub
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(hub *sse.Hub, topic string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		hub:    hub,
		topic:  topic,
		logger: logger.With(slog.String("component", "notice")),
		now:    time.Now,
	}
}

// Notify stamps n and publishes it.
func (p *Publisher) Notify(n notification.Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = p.now()
	}

	level := slog.LevelInfo
	if n.Level == notification.LevelError {
		level = slog.LevelWarn
	}
	p.logger.Log(context.Background(), level, n.Title, "type", n.Type, "message", n.Message)

	p.hub.Publish(p.topic, sse.Event{
		Event: EventNotice,
		Data:  n,
	})
}
