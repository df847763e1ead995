package conflict

import (
	"context"

	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
)

// Service is the server side of the collaboration channel.
type Service interface {
	// Detect stores a conflict and publishes it to the incoming user's stream.
	Detect(ctx context.Context, record Record) (Record, error)
	Resolve(ctx context.Context, userID string, cmd Command) error
	ListOpen(ctx context.Context, userID string) ([]Record, error)
	Subscribe(ctx context.Context, userID string) (chan sse.Event, func())
	PurgeExpired(ctx context.Context) error
}
