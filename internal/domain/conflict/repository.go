package conflict

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, record Record) error
	GetByID(ctx context.Context, id string) (Record, Status, error)
	// MarkResolved fails with ErrAlreadyResolved if the conflict is not open.
	MarkResolved(ctx context.Context, id string, resolution Resolution, resolvedAt time.Time) error
	ListOpenByUser(ctx context.Context, userID string) ([]Record, error)
	DeleteOpenBefore(ctx context.Context, before time.Time) ([]Record, error)
}
