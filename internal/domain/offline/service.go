package offline

import "context"

// SyncService replays a batch of queued actions for a user.
type SyncService interface {
	Apply(ctx context.Context, userID, userName string, req SyncRequest) (SyncResponse, error)
}
