package offline

import "errors"

var (
	ErrEmptyBatch     = errors.New("sync batch is empty")
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrOffline        = errors.New("client is offline")
)
