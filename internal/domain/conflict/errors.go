package conflict

import "errors"

var (
	ErrConflictNotFound   = errors.New("conflict not found")
	ErrAlreadyResolved    = errors.New("conflict already resolved")
	ErrInvalidResolution  = errors.New("invalid conflict resolution")
	ErrMergeValueRequired = errors.New("merge resolution requires a merged value")
	ErrNotRecipient       = errors.New("conflict belongs to another user")
	ErrDialogClosed       = errors.New("conflict dialog already closed")
)
