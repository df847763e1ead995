package cell

import "errors"

var (
	ErrCellNotFound    = errors.New("cell not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrVersionConflict = errors.New("cell was changed by another user")
)
