package cell

import "context"

type Repository interface {
	// Get returns ErrCellNotFound for a cell that was never written.
	Get(ctx context.Context, itemID, columnID string) (Cell, error)
	// CompareAndSwap writes edit only if the stored version still equals
	// edit.BaseVersion (0 for a cell that does not exist yet). It returns the
	// stored cell and whether the write happened.
	CompareAndSwap(ctx context.Context, edit Edit) (Cell, bool, error)
	// Overwrite writes value regardless of the stored version.
	Overwrite(ctx context.Context, edit Edit) (Cell, error)
	// GetItemBoard returns the board an item belongs to.
	GetItemBoard(ctx context.Context, itemID string) (string, error)
}
