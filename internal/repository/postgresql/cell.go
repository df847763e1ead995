package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-sync/internal/domain/cell"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type cellRepository struct {
	db *database.DB
}

func NewCellRepository(db *database.DB) cell.Repository {
	return &cellRepository{db: db}
}

const cellColumns = `item_id, column_id, value, version, updated_by, updated_by_name, updated_at`

func scanCell(row pgx.Row) (cell.Cell, error) {
	var c cell.Cell
	var value []byte
	err := row.Scan(&c.ItemID, &c.ColumnID, &value, &c.Version, &c.UpdatedBy, &c.UpdatedByName, &c.UpdatedAt)
	if err != nil {
		return cell.Cell{}, err
	}
	c.Value = value
	return c, nil
}

// Get implements cell.Repository.
func (r *cellRepository) Get(ctx context.Context, itemID, columnID string) (cell.Cell, error) {
	q := GetQuerier(ctx, r.db)
	query := `SELECT ` + cellColumns + ` FROM cells WHERE item_id = $1 AND column_id = $2`

	c, err := scanCell(q.QueryRow(ctx, query, itemID, columnID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cell.Cell{}, cell.ErrCellNotFound
		}
		return cell.Cell{}, fmt.Errorf("failed to get cell: %w", err)
	}
	return c, nil
}

// CompareAndSwap implements cell.Repository.
func (r *cellRepository) CompareAndSwap(ctx context.Context, edit cell.Edit) (cell.Cell, bool, error) {
	q := GetQuerier(ctx, r.db)

	var query string
	args := []interface{}{edit.ItemID, edit.ColumnID, []byte(edit.Value), edit.UserID, edit.UserName}
	if edit.BaseVersion == 0 {
		query = `
			INSERT INTO cells (item_id, column_id, value, version, updated_by, updated_by_name, updated_at)
			VALUES ($1, $2, $3, 1, $4, $5, NOW())
			ON CONFLICT (item_id, column_id) DO NOTHING
			RETURNING ` + cellColumns
	} else {
		query = `
			UPDATE cells
			SET value = $3, version = version + 1, updated_by = $4, updated_by_name = $5, updated_at = NOW()
			WHERE item_id = $1 AND column_id = $2 AND version = $6
			RETURNING ` + cellColumns
		args = append(args, edit.BaseVersion)
	}

	c, err := scanCell(q.QueryRow(ctx, query, args...))
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return cell.Cell{}, false, fmt.Errorf("failed to write cell: %w", err)
	}

	// Lost the race: report what is stored now.
	current, err := r.Get(ctx, edit.ItemID, edit.ColumnID)
	if err != nil {
		return cell.Cell{}, false, err
	}
	return current, false, nil
}

// Overwrite implements cell.Repository.
func (r *cellRepository) Overwrite(ctx context.Context, edit cell.Edit) (cell.Cell, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		INSERT INTO cells (item_id, column_id, value, version, updated_by, updated_by_name, updated_at)
		VALUES ($1, $2, $3, 1, $4, $5, NOW())
		ON CONFLICT (item_id, column_id)
		DO UPDATE SET value = EXCLUDED.value,
			version = cells.version + 1,
			updated_by = EXCLUDED.updated_by,
			updated_by_name = EXCLUDED.updated_by_name,
			updated_at = NOW()
		RETURNING ` + cellColumns

	c, err := scanCell(q.QueryRow(ctx, query, edit.ItemID, edit.ColumnID, []byte(edit.Value), edit.UserID, edit.UserName))
	if err != nil {
		return cell.Cell{}, fmt.Errorf("failed to overwrite cell: %w", err)
	}
	return c, nil
}

// GetItemBoard implements cell.Repository.
func (r *cellRepository) GetItemBoard(ctx context.Context, itemID string) (string, error) {
	q := GetQuerier(ctx, r.db)
	var boardID string
	err := q.QueryRow(ctx, `SELECT board_id FROM items WHERE id = $1`, itemID).Scan(&boardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", cell.ErrItemNotFound
		}
		return "", fmt.Errorf("failed to get item board: %w", err)
	}
	return boardID, nil
}
