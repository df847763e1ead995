package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type conflictRepository struct {
	db *database.DB
}

// NewConflictRepository creates a new conflict repository
func NewConflictRepository(db *database.DB) conflict.Repository {
	return &conflictRepository{db: db}
}

const conflictColumns = `id, item_id, column_id, current_value, incoming_value, current_version,
	current_user_id, incoming_user_id, current_user_name, incoming_user_name, detected_at`

func scanConflict(row pgx.Row, extra ...interface{}) (conflict.Record, error) {
	var rec conflict.Record
	var current, incoming []byte
	dest := []interface{}{
		&rec.ID, &rec.ItemID, &rec.ColumnID, &current, &incoming, &rec.CurrentVersion,
		&rec.CurrentUserID, &rec.IncomingUserID, &rec.CurrentUserName, &rec.IncomingUserName, &rec.DetectedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return conflict.Record{}, err
	}
	rec.CurrentValue = current
	rec.IncomingValue = incoming
	return rec, nil
}

// Create stores a new open conflict
func (r *conflictRepository) Create(ctx context.Context, rec conflict.Record) error {
	q := GetQuerier(ctx, r.db)

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `
		INSERT INTO cell_conflicts (` + conflictColumns + `, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.Exec(ctx, query,
		rec.ID,
		rec.ItemID,
		rec.ColumnID,
		[]byte(rec.CurrentValue),
		[]byte(rec.IncomingValue),
		rec.CurrentVersion,
		rec.CurrentUserID,
		rec.IncomingUserID,
		rec.CurrentUserName,
		rec.IncomingUserName,
		rec.DetectedAt,
		string(conflict.StatusOpen),
	)
	if err != nil {
		return fmt.Errorf("failed to create conflict: %w", err)
	}
	return nil
}

// GetByID retrieves a conflict and its status
func (r *conflictRepository) GetByID(ctx context.Context, id string) (conflict.Record, conflict.Status, error) {
	q := GetQuerier(ctx, r.db)
	query := `SELECT ` + conflictColumns + `, status FROM cell_conflicts WHERE id = $1`

	var status string
	rec, err := scanConflict(q.QueryRow(ctx, query, id), &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return conflict.Record{}, "", conflict.ErrConflictNotFound
		}
		return conflict.Record{}, "", fmt.Errorf("failed to get conflict: %w", err)
	}
	return rec, conflict.Status(status), nil
}

// MarkResolved closes an open conflict
func (r *conflictRepository) MarkResolved(ctx context.Context, id string, resolution conflict.Resolution, resolvedAt time.Time) error {
	q := GetQuerier(ctx, r.db)
	query := `
		UPDATE cell_conflicts
		SET status = $2, resolution = $3, resolved_at = $4
		WHERE id = $1 AND status = $5
	`
	tag, err := q.Exec(ctx, query, id, string(conflict.StatusResolved), string(resolution), resolvedAt, string(conflict.StatusOpen))
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conflict.ErrAlreadyResolved
	}
	return nil
}

// ListOpenByUser lists conflicts waiting for the incoming user's decision
func (r *conflictRepository) ListOpenByUser(ctx context.Context, userID string) ([]conflict.Record, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT ` + conflictColumns + `
		FROM cell_conflicts
		WHERE incoming_user_id = $1 AND status = $2
		ORDER BY detected_at ASC
	`
	rows, err := q.Query(ctx, query, userID, string(conflict.StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	records := make([]conflict.Record, 0)
	for rows.Next() {
		rec, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOpenBefore purges conflicts nobody resolved in time and returns them
func (r *conflictRepository) DeleteOpenBefore(ctx context.Context, before time.Time) ([]conflict.Record, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		DELETE FROM cell_conflicts
		WHERE status = $1 AND detected_at < $2
		RETURNING ` + conflictColumns

	rows, err := q.Query(ctx, query, string(conflict.StatusOpen), before)
	if err != nil {
		return nil, fmt.Errorf("failed to purge conflicts: %w", err)
	}
	defer rows.Close()

	purged := make([]conflict.Record, 0)
	for rows.Next() {
		rec, err := scanConflict(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purged conflict: %w", err)
		}
		purged = append(purged, rec)
	}
	return purged, rows.Err()
}
