package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type permissionRepository struct {
	db *database.DB
}

func NewPermissionRepository(db *database.DB) permission.Repository {
	return &permissionRepository{db: db}
}

// GetGrant implements permission.Repository.
func (r *permissionRepository) GetGrant(ctx context.Context, userID string, resourceType permission.ResourceType, resourceID string) (permission.Role, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT role
		FROM resource_grants
		WHERE user_id = $1 AND resource_type = $2 AND resource_id = $3
	`
	var role string
	err := q.QueryRow(ctx, query, userID, string(resourceType), resourceID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", permission.ErrResourceNotFound
		}
		return "", fmt.Errorf("failed to get grant: %w", err)
	}
	return permission.Role(role), nil
}

// GetParent implements permission.Repository.
func (r *permissionRepository) GetParent(ctx context.Context, resourceType permission.ResourceType, resourceID string) (permission.ResourceType, string, bool, error) {
	var (
		query      string
		parentType permission.ResourceType
	)
	switch resourceType {
	case permission.ResourceWorkspace:
		return "", "", false, nil
	case permission.ResourceBoard:
		query = `SELECT workspace_id FROM boards WHERE id = $1`
		parentType = permission.ResourceWorkspace
	case permission.ResourceItem:
		query = `SELECT board_id FROM items WHERE id = $1`
		parentType = permission.ResourceBoard
	case permission.ResourceColumn:
		query = `SELECT board_id FROM board_columns WHERE id = $1`
		parentType = permission.ResourceBoard
	default:
		return "", "", false, permission.ErrUnsupportedResource
	}

	q := GetQuerier(ctx, r.db)
	var parentID string
	if err := q.QueryRow(ctx, query, resourceID).Scan(&parentID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", false, permission.ErrResourceNotFound
		}
		return "", "", false, fmt.Errorf("failed to get parent of %s %s: %w", resourceType, resourceID, err)
	}
	return parentType, parentID, true, nil
}

// ListBoardColumns implements permission.Repository.
func (r *permissionRepository) ListBoardColumns(ctx context.Context, boardID string) ([]permission.Column, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT id, board_id, title, restricted, position
		FROM board_columns
		WHERE board_id = $1
		ORDER BY position ASC, id ASC
	`
	rows, err := q.Query(ctx, query, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list board columns: %w", err)
	}
	defer rows.Close()

	columns := make([]permission.Column, 0)
	for rows.Next() {
		var c permission.Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Title, &c.Restricted, &c.Position); err != nil {
			return nil, fmt.Errorf("failed to scan board column: %w", err)
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

// GetColumn implements permission.Repository.
func (r *permissionRepository) GetColumn(ctx context.Context, columnID string) (permission.Column, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT id, board_id, title, restricted, position
		FROM board_columns
		WHERE id = $1
	`
	var c permission.Column
	err := q.QueryRow(ctx, query, columnID).Scan(&c.ID, &c.BoardID, &c.Title, &c.Restricted, &c.Position)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return permission.Column{}, permission.ErrResourceNotFound
		}
		return permission.Column{}, fmt.Errorf("failed to get column: %w", err)
	}
	return c, nil
}

// UpsertGrant implements permission.Repository.
func (r *permissionRepository) UpsertGrant(ctx context.Context, grant permission.Grant) error {
	q := GetQuerier(ctx, r.db)
	query := `
		INSERT INTO resource_grants (user_id, resource_type, resource_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, resource_type, resource_id)
		DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()
	`
	_, err := q.Exec(ctx, query, grant.UserID, string(grant.ResourceType), grant.ResourceID, string(grant.Role))
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	return nil
}
