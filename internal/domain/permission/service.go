package permission

import "context"

// Service is the permission API consumed by the coordination layer.
type Service interface {
	GetPermissions(ctx context.Context, userID string, resourceType ResourceType, resourceID string) (Set, error)
	CheckPermission(ctx context.Context, userID string, resourceType ResourceType, resourceID string, action Action) (bool, error)
	GetVisibleColumns(ctx context.Context, userID string, boardID string, itemID *string) ([]Column, error)
	CanViewColumn(ctx context.Context, userID string, columnID string, itemID *string) (bool, error)
}
