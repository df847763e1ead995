package permission

import "context"

// Repository reads grants and the resource hierarchy.
type Repository interface {
	// GetGrant returns the explicit role of userID on the resource, or
	// ErrResourceNotFound when there is none.
	GetGrant(ctx context.Context, userID string, resourceType ResourceType, resourceID string) (Role, error)
	// GetParent returns the parent of a resource. Workspaces have no parent
	// and return ok=false.
	GetParent(ctx context.Context, resourceType ResourceType, resourceID string) (parentType ResourceType, parentID string, ok bool, err error)
	ListBoardColumns(ctx context.Context, boardID string) ([]Column, error)
	GetColumn(ctx context.Context, columnID string) (Column, error)
	UpsertGrant(ctx context.Context, grant Grant) error
}
