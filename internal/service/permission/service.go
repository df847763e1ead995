package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
)

// maxDepth bounds parent walks; the hierarchy is at most column > board > workspace.
const maxDepth = 4

type service struct {
	repo permission.Repository
}

// NewPermissionService creates the permission API backed by grants and the
// workspace hierarchy.
func NewPermissionService(repo permission.Repository) permission.Service {
	return &service{repo: repo}
}

// GetPermissions implements permission.Service.
func (s *service) GetPermissions(ctx context.Context, userID string, resourceType permission.ResourceType, resourceID string) (permission.Set, error) {
	if err := checkResource(resourceType, resourceID); err != nil {
		return permission.Set{}, err
	}

	role, err := s.effectiveRole(ctx, userID, resourceType, resourceID)
	if err != nil {
		return permission.Set{}, err
	}
	return permission.SetForRole(role), nil
}

// CheckPermission implements permission.Service.
func (s *service) CheckPermission(ctx context.Context, userID string, resourceType permission.ResourceType, resourceID string, action permission.Action) (bool, error) {
	if !action.Valid() {
		return false, permission.ErrInvalidAction
	}
	set, err := s.GetPermissions(ctx, userID, resourceType, resourceID)
	if err != nil {
		return false, err
	}
	return set.Allows(action), nil
}

// GetVisibleColumns implements permission.Service.
func (s *service) GetVisibleColumns(ctx context.Context, userID string, boardID string, itemID *string) ([]permission.Column, error) {
	if boardID == "" {
		return nil, permission.ErrMissingResourceID
	}

	boardSet, err := s.GetPermissions(ctx, userID, permission.ResourceBoard, boardID)
	if err != nil {
		return nil, err
	}
	if itemID != nil {
		itemSet, err := s.GetPermissions(ctx, userID, permission.ResourceItem, *itemID)
		if err != nil {
			return nil, err
		}
		if !itemSet.Read {
			return []permission.Column{}, nil
		}
	}

	columns, err := s.repo.ListBoardColumns(ctx, boardID)
	if err != nil {
		return nil, err
	}

	visible := make([]permission.Column, 0, len(columns))
	for _, c := range columns {
		ok, err := s.columnVisible(ctx, userID, c, boardSet)
		if err != nil {
			return nil, err
		}
		if ok {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// CanViewColumn implements permission.Service.
func (s *service) CanViewColumn(ctx context.Context, userID string, columnID string, itemID *string) (bool, error) {
	if columnID == "" {
		return false, permission.ErrMissingResourceID
	}

	column, err := s.repo.GetColumn(ctx, columnID)
	if err != nil {
		return false, err
	}
	if itemID != nil {
		itemSet, err := s.GetPermissions(ctx, userID, permission.ResourceItem, *itemID)
		if err != nil {
			return false, err
		}
		if !itemSet.Read {
			return false, nil
		}
	}

	boardSet, err := s.GetPermissions(ctx, userID, permission.ResourceBoard, column.BoardID)
	if err != nil {
		return false, err
	}
	return s.columnVisible(ctx, userID, column, boardSet)
}

// columnVisible: open columns follow board read access; restricted columns
// need an explicit readable grant on the column or manage on the board.
func (s *service) columnVisible(ctx context.Context, userID string, c permission.Column, boardSet permission.Set) (bool, error) {
	if !c.Restricted {
		return boardSet.Read, nil
	}
	if boardSet.Manage {
		return true, nil
	}

	role, err := s.repo.GetGrant(ctx, userID, permission.ResourceColumn, c.ID)
	if errors.Is(err, permission.ErrResourceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return permission.SetForRole(role).Read, nil
}

// effectiveRole walks up the hierarchy until it finds an explicit grant.
// A user without any grant on the path gets RolePending (no access).
func (s *service) effectiveRole(ctx context.Context, userID string, resourceType permission.ResourceType, resourceID string) (permission.Role, error) {
	curType, curID := resourceType, resourceID

	for depth := 0; depth < maxDepth; depth++ {
		role, err := s.repo.GetGrant(ctx, userID, curType, curID)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, permission.ErrResourceNotFound) {
			return "", fmt.Errorf("resolve grant on %s %s: %w", curType, curID, err)
		}

		parentType, parentID, ok, err := s.repo.GetParent(ctx, curType, curID)
		if err != nil {
			return "", err
		}
		if !ok {
			return permission.RolePending, nil
		}
		curType, curID = parentType, parentID
	}
	return permission.RolePending, nil
}

func checkResource(resourceType permission.ResourceType, resourceID string) error {
	if !resourceType.Valid() {
		return permission.ErrInvalidResourceType
	}
	if !resourceType.Supported() {
		return permission.ErrUnsupportedResource
	}
	if resourceID == "" {
		return permission.ErrMissingResourceID
	}
	return nil
}
