package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/hris-sync/internal/domain/auth"
	"github.com/cmlabs-hris/hris-sync/internal/domain/cell"
	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, auth.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, auth.ErrMissingIdentity):
		Unauthorized(w, "Token carries no user identity")

	// Permission domain errors
	case errors.Is(err, permission.ErrInvalidResourceType):
		BadRequest(w, "Invalid resource type", nil)
	case errors.Is(err, permission.ErrInvalidAction):
		BadRequest(w, "Invalid action", nil)
	case errors.Is(err, permission.ErrUnsupportedResource):
		BadRequest(w, "Permissions for this resource type are derived from column checks", nil)
	case errors.Is(err, permission.ErrMissingResourceID):
		BadRequest(w, "Resource ID is required", nil)
	case errors.Is(err, permission.ErrResourceNotFound):
		NotFound(w, "Resource not found")
	case errors.Is(err, permission.ErrForbidden):
		Forbidden(w, "Insufficient permissions")

	// Cell domain errors
	case errors.Is(err, cell.ErrCellNotFound):
		NotFound(w, "Cell not found")
	case errors.Is(err, cell.ErrItemNotFound):
		NotFound(w, "Item not found")
	case errors.Is(err, cell.ErrVersionConflict):
		Conflict(w, "Cell was changed by another user")

	// Conflict domain errors
	case errors.Is(err, conflict.ErrConflictNotFound):
		NotFound(w, "Conflict not found")
	case errors.Is(err, conflict.ErrAlreadyResolved):
		Conflict(w, "Conflict already resolved")
	case errors.Is(err, conflict.ErrInvalidResolution):
		BadRequest(w, "Invalid conflict resolution", nil)
	case errors.Is(err, conflict.ErrMergeValueRequired):
		BadRequest(w, "merged_value is required for merge", nil)
	case errors.Is(err, conflict.ErrNotRecipient):
		Forbidden(w, "Conflict belongs to another user")
	case errors.Is(err, conflict.ErrDialogClosed):
		Conflict(w, "Conflict dialog already closed")

	// Offline domain errors
	case errors.Is(err, offline.ErrEmptyBatch):
		BadRequest(w, "Sync batch is empty", nil)
	case errors.Is(err, offline.ErrSyncInProgress):
		Conflict(w, "Sync already in progress")
	case errors.Is(err, offline.ErrOffline):
		ServiceUnavailable(w, "Workspace API is unreachable")

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
