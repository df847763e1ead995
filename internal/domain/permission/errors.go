package permission

import "errors"

var (
	ErrInvalidResourceType = errors.New("invalid resource type")
	ErrInvalidAction       = errors.New("invalid permission action")
	ErrUnsupportedResource = errors.New("resource type is not supported for permission checks")
	ErrMissingResourceID   = errors.New("resource id is required")
	ErrResourceNotFound    = errors.New("resource not found")
	ErrForbidden           = errors.New("insufficient permissions")
)
