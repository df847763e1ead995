package permission

// PermissionsResponse is returned by the getPermissions endpoint.
type PermissionsResponse struct {
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   string       `json:"resource_id"`
	Set
}

// CheckResponse is returned by the checkPermission endpoint.
type CheckResponse struct {
	HasPermission bool `json:"has_permission"`
}

type VisibleColumnsResponse struct {
	BoardID string   `json:"board_id"`
	ItemID  *string  `json:"item_id,omitempty"`
	Columns []Column `json:"columns"`
}

type CanViewColumnResponse struct {
	CanView bool `json:"can_view"`
}
