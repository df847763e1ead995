package permission

import "strings"

// ResourceType is a permission-checkable entity kind.
type ResourceType string

const (
	ResourceWorkspace ResourceType = "workspace"
	ResourceBoard     ResourceType = "board"
	ResourceItem      ResourceType = "item"
	ResourceColumn    ResourceType = "column"
	// ResourceCell is accepted by the type but never resolved at this layer;
	// cell permission derives from column checks.
	ResourceCell ResourceType = "cell"
)

// AllResourceTypes returns every resource type in hierarchy order.
func AllResourceTypes() []ResourceType {
	return []ResourceType{
		ResourceWorkspace,
		ResourceBoard,
		ResourceItem,
		ResourceColumn,
		ResourceCell,
	}
}

func (t ResourceType) Valid() bool {
	switch t {
	case ResourceWorkspace, ResourceBoard, ResourceItem, ResourceColumn, ResourceCell:
		return true
	}
	return false
}

// Supported reports whether permissions for t are resolved by this layer.
func (t ResourceType) Supported() bool {
	return t.Valid() && t != ResourceCell
}

// ParseResourceType normalizes and validates a resource type string.
func ParseResourceType(s string) (ResourceType, error) {
	t := ResourceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidResourceType
	}
	return t, nil
}

// Action is an operation a user may perform on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

func AllActions() []Action {
	return []Action{ActionRead, ActionWrite, ActionDelete, ActionManage}
}

func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionWrite, ActionDelete, ActionManage:
		return true
	}
	return false
}

func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", ErrInvalidAction
	}
	return a, nil
}

// Query identifies a single permission check. An empty ResourceID stands for
// a resource that is not known yet and always resolves to a denial.
type Query struct {
	Resource   ResourceType
	ResourceID string
	Action     Action
}

// Set holds the four action flags for one resource.
type Set struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
	Manage bool `json:"manage"`
}

// Allows reports whether the set grants action.
func (s Set) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return s.Read
	case ActionWrite:
		return s.Write
	case ActionDelete:
		return s.Delete
	case ActionManage:
		return s.Manage
	}
	return false
}

// Result is the client-side view of a permission lookup. The flags only mean
// something when Loading is false and Err is nil.
type Result struct {
	Set
	Loading bool
	Err     error
}

// Allows applies the fail-closed policy: loading or failed results deny everything.
func (r Result) Allows(action Action) bool {
	if r.Loading || r.Err != nil {
		return false
	}
	return r.Set.Allows(action)
}

// Denied returns the all-false result recorded for a failed lookup.
func Denied(err error) Result {
	return Result{Err: err}
}

// Role is a user's standing on a resource. Roles are inherited down the
// workspace > board > item hierarchy unless overridden by an explicit grant.
type Role string

const (
	RoleOwner    Role = "owner"    // full control, including sharing
	RoleManager  Role = "manager"  // can edit and remove content
	RoleEmployee Role = "employee" // can edit content
	RoleViewer   Role = "viewer"   // read only
	RolePending  Role = "pending"  // still in onboarding
)

// RoleActions maps roles to the actions they grant.
var RoleActions = map[Role]Set{
	RoleOwner:    {Read: true, Write: true, Delete: true, Manage: true},
	RoleManager:  {Read: true, Write: true, Delete: true},
	RoleEmployee: {Read: true, Write: true},
	RoleViewer:   {Read: true},
	RolePending:  {},
}

// SetForRole returns the permission set of role; unknown roles get nothing.
func SetForRole(role Role) Set {
	return RoleActions[role]
}

// Grant is an explicit role assignment on a single resource.
type Grant struct {
	UserID       string
	ResourceType ResourceType
	ResourceID   string
	Role         Role
}

// Column is a board column as seen by the visibility checks.
type Column struct {
	ID         string `json:"id"`
	BoardID    string `json:"board_id"`
	Title      string `json:"title"`
	Restricted bool   `json:"restricted"`
	Position   int    `json:"position"`
}
