package http

import (
	"net/http"

	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type PermissionHandler interface {
	GetPermissions(w http.ResponseWriter, r *http.Request)
	Check(w http.ResponseWriter, r *http.Request)
	VisibleColumns(w http.ResponseWriter, r *http.Request)
	CanViewColumn(w http.ResponseWriter, r *http.Request)
}

type permissionHandlerImpl struct {
	permissionService permission.Service
}

func NewPermissionHandler(permissionService permission.Service) PermissionHandler {
	return &permissionHandlerImpl{permissionService: permissionService}
}

// optionalQueryParam returns nil for an absent or empty query parameter
func optionalQueryParam(r *http.Request, key string) *string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return nil
	}
	return &val
}

// GetPermissions returns the four action flags of the caller on a resource
func (h *permissionHandlerImpl) GetPermissions(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromRequest(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	resourceType, err := permission.ParseResourceType(chi.URLParam(r, "resourceType"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	resourceID := chi.URLParam(r, "resourceID")
	set, err := h.permissionService.GetPermissions(r.Context(), principal.UserID, resourceType, resourceID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, permission.PermissionsResponse{
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Set:          set,
	})
}

// Check answers a single action query
func (h *permissionHandlerImpl) Check(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromRequest(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	resourceType, err := permission.ParseResourceType(chi.URLParam(r, "resourceType"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	action, err := permission.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	allowed, err := h.permissionService.CheckPermission(r.Context(), principal.UserID, resourceType, chi.URLParam(r, "resourceID"), action)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, permission.CheckResponse{HasPermission: allowed})
}

func (h *permissionHandlerImpl) VisibleColumns(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromRequest(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	boardID := chi.URLParam(r, "boardID")
	itemID := optionalQueryParam(r, "item_id")
	columns, err := h.permissionService.GetVisibleColumns(r.Context(), principal.UserID, boardID, itemID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, permission.VisibleColumnsResponse{
		BoardID: boardID,
		ItemID:  itemID,
		Columns: columns,
	})
}

func (h *permissionHandlerImpl) CanViewColumn(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromRequest(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	canView, err := h.permissionService.CanViewColumn(r.Context(), principal.UserID, chi.URLParam(r, "columnID"), optionalQueryParam(r, "item_id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, permission.CanViewColumnResponse{CanView: canView})
}
