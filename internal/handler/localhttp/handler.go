package localhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	agentconflict "github.com/cmlabs-hris/hris-sync/internal/agent/conflict"
	agentoffline "github.com/cmlabs-hris/hris-sync/internal/agent/offline"
	"github.com/cmlabs-hris/hris-sync/internal/agent/upstream"
	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type Monitor interface {
	Badge() agentoffline.Badge
	Subscribe() (<-chan agentoffline.Badge, func())
	TriggerSync(ctx context.Context) error
	QueueChanged()
}

type ActionQueue interface {
	Enqueue(ctx context.Context, action offline.QueuedAction) (offline.QueuedAction, error)
}

type Permissions interface {
	Result(resource permission.ResourceType, resourceID string) permission.Result
	Load(ctx context.Context, resource permission.ResourceType, resourceID string) permission.Result
	VisibleColumns(ctx context.Context, boardID string, itemID *string) []permission.Column
	CanViewColumn(ctx context.Context, columnID string, itemID *string) bool
}

type Conflicts interface {
	List() []agentconflict.View
	Resolve(ctx context.Context, id string, resolution conflict.Resolution, mergedValue json.RawMessage) error
	Cancel(id string) error
}

// Handler serves the agent API read by the admin UI.
type Handler interface {
	Status(w http.ResponseWriter, r *http.Request)
	Sync(w http.ResponseWriter, r *http.Request)
	Enqueue(w http.ResponseWriter, r *http.Request)

	GetPermissions(w http.ResponseWriter, r *http.Request)
	Check(w http.ResponseWriter, r *http.Request)
	VisibleColumns(w http.ResponseWriter, r *http.Request)
	CanViewColumn(w http.ResponseWriter, r *http.Request)

	ListConflicts(w http.ResponseWriter, r *http.Request)
	ResolveConflict(w http.ResponseWriter, r *http.Request)
	CancelConflict(w http.ResponseWriter, r *http.Request)

	// SSE
	Events(w http.ResponseWriter, r *http.Request)
}

type handlerImpl struct {
	monitor     Monitor
	queue       ActionQueue
	permissions Permissions
	conflicts   Conflicts
	events      *EventStream
}

func NewHandler(monitor Monitor, queue ActionQueue, permissions Permissions, conflicts Conflicts, events *EventStream) Handler {
	return &handlerImpl{
		monitor:     monitor,
		queue:       queue,
		permissions: permissions,
		conflicts:   conflicts,
		events:      events,
	}
}

// StatusResponse is the agent overview.
type StatusResponse struct {
	Badge     agentoffline.Badge `json:"badge"`
	Conflicts int                `json:"open_conflicts"`
}

func (h *handlerImpl) Status(w http.ResponseWriter, r *http.Request) {
	response.Success(w, StatusResponse{
		Badge:     h.monitor.Badge(),
		Conflicts: len(h.conflicts.List()),
	})
}

// Sync starts a manual sync; the outcome arrives as notices.
func (h *handlerImpl) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.TriggerSync(r.Context()); err != nil {
		if errors.Is(err, agentoffline.ErrNotRunning) {
			response.ServiceUnavailable(w, "Sync monitor is not running")
			return
		}
		response.HandleError(w, err)
		return
	}
	response.Accepted(w, "Sync started", h.monitor.Badge())
}

// Enqueue buffers an edit for the next sync.
func (h *handlerImpl) Enqueue(w http.ResponseWriter, r *http.Request) {
	var action offline.QueuedAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if action.Kind == "" {
		action.Kind = offline.KindCellUpdate
	}

	queued, err := h.queue.Enqueue(r.Context(), action)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	h.monitor.QueueChanged()

	response.Created(w, "Action queued", queued)
}

// PermissionView is a resolver snapshot.
type PermissionView struct {
	ResourceType permission.ResourceType `json:"resource_type"`
	ResourceID   string                  `json:"resource_id"`
	permission.Set
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

func newPermissionView(t permission.ResourceType, id string, res permission.Result) PermissionView {
	v := PermissionView{ResourceType: t, ResourceID: id, Loading: res.Loading}
	if res.Err != nil {
		v.Error = res.Err.Error()
	} else if !res.Loading {
		v.Set = res.Set
	}
	return v
}

// lookup waits for the resolver unless the caller passes wait=false.
func (h *handlerImpl) lookup(r *http.Request, t permission.ResourceType, id string) permission.Result {
	if r.URL.Query().Get("wait") == "false" {
		return h.permissions.Result(t, id)
	}
	return h.permissions.Load(r.Context(), t, id)
}

func (h *handlerImpl) GetPermissions(w http.ResponseWriter, r *http.Request) {
	resourceType, err := permission.ParseResourceType(chi.URLParam(r, "resourceType"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	resourceID := chi.URLParam(r, "resourceID")

	response.Success(w, newPermissionView(resourceType, resourceID, h.lookup(r, resourceType, resourceID)))
}

func (h *handlerImpl) Check(w http.ResponseWriter, r *http.Request) {
	resourceType, err := permission.ParseResourceType(chi.URLParam(r, "resourceType"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	action, err := permission.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	resourceID := chi.URLParam(r, "resourceID")

	res := h.lookup(r, resourceType, resourceID)
	response.Success(w, permission.CheckResponse{HasPermission: res.Allows(action)})
}

func (h *handlerImpl) VisibleColumns(w http.ResponseWriter, r *http.Request) {
	boardID := chi.URLParam(r, "boardID")
	itemID := optionalQueryParam(r, "item_id")

	response.Success(w, permission.VisibleColumnsResponse{
		BoardID: boardID,
		ItemID:  itemID,
		Columns: h.permissions.VisibleColumns(r.Context(), boardID, itemID),
	})
}

func (h *handlerImpl) CanViewColumn(w http.ResponseWriter, r *http.Request) {
	columnID := chi.URLParam(r, "columnID")
	itemID := optionalQueryParam(r, "item_id")

	response.Success(w, permission.CanViewColumnResponse{
		CanView: h.permissions.CanViewColumn(r.Context(), columnID, itemID),
	})
}

func optionalQueryParam(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func (h *handlerImpl) ListConflicts(w http.ResponseWriter, r *http.Request) {
	views := h.conflicts.List()
	response.SuccessWithMeta(w, views, &response.Meta{TotalItems: int64(len(views))})
}

func (h *handlerImpl) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	var req conflict.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.conflicts.Resolve(r.Context(), id, req.Resolution, req.MergedValue); err != nil {
		handleUpstreamError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Conflict resolved", conflict.Command{
		ConflictID:  id,
		Resolution:  req.Resolution,
		MergedValue: req.MergedValue,
	})
}

func (h *handlerImpl) CancelConflict(w http.ResponseWriter, r *http.Request) {
	if err := h.conflicts.Cancel(chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Conflict dismissed", nil)
}

// handleUpstreamError passes workspace API rejections through.
func handleUpstreamError(w http.ResponseWriter, err error) {
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) {
		response.HandleError(w, err)
		return
	}

	switch apiErr.StatusCode {
	case http.StatusNotFound:
		response.NotFound(w, apiErr.Message)
	case http.StatusConflict:
		response.Conflict(w, apiErr.Message)
	case http.StatusForbidden:
		response.Forbidden(w, apiErr.Message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		response.BadRequest(w, apiErr.Message, apiErr.Details)
	default:
		response.BadGateway(w, apiErr.Message)
	}
}
