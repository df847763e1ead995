package http

import (
	"encoding/json"
	"net/http"

	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/response"
)

type SyncHandler interface {
	Sync(w http.ResponseWriter, r *http.Request)
}

type syncHandlerImpl struct {
	syncService offline.SyncService
}

func NewSyncHandler(syncService offline.SyncService) SyncHandler {
	return &syncHandlerImpl{syncService: syncService}
}

// Sync replays a batch of actions queued by a client while it was offline.
// Per-action rejections are part of a successful response.
func (h *syncHandlerImpl) Sync(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromRequest(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req offline.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	resp, err := h.syncService.Apply(r.Context(), principal.UserID, principal.Name, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, resp)
}
