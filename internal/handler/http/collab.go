package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
	"github.com/go-chi/chi/v5"
)

// CollabHandler serves the collaboration channel
type CollabHandler interface {
	ListOpen(w http.ResponseWriter, r *http.Request)
	Resolve(w http.ResponseWriter, r *http.Request)

	// SSE
	GetSSEToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type collabHandlerImpl struct {
	collabService conflict.Service
	jwtService    jwt.Service
	keepalive     time.Duration
}

// NewCollabHandler creates a new collaboration handler
func NewCollabHandler(collabService conflict.Service, jwtService jwt.Service) CollabHandler {
	return &collabHandlerImpl{
		collabService: collabService,
		jwtService:    jwtService,
		keepalive:     30 * time.Second,
	}
}

// ListOpen returns the unresolved conflicts of the caller, used to restore
// dialogs after a reconnect
func (h *collabHandlerImpl) ListOpen(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromRequest(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	records, err := h.collabService.ListOpen(r.Context(), principal.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, records, &response.Meta{TotalItems: int64(len(records))})
}

// Resolve applies the caller's chosen resolution
func (h *collabHandlerImpl) Resolve(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromRequest(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	conflictID := chi.URLParam(r, "id")
	if conflictID == "" {
		response.BadRequest(w, "Conflict ID is required", nil)
		return
	}

	var req conflict.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	cmd := conflict.Command{
		ConflictID:  conflictID,
		Resolution:  req.Resolution,
		MergedValue: req.MergedValue,
	}
	if err := h.collabService.Resolve(r.Context(), principal.UserID, cmd); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Conflict resolved", cmd)
}

// GetSSEToken generates a short-lived token for the conflict stream
func (h *collabHandlerImpl) GetSSEToken(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromRequest(r)
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	token, expiresIn, err := h.jwtService.GenerateSSEToken(principal.UserID)
	if err != nil {
		response.InternalServerError(w, "Failed to generate SSE token")
		return
	}

	response.Success(w, conflict.SSETokenResponse{
		Token:     token,
		ExpiresIn: expiresIn,
	})
}

// Stream pushes conflict events of the token's user
func (h *collabHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// SSE doesn't support custom headers
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}

	userID, err := h.jwtService.ValidateSSEToken(tokenStr)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	events, cleanup := h.collabService.Subscribe(r.Context(), userID)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"user_id\":%q}\n\n", userID)
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := sse.WriteEvent(w, event.Event, event.Data); err != nil {
				continue
			}
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
