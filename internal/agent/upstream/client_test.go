package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
	"github.com/cmlabs-hris/hris-sync/internal/handler/http/response"
)

const testToken = "test-token"

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/v1/collab/stream") &&
			r.Header.Get("Authorization") != "Bearer "+testToken {
			response.Unauthorized(w, "Unauthorized")
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Token: testToken, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url", Token: "x"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "http://localhost:8080"})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "http://localhost:8080/", Token: "x"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/", c.HeartbeatURL())
}

func TestClient_GetPermissions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/permissions/board/board-1", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, permission.PermissionsResponse{
			ResourceType: permission.ResourceBoard,
			ResourceID:   "board-1",
			Set:          permission.Set{Read: true, Write: true},
		})
	})
	c := newTestClient(t, mux)

	set, err := c.GetPermissions(context.Background(), permission.ResourceBoard, "board-1")

	require.NoError(t, err)
	assert.Equal(t, permission.Set{Read: true, Write: true}, set)
}

func TestClient_CheckPermission(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/permissions/item/item-1/check", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, permission.CheckResponse{HasPermission: r.URL.Query().Get("action") == "read"})
	})
	c := newTestClient(t, mux)

	ok, err := c.CheckPermission(context.Background(), permission.ResourceItem, "item-1", permission.ActionRead)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.CheckPermission(context.Background(), permission.ResourceItem, "item-1", permission.ActionManage)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_Columns(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/boards/board-1/columns/visible", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "item-1", r.URL.Query().Get("item_id"))
		response.Success(w, permission.VisibleColumnsResponse{
			BoardID: "board-1",
			Columns: []permission.Column{{ID: "col-status", BoardID: "board-1", Title: "Status"}},
		})
	})
	mux.HandleFunc("/api/v1/columns/col-salary/can-view", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("item_id"))
		response.Success(w, permission.CanViewColumnResponse{CanView: false})
	})
	c := newTestClient(t, mux)
	itemID := "item-1"

	cols, err := c.VisibleColumns(context.Background(), "board-1", &itemID)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "col-status", cols[0].ID)

	canView, err := c.CanViewColumn(context.Background(), "col-salary", nil)
	require.NoError(t, err)
	assert.False(t, canView)
}

func TestClient_Sync(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sync", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req offline.SyncRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Actions, 2)

		response.Success(w, offline.SyncResponse{
			Result: offline.Result{Processed: 1, Failed: 1},
			Results: []offline.ActionResult{
				{ActionID: req.Actions[0].ID, Outcome: offline.OutcomeApplied},
				{ActionID: req.Actions[1].ID, Outcome: offline.OutcomeForbidden},
			},
		})
	})
	c := newTestClient(t, mux)

	resp, err := c.Sync(context.Background(), offline.SyncRequest{Actions: []offline.QueuedAction{
		{ID: "a-1", Kind: offline.KindCellUpdate, ItemID: "item-1", ColumnID: "col-status", Value: json.RawMessage(`"done"`)},
		{ID: "a-2", Kind: offline.KindCellUpdate, ItemID: "item-2", ColumnID: "col-status", Value: json.RawMessage(`"done"`)},
	}})

	require.NoError(t, err)
	assert.Equal(t, offline.Result{Processed: 1, Failed: 1}, resp.Result)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, offline.OutcomeForbidden, resp.Results[1].Outcome)
}

func TestClient_Errors(t *testing.T) {
	t.Run("api error envelope", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/v1/permissions/board/missing", func(w http.ResponseWriter, r *http.Request) {
			response.NotFound(w, "Resource not found")
		})
		c := newTestClient(t, mux)

		_, err := c.GetPermissions(context.Background(), permission.ResourceBoard, "missing")

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "Resource not found", apiErr.Message)
		assert.False(t, apiErr.Temporary())
	})

	t.Run("wrong token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			response.Unauthorized(w, "Unauthorized")
		}))
		defer srv.Close()
		c, err := New(Config{BaseURL: srv.URL, Token: "wrong"})
		require.NoError(t, err)

		_, err = c.ListConflicts(context.Background())

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	})

	t.Run("unreachable is offline", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c, err := New(Config{BaseURL: url, Token: testToken})
		require.NoError(t, err)

		_, err = c.Sync(context.Background(), offline.SyncRequest{})

		assert.ErrorIs(t, err, offline.ErrOffline)
	})
}

func TestClient_Conflicts(t *testing.T) {
	var resolved conflict.ResolveRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collab/conflicts", func(w http.ResponseWriter, r *http.Request) {
		response.SuccessWithMeta(w, []conflict.Record{{ID: "c-1", ItemID: "item-1"}}, &response.Meta{TotalItems: 1})
	})
	mux.HandleFunc("/api/v1/collab/conflicts/c-1/resolve", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&resolved))
		response.SuccessWithMessage(w, "Conflict resolved", nil)
	})
	c := newTestClient(t, mux)

	records, err := c.ListConflicts(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c-1", records[0].ID)

	err = c.ResolveConflict(context.Background(), conflict.Command{
		ConflictID:  "c-1",
		Resolution:  conflict.ResolutionMerge,
		MergedValue: json.RawMessage(`"merged"`),
	})
	require.NoError(t, err)
	assert.Equal(t, conflict.ResolutionMerge, resolved.Resolution)
	assert.JSONEq(t, `"merged"`, string(resolved.MergedValue))
}

func TestClient_StreamConflicts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/collab/sse-token", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, conflict.SSETokenResponse{Token: "sse-1", ExpiresIn: 300})
	})
	mux.HandleFunc("/api/v1/collab/stream", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "sse-1" {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		fmt.Fprint(w, ": comment\n\n")
		fmt.Fprint(w, "event: conflict\ndata: {\"id\":\"c-1\",\"item_id\":\"item-1\",\"incoming_value\":\"x\"}\n\n")
		fmt.Fprint(w, "event: ping\ndata: {\"timestamp\":1}\n\n")
		fmt.Fprint(w, "event: conflict\ndata: {not json}\n\n")
		fmt.Fprint(w, "event: conflict_resolved\ndata: {\"conflict_id\":\"c-1\",\"resolution\":\"keep_current\"}\n\n")
		fmt.Fprint(w, "event: conflict_expired\ndata: {\"conflict_id\":\"c-2\"}\n\n")
	})
	c := newTestClient(t, mux)

	var events []conflict.StreamEvent
	err := c.StreamConflicts(context.Background(), func(ev conflict.StreamEvent) {
		events = append(events, ev)
	})

	assert.ErrorIs(t, err, ErrStreamClosed)
	require.Len(t, events, 3)
	assert.Equal(t, conflict.StreamEventConflict, events[0].Name)
	assert.Equal(t, "c-1", events[0].Record.ID)
	assert.JSONEq(t, `"x"`, string(events[0].Record.IncomingValue))
	assert.Equal(t, conflict.StreamEventResolved, events[1].Name)
	assert.Equal(t, conflict.ResolutionKeepCurrent, events[1].Command.Resolution)
	assert.Equal(t, conflict.StreamEventExpired, events[2].Name)
	assert.Equal(t, "c-2", events[2].Command.ConflictID)
}

func TestReadEvents(t *testing.T) {
	input := "event: a\ndata: line1\ndata: line2\n\ndata:plain\n\nevent: b\n"

	var names, payloads []string
	err := readEvents(strings.NewReader(input), func(name string, data []byte) {
		names = append(names, name)
		payloads = append(payloads, string(data))
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "message"}, names)
	assert.Equal(t, []string{"line1\nline2", "plain"}, payloads)
}
