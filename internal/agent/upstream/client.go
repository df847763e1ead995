package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/oauth"
)

// Config holds upstream client configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration // default: 10 seconds, not applied to the stream
	// HTTPClient is the base client, mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the workspace API.
type Client struct {
	baseURL string
	api     *http.Client
	stream  *http.Client
	logger  *slog.Logger
}

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", cfg.BaseURL)
	}
	if cfg.Token == "" {
		return nil, errors.New("api token is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	apiBase := &http.Client{
		Transport: base.Transport,
		Timeout:   cfg.Timeout,
	}

	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		api:     oauth.NewBearerClient(context.Background(), cfg.Token, apiBase),
		stream:  &http.Client{Transport: base.Transport},
		logger:  logger.With(slog.String("component", "upstream")),
	}, nil
}

// HeartbeatURL is probed for connectivity.
func (c *Client) HeartbeatURL() string {
	return c.baseURL + "/"
}

// APIError is a non-2xx response of the workspace API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

// do performs a JSON request and decodes the envelope's data into out.
// Transport failures are reported as offline.ErrOffline.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.api.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", offline.ErrOffline, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode %s %s data: %w", method, path, err)
		}
	}
	return nil
}

func itemQuery(itemID *string) url.Values {
	if itemID == nil || *itemID == "" {
		return nil
	}
	return url.Values{"item_id": {*itemID}}
}

func (c *Client) GetPermissions(ctx context.Context, resourceType permission.ResourceType, resourceID string) (permission.Set, error) {
	var resp permission.PermissionsResponse
	path := fmt.Sprintf("/api/v1/permissions/%s/%s", url.PathEscape(string(resourceType)), url.PathEscape(resourceID))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return permission.Set{}, err
	}
	return resp.Set, nil
}

func (c *Client) CheckPermission(ctx context.Context, resourceType permission.ResourceType, resourceID string, action permission.Action) (bool, error) {
	var resp permission.CheckResponse
	path := fmt.Sprintf("/api/v1/permissions/%s/%s/check", url.PathEscape(string(resourceType)), url.PathEscape(resourceID))
	if err := c.do(ctx, http.MethodGet, path, url.Values{"action": {string(action)}}, nil, &resp); err != nil {
		return false, err
	}
	return resp.HasPermission, nil
}

func (c *Client) VisibleColumns(ctx context.Context, boardID string, itemID *string) ([]permission.Column, error) {
	var resp permission.VisibleColumnsResponse
	path := fmt.Sprintf("/api/v1/boards/%s/columns/visible", url.PathEscape(boardID))
	if err := c.do(ctx, http.MethodGet, path, itemQuery(itemID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Columns, nil
}

func (c *Client) CanViewColumn(ctx context.Context, columnID string, itemID *string) (bool, error) {
	var resp permission.CanViewColumnResponse
	path := fmt.Sprintf("/api/v1/columns/%s/can-view", url.PathEscape(columnID))
	if err := c.do(ctx, http.MethodGet, path, itemQuery(itemID), nil, &resp); err != nil {
		return false, err
	}
	return resp.CanView, nil
}

// Sync uploads a batch of queued actions.
func (c *Client) Sync(ctx context.Context, req offline.SyncRequest) (offline.SyncResponse, error) {
	var resp offline.SyncResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync", nil, req, &resp); err != nil {
		return offline.SyncResponse{}, err
	}
	return resp, nil
}

func (c *Client) ListConflicts(ctx context.Context) ([]conflict.Record, error) {
	var records []conflict.Record
	if err := c.do(ctx, http.MethodGet, "/api/v1/collab/conflicts", nil, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) ResolveConflict(ctx context.Context, cmd conflict.Command) error {
	path := fmt.Sprintf("/api/v1/collab/conflicts/%s/resolve", url.PathEscape(cmd.ConflictID))
	body := conflict.ResolveRequest{
		Resolution:  cmd.Resolution,
		MergedValue: cmd.MergedValue,
	}
	return c.do(ctx, http.MethodPost, path, nil, body, nil)
}

func (c *Client) SSEToken(ctx context.Context) (conflict.SSETokenResponse, error) {
	var resp conflict.SSETokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/collab/sse-token", nil, nil, &resp); err != nil {
		return conflict.SSETokenResponse{}, err
	}
	return resp, nil
}
