package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cmlabs-hris/hris-sync/internal/domain/permission"
)

var ErrResolverClosed = errors.New("permission resolver closed")

// Fetcher is the remote permission API.
type Fetcher interface {
	GetPermissions(ctx context.Context, resourceType permission.ResourceType, resourceID string) (permission.Set, error)
	VisibleColumns(ctx context.Context, boardID string, itemID *string) ([]permission.Column, error)
	CanViewColumn(ctx context.Context, columnID string, itemID *string) (bool, error)
}

// Config holds resolver configuration
type Config struct {
	FetchTimeout time.Duration // default: 10 seconds
	RetryAfter   time.Duration // failed fetches are retried after this; default: 5 seconds
	Logger       *slog.Logger
}

type cacheKey struct {
	resource permission.ResourceType
	id       string
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s:%s", k.resource, k.id)
}

type entry struct {
	result   permission.Result
	done     chan struct{}
	failedAt time.Time
}

// Resolver answers permission queries from a per-instance cache. A key is
// fetched once and kept until Invalidate or Close. A failed fetch is kept as
// a denial for RetryAfter, or until RetryFailed, then fetched again. Every
// answer that is not a loaded grant is a denial.
type Resolver struct {
	fetcher Fetcher
	config  Config
	logger  *slog.Logger
	group   singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[cacheKey]*entry
	closed  bool
	now     func() time.Time
}

func NewResolver(fetcher Fetcher, cfg Config) *Resolver {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		fetcher: fetcher,
		config:  cfg,
		logger:  logger.With(slog.String("component", "permission_resolver")),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[cacheKey]*entry),
		now:     time.Now,
	}
}

// static answers queries that never reach the network.
func static(resource permission.ResourceType, resourceID string) (permission.Result, bool) {
	switch {
	case !resource.Valid():
		return permission.Denied(permission.ErrInvalidResourceType), true
	case !resource.Supported():
		// Cell access is derived from column checks.
		return permission.Denied(permission.ErrUnsupportedResource), true
	case resourceID == "":
		return permission.Result{}, true
	}
	return permission.Result{}, false
}

// Query reports whether action is currently allowed. It never blocks: the
// first query of a resource starts a fetch and answers false.
func (r *Resolver) Query(resource permission.ResourceType, resourceID string, action permission.Action) bool {
	return r.Result(resource, resourceID).Allows(action)
}

// Result returns the current snapshot for a resource.
func (r *Resolver) Result(resource permission.ResourceType, resourceID string) permission.Result {
	if res, ok := static(resource, resourceID); ok {
		return res
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return permission.Denied(ErrResolverClosed)
	}
	return r.ensure(cacheKey{resource: resource, id: resourceID}).result
}

// Load waits for the resource's fetch to finish.
func (r *Resolver) Load(ctx context.Context, resource permission.ResourceType, resourceID string) permission.Result {
	if res, ok := static(resource, resourceID); ok {
		return res
	}
	key := cacheKey{resource: resource, id: resourceID}

	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return permission.Denied(ErrResolverClosed)
		}
		e := r.ensure(key)
		r.mu.Unlock()

		select {
		case <-e.done:
		case <-ctx.Done():
			return permission.Denied(ctx.Err())
		}

		r.mu.Lock()
		closed, current, res := r.closed, r.entries[key] == e, e.result
		r.mu.Unlock()

		if closed {
			return permission.Denied(ErrResolverClosed)
		}
		if current {
			return res
		}
		// Invalidated while waiting; wait for the replacement.
	}
}

// ensure returns the cache entry for key, starting its fetch if needed.
// r.mu must be held.
func (r *Resolver) ensure(key cacheKey) *entry {
	if e, ok := r.entries[key]; ok {
		if e.failedAt.IsZero() || r.now().Sub(e.failedAt) < r.config.RetryAfter {
			return e
		}
		r.group.Forget(key.String())
	}

	e := &entry{
		result: permission.Result{Loading: true},
		done:   make(chan struct{}),
	}
	r.entries[key] = e
	go r.fetch(key, e)
	return e
}

func (r *Resolver) fetch(key cacheKey, e *entry) {
	ctx, cancel := context.WithTimeout(r.ctx, r.config.FetchTimeout)
	defer cancel()

	v, err, _ := r.group.Do(key.String(), func() (interface{}, error) {
		return r.fetcher.GetPermissions(ctx, key.resource, key.id)
	})

	var res permission.Result
	if err != nil {
		r.logger.Warn("Permission fetch failed",
			"resource_type", key.resource,
			"resource_id", key.id,
			"error", err,
		)
		res = permission.Denied(err)
	} else {
		res = permission.Result{Set: v.(permission.Set)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Results for a closed resolver or a replaced entry are dropped.
	if !r.closed && r.entries[key] == e {
		e.result = res
		if err != nil {
			e.failedAt = r.now()
		}
	}
	close(e.done)
}

// Invalidate drops the cached result for a resource and starts a new fetch.
func (r *Resolver) Invalidate(resource permission.ResourceType, resourceID string) {
	if _, ok := static(resource, resourceID); ok {
		return
	}
	key := cacheKey{resource: resource, id: resourceID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	delete(r.entries, key)
	r.group.Forget(key.String())
	r.ensure(key)
}

// RetryFailed refetches every key whose last fetch failed. It is called when
// the API becomes reachable again.
func (r *Resolver) RetryFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	for key, e := range r.entries {
		if e.failedAt.IsZero() {
			continue
		}
		delete(r.entries, key)
		r.group.Forget(key.String())
		r.ensure(key)
	}
}

// VisibleColumns lists the board columns the user may see. Failures yield no
// columns.
func (r *Resolver) VisibleColumns(ctx context.Context, boardID string, itemID *string) []permission.Column {
	if boardID == "" || r.isClosed() {
		return []permission.Column{}
	}

	key := "columns:" + boardID + ":" + deref(itemID)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.fetcher.VisibleColumns(ctx, boardID, itemID)
	})
	if err != nil {
		r.logger.Warn("Visible columns fetch failed", "board_id", boardID, "error", err)
		return []permission.Column{}
	}

	columns := v.([]permission.Column)
	if columns == nil {
		return []permission.Column{}
	}
	return columns
}

// CanViewColumn reports column visibility. Failures yield false.
func (r *Resolver) CanViewColumn(ctx context.Context, columnID string, itemID *string) bool {
	if columnID == "" || r.isClosed() {
		return false
	}

	key := "can-view:" + columnID + ":" + deref(itemID)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.fetcher.CanViewColumn(ctx, columnID, itemID)
	})
	if err != nil {
		r.logger.Warn("Column visibility fetch failed", "column_id", columnID, "error", err)
		return false
	}
	return v.(bool)
}

// Close discards the cache. Fetches that complete afterwards are ignored.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.entries = make(map[cacheKey]*entry)
	r.mu.Unlock()

	r.cancel()
}

func (r *Resolver) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
