package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cmlabs-hris/hris-sync/internal/domain/offline"
)

// Queue is the part of the action queue the syncer drains.
type Queue interface {
	Peek(ctx context.Context, n int) ([]offline.QueuedAction, error)
	Drop(ctx context.Context, n int) error
}

// Uploader replays a batch against the workspace API.
type Uploader interface {
	Sync(ctx context.Context, req offline.SyncRequest) (offline.SyncResponse, error)
}

// Config holds syncer configuration
type Config struct {
	BatchSize int // default: 50
	Logger    *slog.Logger
}

// Syncer replays queued actions upstream. At most one sync runs at a time.
type Syncer struct {
	queue    Queue
	uploader Uploader
	config   Config
	logger   *slog.Logger

	running atomic.Bool

	mu        sync.Mutex
	listeners map[int]func(offline.Result)
	nextID    int
}

func New(queue Queue, uploader Uploader, cfg Config) *Syncer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchSize > offline.MaxBatchSize {
		cfg.BatchSize = offline.MaxBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		queue:     queue,
		uploader:  uploader,
		config:    cfg,
		logger:    logger.With(slog.String("component", "syncer")),
		listeners: make(map[int]func(offline.Result)),
	}
}

// Sync drains the queue upstream in batches of BatchSize until a batch
// comes back short. Every action the server answered for is removed from the
// queue, whatever its outcome; on a transport or server error the failing
// batch and everything after it stay queued. The returned result counts the
// batches that completed, also when an error is returned.
func (s *Syncer) Sync(ctx context.Context) (offline.Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		return offline.Result{}, offline.ErrSyncInProgress
	}
	defer s.running.Store(false)

	var (
		total   offline.Result
		batches int
	)
	for {
		n, result, err := s.syncBatch(ctx)
		if err != nil {
			if batches > 0 {
				s.notify(total)
			}
			return total, err
		}
		if n > 0 {
			batches++
			total.Processed += result.Processed
			total.Failed += result.Failed
		}
		if n < s.config.BatchSize {
			break
		}
	}

	s.logger.Info("Sync completed", "batches", batches, "processed", total.Processed, "failed", total.Failed)
	s.notify(total)
	return total, nil
}

// syncBatch sends the oldest BatchSize actions and returns how many were
// sent.
func (s *Syncer) syncBatch(ctx context.Context) (int, offline.Result, error) {
	actions, err := s.queue.Peek(ctx, s.config.BatchSize)
	if err != nil {
		return 0, offline.Result{}, err
	}
	if len(actions) == 0 {
		return 0, offline.Result{}, nil
	}

	resp, err := s.uploader.Sync(ctx, offline.SyncRequest{Actions: actions})
	if err != nil {
		s.logger.Warn("Sync request failed", "actions", len(actions), "error", err)
		return 0, offline.Result{}, err
	}
	if err := s.queue.Drop(ctx, len(actions)); err != nil {
		// The server already applied the batch; a resend is answered as a replay.
		return 0, offline.Result{}, fmt.Errorf("acknowledge synced actions: %w", err)
	}

	for _, r := range resp.Results {
		if !r.Outcome.Processed() {
			s.logger.Info("Queued action rejected", "action_id", r.ActionID, "outcome", r.Outcome, "message", r.Message)
		}
	}
	return len(actions), resp.Result, nil
}

// Running reports whether a sync is in flight.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// OnSync registers fn to run after every completed sync and returns its
// unsubscribe function.
func (s *Syncer) OnSync(fn func(offline.Result)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Syncer) notify(result offline.Result) {
	s.mu.Lock()
	listeners := make([]func(offline.Result), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(result)
	}
}
