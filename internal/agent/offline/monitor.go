package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/notification"
	offlinedomain "github.com/cmlabs-hris/hris-sync/internal/domain/offline"
)

var ErrNotRunning = errors.New("offline monitor is not running")

// Connectivity is the observable online flag.
type Connectivity interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

type QueueSizer interface {
	Size(ctx context.Context) (int, error)
}

type Syncer interface {
	Sync(ctx context.Context) (offlinedomain.Result, error)
	OnSync(fn func(offlinedomain.Result)) (unsubscribe func())
}

type Notifier interface {
	Notify(n notification.Notification)
}

// Config holds monitor configuration
type Config struct {
	PollInterval time.Duration // default: 2 seconds, only while offline
	RecoveredTTL time.Duration // default: 3 seconds
	SizeTimeout  time.Duration // default: 2 seconds
	Logger       *slog.Logger
}

// Monitor watches connectivity and the action queue, drives syncs and
// publishes the badge. All of its state is owned by the Run goroutine.
type Monitor struct {
	conn    Connectivity
	queue   QueueSizer
	syncer  Syncer
	notices Notifier
	config  Config
	logger  *slog.Logger

	events    chan interface{}
	running   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once

	mu    sync.RWMutex
	badge Badge
	subs  map[chan Badge]struct{}
}

type (
	connectivityChanged struct{ online bool }
	syncCompleted       struct{}
	queueChanged        struct{}
	syncFinished        struct {
		result offlinedomain.Result
		err    error
	}
	syncRequest struct{ reply chan error }
)

// loopState is owned by Run.
type loopState struct {
	online    bool
	recovered bool
	size      int
	syncing   bool
}

func NewMonitor(conn Connectivity, queue QueueSizer, syncer Syncer, notices Notifier, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.RecoveredTTL <= 0 {
		cfg.RecoveredTTL = 3 * time.Second
	}
	if cfg.SizeTimeout <= 0 {
		cfg.SizeTimeout = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		conn:    conn,
		queue:   queue,
		syncer:  syncer,
		notices: notices,
		config:  cfg,
		logger:  logger.With(slog.String("component", "offline_monitor")),
		events:  make(chan interface{}, 16),
		ready:   make(chan struct{}),
		badge:   newBadge(conn.Online(), false, 0, false),
		subs:    make(map[chan Badge]struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("offline monitor already running")
	}
	defer m.running.Store(false)

	unsubscribeConn := m.conn.Subscribe(func(online bool) {
		m.post(ctx, connectivityChanged{online: online})
	})
	defer unsubscribeConn()
	unsubscribeSync := m.syncer.OnSync(func(offlinedomain.Result) {
		m.post(ctx, syncCompleted{})
	})
	defer unsubscribeSync()

	var (
		poll      *time.Ticker
		pollC     <-chan time.Time
		recovered *time.Timer
		recoverC  <-chan time.Time
	)
	startPolling := func() {
		if poll == nil {
			poll = time.NewTicker(m.config.PollInterval)
			pollC = poll.C
		}
	}
	stopPolling := func() {
		if poll != nil {
			poll.Stop()
			poll, pollC = nil, nil
		}
	}
	stopRecovered := func() {
		if recovered != nil {
			recovered.Stop()
			recovered, recoverC = nil, nil
		}
	}
	defer stopPolling()
	defer stopRecovered()

	st := loopState{online: m.conn.Online()}
	st.size = m.readSize(ctx, st.size)
	if !st.online {
		startPolling()
	}
	m.publish(st)
	m.readyOnce.Do(func() { close(m.ready) })

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-pollC:
			st.size = m.readSize(ctx, st.size)

		case <-recoverC:
			recovered, recoverC = nil, nil
			st.recovered = false

		case ev := <-m.events:
			switch e := ev.(type) {
			case connectivityChanged:
				if e.online == st.online {
					break
				}
				st.online = e.online
				st.size = m.readSize(ctx, st.size)

				if st.online {
					m.logger.Info("Back online", "queued", st.size)
					stopPolling()
					stopRecovered()
					st.recovered = true
					recovered = time.NewTimer(m.config.RecoveredTTL)
					recoverC = recovered.C
					if st.size > 0 && !st.syncing {
						m.startSync(ctx, &st)
					}
				} else {
					m.logger.Info("Gone offline", "queued", st.size)
					stopRecovered()
					st.recovered = false
					startPolling()
				}

			case syncCompleted, queueChanged:
				st.size = m.readSize(ctx, st.size)

			case syncFinished:
				st.syncing = false
				m.report(e.result, e.err)
				st.size = m.readSize(ctx, st.size)

			case syncRequest:
				switch {
				case !st.online:
					e.reply <- offlinedomain.ErrOffline
				case st.syncing:
					e.reply <- offlinedomain.ErrSyncInProgress
				default:
					m.startSync(ctx, &st)
					e.reply <- nil
				}
			}
		}

		m.publish(st)
	}
}

func (m *Monitor) startSync(ctx context.Context, st *loopState) {
	st.syncing = true
	go func() {
		result, err := m.syncer.Sync(ctx)
		m.post(ctx, syncFinished{result: result, err: err})
	}()
}

// report turns a sync outcome into notices. A failed sync may still carry
// counts for the batches that went through before the error.
func (m *Monitor) report(result offlinedomain.Result, err error) {
	if errors.Is(err, offlinedomain.ErrSyncInProgress) {
		return
	}

	if result.Processed > 0 {
		m.notices.Notify(notification.Notification{
			Type:    notification.TypeSyncSucceeded,
			Level:   notification.LevelSuccess,
			Title:   "Changes synced",
			Message: fmt.Sprintf("%d %s saved", result.Processed, plural(result.Processed, "change was", "changes were")),
			Data:    map[string]interface{}{"processed": result.Processed},
		})
	}
	if result.Failed > 0 {
		m.notices.Notify(notification.Notification{
			Type:    notification.TypeSyncRejected,
			Level:   notification.LevelError,
			Title:   "Some changes were not saved",
			Message: fmt.Sprintf("%d %s not be synced", result.Failed, plural(result.Failed, "change could", "changes could")),
			Data:    map[string]interface{}{"failed": result.Failed},
		})
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("Sync failed", "error", err)
		m.notices.Notify(notification.Notification{
			Type:    notification.TypeSyncFailed,
			Level:   notification.LevelError,
			Title:   "Sync failed",
			Message: "Your changes are still queued. Try syncing again.",
		})
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// readSize returns prev when the queue cannot be read.
func (m *Monitor) readSize(ctx context.Context, prev int) int {
	ctx, cancel := context.WithTimeout(ctx, m.config.SizeTimeout)
	defer cancel()

	size, err := m.queue.Size(ctx)
	if err != nil {
		m.logger.Warn("Failed to read queue size", "error", err)
		return prev
	}
	return size
}

func (m *Monitor) post(ctx context.Context, ev interface{}) {
	select {
	case m.events <- ev:
	case <-ctx.Done():
	}
}

// Ready is closed once Run observes connectivity and has published its first
// badge.
func (m *Monitor) Ready() <-chan struct{} {
	return m.ready
}

// TriggerSync asks for a manual sync. It fails with ErrOffline while offline
// and ErrSyncInProgress while a sync is running.
func (m *Monitor) TriggerSync(ctx context.Context) error {
	if !m.running.Load() {
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	select {
	case m.events <- syncRequest{reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueChanged tells the monitor the queue was modified outside a sync.
func (m *Monitor) QueueChanged() {
	select {
	case m.events <- queueChanged{}:
	default:
	}
}

// Badge returns the latest snapshot.
func (m *Monitor) Badge() Badge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.badge
}

// Subscribe returns a channel that always holds the most recent badge. The
// current badge is delivered immediately.
func (m *Monitor) Subscribe() (<-chan Badge, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Badge, 1)
	ch <- m.badge
	m.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, ch)
			close(ch)
		})
	}
}

func (m *Monitor) publish(st loopState) {
	b := newBadge(st.online, st.recovered, st.size, st.syncing)

	m.mu.Lock()
	defer m.mu.Unlock()

	if b == m.badge {
		return
	}
	m.badge = b
	for ch := range m.subs {
		select {
		case ch <- b:
		default:
			// Replace the stale snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- b
		}
	}
}
