package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/domain/notification"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
)

// UI event names published by the notifier.
const (
	EventOpened = "conflict"
	EventClosed = "conflict_closed"
)

// Source is the upstream collaboration channel.
type Source interface {
	ListConflicts(ctx context.Context) ([]conflict.Record, error)
	StreamConflicts(ctx context.Context, fn func(conflict.StreamEvent)) error
	ResolveConflict(ctx context.Context, cmd conflict.Command) error
}

type Notifier interface {
	Notify(n notification.Notification)
}

// NotifierConfig holds conflict notifier configuration
type NotifierConfig struct {
	Topic          string        // default: "ui"
	ReconnectDelay time.Duration // default: 2 seconds
	MaxDelay       time.Duration // default: 30 seconds
	Logger         *slog.Logger
}

// ConflictNotifier keeps one dialog per open conflict reported by the
// collaboration channel.
type ConflictNotifier struct {
	source  Source
	hub     *sse.Hub
	notices Notifier
	config  NotifierConfig
	logger  *slog.Logger

	mu      sync.Mutex
	dialogs map[string]*Dialog
	order   []string
}

func NewConflictNotifier(source Source, hub *sse.Hub, notices Notifier, cfg NotifierConfig) *ConflictNotifier {
	if cfg.Topic == "" {
		cfg.Topic = "ui"
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.MaxDelay < cfg.ReconnectDelay {
		cfg.MaxDelay = 30 * time.Second
		if cfg.MaxDelay < cfg.ReconnectDelay {
			cfg.MaxDelay = cfg.ReconnectDelay
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ConflictNotifier{
		source:  source,
		hub:     hub,
		notices: notices,
		config:  cfg,
		logger:  logger.With(slog.String("component", "conflict_notifier")),
		dialogs: make(map[string]*Dialog),
	}
}

// Open shows a dialog for record. A conflict that is already open keeps its
// existing dialog.
func (n *ConflictNotifier) Open(record conflict.Record) *Dialog {
	n.mu.Lock()
	if d, ok := n.dialogs[record.ID]; ok {
		n.mu.Unlock()
		return d
	}
	d := NewDialog(record, n.source.ResolveConflict, n.remove)
	n.dialogs[record.ID] = d
	n.order = append(n.order, record.ID)
	n.mu.Unlock()

	n.logger.Info("Conflict opened",
		"conflict_id", record.ID,
		"item_id", record.ItemID,
		"column_id", record.ColumnID,
		"current_user", record.CurrentUserName,
	)
	n.hub.Publish(n.config.Topic, sse.Event{Event: EventOpened, Data: d.View()})
	if n.notices != nil {
		n.notices.Notify(notification.Notification{
			Type:    notification.TypeConflict,
			Level:   notification.LevelInfo,
			Title:   "Editing conflict",
			Message: fmt.Sprintf("%s changed this value while you were editing", displayName(record.CurrentUserName)),
			Data:    map[string]interface{}{"conflict_id": record.ID},
		})
	}
	return d
}

func displayName(name string) string {
	if name == "" {
		return "Another user"
	}
	return name
}

// remove drops a closed dialog and tells the UI.
func (n *ConflictNotifier) remove(id string) {
	n.mu.Lock()
	if _, ok := n.dialogs[id]; !ok {
		n.mu.Unlock()
		return
	}
	delete(n.dialogs, id)
	for i, v := range n.order {
		if v == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	n.mu.Unlock()

	n.hub.Publish(n.config.Topic, sse.Event{
		Event: EventClosed,
		Data:  map[string]string{"id": id},
	})
}

// List returns the open dialogs in arrival order.
func (n *ConflictNotifier) List() []View {
	n.mu.Lock()
	dialogs := make([]*Dialog, 0, len(n.order))
	for _, id := range n.order {
		dialogs = append(dialogs, n.dialogs[id])
	}
	n.mu.Unlock()

	views := make([]View, 0, len(dialogs))
	for _, d := range dialogs {
		views = append(views, d.View())
	}
	return views
}

func (n *ConflictNotifier) Get(id string) (*Dialog, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	d, ok := n.dialogs[id]
	if !ok {
		return nil, conflict.ErrConflictNotFound
	}
	return d, nil
}

// Resolve sends the resolution upstream and closes the dialog. When the
// upstream call fails the dialog stays open and the error is returned.
func (n *ConflictNotifier) Resolve(ctx context.Context, id string, resolution conflict.Resolution, mergedValue json.RawMessage) error {
	d, err := n.Get(id)
	if err != nil {
		return err
	}
	if err := d.Resolve(ctx, resolution, mergedValue); err != nil {
		return fmt.Errorf("resolve conflict %s: %w", id, err)
	}
	n.logger.Info("Conflict resolved", "conflict_id", id, "resolution", resolution)
	return nil
}

func (n *ConflictNotifier) Cancel(id string) error {
	d, err := n.Get(id)
	if err != nil {
		return err
	}
	return d.Cancel()
}

// handle applies one stream event.
func (n *ConflictNotifier) handle(ev conflict.StreamEvent) {
	switch ev.Name {
	case conflict.StreamEventConflict:
		n.Open(ev.Record)
	case conflict.StreamEventResolved, conflict.StreamEventExpired:
		// Settled from another session, or purged upstream.
		n.dismiss(ev.Command.ConflictID)
	}
}

func (n *ConflictNotifier) dismiss(id string) {
	d, err := n.Get(id)
	if err != nil {
		return
	}
	if d.dismiss() {
		n.logger.Info("Conflict dismissed", "conflict_id", id)
	}
	n.remove(id)
}

// prune dismisses dialogs for conflicts the API no longer reports as open.
func (n *ConflictNotifier) prune(open []conflict.Record) {
	keep := make(map[string]struct{}, len(open))
	for _, rec := range open {
		keep[rec.ID] = struct{}{}
	}

	n.mu.Lock()
	var stale []string
	for _, id := range n.order {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	n.mu.Unlock()

	for _, id := range stale {
		n.dismiss(id)
	}
}

// Run consumes the collaboration channel until ctx is cancelled,
// reconnecting with backoff. Open conflicts are reloaded on every connect.
func (n *ConflictNotifier) Run(ctx context.Context) error {
	delay := n.config.ReconnectDelay

	for {
		connected := time.Now()
		err := n.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}

		if time.Since(connected) > n.config.MaxDelay {
			delay = n.config.ReconnectDelay
		}
		n.logger.Warn("Conflict stream disconnected", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > n.config.MaxDelay {
			delay = n.config.MaxDelay
		}
	}
}

func (n *ConflictNotifier) connect(ctx context.Context) error {
	records, err := n.source.ListConflicts(ctx)
	if err != nil {
		return fmt.Errorf("list open conflicts: %w", err)
	}
	n.prune(records)
	for _, rec := range records {
		n.Open(rec)
	}
	return n.source.StreamConflicts(ctx, n.handle)
}
