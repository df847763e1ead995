package collab

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/cell"
	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/database"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
	"github.com/google/uuid"
)

// Config holds collaboration service configuration
type Config struct {
	ConflictTTL time.Duration // default: 24 hours
}

type service struct {
	conflicts conflict.Repository
	cells     cell.Repository
	hub       *sse.Hub
	tx        database.TxRunner
	config    Config
	now       func() time.Time
}

// NewCollabService creates the collaboration channel service.
func NewCollabService(conflicts conflict.Repository, cells cell.Repository, hub *sse.Hub, tx database.TxRunner, cfg Config) conflict.Service {
	if cfg.ConflictTTL == 0 {
		cfg.ConflictTTL = 24 * time.Hour
	}
	return &service{
		conflicts: conflicts,
		cells:     cells,
		hub:       hub,
		tx:        tx,
		config:    cfg,
		now:       time.Now,
	}
}

// Detect implements conflict.Service.
func (s *service) Detect(ctx context.Context, rec conflict.Record) (conflict.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = s.now()
	}

	if err := s.conflicts.Create(ctx, rec); err != nil {
		return conflict.Record{}, err
	}

	s.hub.Publish(rec.IncomingUserID, sse.Event{
		Event: conflict.StreamEventConflict,
		Data:  rec,
	})
	slog.Info("conflict detected",
		"conflict_id", rec.ID,
		"item_id", rec.ItemID,
		"column_id", rec.ColumnID,
		"incoming_user_id", rec.IncomingUserID,
	)
	return rec, nil
}

// Resolve implements conflict.Service. Only the user whose edit was rejected
// may settle the conflict.
func (s *service) Resolve(ctx context.Context, userID string, cmd conflict.Command) error {
	if !cmd.Resolution.Valid() {
		return conflict.ErrInvalidResolution
	}
	if cmd.Resolution == conflict.ResolutionMerge && len(cmd.MergedValue) == 0 {
		return conflict.ErrMergeValueRequired
	}

	var rec conflict.Record
	err := s.tx(ctx, func(ctx context.Context) error {
		var status conflict.Status
		var err error
		rec, status, err = s.conflicts.GetByID(ctx, cmd.ConflictID)
		if err != nil {
			return err
		}
		if rec.IncomingUserID != userID {
			return conflict.ErrNotRecipient
		}
		if status != conflict.StatusOpen {
			return conflict.ErrAlreadyResolved
		}

		if err := s.apply(ctx, rec, cmd); err != nil {
			return err
		}
		return s.conflicts.MarkResolved(ctx, rec.ID, cmd.Resolution, s.now())
	})
	if err != nil {
		return err
	}

	s.hub.Publish(userID, sse.Event{
		Event: conflict.StreamEventResolved,
		Data:  cmd,
	})
	slog.Info("conflict resolved", "conflict_id", rec.ID, "resolution", cmd.Resolution)
	return nil
}

func (s *service) apply(ctx context.Context, rec conflict.Record, cmd conflict.Command) error {
	edit := cell.Edit{
		ItemID:   rec.ItemID,
		ColumnID: rec.ColumnID,
		UserID:   rec.IncomingUserID,
		UserName: rec.IncomingUserName,
	}

	switch cmd.Resolution {
	case conflict.ResolutionKeepCurrent:
		return nil
	case conflict.ResolutionUseIncoming:
		edit.Value = rec.IncomingValue
	case conflict.ResolutionMerge:
		edit.Value = cmd.MergedValue
	default:
		return conflict.ErrInvalidResolution
	}

	if _, err := s.cells.Overwrite(ctx, edit); err != nil {
		return fmt.Errorf("apply %s: %w", cmd.Resolution, err)
	}
	return nil
}

// ListOpen implements conflict.Service.
func (s *service) ListOpen(ctx context.Context, userID string) ([]conflict.Record, error) {
	records, err := s.conflicts.ListOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []conflict.Record{}
	}
	return records, nil
}

// Subscribe implements conflict.Service.
func (s *service) Subscribe(ctx context.Context, userID string) (chan sse.Event, func()) {
	return s.hub.Subscribe(userID)
}

// PurgeExpired drops open conflicts older than the configured TTL and tells
// each incoming user so their dialog closes.
func (s *service) PurgeExpired(ctx context.Context) error {
	cutoff := s.now().Add(-s.config.ConflictTTL)
	purged, err := s.conflicts.DeleteOpenBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge expired conflicts: %w", err)
	}

	for _, rec := range purged {
		s.hub.Publish(rec.IncomingUserID, sse.Event{
			Event: conflict.StreamEventExpired,
			Data:  conflict.Command{ConflictID: rec.ID},
		})
	}
	if len(purged) > 0 {
		slog.Info("purged expired conflicts", "count", len(purged), "before", cutoff)
	}
	return nil
}
