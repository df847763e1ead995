package collab

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-sync/internal/domain/cell"
	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
	"github.com/cmlabs-hris/hris-sync/internal/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedConflict struct {
	rec        conflict.Record
	status     conflict.Status
	resolution conflict.Resolution
}

type memConflicts struct {
	mu   sync.Mutex
	byID map[string]*storedConflict
}

func newMemConflicts() *memConflicts {
	return &memConflicts{byID: make(map[string]*storedConflict)}
}

func (m *memConflicts) Create(_ context.Context, rec conflict.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[rec.ID] = &storedConflict{rec: rec, status: conflict.StatusOpen}
	return nil
}

func (m *memConflicts) GetByID(_ context.Context, id string) (conflict.Record, conflict.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return conflict.Record{}, "", conflict.ErrConflictNotFound
	}
	return c.rec, c.status, nil
}

func (m *memConflicts) MarkResolved(_ context.Context, id string, resolution conflict.Resolution, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return conflict.ErrConflictNotFound
	}
	if c.status != conflict.StatusOpen {
		return conflict.ErrAlreadyResolved
	}
	c.status = conflict.StatusResolved
	c.resolution = resolution
	return nil
}

func (m *memConflicts) ListOpenByUser(_ context.Context, userID string) ([]conflict.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []conflict.Record
	for _, c := range m.byID {
		if c.status == conflict.StatusOpen && c.rec.IncomingUserID == userID {
			out = append(out, c.rec)
		}
	}
	return out, nil
}

func (m *memConflicts) DeleteOpenBefore(_ context.Context, before time.Time) ([]conflict.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged []conflict.Record
	for id, c := range m.byID {
		if c.status == conflict.StatusOpen && c.rec.DetectedAt.Before(before) {
			delete(m.byID, id)
			purged = append(purged, c.rec)
		}
	}
	return purged, nil
}

type memCells struct {
	mu      sync.Mutex
	written []cell.Edit
}

func (m *memCells) Get(context.Context, string, string) (cell.Cell, error) {
	return cell.Cell{}, cell.ErrCellNotFound
}

func (m *memCells) CompareAndSwap(context.Context, cell.Edit) (cell.Cell, bool, error) {
	return cell.Cell{}, false, nil
}

func (m *memCells) Overwrite(_ context.Context, edit cell.Edit) (cell.Cell, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, edit)
	return cell.Cell{ItemID: edit.ItemID, ColumnID: edit.ColumnID, Value: edit.Value, Version: 2}, nil
}

func (m *memCells) GetItemBoard(context.Context, string) (string, error) {
	return "board-1", nil
}

func noTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*service, *memConflicts, *memCells, *sse.Hub) {
	conflicts := newMemConflicts()
	cells := &memCells{}
	hub := sse.NewHub()
	svc := NewCollabService(conflicts, cells, hub, noTx, Config{ConflictTTL: time.Hour}).(*service)
	return svc, conflicts, cells, hub
}

func sampleRecord() conflict.Record {
	return conflict.Record{
		ID:               "conf-1",
		ItemID:           "item-1",
		ColumnID:         "col-status",
		CurrentValue:     json.RawMessage(`"approved"`),
		IncomingValue:    json.RawMessage(`"rejected"`),
		CurrentVersion:   3,
		CurrentUserID:    "rina",
		IncomingUserID:   "dimas",
		CurrentUserName:  "Rina",
		IncomingUserName: "Dimas",
	}
}

func TestCollabService_Detect_PublishesToIncomingUser(t *testing.T) {
	svc, conflicts, _, hub := newTestService()
	ch, cleanup := hub.Subscribe("dimas")
	defer cleanup()
	other, cleanupOther := hub.Subscribe("rina")
	defer cleanupOther()

	rec := sampleRecord()
	rec.ID = ""
	stored, err := svc.Detect(context.Background(), rec)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.DetectedAt.IsZero())

	select {
	case ev := <-ch:
		assert.Equal(t, conflict.StreamEventConflict, ev.Event)
		assert.Equal(t, stored, ev.Data)
	default:
		t.Fatal("expected conflict event for incoming user")
	}
	assert.Len(t, other, 0)

	_, status, err := conflicts.GetByID(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, conflict.StatusOpen, status)
}

func TestCollabService_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		cmd       conflict.Command
		wantWrite json.RawMessage
	}{
		{
			name: "keep current writes nothing",
			cmd:  conflict.Command{ConflictID: "conf-1", Resolution: conflict.ResolutionKeepCurrent},
		},
		{
			name:      "use incoming writes the rejected value",
			cmd:       conflict.Command{ConflictID: "conf-1", Resolution: conflict.ResolutionUseIncoming},
			wantWrite: json.RawMessage(`"rejected"`),
		},
		{
			name: "merge writes the merged value",
			cmd: conflict.Command{
				ConflictID:  "conf-1",
				Resolution:  conflict.ResolutionMerge,
				MergedValue: json.RawMessage(`"approved with notes"`),
			},
			wantWrite: json.RawMessage(`"approved with notes"`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, conflicts, cells, _ := newTestService()
			ctx := context.Background()
			require.NoError(t, conflicts.Create(ctx, sampleRecord()))

			require.NoError(t, svc.Resolve(ctx, "dimas", tt.cmd))

			if tt.wantWrite == nil {
				assert.Empty(t, cells.written)
			} else {
				require.Len(t, cells.written, 1)
				assert.Equal(t, tt.wantWrite, cells.written[0].Value)
				assert.Equal(t, "dimas", cells.written[0].UserID)
			}

			_, status, err := conflicts.GetByID(ctx, "conf-1")
			require.NoError(t, err)
			assert.Equal(t, conflict.StatusResolved, status)
			assert.Equal(t, tt.cmd.Resolution, conflicts.byID["conf-1"].resolution)
		})
	}
}

func TestCollabService_Resolve_Rejections(t *testing.T) {
	svc, conflicts, cells, _ := newTestService()
	ctx := context.Background()
	require.NoError(t, conflicts.Create(ctx, sampleRecord()))

	err := svc.Resolve(ctx, "dimas", conflict.Command{ConflictID: "conf-1", Resolution: "overwrite"})
	assert.ErrorIs(t, err, conflict.ErrInvalidResolution)

	err = svc.Resolve(ctx, "dimas", conflict.Command{ConflictID: "conf-1", Resolution: conflict.ResolutionMerge})
	assert.ErrorIs(t, err, conflict.ErrMergeValueRequired)

	err = svc.Resolve(ctx, "rina", conflict.Command{ConflictID: "conf-1", Resolution: conflict.ResolutionUseIncoming})
	assert.ErrorIs(t, err, conflict.ErrNotRecipient)

	err = svc.Resolve(ctx, "dimas", conflict.Command{ConflictID: "missing", Resolution: conflict.ResolutionUseIncoming})
	assert.ErrorIs(t, err, conflict.ErrConflictNotFound)

	require.NoError(t, svc.Resolve(ctx, "dimas", conflict.Command{ConflictID: "conf-1", Resolution: conflict.ResolutionKeepCurrent}))
	err = svc.Resolve(ctx, "dimas", conflict.Command{ConflictID: "conf-1", Resolution: conflict.ResolutionUseIncoming})
	assert.ErrorIs(t, err, conflict.ErrAlreadyResolved)

	assert.Empty(t, cells.written)
}

func TestCollabService_ListOpen(t *testing.T) {
	svc, conflicts, _, _ := newTestService()
	ctx := context.Background()

	records, err := svc.ListOpen(ctx, "dimas")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	require.NoError(t, conflicts.Create(ctx, sampleRecord()))
	records, err = svc.ListOpen(ctx, "dimas")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "conf-1", records[0].ID)
}

func TestCollabService_PurgeExpired(t *testing.T) {
	svc, conflicts, _, hub := newTestService()
	ch, cleanup := hub.Subscribe("dimas")
	defer cleanup()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	old := sampleRecord()
	old.DetectedAt = now.Add(-2 * time.Hour)
	fresh := sampleRecord()
	fresh.ID = "conf-2"
	fresh.DetectedAt = now.Add(-10 * time.Minute)
	require.NoError(t, conflicts.Create(ctx, old))
	require.NoError(t, conflicts.Create(ctx, fresh))

	require.NoError(t, svc.PurgeExpired(ctx))

	_, _, err := conflicts.GetByID(ctx, "conf-1")
	assert.ErrorIs(t, err, conflict.ErrConflictNotFound)
	_, _, err = conflicts.GetByID(ctx, "conf-2")
	assert.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, conflict.StreamEventExpired, ev.Event)
		assert.Equal(t, conflict.Command{ConflictID: "conf-1"}, ev.Data)
	default:
		t.Fatal("expected expiry event for incoming user")
	}
	assert.Len(t, ch, 0)
}
