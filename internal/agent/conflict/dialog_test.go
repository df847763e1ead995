package conflict

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
)

func testRecord(id string) conflict.Record {
	return conflict.Record{
		ID:               id,
		ItemID:           "item-1",
		ColumnID:         "col-status",
		CurrentValue:     json.RawMessage(`"approved"`),
		IncomingValue:    json.RawMessage(`"rejected"`),
		CurrentUserID:    "user-a",
		IncomingUserID:   "user-b",
		CurrentUserName:  "Alya",
		IncomingUserName: "Bima",
	}
}

type resolveRecorder struct {
	mu   sync.Mutex
	cmds []conflict.Command
	err  error
}

func (r *resolveRecorder) resolve(_ context.Context, cmd conflict.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return r.err
}

func (r *resolveRecorder) commands() []conflict.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conflict.Command{}, r.cmds...)
}

func TestDialog_Controls(t *testing.T) {
	d := NewDialog(testRecord("c-1"), nil, nil)

	controls := d.Controls()

	require.Len(t, controls, 2)
	assert.Equal(t, conflict.ResolutionKeepCurrent, controls[0].Resolution)
	assert.Equal(t, conflict.ResolutionUseIncoming, controls[1].Resolution)
}

func TestDialog_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		resolution conflict.Resolution
		merged     json.RawMessage
	}{
		{"keep current", conflict.ResolutionKeepCurrent, nil},
		{"use incoming", conflict.ResolutionUseIncoming, nil},
		{"merge", conflict.ResolutionMerge, json.RawMessage(`"approved, see note"`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &resolveRecorder{}
			var closed []string
			d := NewDialog(testRecord("c-1"), rec.resolve, func(id string) { closed = append(closed, id) })

			require.NoError(t, d.Resolve(context.Background(), tt.resolution, tt.merged))

			cmds := rec.commands()
			require.Len(t, cmds, 1)
			assert.Equal(t, "c-1", cmds[0].ConflictID)
			assert.Equal(t, tt.resolution, cmds[0].Resolution)
			assert.Equal(t, DialogClosed, d.State())
			assert.Equal(t, []string{"c-1"}, closed)
		})
	}
}

func TestDialog_ExactlyOneOutcome(t *testing.T) {
	t.Run("resolve then cancel", func(t *testing.T) {
		rec := &resolveRecorder{}
		d := NewDialog(testRecord("c-1"), rec.resolve, nil)

		require.NoError(t, d.Resolve(context.Background(), conflict.ResolutionKeepCurrent, nil))
		assert.ErrorIs(t, d.Cancel(), conflict.ErrDialogClosed)
		assert.ErrorIs(t, d.Resolve(context.Background(), conflict.ResolutionUseIncoming, nil), conflict.ErrDialogClosed)
		assert.Len(t, rec.commands(), 1)
	})

	t.Run("cancel never resolves", func(t *testing.T) {
		rec := &resolveRecorder{}
		closes := 0
		d := NewDialog(testRecord("c-1"), rec.resolve, func(string) { closes++ })

		require.NoError(t, d.Cancel())
		assert.ErrorIs(t, d.Resolve(context.Background(), conflict.ResolutionKeepCurrent, nil), conflict.ErrDialogClosed)
		assert.Empty(t, rec.commands())
		assert.Equal(t, 1, closes)
		assert.Equal(t, DialogClosed, d.State())
	})

	t.Run("concurrent resolves", func(t *testing.T) {
		rec := &resolveRecorder{}
		d := NewDialog(testRecord("c-1"), rec.resolve, nil)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = d.Resolve(context.Background(), conflict.ResolutionUseIncoming, nil)
			}()
		}
		wg.Wait()

		assert.Len(t, rec.commands(), 1)
	})
}

func TestDialog_ResolveRejected(t *testing.T) {
	t.Run("invalid resolution", func(t *testing.T) {
		rec := &resolveRecorder{}
		d := NewDialog(testRecord("c-1"), rec.resolve, nil)

		err := d.Resolve(context.Background(), conflict.Resolution("overwrite"), nil)

		assert.ErrorIs(t, err, conflict.ErrInvalidResolution)
		assert.Equal(t, DialogOpen, d.State())
		assert.Empty(t, rec.commands())
	})

	t.Run("merge without value", func(t *testing.T) {
		rec := &resolveRecorder{}
		d := NewDialog(testRecord("c-1"), rec.resolve, nil)

		err := d.Resolve(context.Background(), conflict.ResolutionMerge, nil)

		assert.ErrorIs(t, err, conflict.ErrMergeValueRequired)
		assert.Empty(t, rec.commands())
	})

	t.Run("upstream failure keeps dialog open", func(t *testing.T) {
		rec := &resolveRecorder{err: errors.New("offline")}
		d := NewDialog(testRecord("c-1"), rec.resolve, nil)

		err := d.Resolve(context.Background(), conflict.ResolutionKeepCurrent, nil)

		assert.Error(t, err)
		assert.Equal(t, DialogOpen, d.State())
		require.NoError(t, d.Cancel())
	})
}

func TestDialog_DismissDuringResolveStaysClosed(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	d := NewDialog(testRecord("c-1"), func(context.Context, conflict.Command) error {
		close(started)
		<-release
		return conflict.ErrConflictNotFound
	}, nil)

	done := make(chan error, 1)
	go func() { done <- d.Resolve(context.Background(), conflict.ResolutionKeepCurrent, nil) }()

	<-started
	assert.True(t, d.dismiss())
	close(release)

	assert.ErrorIs(t, <-done, conflict.ErrConflictNotFound)
	assert.Equal(t, DialogClosed, d.State())
}
