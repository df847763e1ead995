package conflict

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cmlabs-hris/hris-sync/internal/domain/conflict"
)

// DialogState is the lifecycle of a conflict dialog.
type DialogState string

const (
	DialogOpen      DialogState = "open"
	DialogResolving DialogState = "resolving"
	DialogClosed    DialogState = "closed"
)

// ResolveFunc sends a resolution upstream.
type ResolveFunc func(ctx context.Context, cmd conflict.Command) error

// Control is a resolution button shown by the dialog.
type Control struct {
	Resolution conflict.Resolution `json:"resolution"`
	Label      string              `json:"label"`
}

// Dialog presents one conflict until the user resolves or dismisses it.
// Nothing is applied without a user decision.
type Dialog struct {
	record    conflict.Record
	onResolve ResolveFunc
	onClose   func(id string)

	mu    sync.Mutex
	state DialogState
}

func NewDialog(record conflict.Record, onResolve ResolveFunc, onClose func(id string)) *Dialog {
	return &Dialog{
		record:    record,
		onResolve: onResolve,
		onClose:   onClose,
		state:     DialogOpen,
	}
}

func (d *Dialog) Record() conflict.Record {
	return d.record
}

func (d *Dialog) State() DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Controls returns the strategies that have a button, in display order.
func (d *Dialog) Controls() []Control {
	var controls []Control
	for _, r := range conflict.AllResolutions() {
		s := conflict.Strategies[r]
		if !s.HasControl {
			continue
		}
		controls = append(controls, Control{Resolution: r, Label: s.Label})
	}
	return controls
}

// Resolve sends the resolution and closes the dialog. If sending fails the
// dialog stays open so the user can retry or cancel.
func (d *Dialog) Resolve(ctx context.Context, resolution conflict.Resolution, mergedValue json.RawMessage) error {
	if !resolution.Valid() {
		return conflict.ErrInvalidResolution
	}
	if resolution == conflict.ResolutionMerge && len(mergedValue) == 0 {
		return conflict.ErrMergeValueRequired
	}

	d.mu.Lock()
	if d.state != DialogOpen {
		d.mu.Unlock()
		return conflict.ErrDialogClosed
	}
	d.state = DialogResolving
	d.mu.Unlock()

	err := d.onResolve(ctx, conflict.Command{
		ConflictID:  d.record.ID,
		Resolution:  resolution,
		MergedValue: mergedValue,
	})

	d.mu.Lock()
	if err != nil {
		// A dismiss while the command was in flight wins.
		if d.state == DialogResolving {
			d.state = DialogOpen
		}
		d.mu.Unlock()
		return err
	}
	d.state = DialogClosed
	d.mu.Unlock()

	d.close()
	return nil
}

// Cancel dismisses the dialog without resolving.
func (d *Dialog) Cancel() error {
	d.mu.Lock()
	if d.state != DialogOpen {
		d.mu.Unlock()
		return conflict.ErrDialogClosed
	}
	d.state = DialogClosed
	d.mu.Unlock()

	d.close()
	return nil
}

// dismiss closes the dialog after the conflict was settled elsewhere.
func (d *Dialog) dismiss() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DialogClosed {
		return false
	}
	d.state = DialogClosed
	return true
}

func (d *Dialog) close() {
	if d.onClose != nil {
		d.onClose(d.record.ID)
	}
}

// View is the JSON form of a dialog served to the UI.
type View struct {
	Conflict conflict.Record `json:"conflict"`
	State    DialogState     `json:"state"`
	Controls []Control       `json:"controls"`
}

func (d *Dialog) View() View {
	return View{
		Conflict: d.record,
		State:    d.State(),
		Controls: d.Controls(),
	}
}
