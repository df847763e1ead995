package conflict

import (
	"encoding/json"
	"time"
)

// Record describes two concurrent edits to the same cell. It lives until the
// incoming user resolves it or it expires.
type Record struct {
	ID               string          `json:"id"`
	ItemID           string          `json:"item_id"`
	ColumnID         string          `json:"column_id"`
	CurrentValue     json.RawMessage `json:"current_value"`
	IncomingValue    json.RawMessage `json:"incoming_value"`
	CurrentVersion   int64           `json:"current_version"`
	CurrentUserID    string          `json:"current_user_id"`
	IncomingUserID   string          `json:"incoming_user_id"`
	CurrentUserName  string          `json:"current_user_name"`
	IncomingUserName string          `json:"incoming_user_name"`
	DetectedAt       time.Time       `json:"detected_at"`
}

// Status is the lifecycle state of a stored conflict.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Resolution is the strategy picked to settle a conflict.
type Resolution string

const (
	ResolutionKeepCurrent Resolution = "keep_current"
	ResolutionUseIncoming Resolution = "use_incoming"
	ResolutionMerge       Resolution = "merge"
)

// Strategy describes how a resolution is presented.
type Strategy struct {
	Resolution Resolution
	Label      string
	// HasControl is false for strategies that are part of the contract but
	// have no button in the conflict dialog.
	HasControl bool
}

// Strategies is the exhaustive resolution table, in display order.
var Strategies = map[Resolution]Strategy{
	ResolutionKeepCurrent: {Resolution: ResolutionKeepCurrent, Label: "Keep current value", HasControl: true},
	ResolutionUseIncoming: {Resolution: ResolutionUseIncoming, Label: "Use incoming value", HasControl: true},
	// TODO: add a merge control to the dialog once the cell editors can produce a merged value.
	ResolutionMerge: {Resolution: ResolutionMerge, Label: "Merge values", HasControl: false},
}

// AllResolutions returns every resolution in display order.
func AllResolutions() []Resolution {
	return []Resolution{ResolutionKeepCurrent, ResolutionUseIncoming, ResolutionMerge}
}

func (r Resolution) Valid() bool {
	_, ok := Strategies[r]
	return ok
}

// Command is the resolution sent upstream for a conflict.
type Command struct {
	ConflictID  string          `json:"conflict_id"`
	Resolution  Resolution      `json:"resolution"`
	MergedValue json.RawMessage `json:"merged_value,omitempty"`
}

// Event names of the collaboration stream.
const (
	// StreamEventConflict carries a Record for the incoming user.
	StreamEventConflict = "conflict"
	// StreamEventResolved carries the Command that settled a conflict.
	StreamEventResolved = "conflict_resolved"
	// StreamEventExpired carries a Command naming a purged conflict.
	StreamEventExpired = "conflict_expired"
)

// StreamEvent is one decoded message of the collaboration stream. Record is
// set for StreamEventConflict and Command for the other events.
type StreamEvent struct {
	Name    string
	Record  Record
	Command Command
}
