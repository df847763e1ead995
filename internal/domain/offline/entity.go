package offline

import (
	"encoding/json"
	"time"
)

// ActionKind names the mutation a queued action replays.
type ActionKind string

const (
	KindCellUpdate ActionKind = "cell.update"
)

func (k ActionKind) Valid() bool {
	return k == KindCellUpdate
}

// QueuedAction is a mutation buffered on the client while it was offline.
type QueuedAction struct {
	ID          string          `json:"id"`
	Kind        ActionKind      `json:"kind"`
	ItemID      string          `json:"item_id"`
	ColumnID    string          `json:"column_id"`
	BaseVersion int64           `json:"base_version"`
	Value       json.RawMessage `json:"value"`
	QueuedAt    time.Time       `json:"queued_at"`
}

// Result counts the outcome of one sync run.
type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Outcome is the fate of a single replayed action.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeForbidden Outcome = "forbidden"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeConflict  Outcome = "conflict"
)

// Processed reports whether o counts towards Result.Processed.
func (o Outcome) Processed() bool {
	return o == OutcomeApplied
}
