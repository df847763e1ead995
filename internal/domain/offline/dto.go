package offline

import (
	"fmt"

	"github.com/cmlabs-hris/hris-sync/internal/pkg/validator"
)

// MaxBatchSize bounds the number of actions replayed per sync request.
const MaxBatchSize = 100

// SyncRequest is the body of the batch sync endpoint.
type SyncRequest struct {
	Actions []QueuedAction `json:"actions"`
}

func (r *SyncRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.Actions) == 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "actions",
			Message: "actions must not be empty",
		})
	}
	if len(r.Actions) > MaxBatchSize {
		errs = append(errs, validator.ValidationError{
			Field:   "actions",
			Message: fmt.Sprintf("actions must not exceed %d entries", MaxBatchSize),
		})
	}
	for i, a := range r.Actions {
		if validator.IsEmpty(a.ID) {
			errs = append(errs, validator.ValidationError{
				Field:   fmt.Sprintf("actions[%d].id", i),
				Message: "id is required",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks a single action before it is queued or replayed.
func (a *QueuedAction) Validate() error {
	var errs validator.ValidationErrors

	if !a.Kind.Valid() {
		errs = append(errs, validator.ValidationError{Field: "kind", Message: "unsupported action kind"})
	}
	if !validator.IsValidResourceID(a.ItemID) {
		errs = append(errs, validator.ValidationError{Field: "item_id", Message: "item_id is invalid"})
	}
	if !validator.IsValidResourceID(a.ColumnID) {
		errs = append(errs, validator.ValidationError{Field: "column_id", Message: "column_id is invalid"})
	}
	if a.BaseVersion < 0 {
		errs = append(errs, validator.ValidationError{Field: "base_version", Message: "base_version must not be negative"})
	}
	if !validator.IsValidJSON(a.Value) {
		errs = append(errs, validator.ValidationError{Field: "value", Message: "value must be a JSON value"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ActionResult reports what happened to one action of a batch.
type ActionResult struct {
	ActionID   string  `json:"action_id"`
	Outcome    Outcome `json:"outcome"`
	ConflictID *string `json:"conflict_id,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// SyncResponse is returned by the batch sync endpoint.
type SyncResponse struct {
	Result
	Results []ActionResult `json:"results"`
}
