package conflict

import (
	"encoding/json"

	"github.com/cmlabs-hris/hris-sync/internal/pkg/validator"
)

// ResolveRequest is the body of a resolution request.
type ResolveRequest struct {
	Resolution  Resolution      `json:"resolution"`
	MergedValue json.RawMessage `json:"merged_value,omitempty"`
}

func (r *ResolveRequest) Validate() error {
	var errs validator.ValidationErrors

	if !r.Resolution.Valid() {
		errs = append(errs, validator.ValidationError{
			Field:   "resolution",
			Message: "resolution must be one of keep_current, use_incoming, merge",
		})
	}
	if r.Resolution == ResolutionMerge && len(r.MergedValue) == 0 {
		errs = append(errs, validator.ValidationError{
			Field:   "merged_value",
			Message: "merged_value is required for merge",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SSETokenResponse carries the short-lived token for the conflict stream.
type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
