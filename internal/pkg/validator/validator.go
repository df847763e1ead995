package validator

import (
	"encoding/json"
	"regexp"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var msgs []string
	for _, err := range v {
		msgs = append(msgs, err.Field+": "+err.Message)
	}
	return strings.Join(msgs, "; ")
}

func (v ValidationErrors) ToMap() map[string]string {
	result := make(map[string]string)
	for _, err := range v {
		result[err.Field] = err.Message
	}
	return result
}

// IsEmpty checks if a string is empty after trimming whitespace.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Resource IDs: 1-64 chars, A-Z, a-z, 0-9, _, -
var resourceIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// IsValidResourceID accepts UUIDs as well as the short slugs used for seeded boards.
func IsValidResourceID(id string) bool {
	return resourceIDRegex.MatchString(id)
}

// IsValidJSON reports whether raw holds exactly one JSON value.
func IsValidJSON(raw []byte) bool {
	return len(raw) > 0 && json.Valid(raw)
}
