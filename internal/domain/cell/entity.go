package cell

import (
	"encoding/json"
	"time"
)

// Cell is the value of one column on one item. Version increases by one on
// every accepted write and is what concurrent edits are checked against.
type Cell struct {
	ItemID        string
	ColumnID      string
	Value         json.RawMessage
	Version       int64
	UpdatedBy     string
	UpdatedByName string
	UpdatedAt     time.Time
}

// Edit is a write made against the version the editor last saw.
type Edit struct {
	ItemID      string
	ColumnID    string
	BaseVersion int64
	Value       json.RawMessage
	UserID      string
	UserName    string
}
