// Package models - history.go defines the append-only history entry shared by
// Policy, Alert, and Incident. History lives in a JSONB column on the entity's own
// row so a mutation and its history append are one atomic UPDATE.
package models

import (
	"database/sql/driver"
	"time"
)

// HistoryEntry records a single change to an entity. Entries are append-only and
// ordered oldest-first; they are never reordered or truncated.
type HistoryEntry struct {
	// ActorID is the user who made the change; empty for system actions
	ActorID string `json:"actor_id,omitempty"`
	// Actor is the display username captured at mutation time
	Actor string `json:"actor,omitempty"`
	// Action is a human-readable description, e.g. "Status changed to Investigating"
	Action string `json:"action"`
	// Timestamp is when the change was persisted
	Timestamp time.Time `json:"timestamp"`
	// OldValue/NewValue optionally capture the before/after of the changed field
	OldValue interface{} `json:"old_value,omitempty"`
	NewValue interface{} `json:"new_value,omitempty"`
}

// HistoryList is the JSONB history column.
type HistoryList []HistoryEntry

// Value implements driver.Valuer
func (h HistoryList) Value() (driver.Value, error) {
	if h == nil {
		return jsonbValue([]HistoryEntry{})
	}
	return jsonbValue(h)
}

// Scan implements sql.Scanner
func (h *HistoryList) Scan(src interface{}) error {
	return jsonbScan(src, h)
}
