// Package models - policy.go defines the enforcement Policy model: stored
// conditions and actions (configuration, not interpreted here), a monotonically
// increasing version counter, and an audit history.
package models

import (
	"database/sql/driver"
	"time"
)

// PolicyCondition is one stored matching rule. Conditions are configuration
// evaluated by an external enforcement point, never interpreted by this backend.
type PolicyCondition struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"` // contains, equals, matches_regex, ...
	Value    interface{} `json:"value"`
	DataType string      `json:"data_type,omitempty"` // string, number, boolean, date, array_string
}

// PolicyAction is one stored enforcement action.
type PolicyAction struct {
	Type       string  `json:"type"` // alert, block, log, encrypt, notify_user, quarantine, require_justification
	Parameters JSONMap `json:"parameters,omitempty"`
}

// PolicyScope defines where a policy applies.
type PolicyScope struct {
	Users      []string `json:"users,omitempty"`
	UserGroups []string `json:"user_groups,omitempty"`
}

// ConditionList is the JSONB conditions column.
type ConditionList []PolicyCondition

// Value implements driver.Valuer
func (l ConditionList) Value() (driver.Value, error) {
	if l == nil {
		return jsonbValue([]PolicyCondition{})
	}
	return jsonbValue(l)
}

// Scan implements sql.Scanner
func (l *ConditionList) Scan(src interface{}) error {
	return jsonbScan(src, l)
}

// ActionList is the JSONB actions column.
type ActionList []PolicyAction

// Value implements driver.Valuer
func (l ActionList) Value() (driver.Value, error) {
	if l == nil {
		return jsonbValue([]PolicyAction{})
	}
	return jsonbValue(l)
}

// Scan implements sql.Scanner
func (l *ActionList) Scan(src interface{}) error {
	return jsonbScan(src, l)
}

// Value implements driver.Valuer
func (s PolicyScope) Value() (driver.Value, error) {
	return jsonbValue(s)
}

// Scan implements sql.Scanner
func (s *PolicyScope) Scan(src interface{}) error {
	return jsonbScan(src, s)
}

// Policy represents an enforcement policy. Name is unique across all policies.
// Version starts at 1 on creation and increments by exactly 1 on every
// successful update.
type Policy struct {
	ID          string        `db:"id" json:"id"`
	Name        string        `db:"name" json:"name"`
	Description string        `db:"description" json:"description"`
	IsEnabled   bool          `db:"is_enabled" json:"is_enabled"`
	Conditions  ConditionList `db:"conditions" json:"conditions"`
	Actions     ActionList    `db:"actions" json:"actions"`
	Tags        StringList    `db:"tags" json:"tags"`
	Scope       PolicyScope   `db:"scope" json:"scope"`
	Version     int           `db:"version" json:"version"`
	History     HistoryList   `db:"history" json:"history"`
	CreatedBy   string        `db:"created_by" json:"created_by"`
	UpdatedBy   string        `db:"updated_by" json:"updated_by"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// HistoryRef exposes the history column for the shared mutation plumbing.
func (p *Policy) HistoryRef() *HistoryList { return &p.History }
