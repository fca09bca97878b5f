// Package models - alert.go defines the detection Alert model: severity/status
// enums, analyst notes, a free-form data snapshot, and the append-only history.
package models

import (
	"database/sql/driver"
	"time"
)

// AlertStatus is an alert's triage state. Any status may transition to any other;
// the status change itself is what gets recorded in history.
type AlertStatus string

// Alert statuses.
const (
	AlertStatusNew           AlertStatus = "New"
	AlertStatusAcknowledged  AlertStatus = "Acknowledged"
	AlertStatusInvestigating AlertStatus = "Investigating"
	AlertStatusResolved      AlertStatus = "Resolved"
	AlertStatusClosed        AlertStatus = "Closed"
	AlertStatusFalsePositive AlertStatus = "FalsePositive"
)

// Valid reports whether s is one of the defined alert statuses.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusNew, AlertStatusAcknowledged, AlertStatusInvestigating,
		AlertStatusResolved, AlertStatusClosed, AlertStatusFalsePositive:
		return true
	}
	return false
}

// Severity is shared by alerts (and incidents, derived from their alerts).
type Severity string

// Severity levels.
const (
	SeverityLow           Severity = "Low"
	SeverityMedium        Severity = "Medium"
	SeverityHigh          Severity = "High"
	SeverityCritical      Severity = "Critical"
	SeverityInformational Severity = "Informational"
)

// Valid reports whether s is one of the defined severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityInformational:
		return true
	}
	return false
}

// AlertNote is one analyst note on an alert.
type AlertNote struct {
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NoteList is the JSONB notes column.
type NoteList []AlertNote

// Value implements driver.Valuer
func (l NoteList) Value() (driver.Value, error) {
	if l == nil {
		return jsonbValue([]AlertNote{})
	}
	return jsonbValue(l)
}

// Scan implements sql.Scanner
func (l *NoteList) Scan(src interface{}) error {
	return jsonbScan(src, l)
}

// Alert represents a detection alert. References to related entities (policy,
// users, incident) are identifiers only, resolved on read.
type Alert struct {
	ID          string      `db:"id" json:"id"`
	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	Severity    Severity    `db:"severity" json:"severity"`
	Status      AlertStatus `db:"status" json:"status"`
	// PolicyID references the policy whose rule fired, if any
	PolicyID *string `db:"policy_id" json:"policy_id,omitempty"`
	// UsersInvolved lists user IDs implicated by the alert
	UsersInvolved StringList `db:"users_involved" json:"users_involved"`
	// DataSnapshot is a free-form capture of the matched data at detection time.
	// The auto-classification job records the ML sensitivity score here.
	DataSnapshot JSONMap    `db:"data_snapshot" json:"data_snapshot,omitempty"`
	Source       string     `db:"source" json:"source"`
	Tags         StringList `db:"tags" json:"tags"`
	Notes        NoteList   `db:"notes" json:"notes"`
	AssignedTo   *string    `db:"assigned_to" json:"assigned_to,omitempty"`
	// IncidentID links to an escalated incident, if one was opened
	IncidentID *string `db:"incident_id" json:"incident_id,omitempty"`
	// GeneratedBy is the user who manually raised the alert; nil for system alerts
	GeneratedBy *string     `db:"generated_by" json:"generated_by,omitempty"`
	History     HistoryList `db:"history" json:"history"`
	// OccurredAt is when the alert was generated or observed
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// HistoryRef exposes the history column for the shared mutation plumbing.
func (a *Alert) HistoryRef() *HistoryList { return &a.History }
