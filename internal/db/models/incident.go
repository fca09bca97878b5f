// Package models - incident.go defines the escalated Incident model: response
// lifecycle status, newest-first comments, resolution details set exactly once,
// and the append-only history.
package models

import (
	"database/sql/driver"
	"time"
)

// IncidentStatus is an incident's response-lifecycle state. Any status may
// transition to any other.
type IncidentStatus string

// Incident statuses.
const (
	IncidentStatusOpen           IncidentStatus = "Open"
	IncidentStatusInvestigating  IncidentStatus = "Investigating"
	IncidentStatusContained      IncidentStatus = "Contained"
	IncidentStatusEradicated     IncidentStatus = "Eradicated"
	IncidentStatusRecovered      IncidentStatus = "Recovered"
	IncidentStatusLessonsLearned IncidentStatus = "LessonsLearned"
	IncidentStatusClosed         IncidentStatus = "Closed"
	IncidentStatusOnHold         IncidentStatus = "OnHold"
)

// Valid reports whether s is one of the defined incident statuses.
func (s IncidentStatus) Valid() bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusInvestigating, IncidentStatusContained,
		IncidentStatusEradicated, IncidentStatusRecovered, IncidentStatusLessonsLearned,
		IncidentStatusClosed, IncidentStatusOnHold:
		return true
	}
	return false
}

// TerminalResolved reports whether s is a terminal resolved state. The first
// transition into such a state fixes ResolutionDetails.ResolvedAt; re-entry
// never overwrites it.
func (s IncidentStatus) TerminalResolved() bool {
	return s == IncidentStatusClosed
}

// IncidentPriority is an incident's handling priority.
type IncidentPriority string

// Incident priorities.
const (
	IncidentPriorityLow      IncidentPriority = "Low"
	IncidentPriorityMedium   IncidentPriority = "Medium"
	IncidentPriorityHigh     IncidentPriority = "High"
	IncidentPriorityCritical IncidentPriority = "Critical"
)

// Valid reports whether p is one of the defined priorities.
func (p IncidentPriority) Valid() bool {
	switch p {
	case IncidentPriorityLow, IncidentPriorityMedium, IncidentPriorityHigh, IncidentPriorityCritical:
		return true
	}
	return false
}

// IncidentComment is one responder comment. Comments are ordered newest-first.
type IncidentComment struct {
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// CommentList is the JSONB comments column, ordered newest-first.
type CommentList []IncidentComment

// Value implements driver.Valuer
func (l CommentList) Value() (driver.Value, error) {
	if l == nil {
		return jsonbValue([]IncidentComment{})
	}
	return jsonbValue(l)
}

// Scan implements sql.Scanner
func (l *CommentList) Scan(src interface{}) error {
	return jsonbScan(src, l)
}

// ResolutionDetails records how an incident was resolved. ResolvedAt is set the
// first time the incident enters a terminal resolved status and never changed.
type ResolutionDetails struct {
	Summary      string     `json:"summary,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy   string     `json:"resolved_by,omitempty"`
	ActionsTaken []string   `json:"actions_taken,omitempty"`
}

// Value implements driver.Valuer
func (r ResolutionDetails) Value() (driver.Value, error) {
	return jsonbValue(r)
}

// Scan implements sql.Scanner
func (r *ResolutionDetails) Scan(src interface{}) error {
	return jsonbScan(src, r)
}

// ImpactAssessment captures the assessed blast radius of an incident.
type ImpactAssessment struct {
	BusinessImpact  string `json:"business_impact,omitempty"`
	TechnicalImpact string `json:"technical_impact,omitempty"`
	DataImpact      string `json:"data_impact,omitempty"`
}

// Value implements driver.Valuer
func (i ImpactAssessment) Value() (driver.Value, error) {
	return jsonbValue(i)
}

// Scan implements sql.Scanner
func (i *ImpactAssessment) Scan(src interface{}) error {
	return jsonbScan(src, i)
}

// Incident represents an escalated security incident.
type Incident struct {
	ID          string           `db:"id" json:"id"`
	Title       string           `db:"title" json:"title"`
	Description string           `db:"description" json:"description"`
	Status      IncidentStatus   `db:"status" json:"status"`
	Priority    IncidentPriority `db:"priority" json:"priority"`
	Severity    Severity         `db:"severity" json:"severity"`
	Assignee    *string          `db:"assignee" json:"assignee,omitempty"`
	// RelatedAlerts lists alert IDs folded into this incident
	RelatedAlerts StringList        `db:"related_alerts" json:"related_alerts"`
	Comments      CommentList       `db:"comments" json:"comments"`
	Tags          StringList        `db:"tags" json:"tags"`
	Resolution    ResolutionDetails `db:"resolution" json:"resolution"`
	Impact        ImpactAssessment  `db:"impact" json:"impact"`
	// Source describes the incident vector, e.g. Phishing, Malware, Insider Threat
	Source string `db:"source" json:"source"`
	// Response timeline markers
	DetectedAt   time.Time   `db:"detected_at" json:"detected_at"`
	ContainedAt  *time.Time  `db:"contained_at" json:"contained_at,omitempty"`
	EradicatedAt *time.Time  `db:"eradicated_at" json:"eradicated_at,omitempty"`
	RecoveredAt  *time.Time  `db:"recovered_at" json:"recovered_at,omitempty"`
	History      HistoryList `db:"history" json:"history"`
	CreatedBy    string      `db:"created_by" json:"created_by"`
	UpdatedBy    string      `db:"updated_by" json:"updated_by"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// HistoryRef exposes the history column for the shared mutation plumbing.
func (i *Incident) HistoryRef() *HistoryList { return &i.History }
