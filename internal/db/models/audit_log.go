// Package models - audit_log.go defines the AuditLog model for recording
// security-relevant API activity, capturing actor, action, affected resource,
// client IP, and arbitrary metadata.
package models

import "time"

// AuditLog represents one recorded API action.
type AuditLog struct {
	ID     string  `json:"id"`
	UserID *string `json:"user_id,omitempty"` // nil for unauthenticated or system actions
	Action string  `json:"action"`            // "alert.update", "policy.create", "user.delete"
	// ResourceType/ResourceID identify the affected entity, when one exists
	ResourceType *string   `json:"resource_type,omitempty"` // "user", "policy", "alert", "incident"
	ResourceID   *string   `json:"resource_id,omitempty"`
	Metadata     JSONMap   `json:"metadata,omitempty"` // additional context (changed fields, request path, status)
	IPAddress    *string   `json:"ip_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
