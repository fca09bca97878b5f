// Package models - user.go defines the User model for operator accounts, the Role
// enum gating every operation, and the hashed password-reset token fields.
package models

import "time"

// Role is a user's access level. Operations declare a static allow-set of roles;
// the authorization gate checks membership, nothing more.
type Role string

// Role values, least to most privileged.
const (
	RoleUser              Role = "User"
	RoleAnalyst           Role = "Analyst"
	RoleIncidentResponder Role = "IncidentResponder"
	RoleAdmin             Role = "Admin"
	RoleSuperAdmin        Role = "SuperAdmin"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAnalyst, RoleIncidentResponder, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User represents an operator account. PasswordHash and the reset token fields are
// never serialized to API callers.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"` // stored lowercase, unique case-insensitively
	Email    string `json:"email"`    // stored lowercase, unique case-insensitively
	FullName string `json:"full_name"`
	// PasswordHash is the bcrypt hash of the password; the plaintext is never stored
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	// ResetTokenHash is the SHA-256 hex of an outstanding password-reset token;
	// nil when no reset is pending. Cleared on successful redemption (single-use).
	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
