// Package repositories implements the data access layer (repository pattern) for the backend.
// Each repository type encapsulates all database queries for a domain entity.
// Services never issue SQL directly — all database access goes through this layer, which makes query logic testable in isolation and prevents accidental cross-domain data access.
package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser creates a new user. Username and email are stored lowercased;
// uniqueness is enforced case-insensitively by the schema.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = uuid.New().String()
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	query := `
		INSERT INTO users (id, username, email, full_name, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return err
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `
		SELECT id, username, email, full_name, password_hash, role, is_active,
		       last_login_at, reset_token_hash, reset_token_expires_at, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, userID))
}

// GetUserByLogin retrieves a user by username or email (case-insensitive).
// Login accepts either identifier interchangeably.
func (r *UserRepository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `
		SELECT id, username, email, full_name, password_hash, role, is_active,
		       last_login_at, reset_token_hash, reset_token_expires_at, created_at, updated_at
		FROM users
		WHERE lower(username) = lower($1) OR lower(email) = lower($1)
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, login))
}

// GetUserByEmail retrieves a user by email (case-insensitive)
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, username, email, full_name, password_hash, role, is_active,
		       last_login_at, reset_token_hash, reset_token_expires_at, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetUserByResetTokenHash retrieves a user whose stored reset-token hash matches
// and whose redemption window has not elapsed. Expired or unknown tokens return
// (nil, nil) indistinguishably.
func (r *UserRepository) GetUserByResetTokenHash(ctx context.Context, tokenHash string) (*models.User, error) {
	query := `
		SELECT id, username, email, full_name, password_hash, role, is_active,
		       last_login_at, reset_token_hash, reset_token_expires_at, created_at, updated_at
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires_at > now()
	`

	return r.scanUser(r.db.QueryRowContext(ctx, query, tokenHash))
}

// UsernameOrEmailExists reports whether any user other than excludeID already
// holds the given username or email (case-insensitive). Pass excludeID = "" for
// creation checks.
func (r *UserRepository) UsernameOrEmailExists(ctx context.Context, username, email, excludeID string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM users
		WHERE (lower(username) = lower($1) OR lower(email) = lower($2)) AND id != $3
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, username, email, excludeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateUser updates a user's mutable profile fields
func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	user.Username = strings.ToLower(user.Username)
	user.Email = strings.ToLower(user.Email)
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET username = $2, email = $3, full_name = $4, role = $5, is_active = $6, updated_at = $7
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.FullName,
		user.Role,
		user.IsActive,
		user.UpdatedAt,
	)

	return err
}

// RecordLogin stamps last_login_at after a successful authentication
func (r *UserRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_login_at = $2, updated_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, userID, at)
	return err
}

// SetResetToken persists the hash and expiry of an outstanding password-reset
// token. Only the hash is ever stored; the plaintext token goes to the
// notification collaborator and nowhere else.
func (r *UserRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, tokenHash, expiresAt)
	return err
}

// CompletePasswordReset stores the new password hash and clears the reset token
// fields in one statement, making the token single-use.
func (r *UserRepository) CompletePasswordReset(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, passwordHash)
	return err
}

// UpdatePassword stores a new password hash outside the reset flow (admin or
// self-service password change)
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, userID, passwordHash)
	return err
}

// DeleteUser deletes a user
func (r *UserRepository) DeleteUser(ctx context.Context, userID string) error {
	query := `DELETE FROM users WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// ListUsers retrieves a paginated list of users
func (r *UserRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	// Get total count
	var total int
	countQuery := `SELECT COUNT(*) FROM users`
	err := r.db.QueryRowContext(ctx, countQuery).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	// Get paginated users
	query := `
		SELECT id, username, email, full_name, password_hash, role, is_active,
		       last_login_at, reset_token_hash, reset_token_expires_at, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.FullName,
			&user.PasswordHash,
			&user.Role,
			&user.IsActive,
			&user.LastLoginAt,
			&user.ResetTokenHash,
			&user.ResetTokenExpiresAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, total, rows.Err()
}

// scanUser scans a single user row, mapping sql.ErrNoRows to (nil, nil)
func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.LastLoginAt,
		&user.ResetTokenHash,
		&user.ResetTokenExpiresAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}
