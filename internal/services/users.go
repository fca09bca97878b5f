// users.go implements account lifecycle, login, and the password reset flow.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/auth"
	"github.com/sentinel-dlp/sentinel-dlp/internal/config"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/repositories"
	"github.com/sentinel-dlp/sentinel-dlp/internal/safego"
	"github.com/sentinel-dlp/sentinel-dlp/internal/telemetry"
)

// UserService implements account management, authentication, and the password
// reset flow on top of the user repository.
type UserService struct {
	users    *repositories.UserRepository
	cfg      *config.AuthConfig
	notifier Notifier
	logger   *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users *repositories.UserRepository, cfg *config.AuthConfig, notifier Notifier, logger *slog.Logger) *UserService {
	return &UserService{users: users, cfg: cfg, notifier: notifier, logger: logger}
}

// CreateUserInput carries the fields accepted on registration and admin
// creation. Role defaults to User; IsActive defaults to true.
type CreateUserInput struct {
	Username string      `json:"username" binding:"required"`
	Email    string      `json:"email" binding:"required"`
	FullName string      `json:"full_name"`
	Password string      `json:"password" binding:"required"`
	Role     models.Role `json:"role"`
	IsActive *bool       `json:"is_active"`
}

// UserPatch carries the mutable profile fields for admin updates. Nil fields
// are left unchanged.
type UserPatch struct {
	FullName *string      `json:"full_name"`
	Email    *string      `json:"email"`
	Role     *models.Role `json:"role"`
	IsActive *bool        `json:"is_active"`
}

func (p UserPatch) empty() bool {
	return p.FullName == nil && p.Email == nil && p.Role == nil && p.IsActive == nil
}

// CreateUser validates and persists a new account. Username and email are
// unique case-insensitively; collisions return ErrConflict.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*models.User, error) {
	if err := s.validateNewUser(&input); err != nil {
		return nil, err
	}

	taken, err := s.users.UsernameOrEmailExists(ctx, input.Username, input.Email, "")
	if err != nil {
		return nil, fmt.Errorf("checking user uniqueness: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: user already exists with this email or username", apperr.ErrConflict)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		Email:        input.Email,
		FullName:     input.FullName,
		PasswordHash: hash,
		Role:         input.Role,
		IsActive:     true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username, "role", user.Role)
	return user, nil
}

// Register creates a self-registered account and issues a bearer token for it.
func (s *UserService) Register(ctx context.Context, input CreateUserInput) (*models.User, string, error) {
	// Self-registration never grants elevated roles
	input.Role = models.RoleUser
	input.IsActive = nil

	user, err := s.CreateUser(ctx, input)
	if err != nil {
		return nil, "", err
	}

	token, err := auth.GenerateJWT(user, s.cfg.AccessTokenExpiry)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}
	return user, token, nil
}

// Login authenticates by username or email plus password and issues a bearer
// token. Unknown identifier and wrong password are indistinguishable to the
// caller; a deactivated account is reported distinctly.
func (s *UserService) Login(ctx context.Context, emailOrUsername, password string) (*models.User, string, error) {
	if emailOrUsername == "" || password == "" {
		return nil, "", fmt.Errorf("%w: please provide email/username and password", apperr.ErrValidation)
	}

	user, err := s.users.GetUserByLogin(ctx, emailOrUsername)
	if err != nil {
		return nil, "", fmt.Errorf("looking up user: %w", err)
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		telemetry.LoginAttemptsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, "", fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	if !user.IsActive {
		telemetry.LoginAttemptsTotal.WithLabelValues("deactivated").Inc()
		return nil, "", fmt.Errorf("%w: account is deactivated, please contact an administrator", apperr.ErrForbidden)
	}

	token, err := auth.GenerateJWT(user, s.cfg.AccessTokenExpiry)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	now := time.Now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		// Login still succeeds; the stamp is best effort
		s.logger.Warn("failed to record login time", "user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return user, token, nil
}

// GetUser retrieves a user by ID.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
	}
	return user, nil
}

// ListUsers retrieves a paginated user list plus the total count.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	return s.users.ListUsers(ctx, limit, offset)
}

// UpdateUser applies a partial profile update. An empty patch is rejected; an
// email change is checked for conflicts against all other accounts.
func (s *UserService) UpdateUser(ctx context.Context, userID string, patch UserPatch) (*models.User, error) {
	if patch.empty() {
		return nil, fmt.Errorf("%w: no fields to update provided", apperr.ErrValidation)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if patch.Email != nil && !strings.EqualFold(*patch.Email, user.Email) {
		if _, err := mail.ParseAddress(*patch.Email); err != nil {
			return nil, fmt.Errorf("%w: invalid email address", apperr.ErrValidation)
		}
		taken, err := s.users.UsernameOrEmailExists(ctx, "", *patch.Email, user.ID)
		if err != nil {
			return nil, fmt.Errorf("checking email uniqueness: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("%w: email already in use", apperr.ErrConflict)
		}
		user.Email = *patch.Email
	}
	if patch.FullName != nil {
		user.FullName = *patch.FullName
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, fmt.Errorf("%w: invalid role %q", apperr.ErrValidation, *patch.Role)
		}
		user.Role = *patch.Role
	}
	if patch.IsActive != nil {
		user.IsActive = *patch.IsActive
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}

	s.logger.Info("user updated", "user_id", user.ID)
	return user, nil
}

// DeleteUser removes an account.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, user.ID); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	s.logger.Info("user deleted", "user_id", user.ID, "username", user.Username)
	return nil
}

// BeginPasswordReset starts the reset flow for an email address. The outcome
// is identical whether or not the address matches an account, so the endpoint
// cannot be used to enumerate users. Only the token hash is persisted; the
// plaintext goes to the notifier and is never stored or logged.
func (s *UserService) BeginPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return nil
	}

	rawToken, tokenHash, err := auth.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}

	expiresAt := time.Now().Add(s.cfg.ResetTokenExpiry)
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("storing reset token: %w", err)
	}

	telemetry.PasswordResetsTotal.WithLabelValues("requested").Inc()
	s.logger.Info("password reset requested", "user_id", user.ID)

	// Delivery happens off the request path; a slow SMTP server must not
	// change the response timing relative to the unknown-address case.
	email, fullName := user.Email, user.FullName
	safego.Go(func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.SendPasswordReset(sendCtx, email, fullName, rawToken); err != nil {
			s.logger.Error("password reset email delivery failed", "error", err)
		}
	})

	return nil
}

// CompletePasswordReset redeems a reset token, stores the new password, and
// issues a fresh bearer token. Redemption clears the stored token hash, so a
// token is single-use even inside its expiry window.
func (s *UserService) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) (*models.User, string, error) {
	if err := s.validatePassword(newPassword); err != nil {
		return nil, "", err
	}

	user, err := s.users.GetUserByResetTokenHash(ctx, auth.HashResetToken(rawToken))
	if err != nil {
		return nil, "", fmt.Errorf("looking up reset token: %w", err)
	}
	if user == nil {
		return nil, "", apperr.ErrInvalidOrExpiredToken
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	if err := s.users.CompletePasswordReset(ctx, user.ID, hash); err != nil {
		return nil, "", fmt.Errorf("completing password reset: %w", err)
	}

	token, err := auth.GenerateJWT(user, s.cfg.AccessTokenExpiry)
	if err != nil {
		return nil, "", fmt.Errorf("issuing token: %w", err)
	}

	telemetry.PasswordResetsTotal.WithLabelValues("completed").Inc()
	s.logger.Info("password reset completed", "user_id", user.ID)
	return user, token, nil
}

// validateNewUser normalizes defaults and checks the creation input.
func (s *UserService) validateNewUser(input *CreateUserInput) error {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if input.Username == "" {
		return fmt.Errorf("%w: username is required", apperr.ErrValidation)
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return fmt.Errorf("%w: invalid email address", apperr.ErrValidation)
	}
	if err := s.validatePassword(input.Password); err != nil {
		return err
	}
	if input.Role == "" {
		input.Role = models.RoleUser
	}
	if !input.Role.Valid() {
		return fmt.Errorf("%w: invalid role %q", apperr.ErrValidation, input.Role)
	}
	return nil
}

func (s *UserService) validatePassword(password string) error {
	if len(password) < s.cfg.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", apperr.ErrValidation, s.cfg.MinPasswordLength)
	}
	return nil
}
