// auth.go implements handlers for registration, login, the password reset
// flow, and the current-user endpoint.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sentinel-dlp/sentinel-dlp/internal/config"
	"github.com/sentinel-dlp/sentinel-dlp/internal/middleware"
	"github.com/sentinel-dlp/sentinel-dlp/internal/services"
)

// AuthHandlers handles authentication endpoints
type AuthHandlers struct {
	cfg   *config.Config
	users *services.UserService
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cfg *config.Config, users *services.UserService) *AuthHandlers {
	return &AuthHandlers{cfg: cfg, users: users}
}

// LoginRequest is the login payload. Username accepts either a username or an
// email address.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

// ForgotPasswordRequest starts the password reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResetPasswordRequest carries the replacement password; the reset token
// travels in the URL path.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

// @Summary      Register
// @Description  Create a new account with the User role. Disabled unless auth.allow_registration is set.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  services.CreateUserInput  true  "Registration payload"
// @Success      201  {object}  map[string]interface{}  "user: models.User, token: string"
// @Failure      400  {object}  map[string]interface{}  "Validation error"
// @Failure      403  {object}  map[string]interface{}  "Registration disabled"
// @Failure      409  {object}  map[string]interface{}  "Username or email taken"
// @Router       /api/v1/auth/register [post]
// RegisterHandler creates a self-service account
// POST /api/v1/auth/register
func (h *AuthHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.cfg.Auth.AllowRegistration {
			c.JSON(http.StatusForbidden, gin.H{"error": "Registration is disabled"})
			return
		}

		var input services.CreateUserInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		user, token, err := h.users.Register(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
	}
}

// @Summary      Login
// @Description  Authenticate with username or email plus password and receive a bearer token.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  map[string]interface{}  "user: models.User, token: string"
// @Failure      401  {object}  map[string]interface{}  "Invalid credentials"
// @Failure      403  {object}  map[string]interface{}  "Account deactivated"
// @Router       /api/v1/auth/login [post]
// LoginHandler authenticates a user and issues a JWT
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		login := req.Username
		if login == "" {
			login = req.Email
		}
		if strings.TrimSpace(login) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username or email is required"})
			return
		}

		user, token, err := h.users.Login(c.Request.Context(), login, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
	}
}

// @Summary      Forgot password
// @Description  Start the password reset flow. Always returns 200 so callers cannot probe which emails exist.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  ForgotPasswordRequest  true  "Account email"
// @Success      200  {object}  map[string]interface{}  "message"
// @Router       /api/v1/auth/forgotpassword [post]
// ForgotPasswordHandler issues a password reset token
// POST /api/v1/auth/forgotpassword
func (h *AuthHandlers) ForgotPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		if err := h.users.BeginPasswordReset(c.Request.Context(), req.Email); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "If that email is registered, a reset link has been sent",
		})
	}
}

// @Summary      Reset password
// @Description  Redeem a single-use reset token for a new password. Issues a fresh bearer token on success.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        token  path  string                true  "Reset token from the email link"
// @Param        body   body  ResetPasswordRequest  true  "New password"
// @Success      200  {object}  map[string]interface{}  "user: models.User, token: string"
// @Failure      400  {object}  map[string]interface{}  "Invalid or expired token"
// @Router       /api/v1/auth/resetpassword/{token} [put]
// ResetPasswordHandler completes the password reset flow
// PUT /api/v1/auth/resetpassword/:token
func (h *AuthHandlers) ResetPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
			return
		}

		user, token, err := h.users.CompletePasswordReset(c.Request.Context(), c.Param("token"), req.NewPassword)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
	}
}

// @Summary      Current user
// @Description  Return the authenticated caller's account.
// @Tags         Auth
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "user: models.User"
// @Failure      401  {object}  map[string]interface{}  "Unauthorized"
// @Router       /api/v1/auth/me [get]
// MeHandler returns the caller's own account
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.CurrentIdentity(c)
		if identity == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		user, err := h.users.GetUser(c.Request.Context(), identity.ID)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
