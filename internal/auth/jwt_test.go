package auth

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sentinel-dlp/sentinel-dlp/internal/apperr"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// resetJWTSecret resets the package-level sync.Once so tests can set a fresh secret.
// This is only safe to call from test code.
func resetJWTSecret() {
	jwtSecret = ""
	jwtSecretOnce = sync.Once{}
	jwtSecretErr = nil
}

func TestMain(m *testing.M) {
	// Set a known test secret before any test runs.
	// The sync.Once will capture this value on first call to ValidateJWTSecret.
	os.Setenv("SDLP_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")
	os.Exit(m.Run())
}

func testUser() *models.User {
	return &models.User{
		ID:       "user-123",
		Username: "alice",
		Role:     models.RoleAnalyst,
		IsActive: true,
	}
}

func TestValidateJWTSecret(t *testing.T) {
	t.Run("valid secret from env", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("SDLP_JWT_SECRET", "exactly-32-char-secret-for-test!!")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error: %v", err)
		}
	})

	t.Run("production mode requires secret", func(t *testing.T) {
		resetJWTSecret()
		// Unset all dev-mode indicators and the secret itself
		t.Setenv("SDLP_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "")
		t.Setenv("GIN_MODE", "release")
		if err := ValidateJWTSecret(); err == nil {
			t.Error("ValidateJWTSecret() expected error in production mode without secret, got nil")
		}
	})

	t.Run("dev mode generates random secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("SDLP_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "true")
		if err := ValidateJWTSecret(); err != nil {
			t.Errorf("ValidateJWTSecret() unexpected error in dev mode: %v", err)
		}
		if GetJWTSecret() == "" {
			t.Error("GetJWTSecret() returned empty string after dev mode init")
		}
	})
}

func TestGenerateAndValidateJWT(t *testing.T) {
	resetJWTSecret()
	t.Setenv("SDLP_JWT_SECRET", "test-jwt-secret-that-is-32-chars-!")

	t.Run("round trip", func(t *testing.T) {
		user := testUser()

		token, err := GenerateJWT(user, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT() error: %v", err)
		}
		if token == "" {
			t.Fatal("GenerateJWT() returned empty token")
		}

		claims, err := ValidateJWT(token)
		if err != nil {
			t.Fatalf("ValidateJWT() error: %v", err)
		}
		if claims.UserID != user.ID {
			t.Errorf("claims.UserID = %q, want %q", claims.UserID, user.ID)
		}
		if claims.Username != user.Username {
			t.Errorf("claims.Username = %q, want %q", claims.Username, user.Username)
		}
		if claims.Role != user.Role {
			t.Errorf("claims.Role = %q, want %q", claims.Role, user.Role)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := GenerateJWT(testUser(), -time.Minute)
		if err != nil {
			t.Fatalf("GenerateJWT() error: %v", err)
		}

		_, err = ValidateJWT(token)
		if !errors.Is(err, ErrExpiredToken) {
			t.Errorf("ValidateJWT(expired) = %v, want ErrExpiredToken", err)
		}
		if !errors.Is(err, apperr.ErrUnauthorized) {
			t.Error("expired token error should wrap ErrUnauthorized")
		}
	})

	t.Run("tampered token", func(t *testing.T) {
		token, err := GenerateJWT(testUser(), time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT() error: %v", err)
		}

		_, err = ValidateJWT(token + "x")
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateJWT(tampered) = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := ValidateJWT("not-a-jwt")
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("ValidateJWT(garbage) = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("zero expiry defaults to one hour", func(t *testing.T) {
		token, err := GenerateJWT(testUser(), 0)
		if err != nil {
			t.Fatalf("GenerateJWT() error: %v", err)
		}

		claims, err := ValidateJWT(token)
		if err != nil {
			t.Fatalf("ValidateJWT() error: %v", err)
		}
		remaining := time.Until(claims.ExpiresAt.Time)
		if remaining < 55*time.Minute || remaining > 65*time.Minute {
			t.Errorf("default expiry = %v from now, want ~1h", remaining)
		}
	})
}
