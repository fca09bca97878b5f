// Package auth provides the authentication primitives for the backend: bearer
// token issuance and verification, bcrypt password hashing, one-time
// password-reset tokens, and per-operation role allow-sets.
// See internal/middleware/auth.go for the request-time authentication logic that uses these primitives.
package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt password hashing
const BcryptCost = 10

// HashPassword hashes a plaintext password with bcrypt. The plaintext is never
// stored anywhere.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
// A mismatch is a plain false, never an error.
func CheckPassword(plaintext, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}
