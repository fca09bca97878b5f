// resettoken.go implements one-time password-reset tokens. The raw token is
// returned exactly once to be handed to the notification collaborator; only its
// SHA-256 hash is ever persisted, alongside a short expiry.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ResetTokenLength is the number of random bytes in a reset token
const ResetTokenLength = 20

// GenerateResetToken creates a new password-reset token.
// Returns the raw token (to deliver to the user, never to store) and its
// SHA-256 hex hash (to persist).
func GenerateResetToken() (raw string, hash string, err error) {
	bytes := make([]byte, ResetTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	raw = hex.EncodeToString(bytes)
	return raw, HashResetToken(raw), nil
}

// HashResetToken returns the SHA-256 hex digest of a raw reset token. Used both
// at issuance (to store) and at redemption (to look up).
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
