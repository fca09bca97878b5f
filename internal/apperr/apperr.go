// Package apperr defines the typed error taxonomy shared by every service and
// repository in the backend. Handlers translate these sentinels into HTTP
// status codes at the boundary; anything that does not wrap one of them is
// treated as an internal failure and never exposed to the caller verbatim.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation marks malformed or missing caller input.
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized marks a missing, malformed, or expired credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden marks a valid identity whose role is not in the
	// operation's allow-set. Distinct from ErrUnauthorized by contract.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks an absent entity.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a uniqueness violation (username, email, policy name).
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition marks a state change rejected by an
	// entity-specific transition rule.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidOrExpiredToken marks a password-reset token that does not
	// match any stored hash or whose window has elapsed.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// ErrClassificationUnavailable marks an unreachable ML collaborator.
	// Callers must treat it as recoverable and proceed without a score.
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// ErrInternal marks storage or unexpected failures. The user-facing
	// message is always generic; detail stays in server-side logs.
	ErrInternal = errors.New("internal error")
)

// Status maps an error to the HTTP status code the handler layer should
// return. Unrecognized errors map to 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidOrExpiredToken):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrClassificationUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to expose to the caller. Errors outside the
// taxonomy collapse to a generic message so internals never leak.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "Server error"
	}
	return err.Error()
}
