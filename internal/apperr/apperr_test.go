package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidTransition, http.StatusBadRequest},
		{ErrInvalidOrExpiredToken, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrClassificationUnavailable, http.StatusServiceUnavailable},
		{ErrInternal, http.StatusInternalServerError},
		{errors.New("driver: bad connection"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestStatusWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("%w: policy name already exists", ErrConflict)
	if got := Status(wrapped); got != http.StatusConflict {
		t.Errorf("Status(wrapped conflict) = %d, want 409", got)
	}
}

func TestMessageHidesInternals(t *testing.T) {
	internal := errors.New("pq: relation \"users\" does not exist")
	if got := Message(internal); got != "Server error" {
		t.Errorf("Message leaked internals: %q", got)
	}

	wrapped := fmt.Errorf("%w: username is required", ErrValidation)
	if got := Message(wrapped); got != "validation error: username is required" {
		t.Errorf("Message(validation) = %q", got)
	}
}
