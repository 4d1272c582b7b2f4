package middleware

import (
	"errors"
	"net/http"

	authority "github.com/Samson23-ux/authority"
)

// StatusForError maps an Authority error to an HTTP status. Everything under
// ErrAuthentication is the caller's fault and answers 401; rate-limited calls
// answer 429; anything else is a backend failure and answers 500.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authority.ErrSignInRateLimited),
		errors.Is(err, authority.ErrRefreshRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, authority.ErrAuthentication):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
