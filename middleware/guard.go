package middleware

import (
	"context"
	"net/http"
	"strings"

	authority "github.com/Samson23-ux/authority"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the validated identity injected by a guard.
func AuthResultFromContext(ctx context.Context) (*authority.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authority.AuthResult)
	return res, ok
}

// Guard returns middleware that requires a valid bearer access token.
// Authentication failures answer 401, backend failures 500.
func Guard(a *authority.Authority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := a.ValidateAccess(r.Context(), token)
			if err != nil {
				status := StatusForError(err)
				http.Error(w, http.StatusText(status), status)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
