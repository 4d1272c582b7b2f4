package middleware

import (
	"context"
	"net/http"

	authority "github.com/Samson23-ux/authority"
)

// GuardRefresh returns middleware that requires a valid refresh credential in
// the named cookie. The credential is checked without being consumed, so the
// wrapped handler can still present it for rotation or sign-out.
func GuardRefresh(a *authority.Authority, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := a.ValidateRefresh(r.Context(), cookie.Value)
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
