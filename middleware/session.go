package middleware

import (
	"context"
	"net/http"

	goAccount "github.com/MrEthical07/goAccount"
)

// SessionCounter reports live refresh sessions. *goAccount.Engine implements it.
type SessionCounter interface {
	ActiveSessionCount(ctx context.Context, userID string) (int, error)
}

// RequireActiveSession rejects callers whose sessions have all been revoked,
// so logout and password reset take effect before the access token expires.
// It costs one Redis round-trip per request and must run after Guard.
func RequireActiveSession(sessions SessionCounter, reject RejectFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				reject(w, r, goAccount.ErrUnauthenticated)
				return
			}
			n, err := sessions.ActiveSessionCount(r.Context(), res.UserID)
			if err != nil {
				reject(w, r, err)
				return
			}
			if n == 0 {
				reject(w, r, goAccount.ErrInvalidToken)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
