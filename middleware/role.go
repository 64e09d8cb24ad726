package middleware

import (
	"errors"
	"net/http"
	"slices"

	goAccount "github.com/MrEthical07/goAccount"
)

// ErrForbidden is passed to the reject func when the role does not match.
var ErrForbidden = errors.New("forbidden")

// RequireRole admits requests whose validated token carries one of roles.
// It must run after Guard; a request without an auth result is rejected as
// unauthenticated.
func RequireRole(reject RejectFunc, roles ...goAccount.Role) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				reject(w, r, goAccount.ErrUnauthenticated)
				return
			}
			if !slices.Contains(roles, res.Role) {
				reject(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
