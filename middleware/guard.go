package middleware

import (
	"context"
	"net/http"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
)

// AccessCookieName is the cookie the HTTP transport stores the access token in.
const AccessCookieName = "accessToken"

// AccessValidator verifies access tokens. *goAccount.Engine implements it.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, accessToken string) (*goAccount.AuthResult, error)
}

// RejectFunc writes the response for a request the guard refused.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*goAccount.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goAccount.AuthResult)
	return res, ok
}

// WithAuthResult stores res the way Guard does. Tests use it to fake an
// authenticated request.
func WithAuthResult(ctx context.Context, res *goAccount.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard admits requests that carry a valid access token, either as a Bearer
// Authorization header or in the access cookie. The header wins when both
// are present. reject defaults to a plain 401.
func Guard(validator AccessValidator, reject RejectFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				reject(w, r, goAccount.ErrEngineNotReady)
				return
			}

			token, ok := accessToken(r)
			if !ok {
				reject(w, r, goAccount.ErrUnauthenticated)
				return
			}

			res, err := validator.ValidateAccess(r.Context(), token)
			if err != nil {
				reject(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

func accessToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		return bearerToken(h)
	}
	c, err := r.Cookie(AccessCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
