package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
)

type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{StatusCode: status, Data: data, Message: message})
}

// publicErrors are the sentinels whose text is safe to show to callers.
// Order matters: the first match wins.
var publicErrors = []error{
	middleware.ErrForbidden,
	goAccount.ErrRateLimited,
	goAccount.ErrInvalidCredentials,
	goAccount.ErrResetAttemptsExceeded,
	goAccount.ErrResetWindowExpired,
	goAccount.ErrInvalidOrExpiredCode,
	goAccount.ErrPasswordPolicy,
	goAccount.ErrRoleInvalid,
	goAccount.ErrConflict,
	goAccount.ErrUserNotFound,
	goAccount.ErrInvalidToken,
	goAccount.ErrUnauthenticated,
	goAccount.ErrBadRequest,
}

const internalMessage = "internal server error"

func statusFor(err error) int {
	if errors.Is(err, middleware.ErrForbidden) {
		return http.StatusForbidden
	}
	switch goAccount.KindOf(err) {
	case goAccount.KindBadRequest:
		return http.StatusBadRequest
	case goAccount.KindUnauthenticated, goAccount.KindInvalidToken:
		return http.StatusUnauthorized
	case goAccount.KindNotFound:
		return http.StatusNotFound
	case goAccount.KindConflict:
		return http.StatusConflict
	case goAccount.KindTimeout:
		return http.StatusRequestTimeout
	case goAccount.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return internalMessage
	}
	for _, sentinel := range publicErrors {
		if errors.Is(err, sentinel) {
			if errors.Is(sentinel, goAccount.ErrPasswordPolicy) {
				// keeps the violated rule, e.g. "password too short"
				return err.Error()
			}
			return sentinel.Error()
		}
	}
	return http.StatusText(status)
}

// writeError maps err onto the envelope. Internal causes are logged and
// replaced by a fixed message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, nil, publicMessage(err, status))
}
