package goAccount

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess            = "login_success"
	auditEventLoginFailure            = "login_failure"
	auditEventLoginRateLimited        = "login_rate_limited"
	auditEventRefreshSuccess          = "refresh_success"
	auditEventRefreshInvalid          = "refresh_invalid"
	auditEventRefreshReuseDetected    = "refresh_reuse_detected"
	auditEventLogout                  = "logout"
	auditEventRegisterSuccess         = "register_success"
	auditEventRegisterFailure         = "register_failure"
	auditEventPasswordRehashed        = "password_rehashed"
	auditEventPasswordResetRequest    = "password_reset_request"
	auditEventPasswordResetVerify     = "password_reset_verify"
	auditEventPasswordResetConfirm    = "password_reset_confirm"
	auditEventPasswordResetDelivery   = "password_reset_delivery_failure"
	auditEventRateLimitTriggered      = "rate_limit_triggered"
	auditEventSessionsEvictedOverflow = "sessions_evicted"
)

// criticalAuditEvents are delivered even when the audit buffer is set to
// drop on overflow.
var criticalAuditEvents = []string{
	auditEventRefreshReuseDetected,
	auditEventPasswordResetConfirm,
	auditEventSessionsEvictedOverflow,
}

// AuditErrorCode is the stable error label attached to failed audit events.
type AuditErrorCode string

const (
	auditErrBadRequest          AuditErrorCode = "bad_request"
	auditErrUnauthenticated     AuditErrorCode = "unauthenticated"
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrRoleInvalid         AuditErrorCode = "role_invalid"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrInvalidCode         AuditErrorCode = "invalid_code"
	auditErrAttemptsExceeded    AuditErrorCode = "attempts_exceeded"
	auditErrWindowExpired       AuditErrorCode = "window_expired"
	auditErrDelivery            AuditErrorCode = "delivery_failed"
	auditErrIssuance            AuditErrorCode = "issuance_failed"
	auditErrSessionInvalidation AuditErrorCode = "session_invalidation_failed"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, metadataBuilder func() map[string]string) {
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, "", ErrRateLimited, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrBadRequest):
		return auditErrBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrConflict):
		return auditErrDuplicate
	case errors.Is(err, ErrRoleInvalid):
		return auditErrRoleInvalid
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidOrExpiredCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrResetAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrResetWindowExpired):
		return auditErrWindowExpired
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDelivery
	case errors.Is(err, ErrIssuance):
		return auditErrIssuance
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
