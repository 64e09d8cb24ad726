package goAccount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	internalflows "github.com/MrEthical07/goAccount/internal/flows"
	"github.com/MrEthical07/goAccount/internal/rate"
	"github.com/MrEthical07/goAccount/password"
)

// RequestResetCode issues (or replaces) the reset code of the account
// registered under email and mails it. A failed delivery leaves the code
// issued; it is reported as DeliveryWarning unless
// PasswordReset.FailOnDeliveryError is set.
func (e *Engine) RequestResetCode(ctx context.Context, email string) (ResetRequestResult, error) {
	if !e.ready() || e.resetStore == nil {
		return ResetRequestResult{}, ErrEngineNotReady
	}

	res := internalflows.RunRequestResetCode(ctx, email, e.passwordResetFlowDeps())
	if res.Failure == internalflows.ResetFailureNone {
		e.metricInc(MetricPasswordResetRequest)
		out := ResetRequestResult{ExpiresAt: res.ExpiresAt}
		if res.DeliveryErr != nil {
			e.metricInc(MetricPasswordResetDeliveryFailure)
			e.emitAudit(ctx, auditEventPasswordResetDelivery, false, res.UserID, ErrDeliveryFailed, nil)
			out.DeliveryWarning = fmt.Errorf("%w: %v", ErrDeliveryFailed, res.DeliveryErr)
		}
		e.emitAudit(ctx, auditEventPasswordResetRequest, true, res.UserID, nil, nil)
		return out, nil
	}

	err := e.mapResetFailure(ctx, res.Failure, res.Err, "request")
	if res.Failure == internalflows.ResetFailureDelivery {
		e.metricInc(MetricPasswordResetRequest)
		e.metricInc(MetricPasswordResetDeliveryFailure)
	}
	e.emitAudit(ctx, auditEventPasswordResetRequest, false, res.UserID, err, nil)
	return ResetRequestResult{}, err
}

// VerifyResetCode checks code without consuming it. A non-empty email
// scopes the check to that account; an empty one matches the code against
// every outstanding code.
func (e *Engine) VerifyResetCode(ctx context.Context, email, code string) error {
	if !e.ready() || e.resetStore == nil {
		return ErrEngineNotReady
	}

	res := internalflows.RunVerifyResetCode(ctx, email, code, e.passwordResetFlowDeps())
	if res.Failure == internalflows.ResetFailureNone {
		e.metricInc(MetricPasswordResetVerifySuccess)
		e.emitAudit(ctx, auditEventPasswordResetVerify, true, res.UserID, nil, nil)
		return nil
	}

	err := e.mapResetFailure(ctx, res.Failure, res.Err, "verify")
	e.metricInc(MetricPasswordResetVerifyFailure)
	e.emitAudit(ctx, auditEventPasswordResetVerify, false, res.UserID, err, nil)
	return err
}

// ResetPassword consumes the outstanding code of email, stores the new
// password hash and revokes every session of the account.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if !e.ready() || e.resetStore == nil {
		return ErrEngineNotReady
	}

	res := internalflows.RunResetPassword(ctx, email, code, newPassword, e.passwordResetFlowDeps())
	if res.Failure == internalflows.ResetFailureNone {
		e.metricInc(MetricPasswordResetConfirmSuccess)
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, true, res.UserID, nil, nil)
		return nil
	}

	err := e.mapResetFailure(ctx, res.Failure, res.Err, "confirm")
	if res.Failure == internalflows.ResetFailureAttemptsExceeded {
		e.metricInc(MetricPasswordResetAttemptsExceeded)
	}
	e.metricInc(MetricPasswordResetConfirmFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, res.UserID, err, nil)
	return err
}

func (e *Engine) mapResetFailure(ctx context.Context, kind internalflows.ResetFailureKind, cause error, scope string) error {
	switch kind {
	case internalflows.ResetFailureBadRequest:
		return ErrBadRequest
	case internalflows.ResetFailureRateLimited:
		if cause == nil || errors.Is(cause, rate.ErrRateLimited) {
			e.metricInc(MetricPasswordResetRateLimited)
			e.emitRateLimit(ctx, "password_reset_"+scope, nil)
			return ErrRateLimited
		}
		return storeError(cause)
	case internalflows.ResetFailureUserNotFound:
		return ErrUserNotFound
	case internalflows.ResetFailureLookup, internalflows.ResetFailureStore, internalflows.ResetFailurePersist:
		return storeError(cause)
	case internalflows.ResetFailureDelivery:
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, cause)
	case internalflows.ResetFailureInvalidCode:
		return ErrInvalidOrExpiredCode
	case internalflows.ResetFailureAttemptsExceeded:
		return ErrResetAttemptsExceeded
	case internalflows.ResetFailureWindowExpired:
		return ErrResetWindowExpired
	case internalflows.ResetFailurePasswordPolicy:
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, cause)
	case internalflows.ResetFailureHash:
		return fmt.Errorf("password hash failed: %w", cause)
	case internalflows.ResetFailureSessionInvalidation:
		return errors.Join(ErrSessionInvalidationFailed, cause)
	default:
		return fmt.Errorf("%w: unexpected reset failure", ErrEngineNotReady)
	}
}

func (e *Engine) passwordResetFlowDeps() internalflows.ResetDeps {
	cfg := e.config.PasswordReset
	return internalflows.ResetDeps{
		ClientIPFromContext: clientIPFromContext,
		GetUserByEmail: func(ctx context.Context, email string) (internalflows.UserRecord, error) {
			user, err := e.directory.GetByEmail(ctx, email)
			return toFlowUser(user), err
		},
		UserNotFound: ErrUserNotFound,
		Codes:        e.resetStore,
		CodeTTL:      cfg.CodeTTL,
		NewCode: func() (string, error) {
			return internal.NewNumericCode(cfg.CodeDigits)
		},
		SendCode:            e.sendResetCode,
		FailOnDeliveryError: cfg.FailOnDeliveryError,
		ChargeResetRequest:  e.rateLimiter.ChargeResetRequest,
		CheckVerify:         e.rateLimiter.CheckVerify,
		IncrementVerify:     e.rateLimiter.IncrementVerify,
		ResetVerify:         e.rateLimiter.ResetVerify,
		RequireCode:         cfg.RequireCode,
		HashPassword:        e.verifier.Hash,
		PasswordPolicy:      isPasswordPolicyError,
		UpdatePasswordHash:  e.directory.UpdatePasswordHash,
		ClearSessions:       e.sessionStore.Clear,
		Warn:                e.warn,
	}
}

func (e *Engine) sendResetCode(ctx context.Context, to, code string, expiresAt time.Time) error {
	body := fmt.Sprintf(
		"Your password reset code is %s.\r\nIt expires at %s. If you did not ask for a reset, ignore this message.\r\n",
		code,
		expiresAt.UTC().Format(time.RFC1123),
	)
	return e.mailer.Send(ctx, to, e.config.PasswordReset.MailSubject, body)
}

func isPasswordPolicyError(err error) bool {
	return errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong)
}
