package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/internal/stores"
)

// ResetFailureKind classifies reset-code failures for root-level mapping.
type ResetFailureKind int

const (
	ResetFailureNone ResetFailureKind = iota
	ResetFailureBadRequest
	ResetFailureRateLimited
	ResetFailureUserNotFound
	ResetFailureLookup
	ResetFailureStore
	ResetFailureDelivery
	ResetFailureInvalidCode
	ResetFailureAttemptsExceeded
	ResetFailureWindowExpired
	ResetFailurePasswordPolicy
	ResetFailureHash
	ResetFailurePersist
	ResetFailureSessionInvalidation
)

// ResetDeps captures the password-recovery dependencies shared by the three
// reset flows.
type ResetDeps struct {
	ClientIPFromContext func(context.Context) string

	GetUserByEmail func(context.Context, string) (UserRecord, error)
	UserNotFound   error

	Codes   ResetCodeStore
	CodeTTL time.Duration
	NewCode func() (string, error)

	// SendCode delivers the plaintext code exactly once per issuance.
	SendCode            func(ctx context.Context, to, code string, expiresAt time.Time) error
	FailOnDeliveryError bool

	ChargeResetRequest func(context.Context, string) error
	CheckVerify        func(context.Context, string) error
	IncrementVerify    func(context.Context, string) error
	ResetVerify        func(context.Context, string) error

	RequireCode        bool
	HashPassword       func(string) (string, error)
	PasswordPolicy     func(error) bool
	UpdatePasswordHash func(context.Context, string, string) error
	ClearSessions      func(context.Context, string) error

	Warn func(string, ...any)
}

// ResetRequestResult reports an issued code. DeliveryErr is set when the
// mail could not be sent but the code stayed issued.
type ResetRequestResult struct {
	Failure     ResetFailureKind
	Err         error
	UserID      string
	ExpiresAt   time.Time
	DeliveryErr error
}

// ResetVerifyResult reports whose code matched.
type ResetVerifyResult struct {
	Failure ResetFailureKind
	Err     error
	UserID  string
}

// ResetResult reports a completed password reset.
type ResetResult struct {
	Failure ResetFailureKind
	Err     error
	UserID  string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d ResetDeps) warn(msg string, args ...any) {
	if d.Warn != nil {
		d.Warn(msg, args...)
	}
}

func (d ResetDeps) verifyScope(ctx context.Context, email string) string {
	if email != "" {
		return email
	}
	if d.ClientIPFromContext != nil {
		if ip := d.ClientIPFromContext(ctx); ip != "" {
			return "ip:" + ip
		}
	}
	return ""
}

// RunRequestResetCode creates or replaces the user's code and mails it.
// NoCodeOutstanding|CodeIssued -> CodeIssued.
func RunRequestResetCode(ctx context.Context, email string, deps ResetDeps) ResetRequestResult {
	email = normalizeEmail(email)
	if email == "" {
		return ResetRequestResult{Failure: ResetFailureBadRequest}
	}

	if deps.ChargeResetRequest != nil {
		if err := deps.ChargeResetRequest(ctx, email); err != nil {
			return ResetRequestResult{Failure: ResetFailureRateLimited, Err: err}
		}
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return ResetRequestResult{Failure: ResetFailureUserNotFound, Err: err}
		}
		return ResetRequestResult{Failure: ResetFailureLookup, Err: err}
	}

	rec, err := deps.Codes.Issue(ctx, user.UserID, deps.NewCode, deps.CodeTTL)
	if err != nil {
		return ResetRequestResult{Failure: ResetFailureStore, Err: err, UserID: user.UserID}
	}

	result := ResetRequestResult{UserID: user.UserID, ExpiresAt: rec.ExpiresAt}
	if err := deps.SendCode(ctx, user.Email, rec.Code, rec.ExpiresAt); err != nil {
		if deps.FailOnDeliveryError {
			result.Failure = ResetFailureDelivery
			result.Err = err
			return result
		}
		deps.warn("reset code delivery failed", "user_id", user.UserID, "error", err)
		result.DeliveryErr = err
	}
	return result
}

// RunVerifyResetCode checks a code without consuming it. With an email the
// lookup is scoped to that user; without one it goes through the global
// code index.
func RunVerifyResetCode(ctx context.Context, email, code string, deps ResetDeps) ResetVerifyResult {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if code == "" {
		return ResetVerifyResult{Failure: ResetFailureBadRequest}
	}

	scope := deps.verifyScope(ctx, email)
	if deps.CheckVerify != nil {
		if err := deps.CheckVerify(ctx, scope); err != nil {
			return ResetVerifyResult{Failure: ResetFailureRateLimited, Err: err}
		}
	}

	invalid := func(err error) ResetVerifyResult {
		if deps.IncrementVerify != nil {
			if rlErr := deps.IncrementVerify(ctx, scope); rlErr != nil {
				deps.warn("verify failure count failed", "error", rlErr)
			}
		}
		return ResetVerifyResult{Failure: ResetFailureInvalidCode, Err: err}
	}

	var (
		rec *stores.ResetCode
		err error
	)
	if email != "" {
		user, lookupErr := deps.GetUserByEmail(ctx, email)
		if lookupErr != nil {
			if deps.UserNotFound != nil && errors.Is(lookupErr, deps.UserNotFound) {
				return invalid(lookupErr)
			}
			return ResetVerifyResult{Failure: ResetFailureLookup, Err: lookupErr}
		}
		rec, err = deps.Codes.Match(ctx, user.UserID, code)
	} else {
		rec, err = deps.Codes.FindByCode(ctx, code)
	}

	if err != nil {
		if errors.Is(err, stores.ErrResetNotFound) || errors.Is(err, stores.ErrResetCodeMismatch) {
			return invalid(err)
		}
		return ResetVerifyResult{Failure: ResetFailureStore, Err: err}
	}
	return ResetVerifyResult{UserID: rec.UserID}
}

// RunResetPassword consumes the outstanding code and applies newPassword,
// then revokes every session of the user. The code is claimed with an
// atomic compare-and-delete before the new hash is persisted, so two
// concurrent resets with the same code cannot both succeed.
func RunResetPassword(ctx context.Context, email, code, newPassword string, deps ResetDeps) ResetResult {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || newPassword == "" {
		return ResetResult{Failure: ResetFailureBadRequest}
	}

	if deps.CheckVerify != nil {
		if err := deps.CheckVerify(ctx, email); err != nil {
			return ResetResult{Failure: ResetFailureRateLimited, Err: err}
		}
	}

	user, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return ResetResult{Failure: ResetFailureWindowExpired, Err: err}
		}
		return ResetResult{Failure: ResetFailureLookup, Err: err}
	}

	if _, err := deps.Codes.Get(ctx, user.UserID); err != nil {
		if errors.Is(err, stores.ErrResetNotFound) {
			return ResetResult{Failure: ResetFailureWindowExpired, Err: err, UserID: user.UserID}
		}
		return ResetResult{Failure: ResetFailureStore, Err: err, UserID: user.UserID}
	}

	if code == "" && deps.RequireCode {
		return ResetResult{Failure: ResetFailureInvalidCode, UserID: user.UserID}
	}

	// Hash before claiming so a policy rejection leaves the code usable.
	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		if deps.PasswordPolicy != nil && deps.PasswordPolicy(err) {
			return ResetResult{Failure: ResetFailurePasswordPolicy, Err: err, UserID: user.UserID}
		}
		return ResetResult{Failure: ResetFailureHash, Err: err, UserID: user.UserID}
	}

	if err := deps.Codes.Consume(ctx, user.UserID, code); err != nil {
		switch {
		case errors.Is(err, stores.ErrResetCodeMismatch):
			if deps.IncrementVerify != nil {
				if rlErr := deps.IncrementVerify(ctx, email); rlErr != nil {
					deps.warn("verify failure count failed", "error", rlErr)
				}
			}
			return ResetResult{Failure: ResetFailureInvalidCode, Err: err, UserID: user.UserID}
		case errors.Is(err, stores.ErrResetAttemptsExceeded):
			return ResetResult{Failure: ResetFailureAttemptsExceeded, Err: err, UserID: user.UserID}
		case errors.Is(err, stores.ErrResetNotFound):
			return ResetResult{Failure: ResetFailureWindowExpired, Err: err, UserID: user.UserID}
		default:
			return ResetResult{Failure: ResetFailureStore, Err: err, UserID: user.UserID}
		}
	}

	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		return ResetResult{Failure: ResetFailurePersist, Err: err, UserID: user.UserID}
	}

	if deps.ResetVerify != nil {
		if err := deps.ResetVerify(ctx, email); err != nil {
			deps.warn("verify counter reset failed", "error", err)
		}
	}

	if err := deps.ClearSessions(ctx, user.UserID); err != nil {
		return ResetResult{Failure: ResetFailureSessionInvalidation, Err: err, UserID: user.UserID}
	}

	return ResetResult{UserID: user.UserID}
}
