package goAccount

import "errors"

var (
	// ErrBadRequest reports missing or malformed input.
	ErrBadRequest = errors.New("bad request")
	// ErrUnauthenticated reports a request without usable credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidToken reports an access or refresh token that does not authorize.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCredentials reports a password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound reports an identifier, email or id with no directory entry.
	ErrUserNotFound = errors.New("user not found")
	// ErrConflict reports a duplicate username or email.
	ErrConflict = errors.New("user already exists")
	// ErrRoleInvalid reports an unknown role name.
	ErrRoleInvalid = errors.New("invalid role")
	// ErrPasswordPolicy reports a password the hasher refused.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrRateLimited reports an exhausted attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrIssuance reports a failure minting either token of a pair.
	ErrIssuance = errors.New("token issuance failed")
	// ErrStoreUnavailable reports a session, code or directory backend failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSessionInvalidationFailed reports that sessions could not be revoked.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrInvalidOrExpiredCode reports a reset code that does not match an
	// outstanding record.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	// ErrResetAttemptsExceeded reports a reset code burned by wrong guesses.
	ErrResetAttemptsExceeded = errors.New("reset code attempts exceeded")
	// ErrResetWindowExpired reports a reset without an outstanding code.
	ErrResetWindowExpired = errors.New("reset window expired")
	// ErrDeliveryFailed reports that the reset code could not be mailed.
	ErrDeliveryFailed = errors.New("reset code delivery failed")
	// ErrEngineNotReady reports a nil or partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the outward error taxonomy. Transports map it to status codes.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindBadRequest
	KindUnauthenticated
	KindInvalidToken
	KindNotFound
	KindConflict
	KindTimeout
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindInvalidToken:
		return "invalid_token"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrBadRequest, KindBadRequest},
	{ErrRoleInvalid, KindBadRequest},
	{ErrPasswordPolicy, KindBadRequest},
	{ErrInvalidOrExpiredCode, KindBadRequest},
	{ErrResetAttemptsExceeded, KindBadRequest},
	{ErrUnauthenticated, KindUnauthenticated},
	{ErrInvalidCredentials, KindUnauthenticated},
	{ErrInvalidToken, KindInvalidToken},
	{ErrUserNotFound, KindNotFound},
	{ErrConflict, KindConflict},
	{ErrResetWindowExpired, KindTimeout},
	{ErrRateLimited, KindRateLimited},
}

// KindOf classifies err. Anything unrecognized, including nil-wrapping
// backend failures, is KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}
