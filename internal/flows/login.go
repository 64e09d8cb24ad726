package flows

import (
	"context"
	"errors"
	"strings"
)

var errEmptyToken = errors.New("issued token is empty")

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureBadRequest
	LoginFailureRateLimited
	LoginFailureUserNotFound
	LoginFailureLookup
	LoginFailureInvalidCredentials
	LoginFailureIssue
	LoginFailureSessionStore
)

// LoginResult carries the authenticated user and tokens, or failure metadata.
type LoginResult struct {
	Failure  LoginFailureKind
	Err      error
	User     UserRecord
	Tokens   TokenPair
	Evicted  int
	Rehashed bool
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string, string) error

	GetUserByIdentifier func(context.Context, string) (UserRecord, error)
	UserNotFound        error

	VerifyPassword     func(storedHash, candidate string) (bool, error)
	NeedsRehash        func(string) bool
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(context.Context, string, string) error

	Issue    IssueDeps
	Sessions SessionStore

	Warn func(string, ...any)
}

// RunLogin verifies credentials, issues a pair and registers its refresh
// hash. Anonymous -> Authenticated.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) LoginResult {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return LoginResult{Failure: LoginFailureBadRequest}
	}

	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	// A failed attempt that exhausts the budget reports RateLimited.
	fail := func(kind LoginFailureKind, user UserRecord, err error) LoginResult {
		if deps.IncrementLoginRate != nil {
			if rlErr := deps.IncrementLoginRate(ctx, identifier, ip); rlErr != nil {
				return LoginResult{Failure: LoginFailureRateLimited, Err: rlErr, User: user}
			}
		}
		return LoginResult{Failure: kind, Err: err, User: user}
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return fail(LoginFailureUserNotFound, UserRecord{}, err)
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	ok, err := deps.VerifyPassword(user.PasswordHash, password)
	if err != nil || !ok {
		return fail(LoginFailureInvalidCredentials, user, err)
	}

	pair, hash, issuedAt, err := issueTokens(user, deps.Issue)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, User: user}
	}

	evicted, err := deps.Sessions.Add(ctx, user.UserID, hash, issuedAt)
	if err != nil {
		return LoginResult{Failure: LoginFailureSessionStore, Err: err, User: user}
	}

	result := LoginResult{User: user, Tokens: pair, Evicted: evicted}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("login rate reset failed", "error", err)
		}
	}

	if deps.NeedsRehash != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil && deps.NeedsRehash(user.PasswordHash) {
		if upgraded, err := deps.HashPassword(password); err == nil {
			if err := deps.UpdatePasswordHash(ctx, user.UserID, upgraded); err != nil {
				deps.Warn("password rehash failed", "user_id", user.UserID, "error", err)
			} else {
				result.Rehashed = true
			}
		}
	}

	return result
}
