package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goAccount/internal"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissing
	RefreshFailureDecode
	RefreshFailureUserNotFound
	RefreshFailureLookup
	RefreshFailureReuse
	RefreshFailureExpired
	RefreshFailureSessionStore
	RefreshFailureIssue
	RefreshFailureRegister
)

// RefreshResult carries the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string
	User    UserRecord
	Tokens  TokenPair
}

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	DecodeRefreshToken func(string) (string, internal.RefreshSecret, error)
	HashRefreshSecret  func(internal.RefreshSecret) string

	GetUserByID  func(context.Context, string) (UserRecord, error)
	UserNotFound error

	Sessions        SessionStore
	SessionNotFound error
	SessionExpired  error

	Issue IssueDeps
}

// RunRefresh rotates a refresh token: consume the presented hash, issue a
// new pair, register the new hash, strictly in that order. A failure after
// the consume leaves the user with no token for this slot, never two.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	if refreshToken == "" {
		return RefreshResult{Failure: RefreshFailureMissing}
	}

	userID, secret, err := deps.DecodeRefreshToken(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			return RefreshResult{Failure: RefreshFailureUserNotFound, Err: err, UserID: userID}
		}
		return RefreshResult{Failure: RefreshFailureLookup, Err: err, UserID: userID}
	}

	if err := deps.Sessions.Consume(ctx, userID, deps.HashRefreshSecret(secret)); err != nil {
		switch {
		case deps.SessionNotFound != nil && errors.Is(err, deps.SessionNotFound):
			return RefreshResult{Failure: RefreshFailureReuse, Err: err, UserID: userID}
		case deps.SessionExpired != nil && errors.Is(err, deps.SessionExpired):
			return RefreshResult{Failure: RefreshFailureExpired, Err: err, UserID: userID}
		default:
			return RefreshResult{Failure: RefreshFailureSessionStore, Err: err, UserID: userID}
		}
	}

	pair, hash, issuedAt, err := issueTokens(user, deps.Issue)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: userID}
	}

	if _, err := deps.Sessions.Add(ctx, userID, hash, issuedAt); err != nil {
		return RefreshResult{Failure: RefreshFailureRegister, Err: err, UserID: userID}
	}

	return RefreshResult{UserID: userID, User: user, Tokens: pair}
}
