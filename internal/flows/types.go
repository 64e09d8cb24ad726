package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/internal/stores"
)

// UserRecord is the flow-local view of a directory user.
type UserRecord struct {
	UserID       string
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

// TokenPair is an access token plus the refresh token that rotates it.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SessionStore is the subset of session.Store the flows mutate.
type SessionStore interface {
	Add(ctx context.Context, userID, hash string, issuedAt time.Time) (int, error)
	Consume(ctx context.Context, userID, hash string) error
	Clear(ctx context.Context, userID string) error
}

// ResetCodeStore is the subset of stores.ResetCodeStore the reset flows use.
type ResetCodeStore interface {
	Issue(ctx context.Context, userID string, next func() (string, error), ttl time.Duration) (*stores.ResetCode, error)
	Get(ctx context.Context, userID string) (*stores.ResetCode, error)
	Match(ctx context.Context, userID, code string) (*stores.ResetCode, error)
	FindByCode(ctx context.Context, code string) (*stores.ResetCode, error)
	Consume(ctx context.Context, userID, code string) error
}

// IssueDeps mints token pairs.
type IssueDeps struct {
	Now                func() time.Time
	RefreshTTL         time.Duration
	CreateAccess       func(userID, role string) (string, time.Time, error)
	NewRefreshSecret   func() (internal.RefreshSecret, error)
	HashRefreshSecret  func(internal.RefreshSecret) string
	EncodeRefreshToken func(string, internal.RefreshSecret) (string, error)
}

// issueTokens returns the pair and the hash to register. Either token
// failing aborts the whole issuance.
func issueTokens(user UserRecord, deps IssueDeps) (TokenPair, string, time.Time, error) {
	now := time.Now()
	if deps.Now != nil {
		now = deps.Now()
	}

	access, accessExp, err := deps.CreateAccess(user.UserID, user.Role)
	if err != nil {
		return TokenPair{}, "", now, err
	}

	secret, err := deps.NewRefreshSecret()
	if err != nil {
		return TokenPair{}, "", now, err
	}
	refresh, err := deps.EncodeRefreshToken(user.UserID, secret)
	if err != nil {
		return TokenPair{}, "", now, err
	}
	if access == "" || refresh == "" {
		return TokenPair{}, "", now, errEmptyToken
	}

	pair := TokenPair{
		AccessToken:     access,
		AccessExpiresAt: accessExp,
		RefreshToken:    refresh,
	}
	if deps.RefreshTTL > 0 {
		pair.RefreshExpiresAt = now.Add(deps.RefreshTTL)
	}
	return pair, deps.HashRefreshSecret(secret), now, nil
}
