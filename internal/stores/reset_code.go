package stores

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goAccount/internal"
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetCodeMismatch     = errors.New("reset code mismatch")
	ErrResetAttemptsExceeded = errors.New("reset attempts exceeded")
	ErrResetCodeCollision    = errors.New("reset code collision")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

const (
	maxIssueAttempts = 5

	consumeStatusNotFound int64 = 0
	consumeStatusOK       int64 = 1
	consumeStatusMismatch int64 = -1
	consumeStatusExceeded int64 = -2
)

// KEYS[1] user record, KEYS[2] new code index
// ARGV[1] user id, ARGV[2] code, ARGV[3] expires-at ms, ARGV[4] code index prefix
const issueResetScript = `
local owner = redis.call("GET", KEYS[2])
if owner and owner ~= ARGV[1] then
  return 0
end
local old = redis.call("HGET", KEYS[1], "code")
if old and old ~= ARGV[2] and redis.call("GET", ARGV[4] .. old) == ARGV[1] then
  redis.call("DEL", ARGV[4] .. old)
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], "code", ARGV[2], "expires_at", ARGV[3], "attempts", 0)
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("PEXPIREAT", KEYS[2], ARGV[3])
return 1
`

// KEYS[1] user record
// ARGV[1] expected code ("" matches any), ARGV[2] now ms,
// ARGV[3] code index prefix, ARGV[4] max attempts (0 = unlimited)
const consumeResetScript = `
local rec = redis.call("HMGET", KEYS[1], "code", "expires_at")
local cur = rec[1]
if not cur then
  return 0
end
if tonumber(rec[2]) <= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1], ARGV[3] .. cur)
  return 0
end
if ARGV[1] ~= "" and ARGV[1] ~= cur then
  local attempts = redis.call("HINCRBY", KEYS[1], "attempts", 1)
  local max = tonumber(ARGV[4])
  if max > 0 and attempts >= max then
    redis.call("DEL", KEYS[1], ARGV[3] .. cur)
    return -2
  end
  return -1
end
redis.call("DEL", KEYS[1], ARGV[3] .. cur)
return 1
`

var (
	issueResetLua   = redis.NewScript(issueResetScript)
	consumeResetLua = redis.NewScript(consumeResetScript)
)

// ResetCode is the single outstanding recovery code of a user.
type ResetCode struct {
	UserID    string
	Code      string
	ExpiresAt time.Time
	Attempts  int
}

// ResetCodeStore keeps at most one reset code per user, plus a code index
// used when a code is verified without an email.
type ResetCodeStore struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
	now         func() time.Time
}

// NewResetCodeStore returns a store under prefix. maxAttempts bounds wrong
// codes presented to Consume before the record is burned (0 disables).
func NewResetCodeStore(redisClient redis.UniversalClient, prefix string, maxAttempts int) *ResetCodeStore {
	if prefix == "" {
		prefix = "arc"
	}
	return &ResetCodeStore{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (s *ResetCodeStore) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

func (s *ResetCodeStore) codePrefix() string {
	return s.prefix + ":code:"
}

// Issue creates or replaces the user's code. next is called for each
// candidate; a candidate already indexed for another user is discarded and
// next is called again.
func (s *ResetCodeStore) Issue(
	ctx context.Context,
	userID string,
	next func() (string, error),
	ttl time.Duration,
) (*ResetCode, error) {
	if userID == "" || ttl <= 0 {
		return nil, errors.New("reset code requires user id and positive ttl")
	}

	for i := 0; i < maxIssueAttempts; i++ {
		code, err := next()
		if err != nil {
			return nil, err
		}
		expiresAt := s.now().Add(ttl)

		ok, err := issueResetLua.Run(ctx, s.redis,
			[]string{s.userKey(userID), s.codePrefix() + code},
			userID, code, expiresAt.UnixMilli(), s.codePrefix(),
		).Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
		}
		if ok == 1 {
			return &ResetCode{UserID: userID, Code: code, ExpiresAt: time.UnixMilli(expiresAt.UnixMilli())}, nil
		}
	}

	return nil, ErrResetCodeCollision
}

// Get returns the live record of userID.
func (s *ResetCodeStore) Get(ctx context.Context, userID string) (*ResetCode, error) {
	vals, err := s.redis.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	code, ok := vals["code"]
	if !ok || code == "" {
		return nil, ErrResetNotFound
	}

	expMs, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return nil, ErrResetNotFound
	}
	rec := &ResetCode{UserID: userID, Code: code, ExpiresAt: time.UnixMilli(expMs)}
	rec.Attempts, _ = strconv.Atoi(vals["attempts"])

	if !s.now().Before(rec.ExpiresAt) {
		return nil, ErrResetNotFound
	}
	return rec, nil
}

// CountOutstanding counts users with an unexpired code, scanning at most
// limit keys.
func (s *ResetCodeStore) CountOutstanding(ctx context.Context, limit int) (int, bool, error) {
	n, truncated, err := internal.CountKeys(ctx, s.redis, s.prefix+":user:*", limit)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return n, truncated, nil
}

// Match reports whether code is the live code of userID. It never mutates.
func (s *ResetCodeStore) Match(ctx context.Context, userID, code string) (*ResetCode, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return nil, ErrResetCodeMismatch
	}
	return rec, nil
}

// FindByCode resolves a code through the global index. A stale index entry
// whose owner has since moved to another code reports ErrResetNotFound.
func (s *ResetCodeStore) FindByCode(ctx context.Context, code string) (*ResetCode, error) {
	if code == "" {
		return nil, ErrResetNotFound
	}
	userID, err := s.redis.Get(ctx, s.codePrefix()+code).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	rec, err := s.Match(ctx, userID, code)
	if errors.Is(err, ErrResetCodeMismatch) {
		return nil, ErrResetNotFound
	}
	return rec, err
}

// Consume deletes the user's record when code matches it; an empty code
// deletes whatever record is outstanding. Wrong codes count toward the
// attempt limit.
func (s *ResetCodeStore) Consume(ctx context.Context, userID, code string) error {
	status, err := consumeResetLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		code, s.now().UnixMilli(), s.codePrefix(), s.maxAttempts,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	switch status {
	case consumeStatusOK:
		return nil
	case consumeStatusMismatch:
		return ErrResetCodeMismatch
	case consumeStatusExceeded:
		return ErrResetAttemptsExceeded
	default:
		return ErrResetNotFound
	}
}
