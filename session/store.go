package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goAccount/internal"
)

var (
	// ErrRedisUnavailable wraps any Redis transport or script failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrSessionNotFound means the hash is not a member of the user's set:
	// never issued, already rotated, or revoked.
	ErrSessionNotFound = errors.New("refresh session not found")
	// ErrSessionExpired means the member existed but outlived the refresh TTL.
	// Consume removes it before returning this error.
	ErrSessionExpired = errors.New("refresh session expired")
	// ErrEmptyHash rejects blank members.
	ErrEmptyHash = errors.New("empty session hash")
)

const (
	consumeStatusNotFound int64 = 0
	consumeStatusExpired  int64 = 1
	consumeStatusConsumed int64 = 2
)

// KEYS[1] user set
// ARGV[1] member, ARGV[2] issued-at ms, ARGV[3] expiry cutoff ms,
// ARGV[4] max members (0 = unbounded), ARGV[5] key ttl ms (0 = none)
const addSessionScript = `
local key = KEYS[1]
local member = ARGV[1]
local max = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

redis.call("ZREMRANGEBYSCORE", key, "-inf", ARGV[3])
redis.call("ZADD", key, ARGV[2], member)

local evicted = 0
if max > 0 then
  local n = redis.call("ZCARD", key)
  if n > max then
    local excess = n - max
    local oldest = redis.call("ZRANGE", key, 0, excess)
    for _, m in ipairs(oldest) do
      if evicted >= excess then
        break
      end
      if m ~= member then
        redis.call("ZREM", key, m)
        evicted = evicted + 1
      end
    end
  end
end

if ttl > 0 then
  redis.call("PEXPIRE", key, ttl)
end
return evicted
`

// KEYS[1] user set
// ARGV[1] member, ARGV[2] expiry cutoff ms
const consumeSessionScript = `
local score = redis.call("ZSCORE", KEYS[1], ARGV[1])
if not score then
  return 0
end
redis.call("ZREM", KEYS[1], ARGV[1])
if tonumber(score) <= tonumber(ARGV[2]) then
  return 1
end
return 2
`

var (
	addSessionLua     = redis.NewScript(addSessionScript)
	consumeSessionLua = redis.NewScript(consumeSessionScript)
)

// Store is the Redis-backed per-user refresh session set.
type Store struct {
	redis       redis.UniversalClient
	prefix      string
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

// NewStore returns a store whose keys live under prefix. maxSessions caps the
// set size per user with oldest-first eviction (0 disables the cap); ttl is
// the refresh-token lifetime (0 disables expiry).
func NewStore(rdb redis.UniversalClient, prefix string, maxSessions int, ttl time.Duration) *Store {
	return &Store{
		redis:       rdb,
		prefix:      prefix,
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":" + userID
}

// cutoff returns the highest score that counts as expired at now.
func (s *Store) cutoff(now time.Time) int64 {
	if s.ttl <= 0 {
		return -1
	}
	return now.Add(-s.ttl).UnixMilli()
}

// Add registers hash for userID. It also drops expired members and, when the
// cap is exceeded, evicts the oldest others. Returns the number evicted by
// the cap.
func (s *Store) Add(ctx context.Context, userID, hash string, issuedAt time.Time) (int, error) {
	if hash == "" {
		return 0, ErrEmptyHash
	}
	evicted, err := addSessionLua.Run(ctx, s.redis, []string{s.key(userID)},
		hash,
		issuedAt.UnixMilli(),
		s.cutoff(s.now()),
		s.maxSessions,
		s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(evicted), nil
}

// Consume atomically removes hash from the user's set. Exactly one of any
// number of concurrent callers gets nil.
func (s *Store) Consume(ctx context.Context, userID, hash string) error {
	if hash == "" {
		return ErrSessionNotFound
	}
	status, err := consumeSessionLua.Run(ctx, s.redis, []string{s.key(userID)}, hash, s.cutoff(s.now())).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch status {
	case consumeStatusConsumed:
		return nil
	case consumeStatusExpired:
		return ErrSessionExpired
	default:
		return ErrSessionNotFound
	}
}

// Remove deletes hash if present. Removing an absent member is not an error.
func (s *Store) Remove(ctx context.Context, userID, hash string) error {
	if err := s.redis.ZRem(ctx, s.key(userID), hash).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear revokes every session of userID.
func (s *Store) Clear(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Has reports whether hash is a live member.
func (s *Store) Has(ctx context.Context, userID, hash string) (bool, error) {
	score, err := s.redis.ZScore(ctx, s.key(userID), hash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int64(score) > s.cutoff(s.now()), nil
}

// Count returns the number of live sessions of userID.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.redis.ZCount(ctx, s.key(userID), "("+strconv.FormatInt(s.cutoff(s.now()), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// CountUsers counts users holding at least one session set, scanning at most
// limit keys. Sets whose members have all expired but not yet been swept
// are included.
func (s *Store) CountUsers(ctx context.Context, limit int) (int, bool, error) {
	n, truncated, err := internal.CountKeys(ctx, s.redis, s.prefix+":*", limit)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, truncated, nil
}

// List returns live sessions oldest first.
func (s *Store) List(ctx context.Context, userID string) ([]Entry, error) {
	zs, err := s.redis.ZRangeByScoreWithScores(ctx, s.key(userID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(s.cutoff(s.now()), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, Entry{Hash: member, IssuedAt: time.UnixMilli(int64(z.Score))})
	}
	return out, nil
}
