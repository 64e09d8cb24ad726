package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter budgets. A zero maximum disables that counter.
type Config struct {
	// Prefix namespaces every counter key; empty means "arl".
	Prefix string

	EnableIPThrottle bool

	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	MaxResetRequests   int
	ResetRequestWindow time.Duration

	MaxVerifyFailures int
	VerifyWindow      time.Duration
}

// Limiter enforces fixed-window budgets with Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
	prefix string
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "arl"
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
		prefix: prefix,
	}
}

// CheckLogin fails once the identifier (or IP) has used up its failure budget.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	if err := l.checkCounter(ctx, l.loginUserKey(identifier), l.config.MaxLoginAttempts); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return l.checkCounter(ctx, l.loginIPKey(ip), l.config.MaxLoginAttempts)
	}
	return nil
}

// IncrementLogin records a failed login.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	if l.config.MaxLoginAttempts <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.loginUserKey(identifier), l.config.LoginCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxLoginAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.loginIPKey(ip), l.config.LoginCooldownDuration)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// ResetLogin clears the failure counters after a successful login or reset.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	keys := []string{l.loginUserKey(identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.loginIPKey(ip))
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// GetLoginAttempts returns the failure count for identifier. Missing keys
// read as zero and do not reveal whether the account exists.
func (l *Limiter) GetLoginAttempts(ctx context.Context, identifier string) (int, error) {
	count, err := l.redis.Get(ctx, l.loginUserKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// ChargeResetRequest counts one reset-code request for email and fails
// when the window's budget is exhausted. Every request is charged, whether
// or not the email exists.
func (l *Limiter) ChargeResetRequest(ctx context.Context, email string) error {
	if l.config.MaxResetRequests <= 0 {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.resetRequestKey(email), l.config.ResetRequestWindow)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxResetRequests) {
		return ErrRateLimited
	}
	return nil
}

// CheckVerify fails once scope has used up its verification-failure budget.
func (l *Limiter) CheckVerify(ctx context.Context, scope string) error {
	if l.config.MaxVerifyFailures <= 0 || scope == "" {
		return nil
	}
	return l.checkCounter(ctx, l.verifyKey(scope), l.config.MaxVerifyFailures-1)
}

// IncrementVerify records a failed code verification for scope.
func (l *Limiter) IncrementVerify(ctx context.Context, scope string) error {
	if l.config.MaxVerifyFailures <= 0 || scope == "" {
		return nil
	}
	_, err := l.incrementWithTTL(ctx, l.verifyKey(scope), l.config.VerifyWindow)
	return err
}

// ResetVerify clears the failure counter for scope after a successful reset.
func (l *Limiter) ResetVerify(ctx context.Context, scope string) error {
	if scope == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.verifyKey(scope)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count > int64(maxAttempts) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set only on the first hit.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (l *Limiter) loginUserKey(identifier string) string {
	return l.prefix + ":login:" + normalize(identifier)
}

func (l *Limiter) loginIPKey(ip string) string {
	return l.prefix + ":login-ip:" + ip
}

func (l *Limiter) resetRequestKey(email string) string {
	return l.prefix + ":reset:" + normalize(email)
}

func (l *Limiter) verifyKey(scope string) string {
	return l.prefix + ":verify:" + normalize(scope)
}
