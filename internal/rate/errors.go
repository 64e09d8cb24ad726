package rate

import "errors"

var (
	// ErrRateLimited is returned when a budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read or write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
