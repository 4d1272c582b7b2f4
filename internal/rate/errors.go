package rate

import "errors"

var (
	// ErrRateLimited rejects an operation that exceeded its fixed window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable reports a Redis failure while reading or updating a counter.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
