package rate

import "errors"

var (
	// ErrRateLimited is returned when the tenant+principal counter has
	// exceeded the configured attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures. Callers treat it as
	// an infrastructure error, never as a throttling decision.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
