package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter enforces per-tenant login throttling with Redis counters.
// The window is fixed: the TTL is set when the first attempt in a window
// lands and is never extended by later attempts.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a login [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func loginKey(tenantID, principal string) string {
	return fmt.Sprintf("ratelimit:login:%s:%s", tenantID, principal)
}

// Check reports whether the tenant+principal pair is still within its
// attempt budget. It does not consume an attempt.
func (l *Limiter) Check(ctx context.Context, tenantID, principal string) error {
	count, err := l.redis.Get(ctx, loginKey(tenantID, principal)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Increment records a failed attempt. Returns ErrRateLimited when the
// counter crosses the budget with this attempt.
func (l *Limiter) Increment(ctx context.Context, tenantID, principal string) error {
	key := loginKey(tenantID, principal)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// Reset clears the counter for the pair. Called after a fully successful
// login so earlier failures do not count against the next window.
func (l *Limiter) Reset(ctx context.Context, tenantID, principal string) error {
	if err := l.redis.Del(ctx, loginKey(tenantID, principal)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Attempts returns the current counter value. Missing keys return zero and
// do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, tenantID, principal string) (int, error) {
	count, err := l.redis.Get(ctx, loginKey(tenantID, principal)).Int64()
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
