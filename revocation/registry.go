package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Registry is the Redis-backed token blacklist. Safe for concurrent use.
type Registry struct {
	redis redis.UniversalClient
}

// New creates a [Registry] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Registry {
	return &Registry{redis: redisClient}
}

func blacklistKey(kind, tokenID string) string {
	return fmt.Sprintf("blacklist:%s:%s", kind, tokenID)
}

// Revoke marks the token id invalid for the remainder of its lifetime.
// Revoking an already-revoked id is a no-op; a non-positive TTL means the
// token is already expired and nothing is stored.
func (r *Registry) Revoke(ctx context.Context, kind, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	if err := r.redis.Set(ctx, blacklistKey(kind, tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// IsRevoked reports whether the token id is currently blacklisted.
func (r *Registry) IsRevoked(ctx context.Context, kind, tokenID string) (bool, error) {
	n, err := r.redis.Exists(ctx, blacklistKey(kind, tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return n > 0, nil
}

// Claim atomically revokes the token id and reports whether this caller was
// the one to do it. Exactly one of any number of concurrent Claim calls for
// the same id returns true; the engine uses this to enforce single-use
// refresh tokens.
func (r *Registry) Claim(ctx context.Context, kind, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, nil
	}

	won, err := r.redis.SetNX(ctx, blacklistKey(kind, tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return won, nil
}

// Sweep scans the blacklist keyspace and deletes entries that somehow lack a
// TTL. Redis expiry handles the normal case; this is maintenance for entries
// left persistent by a partial failure. Returns the number of keys repaired.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		swept   int
		pattern = "blacklist:*"
	)

	for {
		keys, next, err := r.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return swept, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		for _, key := range keys {
			ttl, err := r.redis.TTL(ctx, key).Result()
			if err != nil {
				return swept, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			// -1 means the key exists without an expiry.
			if ttl == -1 {
				if err := r.redis.Del(ctx, key).Err(); err != nil {
					return swept, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
				}
				swept++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return swept, nil
}
