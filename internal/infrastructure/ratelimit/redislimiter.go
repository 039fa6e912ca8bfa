package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quell/internal/shared/errors"
	"quell/internal/shared/logger"
)

// RedisLimiter is a Redis-backed fixed-window counter for multi-instance
// deployments, where the in-memory registry cannot be shared across
// processes. Each identifier gets one counter key per window bucket with a
// TTL slightly longer than the window, so Redis expiry takes the place of the
// janitor sweep.
type RedisLimiter struct {
	client *redis.Client
	logger logger.Interface
}

func NewRedisLimiter(client *redis.Client, log logger.Interface) *RedisLimiter {
	return &RedisLimiter{client: client, logger: log}
}

// Acquire implements Limiter. INCR is atomic, so concurrent callers across
// instances never over-admit within a bucket.
func (l *RedisLimiter) Acquire(ctx context.Context, identifier string, limit int, window time.Duration) (Decision, error) {
	if identifier == "" {
		return Decision{}, errors.NewValidationError("identifier must not be empty")
	}
	windowSecs := int64(window / time.Second)
	if limit <= 0 || windowSecs <= 0 {
		return Decision{}, errors.NewValidationError("limit must be positive and window at least one second")
	}

	now := time.Now()
	bucket := now.Unix() / windowSecs
	key := fmt.Sprintf("ratelimit:%s:%d", identifier, bucket)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// Set TTL on the key for the first request in this window. A counter
	// without a TTL would deny its bucket forever, so a failure here is
	// worth surfacing even though the decision already stands.
	if count == 1 {
		if err := l.client.Expire(ctx, key, window+time.Second).Err(); err != nil {
			l.logger.Errorw("failed to set rate limit key expiry",
				"key", key,
				"error", err,
			)
		}
	}

	if count > int64(limit) {
		windowEnd := time.Unix((bucket+1)*windowSecs, 0)
		retryAfter := windowEnd.Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return Decision{RetryAfter: retryAfter}, nil
	}

	return Decision{Allowed: true, Remaining: limit - int(count)}, nil
}

// Reset implements Limiter. It removes every window bucket for the identifier.
func (l *RedisLimiter) Reset(ctx context.Context, identifier string) error {
	pattern := fmt.Sprintf("ratelimit:%s:*", identifier)

	iter := l.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	return nil
}
