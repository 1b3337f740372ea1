package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding-window limiter whose counters live in a shared
// Redis sorted set per key, so limits hold across horizontally scaled
// instances.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisLimiter creates a Redis-backed limiter allowing limit events per window.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

// Allow records an event for key and reports whether it fits the window.
// The counter is trimmed, read and appended in one pipeline round trip.
func (r *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now()
	cutoff := now.Add(-r.window)
	redisKey := r.prefix + key
	member := strconv.FormatInt(now.UnixNano(), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(cutoff.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit pipeline: %w", err)
	}

	count := int(countCmd.Val())
	result := Result{Limit: r.limit, Reset: now.Add(r.window)}
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		result.Reset = time.Unix(0, int64(oldest[0].Score)).Add(r.window)
	}

	if count >= r.limit {
		return result, nil
	}

	add := r.client.TxPipeline()
	add.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	add.Expire(ctx, redisKey, r.window)
	if _, err := add.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("ratelimit record: %w", err)
	}

	result.Allowed = true
	result.Remaining = r.limit - count - 1
	return result, nil
}
