package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateDecision is the outcome of counting one request against a window.
type RateDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one.
func (d RateDecision) RetryAfterSeconds() int {
	seconds := int(math.Ceil(d.RetryAfter.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func decideRate(hits int64, limit int, resetIn time.Duration) RateDecision {
	remaining := int64(limit) - hits
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{
		Allowed:    hits <= int64(limit),
		Limit:      limit,
		Remaining:  int(remaining),
		RetryAfter: resetIn,
	}
}

// RedisRateLimiter counts place lookups per client in fixed windows shared by every
// replica. A nil limiter allows everything.
type RedisRateLimiter struct {
	client redis.UniversalClient
	keys   redisKeyspace
}

// NewRedisRateLimiter creates a limiter whose keys live under prefix.
func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		keys:   newRedisKeyspace(prefix, "rate"),
	}
}

// Allow counts one request for subject in scope. The first request of a window sets
// the expiry; later ones in the same window only read it back.
func (r *RedisRateLimiter) Allow(ctx context.Context, scope, subject string, limit int, window time.Duration) (RateDecision, error) {
	if r == nil || r.client == nil || limit <= 0 {
		return RateDecision{Allowed: true, Limit: limit, Remaining: max(limit, 0)}, nil
	}
	key, ok := r.keys.key(scope, subject)
	if !ok {
		return RateDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if window < time.Second {
		window = time.Second
	}

	var hits *redis.IntCmd
	var resetIn *redis.DurationCmd
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		resetIn = pipe.PTTL(ctx, key)
		return nil
	}); err != nil {
		return RateDecision{}, fmt.Errorf("count %s request: %w", scope, err)
	}

	ttl := resetIn.Val()
	if ttl <= 0 {
		ttl = window
	}
	return decideRate(hits.Val(), limit, ttl), nil
}
