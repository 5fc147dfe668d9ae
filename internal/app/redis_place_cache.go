package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swipesavvy/claim-service/internal/domain"
)

// RedisPlaceCache stores place search results in Redis. Cache errors are logged and
// treated as misses.
type RedisPlaceCache struct {
	client redis.UniversalClient
	keys   redisKeyspace
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisPlaceCache creates a place cache. A non-positive ttl disables caching.
func NewRedisPlaceCache(client redis.UniversalClient, prefix string, ttl time.Duration, logger *slog.Logger) *RedisPlaceCache {
	return &RedisPlaceCache{
		client: client,
		keys:   newRedisKeyspace(prefix, "places"),
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisPlaceCache) GetCandidates(ctx context.Context, query string) ([]domain.PlaceCandidate, bool) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil, false
	}
	key, ok := c.keys.key("search", query)
	if !ok {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("place cache read failed", "error", err)
		}
		return nil, false
	}
	var candidates []domain.PlaceCandidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		c.logger.Warn("place cache entry unreadable", "error", err)
		return nil, false
	}
	return candidates, true
}

func (c *RedisPlaceCache) SetCandidates(ctx context.Context, query string, candidates []domain.PlaceCandidate) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	key, ok := c.keys.key("search", query)
	if !ok {
		return
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("place cache write failed", "error", err)
	}
}
