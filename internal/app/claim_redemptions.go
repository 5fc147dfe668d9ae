package app

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimRedemptions remembers which continuation tokens have already advanced a claim.
type ClaimRedemptions interface {
	// Redeem marks tokenID as used for ttl. It reports false when it was already used.
	Redeem(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	// Release forgets tokenID so the same step can be retried.
	Release(ctx context.Context, tokenID string) error
}

// RedisClaimRedemptions keeps redeemed token ids in Redis so every replica sees them.
type RedisClaimRedemptions struct {
	client redis.UniversalClient
	keys   redisKeyspace
}

// NewRedisClaimRedemptions creates a Redis-backed redemption set under prefix.
func NewRedisClaimRedemptions(client redis.UniversalClient, prefix string) *RedisClaimRedemptions {
	return &RedisClaimRedemptions{client: client, keys: newRedisKeyspace(prefix, "claims")}
}

func (r *RedisClaimRedemptions) Redeem(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	key, ok := r.keys.key("redeemed", tokenID)
	if !ok {
		return false, nil
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.client.SetNX(ctx, key, 1, ttl).Result()
}

func (r *RedisClaimRedemptions) Release(ctx context.Context, tokenID string) error {
	key, ok := r.keys.key("redeemed", tokenID)
	if !ok {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}

// MemoryClaimRedemptions is the single-process redemption set used without Redis.
type MemoryClaimRedemptions struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryClaimRedemptions() *MemoryClaimRedemptions {
	return &MemoryClaimRedemptions{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryClaimRedemptions) Redeem(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, expires := range m.entries {
		if !now.Before(expires) {
			delete(m.entries, id)
		}
	}
	if _, used := m.entries[tokenID]; used {
		return false, nil
	}
	m.entries[tokenID] = now.Add(ttl)
	return true, nil
}

func (m *MemoryClaimRedemptions) Release(ctx context.Context, tokenID string) error {
	m.mu.Lock()
	delete(m.entries, tokenID)
	m.mu.Unlock()
	return nil
}
