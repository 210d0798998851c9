package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/meridiancrm/meridian/pkg/observability"
)

const identityKeyPrefix = "identity:"

// IdentityCache is a two-layer cache over resolved identities keyed by
// token hash: an in-process expirable LRU backed by an optional shared
// Redis layer. The TTL caps how stale a cached is_active flag can be.
type IdentityCache struct {
	l1      *lru.LRU[string, *User]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
}

// NewIdentityCache creates the cache. The redis client may be nil, in
// which case only the in-process layer is used.
func NewIdentityCache(size int, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics) *IdentityCache {
	if size <= 0 {
		size = 1024
	}
	return &IdentityCache{
		l1:      lru.NewLRU[string, *User](size, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Get looks up a resolved identity by token hash
func (c *IdentityCache) Get(ctx context.Context, tokenHash string) (*User, bool) {
	if user, ok := c.l1.Get(tokenHash); ok {
		if c.metrics != nil {
			c.metrics.IdentityCacheHitsTotal.WithLabelValues("l1").Inc()
		}
		return user, true
	}

	if c.redis != nil {
		cached, err := c.redis.Get(ctx, identityKeyPrefix+tokenHash).Result()
		if err == nil {
			var user User
			if err := json.Unmarshal([]byte(cached), &user); err == nil {
				c.l1.Add(tokenHash, &user)
				if c.metrics != nil {
					c.metrics.IdentityCacheHitsTotal.WithLabelValues("l2").Inc()
				}
				return &user, true
			}
		}
	}

	if c.metrics != nil {
		c.metrics.IdentityCacheMissesTotal.Inc()
	}
	return nil, false
}

// Set stores a resolved identity in both layers
func (c *IdentityCache) Set(ctx context.Context, tokenHash string, user *User) {
	c.l1.Add(tokenHash, user)

	if c.redis != nil {
		if data, err := json.Marshal(user); err == nil {
			c.redis.Set(ctx, identityKeyPrefix+tokenHash, data, c.ttl)
		}
	}
}

// Invalidate drops a token's cached identity from both layers (logout,
// token rotation)
func (c *IdentityCache) Invalidate(ctx context.Context, tokenHash string) {
	c.l1.Remove(tokenHash)

	if c.redis != nil {
		c.redis.Del(ctx, identityKeyPrefix+tokenHash)
	}
}

// Purge clears the in-process layer. Called after user mutations that
// change role or active status; the Redis layer rides out its TTL.
func (c *IdentityCache) Purge() {
	c.l1.Purge()
}
