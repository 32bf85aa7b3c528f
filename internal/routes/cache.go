package routes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sabanago/ride-sharing/pkg/logger"
	redisclient "github.com/sabanago/ride-sharing/pkg/redis"
)

const cacheKeyPrefix = "routes:cache:"

// cacheKey hashes the normalized lookup inputs so coordinates that differ
// only past the fifth decimal share an entry.
func cacheKey(origin, destination Coordinate, mode Mode) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", origin.Normalize(), destination.Normalize(), mode)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

type memoEntry struct {
	result    RouteResult
	expiresAt time.Time
}

// Cache stores provider results in Redis, falling back to an in-process map
// when Redis is not configured. The map is only used in the fallback mode so
// a Redis deployment never pays for both.
type Cache struct {
	redis *redisclient.Client
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]memoEntry
}

func NewCache(redis *redisclient.Client, ttl time.Duration) *Cache {
	return &Cache{
		redis:   redis,
		ttl:     ttl,
		entries: make(map[string]memoEntry),
	}
}

// Get returns a copy of the cached result for the lookup, or nil on a miss.
func (c *Cache) Get(ctx context.Context, origin, destination Coordinate, mode Mode) *RouteResult {
	key := cacheKey(origin, destination, mode)

	if c.redis == nil {
		c.mu.RLock()
		entry, ok := c.entries[key]
		c.mu.RUnlock()
		if !ok || time.Now().After(entry.expiresAt) {
			return nil
		}
		out := entry.result
		return &out
	}

	raw, err := c.redis.GetString(ctx, key)
	if err != nil || raw == "" {
		return nil
	}

	var result RouteResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		logger.Warn(fmt.Sprintf("Failed to decode cached route, dropping entry: %v", err))
		_ = c.redis.Delete(ctx, key)
		return nil
	}
	return &result
}

// Set stores the result under the normalized key. Failures are logged and
// swallowed: the route was already computed, caching is best effort.
func (c *Cache) Set(ctx context.Context, origin, destination Coordinate, mode Mode, result *RouteResult) {
	if result == nil {
		return
	}
	key := cacheKey(origin, destination, mode)

	if c.redis == nil {
		c.mu.Lock()
		c.entries[key] = memoEntry{result: *result, expiresAt: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		logger.Warn(fmt.Sprintf("Failed to encode route for cache: %v", err))
		return
	}
	if err := c.redis.SetWithExpiration(ctx, key, payload, c.ttl); err != nil {
		logger.Warn(fmt.Sprintf("Failed to cache route: %v", err))
	}
}
