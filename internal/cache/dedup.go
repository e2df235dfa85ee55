// Package cache provides the notification dedup store with Redis-backed and
// in-memory implementations.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oanda-trading-bot/config"

	"github.com/redis/go-redis/v9"
)

// Key prefixes for different dedup scopes
const (
	PrefixNotification = "notify:%s"  // alert fingerprint
	PrefixSession      = "session:%s" // once-per-session pair guard
)

// DefaultNotifyTTL bounds how long a notification fingerprint suppresses
// repeats.
const DefaultNotifyTTL = 4 * time.Hour

// DedupCache suppresses duplicate side effects. MarkOnce returns true only
// for the first caller of a given key within the TTL window.
type DedupCache interface {
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Clear(ctx context.Context, key string) error
	Close() error
}

// RedisDedupCache implements DedupCache on Redis with SET NX. On Redis
// failure it degrades to the in-memory store so a cache outage never
// blocks trading.
type RedisDedupCache struct {
	client   *redis.Client
	fallback *MemoryDedupCache

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	maxFailures  int
}

// NewRedisDedupCache creates a Redis-backed dedup cache and verifies
// connectivity. A failed initial connection returns the cache in degraded
// mode rather than an error.
func NewRedisDedupCache(cfg config.RedisConfig) (*RedisDedupCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := &RedisDedupCache{
		client:      client,
		fallback:    NewMemoryDedupCache(),
		maxFailures: 3,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return c, nil // degraded mode, fallback store handles everything
	}
	c.healthy = true
	return c, nil
}

// IsHealthy returns whether Redis is currently available.
func (c *RedisDedupCache) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *RedisDedupCache) recordFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	if c.failureCount >= c.maxFailures {
		c.healthy = false
	}
}

func (c *RedisDedupCache) recordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount = 0
	c.healthy = true
}

// MarkOnce sets the key if absent and reports whether this caller won.
func (c *RedisDedupCache) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if !c.IsHealthy() {
		return c.fallback.MarkOnce(ctx, key, ttl)
	}

	ok, err := c.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		c.recordFailure()
		return c.fallback.MarkOnce(ctx, key, ttl)
	}
	c.recordSuccess()
	return ok, nil
}

// Clear removes a key so the next MarkOnce succeeds again.
func (c *RedisDedupCache) Clear(ctx context.Context, key string) error {
	c.fallback.Clear(ctx, key)
	if !c.IsHealthy() {
		return nil
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.recordFailure()
		return err
	}
	c.recordSuccess()
	return nil
}

// Close releases the Redis connection.
func (c *RedisDedupCache) Close() error {
	return c.client.Close()
}

// MemoryDedupCache is the in-process DedupCache used in tests and as the
// degraded-mode fallback.
type MemoryDedupCache struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
}

// NewMemoryDedupCache creates an empty in-memory dedup cache.
func NewMemoryDedupCache() *MemoryDedupCache {
	return &MemoryDedupCache{entries: make(map[string]time.Time)}
}

// MarkOnce sets the key if absent or expired and reports whether this
// caller won.
func (c *MemoryDedupCache) MarkOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}
	c.entries[key] = now.Add(ttl)

	// Opportunistic sweep of expired entries.
	if len(c.entries) > 1024 {
		for k, exp := range c.entries {
			if now.After(exp) {
				delete(c.entries, k)
			}
		}
	}
	return true, nil
}

// Clear removes a key.
func (c *MemoryDedupCache) Clear(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Close is a no-op for the in-memory store.
func (c *MemoryDedupCache) Close() error {
	return nil
}

// NotificationKey builds the dedup key for an alert fingerprint.
func NotificationKey(fingerprint string) string {
	return fmt.Sprintf(PrefixNotification, fingerprint)
}

// SessionKey builds the dedup key for a once-per-session pair guard.
func SessionKey(symbol string) string {
	return fmt.Sprintf(PrefixSession, symbol)
}

// Compile-time interface checks.
var (
	_ DedupCache = (*RedisDedupCache)(nil)
	_ DedupCache = (*MemoryDedupCache)(nil)
)
