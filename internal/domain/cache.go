package domain

import (
	"context"
	"time"
)

// Cache is the pricing memoization layer. Keys embed the weights version, so
// a stale entry can never satisfy a lookup made under a newer configuration;
// Flush on reload is memory hygiene, not a correctness requirement.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// Flush drops every entry this service owns.
	Flush(ctx context.Context) error

	// Stats reports hit/miss counters since process start.
	Stats() CacheStats

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheStats are cumulative cache counters.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
