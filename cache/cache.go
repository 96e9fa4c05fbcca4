// Package cache is the ristretto-backed store behind cached data providers.
package cache

import (
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/go-lynx/widget/observability/metrics"
)

var (
	// ErrCacheMiss indicates that a key was not found in the cache
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrCacheSet indicates that the admission policy dropped a value
	ErrCacheSet = errors.New("cache: failed to set value")
	// ErrInvalidTTL indicates that a negative TTL was provided
	ErrInvalidTTL = errors.New("cache: invalid TTL")
)

// Options is the cache section of the runtime configuration
type Options struct {
	// Enabled turns provider caching on
	Enabled bool `json:"enabled"`
	// NumCounters is the number of admission counters, about 10x the expected item count
	NumCounters int64 `json:"num_counters"`
	// MaxItems caps the number of cached payloads. Every payload costs 1.
	MaxItems int64 `json:"max_items"`
	// BufferItems is the number of keys per Get buffer
	BufferItems int64 `json:"buffer_items"`
	// TTL is the lifetime of a cached payload, as a duration string. Empty means no expiry.
	TTL string `json:"ttl"`
}

// DefaultOptions returns a cache sized for a few thousand widgets
func DefaultOptions() Options {
	return Options{
		NumCounters: 1e5,
		MaxItems:    1e4,
		BufferItems: 64,
		TTL:         "30s",
	}
}

// ParseTTL returns the configured TTL, or zero when unset
func (o Options) ParseTTL() (time.Duration, error) {
	if o.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(o.TTL)
	if err != nil || d < 0 {
		return 0, ErrInvalidTTL
	}
	return d, nil
}

// Cache is a thread-safe in-memory cache with TTL support
type Cache struct {
	cache   *ristretto.Cache
	name    string
	metrics *metrics.Metrics
}

// New creates a cache. Zero sizes fall back to DefaultOptions.
func New(name string, opts Options, m *metrics.Metrics) (*Cache, error) {
	def := DefaultOptions()
	if opts.NumCounters <= 0 {
		opts.NumCounters = def.NumCounters
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = def.MaxItems
	}
	if opts.BufferItems <= 0 {
		opts.BufferItems = def.BufferItems
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxItems,
		BufferItems: opts.BufferItems,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c, name: name, metrics: m}, nil
}

// Set stores value under key. A zero ttl never expires.
func (c *Cache) Set(key string, value any, ttl time.Duration) error {
	if ttl < 0 {
		return ErrInvalidTTL
	}
	var ok bool
	if ttl == 0 {
		ok = c.cache.Set(key, value, 1)
	} else {
		ok = c.cache.SetWithTTL(key, value, 1, ttl)
	}
	if !ok {
		return ErrCacheSet
	}
	// make the value visible to the next Get
	c.cache.Wait()
	return nil
}

// Get returns the value stored under key
func (c *Cache) Get(key string) (any, error) {
	v, found := c.cache.Get(key)
	if !found {
		c.metrics.CacheMiss()
		return nil, ErrCacheMiss
	}
	c.metrics.CacheHit()
	return v, nil
}

// Delete removes key
func (c *Cache) Delete(key string) {
	c.cache.Del(key)
}

// Clear removes every item
func (c *Cache) Clear() {
	c.cache.Clear()
}

// Close releases the cache's goroutines
func (c *Cache) Close() {
	c.cache.Close()
}

// Name returns the cache name
func (c *Cache) Name() string {
	return c.name
}
