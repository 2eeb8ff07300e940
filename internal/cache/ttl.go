package cache

import (
	"sync"
	"time"

	"github.com/i474232898/weather-widgets/internal/metrics"
)

// DefaultTTL is used when a non-positive TTL is passed to NewTTL.
const DefaultTTL = 5 * time.Minute

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a concurrency-safe key/value cache with a fixed time-to-live.
// Entries are only evicted by time: lazily on Get, or in bulk by Purge.
type TTL[V any] struct {
	mu      sync.Mutex
	name    string
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry[V]
}

// Option customises a TTL cache.
type Option func(*options)

type options struct {
	name string
	now  func() time.Time
}

// WithName labels the cache in lookup metrics. Unnamed caches are not counted.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithClock overrides the time source; tests use it to step past expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewTTL creates a cache whose entries expire ttl after they were set.
func NewTTL[V any](ttl time.Duration, opts ...Option) *TTL[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[V]{
		name:    o.name,
		ttl:     ttl,
		now:     o.now,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the value for key. An expired entry is removed and reported as a miss.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.now().After(e.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.observe(ok)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTL[V]) observe(hit bool) {
	if c.name == "" {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(c.name, result).Inc()
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len counts stored entries, including expired ones not yet evicted.
func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Purge drops every expired entry and returns how many were removed.
func (c *TTL[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// TTL returns the configured time-to-live.
func (c *TTL[V]) TTL() time.Duration {
	return c.ttl
}
