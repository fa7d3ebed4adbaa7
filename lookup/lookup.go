// Package lookup provides a process-wide TTL key/value cache used to avoid
// repeating identical external search queries within a short window.
//
// Entries expire after a fixed duration configured at construction; expired
// entries are evicted lazily on access, there is no background sweep and no
// size-based eviction. Key cardinality is low (one entry per unique product
// identity query), so memory growth is bounded by the TTL alone. The cache
// is never durable: an empty cache after restart only costs an extra
// provider query, never correctness.
package lookup

import (
	"sync"
	"time"
)

// Options tunes cache behaviour.
type Options struct {
	// TTL is the uniform lifetime of every entry. Default: 5 minutes.
	TTL time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type entry[V any] struct {
	value    V
	expireAt time.Time
}

// Cache is a TTL key/value cache. Safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	opts    Options
}

// New creates a Cache with the given options.
func New[V any](opts Options) *Cache[V] {
	opts.defaults()
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		opts:    opts,
	}
}

// Get returns the value for key and whether it is present and unexpired.
// An expired entry is evicted and reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.opts.Now().Before(e.expireAt) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with expiry = now + TTL, replacing any
// existing entry.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expireAt: c.opts.Now().Add(c.opts.TTL)}
}

// Has reports whether key is present and unexpired. Expired entries are
// evicted.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of stored entries, including any that have
// expired but not yet been evicted.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
