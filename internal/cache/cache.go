// Package cache provides a capacity- and time-bounded memo store with
// least-recently-used eviction.
//
// Instances are constructed explicitly and handed to their consumers (the
// escaping unit, the registry lookups). There is no package-level instance;
// callers that own a session clear their caches at the session boundary.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

const (
	// DefaultMax is the capacity used when Options.Max is not positive.
	DefaultMax = 500

	// DefaultTTL is the time-to-live used when Options.TTL is not positive.
	DefaultTTL = 5 * time.Minute
)

// Options configures a Cache.
type Options struct {
	// Name identifies the instance in stats and metrics.
	Name string

	// Max is the maximum number of entries held at once.
	Max int

	// TTL is the default time-to-live of an entry.
	TTL time.Duration

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Cache is an LRU cache with per-entry TTL.
//
// Both Set and a successful Get count as use: they move the entry to the
// most-recently-used position and restart its age. Has never changes
// recency. Expired entries are invisible to Get and Has without a sweep;
// Get drops an expired entry it finds.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache[V any] struct {
	mu   sync.Mutex
	name string
	lru  *simplelru.LRU[string, entry[V]]
	ttl  time.Duration
	now  func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// New creates a cache. Non-positive Max and TTL fall back to DefaultMax and
// DefaultTTL.
func New[V any](opts Options) *Cache[V] {
	if opts.Max <= 0 {
		opts.Max = DefaultMax
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache[V]{
		name: opts.Name,
		ttl:  opts.TTL,
		now:  opts.Now,
	}

	// NewLRU only fails for a non-positive size, which is ruled out above.
	c.lru, _ = simplelru.NewLRU[string, entry[V]](opts.Max, nil)
	return c
}

// SetOption customizes a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl time.Duration
}

// WithTTL overrides the default TTL for one entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Peek(key)
	if !ok {
		c.misses++
		return zero, false
	}

	now := c.now()
	if e.expired(now) {
		c.lru.Remove(key)
		c.misses++
		return zero, false
	}

	// Refresh recency and age.
	e.insertedAt = now
	c.lru.Add(key, e)
	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache[V]) Set(key string, value V, opts ...SetOption) {
	o := setOptions{ttl: c.ttl}
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := c.lru.Add(key, entry[V]{
		value:      value,
		insertedAt: c.now(),
		ttl:        o.ttl,
	})
	if evicted {
		c.evictions++
	}
}

// Has reports whether key is present and not expired.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	return ok && !e.expired(c.now())
}

// Delete removes key. Returns false if it was not present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Clear removes every entry. Counters are not affected.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of entries held, including expired entries that
// have not been dropped yet.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Name returns the instance name given at construction.
func (c *Cache[V]) Name() string {
	return c.name
}

// Stats holds cache counters.
type Stats struct {
	Name      string
	Size      int
	Hits      int64
	Misses    int64
	Evictions int64
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Name:      c.name,
		Size:      c.lru.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
