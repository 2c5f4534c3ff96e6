// Package cache implements the snapshot field cache: an LRU-bounded store
// where freshness is decided per read. Entries carry no TTL of their own;
// every Get names the window it is willing to accept, so the same entry can
// be fresh for one caller and stale for another.
package cache

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the number of live entries. Key cardinality grows
// with buffer revisions and file paths, so the store is LRU-bounded rather
// than swept.
const DefaultCapacity = 512

// KeySeparator joins the field prefix and its discriminants.
const KeySeparator = ":"

type entry struct {
	value    any
	storedAt time.Time
}

// Cache is a TTL-on-read LRU cache. Expired entries are detected lazily at
// read time and reported absent; they are evicted by capacity pressure, not
// by a background sweep.
type Cache struct {
	store *lru.Cache[string, entry]
	now   func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache holding at most capacity entries. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	store, err := lru.New[string, entry](capacity)
	if err != nil {
		// lru.New only fails on non-positive size, which is guarded above.
		panic(err)
	}
	c := &Cache{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds a cache key from a field prefix and its discriminants, such as
// a buffer revision or file mtime. Changing any discriminant addresses a
// fresh slot, leaving the stale one to age out.
func Key(prefix string, discriminants ...string) string {
	if len(discriminants) == 0 {
		return prefix
	}
	return prefix + KeySeparator + strings.Join(discriminants, KeySeparator)
}

// Get returns the value stored under key if it was written within ttl.
// Entries older than ttl are treated as absent.
func (c *Cache) Get(key string, ttl time.Duration) (any, bool) {
	e, ok := c.store.Get(key)
	if !ok {
		metricMisses.Inc()
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= ttl {
		metricExpired.Inc()
		metricMisses.Inc()
		return nil, false
	}
	metricHits.Inc()
	return e.value, true
}

// Set stores a value under key, stamping it with the current time. An
// existing entry is overwritten and its age reset.
func (c *Cache) Set(key string, value any) {
	if evicted := c.store.Add(key, entry{value: value, storedAt: c.now()}); evicted {
		metricEvictions.Inc()
	}
	metricEntries.Set(float64(c.store.Len()))
}

// Clear removes the entry stored under prefix itself and every entry under
// a discriminant of it. Keys that merely share leading bytes survive:
// clearing "vcs" leaves "vcsx" alone.
func (c *Cache) Clear(prefix string) {
	qualified := prefix + KeySeparator
	removed := 0
	for _, key := range c.store.Keys() {
		if key == prefix || strings.HasPrefix(key, qualified) {
			if c.store.Remove(key) {
				removed++
			}
		}
	}
	metricClears.Add(float64(removed))
	metricEntries.Set(float64(c.store.Len()))
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.store.Purge()
	metricEntries.Set(0)
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	return c.store.Len()
}
