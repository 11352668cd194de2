// Package cache provides a bounded key-value store with FIFO eviction and a
// per-entry time to live.
//
// Insertion order decides eviction: when a new key arrives at capacity, the
// oldest inserted key is dropped. Reads do not refresh an entry's position.
// Every read checks the entry's age first, and an expired entry is a miss
// that is removed on the spot, so stale values are never served.
package cache

import (
	"sync"
	"time"
)

// Entry is a stored value with its insertion time and size estimate.
type Entry[V any] struct {
	Key       string
	Value     V
	Timestamp time.Time
	Size      int64
}

// Options configures a Cache.
type Options[V any] struct {
	Name     string
	Capacity int
	TTL      time.Duration // zero disables expiry

	// OnEvict, if set, is called without the lock held for entries dropped
	// by capacity, expiry, or removal.
	OnEvict func(key string, value V)

	// Now overrides the clock.
	Now func() time.Time
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	name    string
	ttl     time.Duration
	onEvict func(string, V)
	now     func() time.Time

	mu       sync.Mutex
	capacity int
	entries  map[string]*Entry[V]
	order    *fifo
	bytes    int64

	metrics Metrics
}

// New creates a cache. Capacity below 1 is treated as 1.
func New[V any](opts Options[V]) *Cache[V] {
	if opts.Capacity < 1 {
		opts.Capacity = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache[V]{
		name:     opts.Name,
		ttl:      opts.TTL,
		onEvict:  opts.OnEvict,
		now:      opts.Now,
		capacity: opts.Capacity,
		entries:  make(map[string]*Entry[V]),
		order:    newFIFO(),
	}
}

type dropped[V any] struct {
	key   string
	value V
}

func (c *Cache[V]) notify(ds []dropped[V]) {
	if c.onEvict == nil {
		return
	}
	for _, d := range ds {
		c.onEvict(d.key, d.value)
	}
}

func (c *Cache[V]) expired(e *Entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.Timestamp) >= c.ttl
}

// removeLocked drops key from storage and ordering. mu must be held.
func (c *Cache[V]) removeLocked(key string) (*Entry[V], bool) {
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	delete(c.entries, key)
	c.order.remove(key)
	c.bytes -= e.Size
	return e, true
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.metrics.misses.Add(1)
		return zero, false
	}
	if c.expired(e, c.now()) {
		c.removeLocked(key)
		c.mu.Unlock()
		c.metrics.expirations.Add(1)
		c.metrics.misses.Add(1)
		c.notify([]dropped[V]{{key, e.Value}})
		return zero, false
	}
	v := e.Value
	c.mu.Unlock()
	c.metrics.hits.Add(1)
	return v, true
}

// Peek is Get without counting a hit or miss. Expired entries are still
// reported absent.
func (c *Cache[V]) Peek(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e, c.now()) {
		return Entry[V]{}, false
	}
	return *e, true
}

// Put stores value under key. Replacing a key keeps its eviction position
// and restarts its TTL. A new key at capacity evicts the oldest entry.
func (c *Cache[V]) Put(key string, value V, size int64) {
	c.mu.Lock()
	now := c.now()

	if e, ok := c.entries[key]; ok {
		old := e.Value
		c.bytes += size - e.Size
		e.Value, e.Timestamp, e.Size = value, now, size
		c.mu.Unlock()
		c.notify([]dropped[V]{{key, old}})
		return
	}

	var out []dropped[V]
	for len(c.entries) >= c.capacity {
		k, ok := c.order.pop()
		if !ok {
			break
		}
		e := c.entries[k]
		delete(c.entries, k)
		c.bytes -= e.Size
		c.metrics.evictions.Add(1)
		out = append(out, dropped[V]{k, e.Value})
	}

	c.entries[key] = &Entry[V]{Key: key, Value: value, Timestamp: now, Size: size}
	c.order.push(key)
	c.bytes += size
	c.mu.Unlock()
	c.notify(out)
}

// Remove deletes key and reports whether it was present.
func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	e, ok := c.removeLocked(key)
	c.mu.Unlock()
	if ok {
		c.metrics.removals.Add(1)
		c.notify([]dropped[V]{{key, e.Value}})
	}
	return ok
}

// RemoveIf deletes every entry whose key satisfies match and returns the count.
func (c *Cache[V]) RemoveIf(match func(key string) bool) int {
	c.mu.Lock()
	var out []dropped[V]
	for _, k := range c.order.keys() {
		if !match(k) {
			continue
		}
		if e, ok := c.removeLocked(k); ok {
			out = append(out, dropped[V]{k, e.Value})
		}
	}
	c.mu.Unlock()
	c.metrics.removals.Add(int64(len(out)))
	c.notify(out)
	return len(out)
}

// RemoveEntries deletes every live entry for which match returns true.
// Unlike RemoveIf, match sees the whole entry.
func (c *Cache[V]) RemoveEntries(match func(Entry[V]) bool) int {
	c.mu.Lock()
	var out []dropped[V]
	for _, k := range c.order.keys() {
		e := c.entries[k]
		if !match(*e) {
			continue
		}
		c.removeLocked(k)
		out = append(out, dropped[V]{k, e.Value})
	}
	c.mu.Unlock()
	c.metrics.removals.Add(int64(len(out)))
	c.notify(out)
	return len(out)
}

// PurgeExpired drops expired entries and returns the count.
func (c *Cache[V]) PurgeExpired() int {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	now := c.now()
	var out []dropped[V]
	for _, k := range c.order.keys() {
		e := c.entries[k]
		if c.expired(e, now) {
			c.removeLocked(k)
			out = append(out, dropped[V]{k, e.Value})
		}
	}
	c.mu.Unlock()
	c.metrics.expirations.Add(int64(len(out)))
	c.notify(out)
	return len(out)
}

// Clear drops every entry.
func (c *Cache[V]) Clear() int {
	c.mu.Lock()
	out := make([]dropped[V], 0, len(c.entries))
	for _, k := range c.order.keys() {
		out = append(out, dropped[V]{k, c.entries[k].Value})
	}
	c.entries = make(map[string]*Entry[V])
	c.order.reset()
	c.bytes = 0
	c.mu.Unlock()
	c.metrics.removals.Add(int64(len(out)))
	c.notify(out)
	return len(out)
}

// SetCapacity changes the bound, evicting oldest entries to fit.
func (c *Cache[V]) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	c.mu.Lock()
	c.capacity = n
	var out []dropped[V]
	for len(c.entries) > c.capacity {
		k, ok := c.order.pop()
		if !ok {
			break
		}
		e := c.entries[k]
		delete(c.entries, k)
		c.bytes -= e.Size
		c.metrics.evictions.Add(1)
		out = append(out, dropped[V]{k, e.Value})
	}
	c.mu.Unlock()
	c.notify(out)
}

// Capacity returns the current bound.
func (c *Cache[V]) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns stored keys in insertion order, oldest first.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.keys()
}

// Stats returns counters and occupancy.
func (c *Cache[V]) Stats() Stats {
	s := c.metrics.snapshot()
	c.mu.Lock()
	s.Name, s.Len, s.Capacity, s.Bytes = c.name, len(c.entries), c.capacity, c.bytes
	c.mu.Unlock()
	return s
}
