package storage

import (
	"encoding/json"
	"sync"
	"time"
)

// Default read-through cache tuning. The cache is a value cache, not a
// negative cache: misses resolved to defaults may still be cached so
// repeated misses stay cheap.
const (
	defaultCacheTTL      = 5 * time.Second
	defaultCacheCapacity = 100
)

type cacheEntry struct {
	key      string
	data     json.RawMessage
	exists   bool
	location Location
	storedAt time.Time
}

// ttlCache is a bounded first-inserted-first-evicted cache with per-entry
// expiry. Only the safe store touches it.
type ttlCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	order    []string
	capacity int
	ttl      time.Duration
	nowFn    func() time.Time
}

func newTTLCache(capacity int, ttl time.Duration, nowFn func() time.Time) *ttlCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &ttlCache{
		entries:  make(map[string]cacheEntry),
		capacity: capacity,
		ttl:      ttl,
		nowFn:    nowFn,
	}
}

func (c *ttlCache) get(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return cacheEntry{}, false
	}
	if c.nowFn().Sub(entry.storedAt) > c.ttl {
		c.evictLocked(key)
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *ttlCache) put(key string, data json.RawMessage, exists bool, location Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, present := c.entries[key]; !present {
		for len(c.order) >= c.capacity {
			c.evictLocked(c.order[0])
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{
		key:      key,
		data:     data,
		exists:   exists,
		location: location,
		storedAt: c.nowFn(),
	}
}

func (c *ttlCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(key)
}

func (c *ttlCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.order = nil
}

func (c *ttlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ttlCache) evictLocked(key string) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
