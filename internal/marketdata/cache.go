package marketdata

import (
	"sync"
	"time"
)

// Default TTLs per data kind. Market state churns, so price-like kinds stay
// fresh for minutes; token age and identity are effectively immutable and
// keep for an hour.
func defaultTTLs() map[Kind]time.Duration {
	return map[Kind]time.Duration{
		KindPrice:     5 * time.Minute,
		KindLiquidity: 5 * time.Minute,
		KindMetrics:   5 * time.Minute,
		KindQuote:     5 * time.Minute,
		KindInfo:      time.Hour,
		KindAge:       time.Hour,
	}
}

type cacheKey struct {
	kind Kind
	key  string
}

type cacheEntry struct {
	value     interface{}
	fetchedAt time.Time
}

// ttlCache is an owned TTL map keyed by (kind, token). It is injected into
// the aggregator rather than living as ambient module state.
type ttlCache struct {
	mu      sync.RWMutex
	ttls    map[Kind]time.Duration
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

func newTTLCache(ttls map[Kind]time.Duration) *ttlCache {
	merged := defaultTTLs()
	for k, v := range ttls {
		merged[k] = v
	}
	return &ttlCache{
		ttls:    merged,
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// Get returns a cached value if present and not past its kind TTL.
func (c *ttlCache) Get(kind Kind, key string) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey{kind, key}]
	ttl := c.ttls[kind]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.fetchedAt) > ttl {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value with the current timestamp.
func (c *ttlCache) Set(kind Kind, key string, value interface{}) {
	c.mu.Lock()
	c.entries[cacheKey{kind, key}] = cacheEntry{value: value, fetchedAt: c.now()}
	c.mu.Unlock()
}

// Len returns the number of entries, expired or not.
func (c *ttlCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
