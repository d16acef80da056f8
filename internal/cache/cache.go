package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Entry is a cached model response.
type Entry struct {
	Fingerprint string
	Response    string
	CreatedAt   time.Time
}

// Stats is a point-in-time snapshot of cache occupancy and effectiveness.
type Stats struct {
	Entries    int   `json:"entries"`
	MaxEntries int   `json:"max_entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Option configures a ResponseCache.
type Option func(*ResponseCache)

// WithClock overrides the time source used for creation stamps and expiry.
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) { c.now = now }
}

// ResponseCache is a bounded in-memory response cache with a fixed TTL.
// Entries are ordered by creation: lookups do not refresh recency, so when
// the cache is full the oldest-created entry is evicted first. Storing an
// existing fingerprint replaces the response and its creation time.
type ResponseCache struct {
	mu         sync.Mutex
	entries    *simplelru.LRU[string, *Entry]
	ttl        time.Duration
	maxEntries int
	hits       int64
	misses     int64
	evictions  int64
	now        func() time.Time
}

// New creates a ResponseCache holding at most maxEntries responses, each
// valid for ttl. A non-positive ttl disables expiry.
func New(ttl time.Duration, maxEntries int, opts ...Option) (*ResponseCache, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache: max entries must be positive, got %d", maxEntries)
	}
	entries, err := simplelru.NewLRU[string, *Entry](maxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: create lru: %w", err)
	}
	c := &ResponseCache{
		entries:    entries,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Lookup returns the cached response for fp. An entry older than the TTL
// counts as a miss and is removed.
func (c *ResponseCache) Lookup(fp string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Peek(fp)
	if !ok {
		c.misses++
		return "", false
	}
	if c.expired(e) {
		c.entries.Remove(fp)
		c.misses++
		return "", false
	}
	c.hits++
	return e.Response, true
}

// Store records response under fp, evicting the oldest-created entry when
// the cache is full.
func (c *ResponseCache) Store(fp, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.entries.Contains(fp) && c.entries.Len() >= c.maxEntries {
		c.evictions++
	}
	c.entries.Add(fp, &Entry{
		Fingerprint: fp,
		Response:    response,
		CreatedAt:   c.now(),
	})
}

// Clear drops every entry. Hit and miss counters are kept.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// Len returns the number of stored entries, including expired ones that
// have not been looked up since expiring.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// TTL returns the configured entry lifetime.
func (c *ResponseCache) TTL() time.Duration {
	return c.ttl
}

// Stats returns a snapshot of the cache counters.
func (c *ResponseCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:    c.entries.Len(),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}

func (c *ResponseCache) expired(e *Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.CreatedAt) > c.ttl
}
