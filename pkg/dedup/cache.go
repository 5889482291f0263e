package dedup

import (
	"fmt"
	"sync"
	"time"
)

// TTL is the lifetime of a dedup entry before it is lazily evicted
// (spec.md §3: "Entries older than 5 s are purged lazily on insert").
const TTL = 5 * time.Second

// Cache is the RBC inbound dedup cache: a mapping key -> last-seen
// time, consulted after the origin gate (spec.md §4.10).
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewCache returns an empty dedup cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Key derives the dedup key for an inbound message, precedence
// msg_id, then NID:SEQUENCE, then NID (spec.md §3).
func Key(msgID string, nid uint8, sequence int64, hasSequence bool) string {
	if msgID != "" {
		return "id:" + msgID
	}
	if hasSequence {
		return fmt.Sprintf("seq:%d:%d", nid, sequence)
	}
	return fmt.Sprintf("nid:%d", nid)
}

// SeenRecently reports whether key was inserted within the last TTL,
// and records this call's timestamp either way. Eviction of all
// stale entries runs lazily as part of this call.
func (c *Cache) SeenRecently(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.evictLocked(now)

	last, ok := c.entries[key]
	c.entries[key] = now
	if !ok {
		return false
	}
	return now.Sub(last) < TTL
}

func (c *Cache) evictLocked(now time.Time) {
	for k, t := range c.entries {
		if now.Sub(t) >= TTL {
			delete(c.entries, k)
		}
	}
}

// Len reports the current number of live entries, for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
