// ABOUTME: Bounded TTL cache for suppressing duplicate Slack event deliveries.
// ABOUTME: Slack retries events it considers unacknowledged; each must be handled once.

package dedupe

import (
	"sync"
	"time"
)

// entry pairs an event ID with the time it was first seen.
type entry struct {
	id   string
	seen time.Time
}

// Cache remembers recently seen Slack event IDs so retried deliveries
// are processed exactly once. Entries expire after a TTL and the cache
// is size-bounded, evicting oldest-first when full. Expired and excess
// entries are pruned inline on each call, so there is no background
// goroutine and nothing to shut down.
type Cache struct {
	mu      sync.Mutex
	ids     map[string]struct{}
	order   []entry
	ttl     time.Duration
	maxSize int
}

// New creates a cache that forgets event IDs after ttl and holds at
// most maxSize entries.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		ids:     make(map[string]struct{}),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Seen atomically records an event ID and reports whether it was
// already present and fresh. The first call for an ID returns false;
// retried deliveries within the TTL return true.
func (c *Cache) Seen(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.prune(now)

	if _, ok := c.ids[eventID]; ok {
		return true
	}

	// Evict only to admit a new ID; a fresh hit above never costs an
	// unrelated entry its slot.
	for len(c.ids) >= c.maxSize && len(c.order) > 0 {
		c.evictOldest()
	}

	c.ids[eventID] = struct{}{}
	c.order = append(c.order, entry{id: eventID, seen: now})
	return false
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// prune drops entries whose TTL has lapsed. Entries are appended in
// time order, so expiry only ever consumes the front. Must be called
// with mu held.
func (c *Cache) prune(now time.Time) {
	for len(c.order) > 0 && now.Sub(c.order[0].seen) >= c.ttl {
		c.evictOldest()
	}
}

// evictOldest removes the front entry from both the order slice and the
// ID set. Must be called with mu held.
func (c *Cache) evictOldest() {
	delete(c.ids, c.order[0].id)
	c.order = c.order[1:]
}
