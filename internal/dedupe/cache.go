// ABOUTME: TTL and size-capped cache of seen channel message ids
// ABOUTME: Conversation ingest consults it so webhook redeliveries are dropped

package dedupe

import (
	"sync"
	"time"
)

// Defaults used by callers that have no reason to tune the cache.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxEntries = 10000
)

// Cache remembers which (channel, message id) pairs have been ingested.
// Entries expire after the TTL; when the cache is full, the oldest half is
// discarded. Expiry is checked lazily on access, so no background
// goroutine is needed.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	order   []string
	ttl     time.Duration
	maxSize int
}

// New creates a cache with the given TTL and maximum entry count.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize < 2 {
		maxSize = 2
	}
	return &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Seen atomically checks whether the delivery was already ingested and
// marks it if not. Returns true for duplicates.
func (c *Cache) Seen(channel, messageID string) bool {
	key := channel + ":" + messageID

	c.mu.Lock()
	defer c.mu.Unlock()

	if ts, ok := c.seen[key]; ok && time.Since(ts) < c.ttl {
		return true
	}

	if len(c.order) >= c.maxSize {
		half := len(c.order) / 2
		for _, old := range c.order[:half] {
			delete(c.seen, old)
		}
		c.order = append([]string(nil), c.order[half:]...)
	}

	c.seen[key] = time.Now()
	c.order = append(c.order, key)
	return false
}

// Len reports the number of tracked entries, counting expired ones that
// have not been pruned yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Prune removes expired entries. Callers that run for a long time can
// invoke this periodically; correctness does not depend on it.
func (c *Cache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	kept := c.order[:0]
	for _, key := range c.order {
		if ts, ok := c.seen[key]; ok && now.Sub(ts) < c.ttl {
			kept = append(kept, key)
		} else {
			delete(c.seen, key)
		}
	}
	c.order = kept
}
