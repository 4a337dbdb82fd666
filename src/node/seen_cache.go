package node

import (
	"sync"
	"time"
)

// SeenCache suppresses duplicate execution of tasks that arrive multiple
// times through mesh flooding. It maps task ids to their deadlines; an entry
// lives until its task's own deadline has passed, after which the id may
// legitimately be garbage collected because the deadline check would drop a
// replay anyway.
type SeenCache struct {
	mu      sync.Mutex
	entries map[string]int64
	maxSize int
}

// NewSeenCache creates a cache bounded to maxSize entries.
func NewSeenCache(maxSize int) *SeenCache {
	return &SeenCache{
		entries: make(map[string]int64),
		maxSize: maxSize,
	}
}

// Seen reports whether taskID is currently in the cache. It is a read-only
// check used during message validation.
func (c *SeenCache) Seen(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(time.Now().UnixMilli())

	_, ok := c.entries[taskID]
	return ok
}

// Reserve atomically records taskID if it is not already present. It returns
// true when the caller won the reservation and may execute the task; exactly
// one concurrent caller wins per id.
func (c *SeenCache) Reserve(taskID string, deadline int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixMilli()
	c.pruneLocked(now)

	if _, ok := c.entries[taskID]; ok {
		return false
	}

	if len(c.entries) >= c.maxSize {
		return false
	}

	c.entries[taskID] = deadline
	return true
}

// Len returns the current number of entries.
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// pruneLocked evicts entries whose deadline has passed. Callers hold the lock.
func (c *SeenCache) pruneLocked(now int64) {
	for id, deadline := range c.entries {
		if now > deadline {
			delete(c.entries, id)
		}
	}
}
