// Package cache provides the bounded FIFO task-id set used to deduplicate
// fetched and submitted tasks
package cache

import "sync"

// TaskCache is a thread-safe bounded FIFO with set semantics. Inserting an
// existing id is a no-op; at capacity the oldest entry is evicted. Capacity
// is fixed at construction
type TaskCache struct {
	mu    sync.Mutex
	cap   int
	order []string
	set   map[string]struct{}
}

// NewTaskCache builds a cache holding at most capacity ids; capacity < 1 is
// treated as 1
func NewTaskCache(capacity int) *TaskCache {
	if capacity < 1 {
		capacity = 1
	}
	return &TaskCache{
		cap: capacity,
		set: make(map[string]struct{}, capacity),
	}
}

// Contains reports whether id is currently cached
func (c *TaskCache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.set[id]
	return ok
}

// Insert adds id, evicting the oldest entry at capacity. Returns false when
// id was already present
func (c *TaskCache) Insert(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.set[id]; ok {
		return false
	}
	if len(c.order) >= c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.set, oldest)
	}
	c.order = append(c.order, id)
	c.set[id] = struct{}{}
	return true
}

// Len returns the current number of cached ids
func (c *TaskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
