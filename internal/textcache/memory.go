package textcache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCache is a process-local Cache for deployments without Redis.
// Inserting past capacity evicts the least-recently-inserted live entry.
// Reads never refresh TTL or insertion order; expired entries are dropped
// lazily on access.
type MemoryCache struct {
	ttl      time.Duration
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // newest insert at the front

	now func() time.Time // stubbed in tests
}

type memoryEntry struct {
	id        string
	text      string
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache. Zero ttl or capacity select the
// package defaults.
func NewMemoryCache(ttl time.Duration, capacity int) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

func (c *MemoryCache) Put(_ context.Context, text string) (string, error) {
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()
	for len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	elem := c.order.PushFront(&memoryEntry{
		id:        id,
		text:      text,
		expiresAt: c.now().Add(c.ttl),
	})
	c.entries[id] = elem
	return id, nil
}

func (c *MemoryCache) Get(_ context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		return "", ErrNotFound
	}
	entry := elem.Value.(*memoryEntry)
	if !c.now().Before(entry.expiresAt) {
		c.removeLocked(elem)
		return "", ErrNotFound
	}
	return entry.text, nil
}

func (c *MemoryCache) ListIDs(_ context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids, nil
}

// pruneLocked drops expired entries, scanning from the oldest insert.
func (c *MemoryCache) pruneLocked() {
	now := c.now()
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if !now.Before(elem.Value.(*memoryEntry).expiresAt) {
			c.removeLocked(elem)
		}
		elem = prev
	}
}

func (c *MemoryCache) evictOldestLocked() {
	if elem := c.order.Back(); elem != nil {
		c.removeLocked(elem)
	}
}

func (c *MemoryCache) removeLocked(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*memoryEntry).id)
}
