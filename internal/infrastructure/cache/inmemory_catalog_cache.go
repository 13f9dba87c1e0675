package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medsupply/backend/internal/domain/supply"
)

const defaultLocalTTL = time.Minute

type localEntry struct {
	entry     supply.CatalogEntry
	expiresAt time.Time
}

// InMemoryCatalogCache is a process-local TTL cache in front of another
// lookup. Only successful lookups are cached.
type InMemoryCatalogCache struct {
	mu      sync.RWMutex
	entries map[string]localEntry
	next    supply.CatalogLookup
	ttl     time.Duration
	now     func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	hits   atomic.Int64
	misses atomic.Int64
}

// NewInMemoryCatalogCache creates the cache and starts its cleanup loop.
// A non-positive ttl falls back to one minute.
func NewInMemoryCatalogCache(next supply.CatalogLookup, ttl time.Duration) *InMemoryCatalogCache {
	if ttl <= 0 {
		ttl = defaultLocalTTL
	}
	c := &InMemoryCatalogCache{
		entries:  make(map[string]localEntry),
		next:     next,
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Resolve returns a copy of the cached entry or loads it from next
func (c *InMemoryCatalogCache) Resolve(ctx context.Context, code string) (*supply.CatalogEntry, error) {
	c.mu.RLock()
	le, ok := c.entries[code]
	c.mu.RUnlock()
	if ok && c.now().Before(le.expiresAt) {
		c.hits.Add(1)
		entry := le.entry
		return &entry, nil
	}
	c.misses.Add(1)

	entry, err := c.next.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[code] = localEntry{entry: *entry, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return entry, nil
}

// Invalidate drops one code
func (c *InMemoryCatalogCache) Invalidate(_ context.Context, code string) error {
	c.mu.Lock()
	delete(c.entries, code)
	c.mu.Unlock()
	return nil
}

// Stats returns hit and miss counters
func (c *InMemoryCatalogCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of stored entries, expired ones included
func (c *InMemoryCatalogCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryCatalogCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryCatalogCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryCatalogCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for code, le := range c.entries {
		if !now.Before(le.expiresAt) {
			delete(c.entries, code)
		}
	}
}

var _ supply.CatalogLookup = (*InMemoryCatalogCache)(nil)
