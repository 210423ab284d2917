package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// ttlCache evicts entries once their TTL has passed. A background goroutine removes
// expired entries every cleanup interval until Close or until its context ends.
type ttlCache[V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]*ttlEntry[V]
	stats *Statistics
	opts  *settings[V]
	now   func() time.Time

	shutdown  chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewTTL creates a TTL cache. ttl must be positive.
func NewTTL[V any](ctx context.Context, ttl, cleanupInterval time.Duration, options ...Option[V]) (Cache[V], error) {
	return newTTLCache(ctx, ttl, cleanupInterval, applyOptions(options...))
}

func newTTLCache[V any](
	ctx context.Context, ttl, cleanupInterval time.Duration, opts *settings[V],
) (*ttlCache[V], error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be positive, got %s", ttl)
	}
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	c := &ttlCache[V]{
		ttl:      ttl,
		items:    make(map[string]*ttlEntry[V]),
		stats:    NewStatistics(),
		opts:     opts,
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.cleanup(ctx, cleanupInterval)
	return c, nil
}

// Get retrieves a live value. An expired entry is removed and counts as a miss.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, exists := c.items[key]
	c.mu.RUnlock()

	if exists && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.items[key]; ok && c.now().After(current.expiresAt) {
			delete(c.items, key)
			c.evicted(key, current.value)
		}
		c.stats.UpdateSize(len(c.items))
		c.mu.Unlock()
		exists = false
	}

	c.opts.metrics.RecordCacheLookup(exists)
	if !exists {
		var zero V
		c.stats.Miss()
		return zero, false
	}
	c.stats.Hit()
	return entry.value, true
}

// Set stores a value with a fresh TTL. When the cache is full, the entry closest to
// expiry makes room.
func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.items[key]
	if !exists && c.opts.maxEntries > 0 && len(c.items) >= c.opts.maxEntries {
		c.evictOldest()
	}
	c.items[key] = &ttlEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)}

	c.stats.Set()
	c.stats.UpdateSize(len(c.items))
	return !exists, nil
}

// evictOldest removes the entry closest to expiry. Caller holds mu.
func (c *ttlCache[V]) evictOldest() {
	var (
		oldestKey string
		oldest    *ttlEntry[V]
	)
	for k, e := range c.items {
		if oldest == nil || e.expiresAt.Before(oldest.expiresAt) {
			oldestKey, oldest = k, e
		}
	}
	if oldest != nil {
		delete(c.items, oldestKey)
		c.evicted(oldestKey, oldest.value)
	}
}

// evicted records an eviction and runs the callback. Caller holds mu.
func (c *ttlCache[V]) evicted(key string, value V) {
	c.stats.Eviction(1)
	if c.opts.onEvict != nil {
		c.opts.onEvict(key, value)
	}
}

// Delete removes an entry by key.
func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.items[key]
	if exists {
		delete(c.items, key)
		c.stats.Delete()
		c.stats.UpdateSize(len(c.items))
	}
	return exists, nil
}

// Clear removes all entries from the cache.
func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*ttlEntry[V])
	c.stats.UpdateSize(0)
	return nil
}

// Size returns the current number of entries in the cache.
func (c *ttlCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns the cache statistics.
func (c *ttlCache[V]) Stats() *Statistics {
	return c.stats
}

// Close stops the background cleanup goroutine. It is idempotent.
func (c *ttlCache[V]) Close() error {
	c.closeOnce.Do(func() { close(c.shutdown) })

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for cleanup goroutine to finish")
	}
}

func (c *ttlCache[V]) cleanup(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired removes all expired entries from the cache.
func (c *ttlCache[V]) removeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
			c.evicted(key, entry.value)
			removed++
		}
	}
	if removed > 0 {
		c.stats.UpdateSize(len(c.items))
	}
	return removed
}
