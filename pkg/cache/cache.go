// Package cache provides a generic, thread-safe TTL cache used for document lookups by
// reference. Entries expire after a fixed TTL and the cache can be bounded in size, in
// which case the entry closest to expiry is evicted first.
package cache

import (
	"time"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// Cache is a keyed cache of values of type V.
type Cache[V any] interface {
	// Get retrieves a live value by key.
	Get(key string) (V, bool)

	// Set stores a value. Returns true if a new entry was created, false if updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries, expired ones included until cleanup.
	Size() int

	// Stats returns the cache statistics.
	Stats() *Statistics

	// Close stops background cleanup.
	Close() error
}

// EvictCallback is called when an entry expires or is pushed out.
type EvictCallback[V any] func(key string, value V)

// validateKey returns a classified error for an empty key.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// NewNoop returns a cache that stores nothing.
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{stats: NewStatistics()}
}

type noopCache[V any] struct {
	stats *Statistics
}

func (c *noopCache[V]) Get(_ string) (V, bool) {
	var zero V
	c.stats.Miss()
	return zero, false
}

func (c *noopCache[V]) Set(key string, _ V) (bool, error) {
	return false, validateKey(key)
}

func (c *noopCache[V]) Delete(key string) (bool, error) {
	return false, validateKey(key)
}

func (c *noopCache[V]) Clear() error { return nil }
func (c *noopCache[V]) Size() int { return 0 }
func (c *noopCache[V]) Stats() *Statistics { return c.stats }
func (c *noopCache[V]) Close() error { return nil }

// defaultCleanupInterval is used when NewTTL gets a non-positive interval.
const defaultCleanupInterval = time.Minute
