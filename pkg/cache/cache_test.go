package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/metric"
)

// fakeClock drives expiry without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration, opts ...Option[string]) (*ttlCache[string], *fakeClock) {
	t.Helper()
	c, err := newTTLCache(context.Background(), ttl, time.Hour, applyOptions(opts...))
	if err != nil {
		t.Fatalf("newTTLCache: %v", err)
	}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c.now = clock.Now
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestTTLCache_BasicOperations(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	if _, ok := c.Get("doc/a"); ok {
		t.Error("Expected cache miss on empty cache")
	}

	isNew, err := c.Set("doc/a", "v1")
	if err != nil {
		t.Fatalf("Unexpected error setting key: %v", err)
	}
	if !isNew {
		t.Error("Expected new entry creation")
	}

	isNew, err = c.Set("doc/a", "v2")
	if err != nil || isNew {
		t.Errorf("Expected update of existing entry, got isNew=%t err=%v", isNew, err)
	}
	if v, ok := c.Get("doc/a"); !ok || v != "v2" {
		t.Errorf("Expected 'v2', got %q exists=%t", v, ok)
	}

	deleted, err := c.Delete("doc/a")
	if err != nil || !deleted {
		t.Errorf("Expected successful deletion, got deleted=%t err=%v", deleted, err)
	}
	deleted, _ = c.Delete("doc/a")
	if deleted {
		t.Error("Expected deletion failure for missing key")
	}

	summary := c.Stats().Summary()
	if summary.Hits != 1 || summary.Misses != 1 || summary.Sets != 2 || summary.Deletes != 1 {
		t.Errorf("Unexpected stats: %+v", summary)
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	c, clock := newTestCache(t, time.Minute)

	if _, err := c.Set("doc/a", "v"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Second)
	if _, ok := c.Get("doc/a"); !ok {
		t.Error("Expected entry to be live before its TTL")
	}

	clock.Advance(31 * time.Second)
	if _, ok := c.Get("doc/a"); ok {
		t.Error("Expected entry to expire after its TTL")
	}
	if c.Size() != 0 {
		t.Errorf("Expected expired entry to be removed, size=%d", c.Size())
	}
	if c.Stats().Evictions() != 1 {
		t.Errorf("Expected 1 eviction, got %d", c.Stats().Evictions())
	}
}

func TestTTLCache_RemoveExpired(t *testing.T) {
	var evicted []string
	c, clock := newTestCache(t, time.Minute, WithEvictionCallback[string](func(key, _ string) {
		evicted = append(evicted, key)
	}))

	for i := 0; i < 3; i++ {
		if _, err := c.Set(fmt.Sprintf("doc/%d", i), "v"); err != nil {
			t.Fatal(err)
		}
	}
	clock.Advance(2 * time.Minute)
	if _, err := c.Set("doc/fresh", "v"); err != nil {
		t.Fatal(err)
	}

	if removed := c.removeExpired(); removed != 3 {
		t.Errorf("Expected 3 expired entries removed, got %d", removed)
	}
	if len(evicted) != 3 {
		t.Errorf("Expected 3 eviction callbacks, got %d", len(evicted))
	}
	if c.Size() != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", c.Size())
	}
}

func TestTTLCache_MaxEntries(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, WithMaxEntries[string](2))

	_, _ = c.Set("first", "1")
	clock.Advance(time.Second)
	_, _ = c.Set("second", "2")
	clock.Advance(time.Second)
	_, _ = c.Set("third", "3")

	if c.Size() != 2 {
		t.Fatalf("Expected size 2, got %d", c.Size())
	}
	if _, ok := c.Get("first"); ok {
		t.Error("Expected the entry closest to expiry to be evicted")
	}
	if _, ok := c.Get("third"); !ok {
		t.Error("Expected newest entry to be present")
	}
	if peak := c.Stats().Summary().MaxSize; peak != 2 {
		t.Errorf("Expected peak size 2, got %d", peak)
	}
}

func TestTTLCache_EmptyKey(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	if _, err := c.Set("", "v"); !errors.IsInvalid(err) {
		t.Errorf("Expected invalid error for empty key, got %v", err)
	}
	if _, err := c.Delete(""); !errors.IsInvalid(err) {
		t.Errorf("Expected invalid error for empty key, got %v", err)
	}
}

func TestTTLCache_Metrics(t *testing.T) {
	m := metric.NewMetrics()
	c, _ := newTestCache(t, time.Minute, WithMetrics[string](m))

	_, _ = c.Set("doc/a", "v")
	c.Get("doc/a")
	c.Get("doc/a")
	c.Get("doc/missing")

	if hits := promtestutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); hits != 2 {
		t.Errorf("Expected 2 hits, got %v", hits)
	}
	if misses := promtestutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); misses != 1 {
		t.Errorf("Expected 1 miss, got %v", misses)
	}
}

func TestTTLCache_Concurrent(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("doc/%d", i%5)
			_, _ = c.Set(key, "v")
			c.Get(key)
		}(i)
	}
	wg.Wait()

	if c.Size() != 5 {
		t.Errorf("Expected 5 entries, got %d", c.Size())
	}
}

func TestTTLCache_CloseIdempotent(t *testing.T) {
	c, err := NewTTL[string](context.Background(), time.Minute, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestNewTTL_InvalidTTL(t *testing.T) {
	if _, err := NewTTL[string](context.Background(), 0, time.Second); err == nil {
		t.Error("Expected error for zero TTL")
	}
}

func TestNoopCache(t *testing.T) {
	c := NewNoop[string]()

	if _, err := c.Set("k", "v"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Noop cache must never hit")
	}
	if c.Size() != 0 || c.Stats().Misses() != 1 {
		t.Errorf("Unexpected noop state: size=%d misses=%d", c.Size(), c.Stats().Misses())
	}
}
