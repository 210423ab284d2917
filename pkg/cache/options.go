package cache

import (
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/metric"
)

// Option tunes a cache built by NewTTL.
type Option[V any] func(*settings[V])

type settings[V any] struct {
	metrics    *metric.Metrics
	onEvict    EvictCallback[V]
	maxEntries int
}

// WithMetrics counts lookups as cache hits or misses. A nil Metrics is a no-op.
func WithMetrics[V any](m *metric.Metrics) Option[V] {
	return func(s *settings[V]) { s.metrics = m }
}

// WithEvictionCallback runs fn for every entry that expires or is pushed out.
func WithEvictionCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(s *settings[V]) { s.onEvict = fn }
}

// WithMaxEntries caps the number of live entries; n <= 0 leaves the cache unbounded.
func WithMaxEntries[V any](n int) Option[V] {
	return func(s *settings[V]) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

func applyOptions[V any](options ...Option[V]) *settings[V] {
	s := new(settings[V])
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	return s
}
