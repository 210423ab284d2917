package pool

import (
	"log/slog"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/metric"
)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger. nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics records pool gauges and document cache lookups.
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}
