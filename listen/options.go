package listen

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/metric"
)

// Defaults
const (
	DefaultRequestTimeout      = 30 * time.Second
	DefaultHandshakeCollection = "handshake"
)

// Option configures a Channel
type Option func(*Channel) error

// WithHTTPClient sets the HTTP client used for the long-poll GETs and the command POSTs.
// The client must not have a Timeout shorter than a long-poll cycle.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Channel) error {
		if client == nil {
			return fmt.Errorf("nil HTTP client")
		}
		c.httpClient = client
		return nil
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics enables metrics recording
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Channel) error {
		c.metrics = m
		return nil
	}
}

// WithHeaders adds headers to every request
func WithHeaders(headers map[string]string) Option {
	return func(c *Channel) error {
		for k, v := range headers {
			c.headers[k] = v
		}
		return nil
	}
}

// WithProtocolVersion overrides VER
func WithProtocolVersion(v int) Option {
	return func(c *Channel) error {
		if v <= 0 {
			return fmt.Errorf("protocol version %d", v)
		}
		c.protocolVersion = v
		return nil
	}
}

// WithClientVersion overrides CVER
func WithClientVersion(v int) Option {
	return func(c *Channel) error {
		if v <= 0 {
			return fmt.Errorf("client version %d", v)
		}
		c.clientVersion = v
		return nil
	}
}

// WithHandshakeCollection sets the collection queried by the session-opening handshake
func WithHandshakeCollection(name string) Option {
	return func(c *Channel) error {
		if name == "" {
			return fmt.Errorf("empty handshake collection")
		}
		c.handshakeCollection = name
		return nil
	}
}

// WithRequestTimeout bounds each command round-trip. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Channel) error {
		if d < 0 {
			return fmt.Errorf("negative request timeout %v", d)
		}
		c.requestTimeout = d
		return nil
	}
}
