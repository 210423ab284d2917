package natsclient

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/metric"
)

// Option adjusts a Client before it connects.
type Option func(*Client)

// WithMaxReconnects bounds reconnect attempts; -1 retries forever.
func WithMaxReconnects(n int) Option {
	return func(c *Client) { c.maxReconnects = n }
}

func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) { c.reconnectWait = d }
}

// WithLogger replaces slog.Default(). A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records connection state, breaker trips and publish counts.
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithCircuitBreakerThreshold opens the breaker after n consecutive
// connect failures. Values below 1 mean 5.
func WithCircuitBreakerThreshold(n int32) Option {
	return func(c *Client) {
		if n < 1 {
			n = 5
		}
		c.circuitThreshold = n
	}
}

// WithMaxBackoff caps the breaker backoff. Values under a second mean one minute.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d < time.Second {
			d = time.Minute
		}
		c.maxBackoff = d
	}
}

// WithCredentials authenticates with user and password.
func WithCredentials(user, password string) Option {
	return func(c *Client) { c.username, c.password = user, password }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithName is reported to the server as the connection name.
func WithName(name string) Option {
	return func(c *Client) { c.clientName = name }
}

// WithTimeout bounds the initial dial.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) { c.drainTimeout = d }
}

// WithJetStream makes PublishDocuments wait for stream acks.
func WithJetStream() Option {
	return func(c *Client) { c.jetStream = true }
}

// WithTLS dials with cfg. nil leaves the connection in plain text.
func WithTLS(cfg *tls.Config) Option {
	return func(c *Client) { c.tlsConfig = cfg }
}
