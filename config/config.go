package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/listen"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pkg/retry"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pkg/tlsutil"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/wire"
)

// Config represents the complete client configuration
type Config struct {
	Channel ChannelConfig `json:"channel"`
	Pool    PoolConfig    `json:"pool"`
	NATS    NATSConfig    `json:"nats"`
	Metrics MetricsConfig `json:"metrics"`
	Log     LogConfig     `json:"log"`
}

// ChannelConfig defines how listen channels reach the server
type ChannelConfig struct {
	BaseURL             string               `json:"base_url"`
	Database            string               `json:"database"`
	Credential          string               `json:"credential,omitempty"`
	Headers             map[string]string    `json:"headers,omitempty"`
	ProtocolVersion     int                  `json:"protocol_version"` // VER
	ClientVersion       int                  `json:"client_version"`   // CVER
	RequestTimeout      time.Duration        `json:"request_timeout"`
	HandshakeCollection string               `json:"handshake_collection"`
	TLS                 tlsutil.ClientConfig `json:"tls"`
}

// PoolConfig sizes the channel pool
type PoolConfig struct {
	Size             int           `json:"size"`
	AcquireTimeout   time.Duration `json:"acquire_timeout"`
	Reopen           RetryConfig   `json:"reopen"`
	DocumentCacheTTL time.Duration `json:"document_cache_ttl"` // 0 disables the cache
}

// RetryConfig is the serializable part of retry.Config
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// Policy returns the retry policy with jitter enabled
func (r RetryConfig) Policy() retry.Config {
	return retry.Config{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   r.Multiplier,
		AddJitter:    true,
	}
}

// NATSConfig defines where collected documents are published
type NATSConfig struct {
	Enabled       bool                 `json:"enabled"`
	URL           string               `json:"url,omitempty"`
	SubjectPrefix string               `json:"subject_prefix"`
	JetStream     bool                 `json:"jetstream"`
	Stream        string               `json:"stream,omitempty"`
	MaxReconnects int                  `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration        `json:"reconnect_wait,omitempty"`
	Username      string               `json:"username,omitempty"`
	Password      string               `json:"password,omitempty"`
	Token         string               `json:"token,omitempty"`
	TLS           tlsutil.ClientConfig `json:"tls"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns the configuration every layer is merged onto
func Default() *Config {
	reopen := retry.Reopen()
	return &Config{
		Channel: ChannelConfig{
			ProtocolVersion:     wire.DefaultProtocolVersion,
			ClientVersion:       wire.DefaultClientVersion,
			RequestTimeout:      listen.DefaultRequestTimeout,
			HandshakeCollection: listen.DefaultHandshakeCollection,
		},
		Pool: PoolConfig{
			Size:           4,
			AcquireTimeout: 30 * time.Second,
			Reopen: RetryConfig{
				MaxAttempts:  reopen.MaxAttempts,
				InitialDelay: reopen.InitialDelay,
				MaxDelay:     reopen.MaxDelay,
				Multiplier:   reopen.Multiplier,
			},
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "listen.documents",
			Stream:        "LISTEN_DOCUMENTS",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Channel.BaseURL == "" {
		return errors.New("channel.base_url is required")
	}
	u, err := url.Parse(c.Channel.BaseURL)
	if err != nil {
		return fmt.Errorf("channel.base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("channel.base_url %q must be an absolute http(s) URL", c.Channel.BaseURL)
	}
	if c.Channel.Database == "" {
		return errors.New("channel.database is required")
	}
	if c.Channel.ProtocolVersion <= 0 || c.Channel.ClientVersion <= 0 {
		return errors.New("channel.protocol_version and channel.client_version must be positive")
	}
	if c.Channel.RequestTimeout < 0 {
		return errors.New("channel.request_timeout cannot be negative")
	}
	if err := c.Channel.TLS.Validate(); err != nil {
		return fmt.Errorf("channel.%w", err)
	}

	if c.Pool.Size < 1 {
		return fmt.Errorf("pool.size must be at least 1, got %d", c.Pool.Size)
	}
	if c.Pool.AcquireTimeout < 0 || c.Pool.DocumentCacheTTL < 0 {
		return errors.New("pool timeouts cannot be negative")
	}
	if c.Pool.Reopen.InitialDelay < 0 || c.Pool.Reopen.MaxDelay < 0 {
		return errors.New("pool.reopen delays cannot be negative")
	}

	if c.NATS.Enabled {
		if c.NATS.URL == "" {
			return errors.New("nats.url is required when nats is enabled")
		}
		if !isValidNATSSubject(c.NATS.SubjectPrefix) {
			return fmt.Errorf("nats.subject_prefix %q is not a valid NATS subject", c.NATS.SubjectPrefix)
		}
		if c.NATS.JetStream && c.NATS.Stream == "" {
			return errors.New("nats.stream is required when jetstream is enabled")
		}
		if err := c.NATS.TLS.Validate(); err != nil {
			return fmt.Errorf("nats.%w", err)
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// isValidNATSSubject checks tokens are alphanumeric with dashes and underscores.
func isValidNATSSubject(s string) bool {
	if s == "" {
		return false
	}
	for _, token := range strings.Split(s, ".") {
		if token == "" {
			return false
		}
		for _, r := range token {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
				return false
			}
		}
	}
	return true
}

// ChannelOptions converts the channel section to listen options
func (c *Config) ChannelOptions() []listen.Option {
	opts := []listen.Option{
		listen.WithProtocolVersion(c.Channel.ProtocolVersion),
		listen.WithClientVersion(c.Channel.ClientVersion),
		listen.WithRequestTimeout(c.Channel.RequestTimeout),
	}
	if len(c.Channel.Headers) > 0 {
		opts = append(opts, listen.WithHeaders(c.Channel.Headers))
	}
	if c.Channel.HandshakeCollection != "" {
		opts = append(opts, listen.WithHandshakeCollection(c.Channel.HandshakeCollection))
	}
	return opts
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns a JSON representation with secrets redacted
func (c *Config) String() string {
	redacted := c.Clone()
	for _, s := range []*string{&redacted.Channel.Credential, &redacted.NATS.Password, &redacted.NATS.Token} {
		if *s != "" {
			*s = "[REDACTED]"
		}
	}
	data, _ := json.MarshalIndent(redacted, "", "  ")
	return string(data)
}
