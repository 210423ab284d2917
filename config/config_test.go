package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pkg/tlsutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func validConfig() *Config {
	cfg := Default()
	cfg.Channel.BaseURL = "https://listen.example.com/v1/channel"
	cfg.Channel.Database = "projects/demo/databases/(default)"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8, cfg.Channel.ProtocolVersion)
	assert.Equal(t, 22, cfg.Channel.ClientVersion)
	assert.Equal(t, 30*time.Second, cfg.Channel.RequestTimeout)
	assert.Equal(t, "handshake", cfg.Channel.HandshakeCollection)
	assert.Equal(t, 4, cfg.Pool.Size)
	assert.Equal(t, 5, cfg.Pool.Reopen.MaxAttempts)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoader_LoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"channel": {
			"base_url": "https://listen.example.com/v1/channel",
			"database": "projects/demo/databases/(default)",
			"credential": "abc",
			"headers": {"X-Client": "listenctl"},
			"request_timeout": "5s"
		},
		"pool": {
			"size": 2,
			"document_cache_ttl": "1m",
			"reopen": {"max_attempts": 3, "initial_delay": "100ms"}
		}
	}`)

	loader := NewLoader()
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://listen.example.com/v1/channel", cfg.Channel.BaseURL)
	assert.Equal(t, "abc", cfg.Channel.Credential)
	assert.Equal(t, "listenctl", cfg.Channel.Headers["X-Client"])
	assert.Equal(t, 5*time.Second, cfg.Channel.RequestTimeout)
	assert.Equal(t, 2, cfg.Pool.Size)
	assert.Equal(t, time.Minute, cfg.Pool.DocumentCacheTTL)
	assert.Equal(t, 3, cfg.Pool.Reopen.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Pool.Reopen.InitialDelay)

	// untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Pool.Reopen.MaxDelay)
	assert.Equal(t, 8, cfg.Channel.ProtocolVersion)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoader_YAMLLayerOverridesJSON(t *testing.T) {
	base := writeFile(t, "base.json", `{
		"channel": {"base_url": "http://localhost:8080", "database": "db"},
		"nats": {"url": "nats://base:4222"}
	}`)
	override := writeFile(t, "override.yaml", `
channel:
  database: other
nats:
  enabled: true
  jetstream: true
  subject_prefix: docs.out
log:
  level: debug
  format: text
`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	loader.EnableValidation(true)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.Channel.BaseURL)
	assert.Equal(t, "other", cfg.Channel.Database)
	assert.Equal(t, "nats://base:4222", cfg.NATS.URL)
	assert.True(t, cfg.NATS.Enabled)
	assert.True(t, cfg.NATS.JetStream)
	assert.Equal(t, "docs.out", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "LISTEN_DOCUMENTS", cfg.NATS.Stream)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.json", `{"channel": {"base_url": "http://file:1", "database": "db"}}`)

	t.Setenv("LISTEN_CHANNEL_BASE_URL", "https://env.example.com")
	t.Setenv("LISTEN_CHANNEL_CREDENTIAL", "from-env")
	t.Setenv("LISTEN_CHANNEL_REQUEST_TIMEOUT", "2s")
	t.Setenv("LISTEN_POOL_SIZE", "7")
	t.Setenv("LISTEN_NATS_ENABLED", "true")
	t.Setenv("LISTEN_NATS_URL", "nats://env:4222")

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.Channel.BaseURL)
	assert.Equal(t, "from-env", cfg.Channel.Credential)
	assert.Equal(t, 2*time.Second, cfg.Channel.RequestTimeout)
	assert.Equal(t, 7, cfg.Pool.Size)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("bad duration", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"channel": {"request_timeout": "soon"}}`)
		_, err := NewLoader().LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "channel.request_timeout")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "config.toml", `x = 1`)
		_, err := NewLoader().LoadFile(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewLoader().LoadFile(filepath.Join(t.TempDir(), "none.json"))
		require.Error(t, err)
	})

	t.Run("bad env int", func(t *testing.T) {
		t.Setenv("LISTEN_POOL_SIZE", "many")
		_, err := NewLoader().Load()
		require.Error(t, err)
	})

	t.Run("validation", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"channel": {"database": "db"}}`)
		loader := NewLoader()
		loader.EnableValidation(true)
		_, err := loader.LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty base url", mutate: func(c *Config) { c.Channel.BaseURL = "" }, wantErr: "base_url is required"},
		{name: "relative base url", mutate: func(c *Config) { c.Channel.BaseURL = "listen/channel" }, wantErr: "absolute"},
		{name: "empty database", mutate: func(c *Config) { c.Channel.Database = "" }, wantErr: "database"},
		{name: "zero pool", mutate: func(c *Config) { c.Pool.Size = 0 }, wantErr: "pool.size"},
		{name: "negative timeout", mutate: func(c *Config) { c.Channel.RequestTimeout = -time.Second }, wantErr: "request_timeout"},
		{name: "negative cache ttl", mutate: func(c *Config) { c.Pool.DocumentCacheTTL = -1 }, wantErr: "pool timeouts"},
		{
			name:    "nats without url",
			mutate:  func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" },
			wantErr: "nats.url",
		},
		{
			name:    "bad subject prefix",
			mutate:  func(c *Config) { c.NATS.Enabled = true; c.NATS.SubjectPrefix = "docs..out" },
			wantErr: "subject_prefix",
		},
		{
			name:    "channel tls min version",
			mutate:  func(c *Config) { c.Channel.TLS = tlsutil.ClientConfig{Enabled: true, MinVersion: "1.0"} },
			wantErr: "channel.tls min_version",
		},
		{
			name: "nats tls half a key pair",
			mutate: func(c *Config) {
				c.NATS.Enabled = true
				c.NATS.TLS = tlsutil.ClientConfig{Enabled: true, CertFile: "client.pem"}
			},
			wantErr: "nats.tls cert_file",
		},
		{name: "metrics port", mutate: func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 70000 }, wantErr: "metrics.port"},
		{name: "log level", mutate: func(c *Config) { c.Log.Level = "loud" }, wantErr: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ChannelOptions(t *testing.T) {
	cfg := validConfig()
	cfg.Channel.Headers = map[string]string{"X-A": "b"}

	assert.Len(t, cfg.ChannelOptions(), 5)

	cfg.Channel.Headers = nil
	cfg.Channel.HandshakeCollection = ""
	assert.Len(t, cfg.ChannelOptions(), 3)
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Channel.Credential = "super-secret"
	cfg.NATS.Token = "nats-secret"

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.NotContains(t, s, "nats-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "super-secret", cfg.Channel.Credential)
}

func TestConfig_SaveAndReload(t *testing.T) {
	cfg := validConfig()
	cfg.Pool.Size = 9
	path := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Pool.Size)
	assert.Equal(t, cfg.Channel.BaseURL, loaded.Channel.BaseURL)
	assert.Equal(t, cfg.Channel.RequestTimeout, loaded.Channel.RequestTimeout)
}
