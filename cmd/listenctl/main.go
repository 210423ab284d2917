// Package main implements listenctl, a command-line client that runs structured queries
// and document lookups over a document database's listen channel, prints the documents
// as JSON lines and optionally republishes them to NATS.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/config"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/health"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/listen"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/metric"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/natsclient"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pkg/tlsutil"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pool"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "listenctl"
)

// healthInterval is how often pool health is copied into the monitor while running
const healthInterval = 5 * time.Second

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cliCfg, logger, shouldExit, err := initializeCLI(args, stdout, stderr)
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if !cliCfg.logFlagsSet {
		logger = setupLogger(cfg.Log.Level, cfg.Log.Format, stderr)
		slog.SetDefault(logger)
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()
	ctx, cancel := context.WithTimeout(signalCtx, cliCfg.Timeout)
	defer cancel()

	registry := metric.NewMetricsRegistry()
	metrics := registry.CoreMetrics()
	monitor := health.NewMonitor()

	if cfg.Metrics.Enabled {
		stop := startMetricsServer(cfg, registry, monitor, logger)
		defer stop()
	}

	publisher, closePublisher, err := setupPublisher(ctx, cfg, metrics, monitor, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	channels, err := setupPool(ctx, cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := channels.Close(); err != nil {
			logger.Warn("Closing listen pool failed", "error", err)
		}
	}()

	go trackHealth(ctx, monitor, channels)

	a := &app{
		pool:    channels,
		out:     stdout,
		publish: publisher,
		prefix:  cfg.NATS.SubjectPrefix,
		root:    cfg.Channel.Database + "/documents",
		logger:  logger,
	}
	err = a.execute(ctx, cliCfg)
	monitor.Update("listen-pool", channels.Health())
	logger.Debug("Final health", "status", monitor.AggregateHealth(appName).Status)
	return err
}

// initializeCLI parses flags and sets up logging
func initializeCLI(args []string, stdout, stderr io.Writer) (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg, err := parseFlags(args, stderr)
	if err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		_, _ = fmt.Fprintf(stdout, "%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		cliCfg.usage()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat, stderr)
	slog.SetDefault(logger)

	logger.Debug("Starting",
		"collections", []string(cliCfg.Collections),
		"documents", len(cliCfg.Docs),
		"config", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfig merges defaults, the optional file and LISTEN_* overrides, then validates
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.AddLayer(path)
	}
	loader.EnableValidation(true)

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// startMetricsServer serves /metrics and /health until the returned stop is called
func startMetricsServer(
	cfg *config.Config,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
	logger *slog.Logger,
) func() {
	srv := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
	srv.Handle("/health", monitor.Handler(appName))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	logger.Info("Metrics server started", "address", srv.Address())

	return func() {
		if err := srv.Stop(); err != nil {
			logger.Warn("Stopping metrics server failed", "error", err)
		}
	}
}

// setupPool builds the channel pool; channels open lazily on first use
func setupPool(ctx context.Context, cfg *config.Config, metrics *metric.Metrics, logger *slog.Logger) (*pool.Pool, error) {
	opts := append(cfg.ChannelOptions(),
		listen.WithLogger(logger),
		listen.WithMetrics(metrics),
	)
	tlsConfig, err := tlsutil.LoadClientConfig(cfg.Channel.TLS)
	if err != nil {
		return nil, fmt.Errorf("load channel TLS config: %w", err)
	}
	if tlsConfig != nil {
		// one transport shared by every pooled channel
		opts = append(opts, listen.WithHTTPClient(tlsutil.NewHTTPClient(tlsConfig)))
	}
	opener := func(ctx context.Context) (*listen.Channel, error) {
		return listen.Open(ctx, cfg.Channel.BaseURL, cfg.Channel.Database, cfg.Channel.Credential, opts...)
	}

	poolCfg := pool.Config{
		Size:             cfg.Pool.Size,
		AcquireTimeout:   cfg.Pool.AcquireTimeout,
		Reopen:           cfg.Pool.Reopen.Policy(),
		DocumentCacheTTL: cfg.Pool.DocumentCacheTTL,
	}
	p, err := pool.New(ctx, opener, poolCfg, pool.WithLogger(logger), pool.WithMetrics(metrics))
	if err != nil {
		return nil, fmt.Errorf("create listen pool: %w", err)
	}
	return p, nil
}

// setupPublisher connects to NATS when enabled. Without NATS it returns a nil publisher.
func setupPublisher(
	ctx context.Context,
	cfg *config.Config,
	metrics *metric.Metrics,
	monitor *health.Monitor,
	logger *slog.Logger,
) (publishFunc, func(), error) {
	if !cfg.NATS.Enabled {
		return nil, func() {}, nil
	}

	opts := []natsclient.Option{
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metrics),
		natsclient.WithName(appName),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	if cfg.NATS.JetStream {
		opts = append(opts, natsclient.WithJetStream())
	}
	tlsConfig, err := tlsutil.LoadClientConfig(cfg.NATS.TLS)
	if err != nil {
		return nil, nil, fmt.Errorf("load NATS TLS config: %w", err)
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLS(tlsConfig))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}
	client.OnHealthChange(func(healthy bool) {
		if healthy {
			monitor.Update("nats", health.NewHealthy("nats", "connected"))
			return
		}
		monitor.Update("nats", health.NewUnhealthy("nats", "disconnected"))
	})

	closeClient := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("Closing NATS client failed", "error", err)
		}
	}
	if err := connectToNATS(ctx, client); err != nil {
		closeClient()
		return nil, nil, err
	}

	if cfg.NATS.JetStream {
		subjects := natsclient.SubjectFor(cfg.NATS.SubjectPrefix, ">")
		if _, err := client.EnsureStream(ctx, cfg.NATS.Stream, subjects); err != nil {
			closeClient()
			return nil, nil, fmt.Errorf("ensure stream %s: %w", cfg.NATS.Stream, err)
		}
	}
	return client.PublishDocuments, closeClient, nil
}

// connectToNATS establishes the NATS connection and waits for it to be ready
func connectToNATS(ctx context.Context, client *natsclient.Client) error {
	slog.Info("Connecting to NATS", "url", client.URL())
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}
	return nil
}

// trackHealth copies the pool status into the monitor until ctx ends
func trackHealth(ctx context.Context, monitor *health.Monitor, channels *pool.Pool) {
	monitor.Update("listen-pool", channels.Health())

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitor.Update("listen-pool", channels.Health())
		}
	}
}
