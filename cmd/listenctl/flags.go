package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Collections stringList
	Parent      string
	Where       stringList
	In          stringList
	Order       stringList
	Limit       int
	Docs        stringList
	Timeout     time.Duration
	ShowVersion bool
	ShowHelp    bool

	// logFlagsSet reports -log-level or -log-format on the command line
	logFlagsSet bool
	usage       func()
}

// stringList is a repeatable string flag
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("LISTEN_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: LISTEN_CONFIG)")

	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("LISTEN_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: LISTEN_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("LISTEN_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: LISTEN_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("LISTEN_LOG_FORMAT", "json"),
		"Log format: json, text (env: LISTEN_LOG_FORMAT)")

	fs.Var(&cfg.Collections, "collection", "Collection to query, repeatable")
	fs.StringVar(&cfg.Parent, "parent", "", "Parent document path of the collections")
	fs.Var(&cfg.Where, "where", "Equality filter field=value, repeatable and AND-combined")
	fs.Var(&cfg.In, "in", "Membership filter field=a,b,c, repeatable")
	fs.Var(&cfg.Order, "order", "Ordering field[:desc], repeatable")
	fs.IntVar(&cfg.Limit, "limit", 0, "Maximum number of documents per collection, 0 for no limit")
	fs.Var(&cfg.Docs, "doc", "Document reference to look up, repeatable")

	fs.DurationVar(&cfg.Timeout, "timeout",
		getEnvDuration("LISTEN_TIMEOUT", 2*time.Minute),
		"Overall deadline for the run (env: LISTEN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	fs.Usage = func() {
		printDetailedHelp(fs, stderr)
	}
	cfg.usage = fs.Usage

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" || f.Name == "log-format" {
			cfg.logFlagsSet = true
		}
	})
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	switch {
	case len(cfg.Collections) == 0 && len(cfg.Docs) == 0:
		return fmt.Errorf("one of -collection or -doc is required")
	case len(cfg.Collections) > 0 && len(cfg.Docs) > 0:
		return fmt.Errorf("-collection and -doc cannot be combined")
	case len(cfg.Docs) > 0 && (len(cfg.Where) > 0 || len(cfg.In) > 0 || len(cfg.Order) > 0 || cfg.Limit != 0):
		return fmt.Errorf("query flags require -collection")
	}

	if cfg.Limit < 0 {
		return fmt.Errorf("invalid limit: %d", cfg.Limit)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %s", cfg.Timeout)
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - query a document database over its listen channel

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, `
Examples:
  # Every open order, newest first
  %s -config=listen.yaml -collection=orders -where=status=open -order=created:desc

  # Two collections queried concurrently
  %s -collection=orders -collection=invoices -limit=100

  # Look up documents by reference
  %s -doc=projects/p/databases/(default)/documents/orders/42

  # Configure through the environment
  export LISTEN_CHANNEL_BASE_URL=https://db.example.com
  export LISTEN_CHANNEL_DATABASE=projects/p/databases/(default)
  %s -collection=orders

Version: %s
Build: %s
`, appName, appName, appName, appName, Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
