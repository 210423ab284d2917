package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// NonRetryableError marks an error that ends the loop on first sight.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return "non-retryable: " + e.Err.Error() }

func (e *NonRetryableError) Unwrap() error { return e.Err }

// NonRetryable wraps err so Do returns it without another attempt. nil stays nil.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config describes an exponential backoff policy.
type Config struct {
	MaxAttempts  int           // including the first; <= 0 means one
	InitialDelay time.Duration // sleep before the second attempt
	MaxDelay     time.Duration
	Multiplier   float64
	AddJitter    bool // up to 25% extra per sleep

	// Retryable filters errors after the NonRetryable check. nil retries all.
	Retryable func(error) bool `json:"-"`

	// OnRetry runs before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error) `json:"-"`
}

// DefaultConfig is three quick attempts.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		AddJitter:    true,
	}
}

// Reopen is the policy for replacing a failed listen channel.
func Reopen() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		AddJitter:    true,
	}
}

func (cfg Config) check() (Config, error) {
	switch {
	case cfg.InitialDelay < 0, cfg.MaxDelay < 0, cfg.Multiplier < 0:
		return cfg, fmt.Errorf("retry: negative setting in %+v", cfg)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	switch {
	case cfg.Multiplier == 0:
		cfg.Multiplier = 2
	case cfg.Multiplier > 1000:
		cfg.Multiplier = 1000
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		return cfg, fmt.Errorf("retry: max delay %v below initial delay %v", cfg.MaxDelay, cfg.InitialDelay)
	}
	return cfg, nil
}

// backoff yields the sleep before each retry.
type backoff struct {
	next   time.Duration
	max    time.Duration
	factor float64
	jitter bool
}

func (b *backoff) step() time.Duration {
	d := withJitter(b.next, b.jitter)
	grown := time.Duration(float64(b.next) * b.factor)
	if grown > b.max || grown < b.next {
		grown = b.max
	}
	b.next = grown
	return d
}

// Do calls fn until it succeeds, the attempts run out, fn returns an error
// the policy refuses to retry, or ctx ends.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	cfg, err := cfg.check()
	if err != nil {
		return zero, err
	}

	b := backoff{next: cfg.InitialDelay, max: cfg.MaxDelay, factor: cfg.Multiplier, jitter: cfg.AddJitter}
	for attempt := 1; ; attempt++ {
		v, err := fn()
		switch {
		case err == nil:
			return v, nil
		case IsNonRetryable(err), cfg.Retryable != nil && !cfg.Retryable(err):
			return zero, err
		case ctx.Err() != nil:
			return zero, fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		case attempt >= cfg.MaxAttempts:
			return zero, fmt.Errorf("failed after %d attempts: %w", attempt, err)
		}

		delay := b.step()
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, fmt.Errorf("retry cancelled while waiting for attempt %d: %w", attempt+1, ctx.Err())
		case <-t.C:
		}
	}
}

var (
	jitterMu  sync.Mutex
	jitterRng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

func withJitter(d time.Duration, enabled bool) time.Duration {
	span := int64(d / 4)
	if !enabled || span <= 0 {
		return d
	}
	jitterMu.Lock()
	defer jitterMu.Unlock()
	return d + time.Duration(jitterRng.Int63n(span))
}
