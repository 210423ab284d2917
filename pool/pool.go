package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/health"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/listen"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/metric"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pkg/cache"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pkg/retry"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/query"
)

// Opener opens a new listen channel.
type Opener func(ctx context.Context) (*listen.Channel, error)

// Config sizes a Pool.
type Config struct {
	// Size is the maximum number of open channels.
	Size int
	// AcquireTimeout bounds how long Acquire waits for a channel. 0 waits until ctx ends.
	AcquireTimeout time.Duration
	// Reopen is the retry policy for opening channels.
	Reopen retry.Config
	// DocumentCacheTTL enables the document cache when positive.
	DocumentCacheTTL time.Duration
}

// DefaultConfig returns a pool of four channels with the reopen policy.
func DefaultConfig() Config {
	return Config{
		Size:           4,
		AcquireTimeout: 30 * time.Second,
		Reopen:         retry.Reopen(),
	}
}

// Pool hands out listen channels, one per concurrent logical query. Failed channels are
// discarded on release and replaced on demand.
type Pool struct {
	open    Opener
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Metrics
	docs    cache.Cache[json.RawMessage]

	slots chan struct{}

	mu        sync.Mutex
	idle      []*listen.Channel
	busy      map[*listen.Channel]struct{}
	opened    int
	discarded int
	lastErr   error
	closed    bool
}

// New creates a pool. Channels are opened lazily by Acquire; ctx scopes the document
// cache cleanup.
func New(ctx context.Context, open Opener, cfg Config, opts ...Option) (*Pool, error) {
	if open == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Pool", "New", "validate opener")
	}
	if cfg.Size < 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: size %d", errors.ErrInvalidConfig, cfg.Size), "Pool", "New", "validate size")
	}

	p := &Pool{
		open:   open,
		cfg:    cfg,
		logger: slog.Default(),
		slots:  make(chan struct{}, cfg.Size),
		busy:   make(map[*listen.Channel]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "listen-pool")

	if cfg.DocumentCacheTTL > 0 {
		docs, err := cache.NewTTL[json.RawMessage](ctx, cfg.DocumentCacheTTL, cfg.DocumentCacheTTL,
			cache.WithMetrics[json.RawMessage](p.metrics))
		if err != nil {
			return nil, errors.WrapInvalid(err, "Pool", "New", "create document cache")
		}
		p.docs = docs
	} else {
		p.docs = cache.NewNoop[json.RawMessage]()
	}
	return p, nil
}

// Acquire returns an idle healthy channel, or opens one while fewer than Size are open.
// It blocks until a channel is released, AcquireTimeout elapses or ctx ends.
func (p *Pool) Acquire(ctx context.Context) (*listen.Channel, error) {
	if p.isClosed() {
		return nil, errors.WrapFatal(errors.ErrShuttingDown, "Pool", "Acquire", "check pool state")
	}

	waitCtx := ctx
	if p.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	select {
	case p.slots <- struct{}{}:
	case <-waitCtx.Done():
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrPoolExhausted, waitCtx.Err()), "Pool", "Acquire", "wait for channel")
	}

	if ch := p.takeIdle(); ch != nil {
		return ch, nil
	}

	ch, err := p.openChannel(waitCtx)
	if err != nil {
		<-p.slots
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		_ = ch.Close()
		return nil, errors.WrapFatal(errors.ErrShuttingDown, "Pool", "Acquire", "check pool state")
	}
	p.busy[ch] = struct{}{}
	p.opened++
	p.lastErr = nil
	p.recordChannels()
	p.mu.Unlock()
	return ch, nil
}

// takeIdle pops the most recently released usable channel, closing failed ones on the way.
func (p *Pool) takeIdle() *listen.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.idle) > 0 {
		ch := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if err := ch.Err(); err != nil {
			p.discardLocked(ch, err)
			continue
		}
		p.busy[ch] = struct{}{}
		p.recordChannels()
		return ch
	}
	return nil
}

func (p *Pool) openChannel(ctx context.Context) (*listen.Channel, error) {
	policy := p.cfg.Reopen
	policy.Retryable = errors.IsTransient
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		p.logger.Warn("Opening listen channel failed, retrying",
			"attempt", attempt, "delay", delay, "error", err)
	}

	ch, err := retry.DoWithResult(ctx, policy, func() (*listen.Channel, error) {
		ch, err := p.open(ctx)
		if err != nil && !errors.IsTransient(err) {
			return nil, retry.NonRetryable(err)
		}
		return ch, err
	})
	if err != nil {
		p.mu.Lock()
		p.lastErr = err
		p.mu.Unlock()
		return nil, errors.Wrap(err, "Pool", "Acquire", "open channel")
	}

	p.logger.Info("Listen channel added to pool", "channel_id", ch.ID())
	return ch, nil
}

// Release returns ch to the pool. A failed channel is closed and dropped.
func (p *Pool) Release(ch *listen.Channel) {
	if ch == nil {
		return
	}

	p.mu.Lock()
	if _, ok := p.busy[ch]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.busy, ch)

	switch err := ch.Err(); {
	case p.closed:
		_ = ch.Close()
	case err != nil:
		p.discardLocked(ch, err)
	default:
		p.idle = append(p.idle, ch)
	}
	p.recordChannels()
	p.mu.Unlock()

	<-p.slots
}

// discardLocked closes a failed channel. Caller holds mu.
func (p *Pool) discardLocked(ch *listen.Channel, err error) {
	p.discarded++
	p.lastErr = err
	_ = ch.Close()
	p.logger.Warn("Discarding failed listen channel", "channel_id", ch.ID(), "error", err)
}

// recordChannels updates the pool gauges. Caller holds mu.
func (p *Pool) recordChannels() {
	p.metrics.RecordPoolChannels(len(p.idle), len(p.busy))
}

// With runs fn on an acquired channel and releases it afterwards.
func (p *Pool) With(ctx context.Context, fn func(*listen.Channel) error) error {
	ch, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(ch)
	return fn(ch)
}

// Collect runs q on a pooled channel.
func (p *Pool) Collect(ctx context.Context, q query.Query) ([]json.RawMessage, error) {
	var docs []json.RawMessage
	err := p.With(ctx, func(ch *listen.Channel) error {
		var err error
		docs, err = ch.Collect(ctx, q)
		return err
	})
	return docs, err
}

// Document fetches one document, from the cache when it holds a live copy. It returns nil
// without error when the document does not exist.
func (p *Pool) Document(ctx context.Context, ref string) (json.RawMessage, error) {
	if doc, ok := p.docs.Get(ref); ok {
		return doc, nil
	}

	var doc json.RawMessage
	err := p.With(ctx, func(ch *listen.Channel) error {
		var err error
		doc, err = ch.Document(ctx, ref)
		return err
	})
	if doc != nil {
		p.remember(doc)
	}
	return doc, err
}

// Documents fetches documents by reference. Cached documents come first, followed by
// the fetched ones in stream order; missing documents are absent.
func (p *Pool) Documents(ctx context.Context, refs []string) ([]json.RawMessage, error) {
	docs := make([]json.RawMessage, 0, len(refs))
	var missing []string
	for _, ref := range refs {
		if doc, ok := p.docs.Get(ref); ok {
			docs = append(docs, doc)
			continue
		}
		missing = append(missing, ref)
	}
	if len(missing) == 0 {
		return docs, nil
	}

	var fetched []json.RawMessage
	err := p.With(ctx, func(ch *listen.Channel) error {
		var err error
		fetched, err = ch.Documents(ctx, missing)
		return err
	})
	for _, doc := range fetched {
		p.remember(doc)
	}
	return append(docs, fetched...), err
}

// remember caches doc under its resource name.
func (p *Pool) remember(doc json.RawMessage) {
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(doc, &named); err != nil || named.Name == "" {
		return
	}
	if _, err := p.docs.Set(named.Name, doc); err != nil {
		p.logger.Debug("Document not cached", "name", named.Name, "error", err)
	}
}

// Stats is a snapshot of the pool.
type Stats struct {
	Size      int
	Idle      int
	Busy      int
	Opened    int
	Discarded int
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:      p.cfg.Size,
		Idle:      len(p.idle),
		Busy:      len(p.busy),
		Opened:    p.opened,
		Discarded: p.discarded,
	}
}

// CacheStats returns the document cache statistics.
func (p *Pool) CacheStats() cache.StatsSummary {
	return p.docs.Stats().Summary()
}

// Health aggregates the status of every open channel. Until a channel is opened again,
// a pool that discarded or failed to open channels reports the last failure.
func (p *Pool) Health() health.Status {
	p.mu.Lock()
	channels := make([]*listen.Channel, 0, len(p.idle)+len(p.busy))
	channels = append(channels, p.idle...)
	for ch := range p.busy {
		channels = append(channels, ch)
	}
	closed, lastErr, discarded := p.closed, p.lastErr, p.discarded
	p.mu.Unlock()

	if closed {
		return health.NewUnhealthy("listen-pool", "pool closed")
	}

	subs := make([]health.Status, 0, len(channels))
	for _, ch := range channels {
		subs = append(subs, ch.Health())
	}
	status := health.Aggregate("listen-pool", subs)
	if lastErr == nil || !status.IsHealthy() {
		return status
	}
	if len(subs) == 0 {
		return health.FromError("listen-pool", lastErr, "")
	}

	degraded := health.NewDegraded("listen-pool",
		fmt.Sprintf("%d channels discarded, last error: %s", discarded, health.Sanitize(lastErr.Error())))
	degraded.SubStatuses = status.SubStatuses
	return degraded
}

// Close closes every idle channel and marks the pool closed; busy channels are closed
// when released. It is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.recordChannels()
	p.mu.Unlock()

	for _, ch := range idle {
		_ = ch.Close()
	}
	p.logger.Info("Listen pool closed", "closed_channels", len(idle))
	return p.docs.Close()
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
