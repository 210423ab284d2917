// Package pool scales listen channels out: one channel serves one logical query at a
// time, and a Pool keeps up to Size of them open for concurrent callers.
//
// Channels are opened lazily through an Opener. Opening retries transient failures with
// the configured backoff policy and fails fast on anything else. A channel whose stream
// reader failed is closed when it is released or found idle, and a fresh one is opened
// on the next Acquire.
//
//	p, err := pool.New(ctx, func(ctx context.Context) (*listen.Channel, error) {
//	    return listen.Open(ctx, baseURL, database, credential, opts...)
//	}, pool.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	docs, err := p.Collect(ctx, q)
//
// Document lookups go through a TTL cache keyed by document name when
// Config.DocumentCacheTTL is positive.
package pool
