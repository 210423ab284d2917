// Package retry provides exponential backoff with optional jitter.
//
// The listen channel never retries on its own: a failed channel is unusable and must be
// discarded. Collaborators that want resilience (the channel pool, the CLI) open a fresh
// channel through Do or DoWithResult:
//
//	cfg := retry.Reopen()
//	cfg.Retryable = errors.IsTransient
//	ch, err := retry.DoWithResult(ctx, cfg, func() (*listen.Channel, error) {
//	    return listen.Open(ctx, baseURL, database, credential)
//	})
//
// Errors wrapped with NonRetryable stop the loop immediately regardless of Retryable.
package retry
