// Package worker provides a generic bounded worker pool.
//
// A Pool runs a fixed number of goroutines that take work items from a bounded queue and
// hand them to a processor function. Submit never blocks: a full queue returns
// ErrQueueFull so the caller sees the backpressure. Stop closes the queue and waits,
// bounded by its context, for the items already queued to finish.
//
// Statistics are always tracked with atomics. Prometheus metrics are optional and are
// registered on a metric.MetricsRegistry under a caller-chosen prefix:
//
//	p := worker.NewPool(4, len(queries), func(ctx context.Context, j job) error {
//	    return j.run(ctx)
//	}, worker.WithMetricsRegistry[job](registry, "listen_collect"))
//	if err := p.Start(ctx); err != nil {
//	    return err
//	}
//	for _, j := range jobs {
//	    if err := p.Submit(j); err != nil {
//	        return err
//	    }
//	}
//	return p.Stop(ctx)
//
// The pool package uses it to run several logical queries at once, one channel each.
package worker
