package pool

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pkg/worker"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/query"
)

// Result is the outcome of one query run by CollectAll.
type Result struct {
	Query     query.Query
	Documents []json.RawMessage
	Err       error
}

var errNotRun = stderrors.New("query not run")

type collectJob struct {
	index int
	query query.Query
}

// CollectAll runs queries concurrently, at most Size at a time, each on its own pooled
// channel. Results are returned in the order of queries; the error joins every per-query
// error.
func (p *Pool) CollectAll(ctx context.Context, queries []query.Query) ([]Result, error) {
	results := make([]Result, len(queries))
	if len(queries) == 0 {
		return results, nil
	}

	workers := worker.NewPool(p.cfg.Size, len(queries), func(ctx context.Context, job collectJob) error {
		docs, err := p.Collect(ctx, job.query)
		results[job.index] = Result{Query: job.query, Documents: docs, Err: err}
		return err
	})
	if err := workers.Start(ctx); err != nil {
		return nil, err
	}

	for i, q := range queries {
		results[i] = Result{Query: q, Err: errNotRun}
		if err := workers.Submit(collectJob{index: i, query: q}); err != nil {
			results[i].Err = err
		}
	}

	if err := workers.Stop(ctx); err != nil {
		return nil, err
	}

	errs := make([]error, 0, len(results))
	for i := range results {
		if results[i].Err != nil {
			errs = append(errs, results[i].Err)
		}
	}
	p.logger.Debug("Collected queries", "queries", len(queries), "failed", len(errs))
	return results, stderrors.Join(errs...)
}
