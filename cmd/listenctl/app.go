package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/natsclient"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/pool"
)

// publishFunc publishes documents on a subject and reports how many were sent
type publishFunc func(ctx context.Context, subject string, docs []json.RawMessage) (int, error)

// app runs one invocation against a pool
type app struct {
	pool    *pool.Pool
	out     io.Writer
	publish publishFunc // nil when NATS is disabled
	prefix  string
	root    string // database documents path
	logger  *slog.Logger
}

// execute runs the queries or the document lookup. Documents of successful queries are
// written and published even when another query failed.
func (a *app) execute(ctx context.Context, cli *CLIConfig) error {
	w := bufio.NewWriter(a.out)
	defer w.Flush()

	if len(cli.Docs) > 0 {
		refs := make([]string, len(cli.Docs))
		for i, ref := range cli.Docs {
			refs[i] = resolvePath(a.root, ref)
		}
		docs, err := a.pool.Documents(ctx, refs)
		if werr := a.emit(ctx, w, docs, documentCollection); werr != nil {
			return stderrors.Join(err, werr)
		}
		a.logger.Info("Documents looked up", "requested", len(cli.Docs), "found", len(docs))
		return err
	}

	queries, err := buildQueries(cli, a.root)
	if err != nil {
		return err
	}
	results, err := a.pool.CollectAll(ctx, queries)
	if results == nil {
		return err
	}

	errs := []error{err}
	for i, res := range results {
		collection := cli.Collections[i]
		if werr := a.emit(ctx, w, res.Documents, func(json.RawMessage) string { return collection }); werr != nil {
			errs = append(errs, werr)
			break
		}
		a.logger.Info("Collection queried", "collection", collection, "documents", len(res.Documents),
			"error", res.Err)
	}
	return stderrors.Join(errs...)
}

// emit writes docs as JSON lines and publishes them grouped by collection
func (a *app) emit(ctx context.Context, w *bufio.Writer, docs []json.RawMessage, collectionOf func(json.RawMessage) string) error {
	var line bytes.Buffer
	for _, doc := range docs {
		line.Reset()
		if err := json.Compact(&line, doc); err != nil {
			return fmt.Errorf("compact document: %w", err)
		}
		line.WriteByte('\n')
		if _, err := w.Write(line.Bytes()); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write documents: %w", err)
	}

	if a.publish == nil || len(docs) == 0 {
		return nil
	}

	var order []string
	groups := make(map[string][]json.RawMessage)
	for _, doc := range docs {
		c := collectionOf(doc)
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], doc)
	}
	for _, c := range order {
		subject := natsclient.SubjectFor(a.prefix, c)
		n, err := a.publish(ctx, subject, groups[c])
		if err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		a.logger.Debug("Documents published", "subject", subject, "count", n)
	}
	return nil
}

// documentCollection returns the collection segment of a document's resource name,
// e.g. "orders" for ".../documents/orders/42".
func documentCollection(doc json.RawMessage) string {
	var named struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(doc, &named); err != nil {
		return "unknown"
	}
	return collectionOf(named.Name)
}

func collectionOf(ref string) string {
	segments := strings.Split(strings.Trim(ref, "/"), "/")
	if len(segments) < 2 || segments[len(segments)-2] == "" {
		return "unknown"
	}
	return segments[len(segments)-2]
}
