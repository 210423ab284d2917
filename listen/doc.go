// Package listen is a client for a document database's real-time listen channel.
//
// A Channel multiplexes every subscription ("target") over one server-pushed stream,
// read by a background goroutine through repeated long-poll GETs. Subscribe and
// unsubscribe commands are short POSTs whose acknowledgement only carries a sequence
// number; the documents themselves arrive later on the shared stream. The channel
// correlates the two by seq and target id.
//
// Typical use drains one result set per call:
//
//	ch, err := listen.Open(ctx, baseURL, "projects/p/databases/(default)", token,
//	    listen.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer ch.Close()
//
//	q, err := query.NewBuilder().
//	    Parent("projects/p/databases/(default)/documents").
//	    From("videos").
//	    Where(query.In("id", query.Strings("a", "b")...)).
//	    Build()
//	docs, err := ch.Collect(ctx, q)
//
// Collect is AddTarget, AwaitTarget and RemoveTarget composed. The lower-level
// operations are exported for callers that need the raw messages.
//
// # Targets
//
// Target ids are chosen locally (2, 4, 6, ...; 1 is reserved for the handshake) and move
// through PENDING, ADDED, CURRENT, REMOVING and REMOVED. The server does not accept the
// removal of a target before it is CURRENT, so RemoveTarget on an earlier target only
// queues the removal and the stream reader sends it exactly once when CURRENT arrives.
// Targets are tracked in a table, so several subscriptions can be in flight on one
// channel at the same time.
//
// # Failure
//
// A framing or transport failure on the stream stops the reader. The error is kept and
// returned by every blocked and future call; a failed channel must be closed and
// replaced. The channel never retries on its own.
package listen
