package listen

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/wire"
)

// emptyPollDelay paces re-polls when the server answers a long-poll without frames.
const emptyPollDelay = 100 * time.Millisecond

// run is the stream reader loop. It exits on Close or on the first stream failure,
// leaving the failure in the store for every current and future waiter.
func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	defer c.state.Store(int32(ReaderStopped))

	for {
		if ctx.Err() != nil {
			c.store.fail(errors.Closed("Channel", "run"))
			return
		}

		n, err := c.poll(ctx)
		c.metrics.RecordPoll(err)
		if pruned := c.store.Prune(); pruned > 0 {
			c.logger.Debug("Pruned unclaimed messages", "count", pruned)
		}

		if err != nil {
			if ctx.Err() != nil {
				c.store.fail(errors.Closed("Channel", "run"))
				return
			}
			c.recordError(err)
			c.logger.Error("Stream reader stopped", "error", err, "last_seq", c.store.LastSeq())
			c.store.fail(err)
			return
		}

		if n == 0 {
			select {
			case <-ctx.Done():
			case <-time.After(emptyPollDelay):
			}
		}
	}
}

// poll performs one long-poll GET and handles every frame of its body.
func (c *Channel) poll(ctx context.Context) (int, error) {
	u, err := wire.StreamURL(c.baseURL, c.params(0, c.store.LastSeq()))
	if err != nil {
		return 0, err
	}

	resp, err := c.do(ctx, http.MethodGet, u, nil, "poll")
	if err != nil {
		return 0, err
	}
	defer closeBody(resp)

	dec := wire.NewDecoder(resp.Body)
	n := 0
	for {
		f, err := dec.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		c.handleFrame(ctx, f)
	}
}

// handleFrame classifies and stores one frame, then sends any removal the frame released.
func (c *Channel) handleFrame(ctx context.Context, f wire.Frame) {
	msg := Classify(f)
	res := c.store.publish(msg)
	if res.duplicate {
		c.metrics.RecordFrame("duplicate")
		c.logger.Debug("Dropped redelivered frame", "seq", f.Seq)
		return
	}

	c.frames.Add(1)
	c.lastActivity.Store(time.Now().UnixNano())
	c.metrics.RecordFrame(msg.Kind.String())
	c.logger.Debug("Frame received", "seq", msg.Seq, "kind", msg.Kind.String(), "target_id", msg.TargetID())

	for _, id := range res.late {
		c.logger.Warn("Message for removed or unknown target", "seq", msg.Seq, "target_id", id)
	}
	for range res.removed {
		c.metrics.TargetRemoved()
	}
	for _, id := range res.claimed {
		c.sendDeferredRemoval(ctx, id)
	}
}

// sendDeferredRemoval sends a removal claimed at CURRENT. A failure is logged and leaves
// the target CURRENT with the removal queued again; it does not stop the reader.
func (c *Channel) sendDeferredRemoval(ctx context.Context, id int32) {
	if _, err := c.send(ctx, "remove_target", wire.Unsubscribe(c.database, id)); err != nil {
		c.store.removalFailed(id, true)
		if ctx.Err() != nil {
			return
		}
		c.recordError(err)
		c.metrics.RecordDeferredRemoval("failed")
		c.logger.Warn("Deferred target removal failed", "target_id", id, "error", err)
		return
	}
	c.metrics.RecordDeferredRemoval("sent")
	c.logger.Debug("Deferred target removal sent", "target_id", id)
}
