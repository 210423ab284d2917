package natsclient

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// Publisher is the core NATS publish operation
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// PublishEach publishes every document as its own message on subject. It stops at the
// first failure and returns how many documents were published before it.
func PublishEach(ctx context.Context, p Publisher, subject string, docs []json.RawMessage) (int, error) {
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := p.Publish(ctx, subject, doc); err != nil {
			return i, fmt.Errorf("publish document %d to %s: %w", i, subject, err)
		}
	}
	return len(docs), nil
}

// PublishDocuments publishes docs on subject, through JetStream when the client was
// built WithJetStream and over core NATS otherwise
func (c *Client) PublishDocuments(ctx context.Context, subject string, docs []json.RawMessage) (int, error) {
	if c.Status() == StatusCircuitOpen {
		return 0, ErrCircuitOpen
	}

	var p Publisher = c
	if c.jetStream {
		p = publisherFunc(c.PublishToStream)
	}

	n, err := PublishEach(ctx, p, subject, docs)
	c.metrics.RecordPublished(subject, n)
	if err != nil {
		if stderrors.Is(err, ErrNotConnected) || stderrors.Is(err, ErrClosed) {
			return n, err
		}
		return n, errors.WrapTransient(err, "Client", "PublishDocuments", "publish documents")
	}
	c.logger.Debug("published documents", "subject", subject, "count", n)
	return n, nil
}

type publisherFunc func(ctx context.Context, subject string, data []byte) error

func (f publisherFunc) Publish(ctx context.Context, subject string, data []byte) error {
	return f(ctx, subject, data)
}

// EnsureStream creates the stream capturing subjects, or updates it when it exists
func (c *Client) EnsureStream(ctx context.Context, name string, subjects ...string) (jetstream.Stream, error) {
	if c.Status() == StatusCircuitOpen {
		return nil, ErrCircuitOpen
	}
	if _, err := c.connection(); err != nil {
		return nil, err
	}

	js, err := c.JetStream()
	if err != nil {
		c.recordFailure()
		return nil, err
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		c.recordFailure()
		return nil, errors.WrapTransient(err, "Client", "EnsureStream", "create stream "+name)
	}

	c.resetCircuit()
	c.logger.Info("stream ready", "stream", name, "subjects", subjects)
	return stream, nil
}

// PublishToStream publishes one message through JetStream and waits for the ack
func (c *Client) PublishToStream(ctx context.Context, subject string, data []byte) error {
	if c.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}
	if _, err := c.connection(); err != nil {
		return err
	}

	js, err := c.JetStream()
	if err != nil {
		c.recordFailure()
		return err
	}
	if _, err := js.Publish(ctx, subject, data); err != nil {
		c.recordFailure()
		return err
	}
	c.resetCircuit()
	return nil
}

// SubjectFor joins prefix and collection into a publish subject
func SubjectFor(prefix, collection string) string {
	if prefix == "" {
		return collection
	}
	return prefix + "." + collection
}

var _ Publisher = (*Client)(nil)
