package listen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/health"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/metric"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/query"
	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/wire"
)

// handshakeTargetID is reserved for the session-opening query; targetSeq never yields it.
const handshakeTargetID int32 = 1

// ReaderState is the state of the stream reader
type ReaderState int32

// Stream reader states
const (
	ReaderStopped ReaderState = iota
	ReaderRunning
)

// String returns the state name
func (s ReaderState) String() string {
	if s == ReaderRunning {
		return "running"
	}
	return "stopped"
}

// Channel is an open listen session: one background stream reader plus the command
// operations that subscribe, drain and unsubscribe targets.
type Channel struct {
	id         string
	baseURL    string
	database   string
	credential string

	httpClient          *http.Client
	ownsClient          bool
	logger              *slog.Logger
	metrics             *metric.Metrics
	headers             map[string]string
	protocolVersion     int
	clientVersion       int
	handshakeCollection string
	requestTimeout      time.Duration

	counters Counters
	session  Session
	store    *Store

	state        atomic.Int32
	startedAt    time.Time
	lastActivity atomic.Int64
	frames       atomic.Int64
	errorCount   atomic.Int64

	cancel  context.CancelFunc
	done    chan struct{}
	closeMu sync.Mutex
	closed  atomic.Bool
}

// Open performs the handshake and starts the stream reader. ctx bounds the handshake
// only; the reader runs until Close or a stream failure.
func Open(ctx context.Context, baseURL, database, credential string, opts ...Option) (*Channel, error) {
	if baseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Channel", "Open", "validate base URL")
	}
	if database == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Channel", "Open", "validate database")
	}

	c := &Channel{
		id:                  uuid.NewString(),
		baseURL:             baseURL,
		database:            database,
		credential:          credential,
		logger:              slog.Default(),
		headers:             make(map[string]string),
		protocolVersion:     wire.DefaultProtocolVersion,
		clientVersion:       wire.DefaultClientVersion,
		handshakeCollection: DefaultHandshakeCollection,
		requestTimeout:      DefaultRequestTimeout,
		store:               NewStore(),
		done:                make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Channel", "Open", "apply option")
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
		c.ownsClient = true
	}
	c.logger = c.logger.With("channel_id", c.id)

	if err := c.handshake(ctx); err != nil {
		c.recordError(err)
		if c.ownsClient {
			c.httpClient.CloseIdleConnections()
		}
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.startedAt = time.Now()
	c.lastActivity.Store(c.startedAt.UnixNano())
	c.state.Store(int32(ReaderRunning))
	c.metrics.ChannelOpened()

	go c.run(runCtx)

	c.logger.Info("Listen channel opened",
		"database", c.database,
		"session_id", c.session.SessionID,
		"server_id", c.session.ServerID)
	return c, nil
}

func (c *Channel) handshake(ctx context.Context) error {
	q, err := query.NewBuilder().
		Parent(c.documentsRoot()).
		From(c.handshakeCollection).
		Limit(1).
		Build()
	if err != nil {
		return err
	}

	// removed as soon as it is CURRENT; its messages are never correlated
	c.store.register(handshakeTargetID, true, true)

	start := time.Now()
	hs, err := c.postHandshake(ctx, wire.Subscribe(c.database, handshakeTargetID, query.ForQuery(q)))
	c.metrics.RecordCommand("handshake", time.Since(start), err)
	if err != nil {
		return err
	}

	c.session = Session{
		ClientID:  uuid.NewString(),
		SessionID: hs.SessionID,
		ServerID:  hs.ServerID,
	}
	for _, f := range hs.Frames {
		c.handleFrame(ctx, f)
	}
	return nil
}

func (c *Channel) postHandshake(ctx context.Context, cmd wire.Command) (wire.Handshake, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	body, err := wire.EncodeBatch(c.counters.NextOffset(), cmd)
	if err != nil {
		return wire.Handshake{}, err
	}
	u, err := wire.HandshakeURL(c.baseURL, c.params(c.counters.NextRequest(), 0))
	if err != nil {
		return wire.Handshake{}, err
	}

	resp, err := c.do(ctx, http.MethodPost, u, body, "Open")
	if err != nil {
		return wire.Handshake{}, err
	}
	defer closeBody(resp)

	return wire.ParseHandshake(resp.Body, resp.Header)
}

// ID returns the local channel id used in logs.
func (c *Channel) ID() string {
	return c.id
}

// Session returns the session identifiers.
func (c *Channel) Session() Session {
	return c.session
}

// Counters returns a snapshot of the sequence counters.
func (c *Channel) Counters() CounterSnapshot {
	return c.counters.Snapshot()
}

// State returns the stream reader state.
func (c *Channel) State() ReaderState {
	return ReaderState(c.state.Load())
}

// Done is closed when the stream reader has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the channel, or nil while it is usable.
func (c *Channel) Err() error {
	if err := c.store.Err(); err != nil {
		return err
	}
	if c.closed.Load() {
		return errors.Closed("Channel", "Err")
	}
	return nil
}

// TargetState returns the lifecycle state of a target.
func (c *Channel) TargetState(id int32) TargetState {
	return c.store.State(id)
}

// AddTarget subscribes t under a fresh target id and returns the acknowledgement.
func (c *Channel) AddTarget(ctx context.Context, t query.Target) (Reference, error) {
	if err := c.usable("AddTarget"); err != nil {
		return Reference{}, err
	}
	if err := t.Validate(); err != nil {
		return Reference{}, err
	}

	id := c.counters.NextTarget()
	c.store.register(id, false, false)

	seq, err := c.send(ctx, "add_target", wire.Subscribe(c.database, id, t))
	if err != nil {
		c.store.abandon(id)
		c.recordError(err)
		return Reference{}, err
	}
	if c.store.acknowledge(id) {
		c.metrics.TargetAdded()
	}

	c.logger.Debug("Target added", "target_id", id, "seq", seq)
	return Reference{TargetID: id, Seq: seq}, nil
}

// RemoveTarget unsubscribes a target. A target that has not reached CURRENT cannot be
// removed yet; its removal is queued and sent by the stream reader when CURRENT arrives.
func (c *Channel) RemoveTarget(ctx context.Context, id int32) error {
	if err := c.usable("RemoveTarget"); err != nil {
		return err
	}

	send, queued, err := c.store.requestRemoval(id)
	if err != nil {
		return err
	}
	if queued {
		c.metrics.RecordDeferredRemoval("queued")
		c.logger.Debug("Target removal deferred until CURRENT", "target_id", id)
	}
	if !send {
		return nil
	}

	if _, err := c.send(ctx, "remove_target", wire.Unsubscribe(c.database, id)); err != nil {
		c.store.removalFailed(id, false)
		c.recordError(err)
		return err
	}
	c.logger.Debug("Target removal sent", "target_id", id)
	return nil
}

// AwaitTarget blocks until the burst acknowledged by ref has been delivered.
func (c *Channel) AwaitTarget(ctx context.Context, ref Reference) ([]Message, error) {
	if c.closed.Load() {
		return nil, errors.Closed("Channel", "AwaitTarget")
	}

	start := time.Now()
	msgs, err := c.store.Await(ctx, ref.TargetID, ref.Seq)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordCorrelation(time.Since(start))
	return msgs, nil
}

// Collect subscribes q, drains its initial result set, removes the target and returns
// the documents in stream order. Documents are still returned when only the final
// removal fails.
func (c *Channel) Collect(ctx context.Context, q query.Query) ([]json.RawMessage, error) {
	return c.collect(ctx, query.ForQuery(q))
}

// Document fetches one document by reference. It returns nil without error when the
// document does not exist.
func (c *Channel) Document(ctx context.Context, ref string) (json.RawMessage, error) {
	docs, err := c.collect(ctx, query.ForDocuments(ref))
	if len(docs) == 0 {
		return nil, err
	}
	return docs[0], err
}

// Documents fetches documents by reference. Missing documents are absent from the result.
func (c *Channel) Documents(ctx context.Context, refs []string) ([]json.RawMessage, error) {
	return c.collect(ctx, query.ForDocuments(refs...))
}

func (c *Channel) collect(ctx context.Context, t query.Target) ([]json.RawMessage, error) {
	ref, err := c.AddTarget(ctx, t)
	if err != nil {
		return nil, err
	}

	msgs, err := c.AwaitTarget(ctx, ref)
	if err != nil {
		return nil, err
	}

	docs := make([]json.RawMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind == KindDocumentChange {
			docs = append(docs, m.Document)
		}
	}

	if err := c.RemoveTarget(ctx, ref.TargetID); err != nil {
		return docs, err
	}
	return docs, nil
}

// Health returns the channel status.
func (c *Channel) Health() health.Status {
	var status health.Status
	switch err := c.Err(); {
	case err != nil:
		status = health.NewUnhealthy("listen-channel", health.Sanitize(err.Error()))
	case c.State() != ReaderRunning:
		status = health.NewUnhealthy("listen-channel", "stream reader stopped")
	default:
		status = health.NewHealthy("listen-channel", "stream reader running")
	}

	return status.WithMetrics(&health.Metrics{
		Uptime:         time.Since(c.startedAt),
		ErrorCount:     int(c.errorCount.Load()),
		FramesReceived: c.frames.Load(),
		OpenTargets:    c.store.openTargets(),
		LastActivity:   time.Unix(0, c.lastActivity.Load()),
	})
}

// Close stops the stream reader and fails every waiting correlation. It is idempotent.
func (c *Channel) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed.Load() {
		return nil
	}
	c.closed.Store(true)

	c.store.fail(errors.Closed("Channel", "Close"))
	c.cancel()
	<-c.done

	if c.ownsClient {
		c.httpClient.CloseIdleConnections()
	}
	for i := c.store.retireCounted(); i > 0; i-- {
		c.metrics.TargetRemoved()
	}
	c.metrics.ChannelClosed()

	c.logger.Info("Listen channel closed", "frames", c.frames.Load())
	return nil
}

func (c *Channel) usable(method string) error {
	if c.closed.Load() {
		return errors.Closed("Channel", method)
	}
	return c.store.Err()
}

func (c *Channel) documentsRoot() string {
	return c.database + "/documents"
}

func (c *Channel) params(requestID, ackID int64) wire.Params {
	return wire.Params{
		Database:        c.database,
		ProtocolVersion: c.protocolVersion,
		ClientVersion:   c.clientVersion,
		SessionID:       c.session.SessionID,
		ServerID:        c.session.ServerID,
		RequestID:       requestID,
		AckID:           ackID,
	}
}

// send posts commands as one batch and returns the acknowledged seq.
func (c *Channel) send(ctx context.Context, label string, cmds ...wire.Command) (int64, error) {
	start := time.Now()
	seq, err := c.post(ctx, cmds)
	c.metrics.RecordCommand(label, time.Since(start), err)
	return seq, err
}

func (c *Channel) post(ctx context.Context, cmds []wire.Command) (int64, error) {
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	batch := make([]any, len(cmds))
	for i := range cmds {
		batch[i] = cmds[i]
	}
	body, err := wire.EncodeBatch(c.counters.NextOffset(), batch...)
	if err != nil {
		return 0, err
	}
	u, err := wire.CommandURL(c.baseURL, c.params(c.counters.NextRequest(), c.counters.NextAck()))
	if err != nil {
		return 0, err
	}

	resp, err := c.do(ctx, http.MethodPost, u, body, "send")
	if err != nil {
		return 0, err
	}
	defer closeBody(resp)

	return wire.ParseAck(resp.Body)
}

// do issues one request. Network failures and non-2xx answers are ErrTransport.
func (c *Channel) do(ctx context.Context, method, u string, body []byte, op string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Channel", op, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", wire.FormContentType)
	}
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Transport(err, "Channel", op, method+" request")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		closeBody(resp)
		return nil, errors.Transport(fmt.Errorf("unexpected status %d", resp.StatusCode),
			"Channel", op, method+" request")
	}
	return resp, nil
}

func (c *Channel) recordError(err error) {
	c.errorCount.Add(1)
	c.metrics.RecordError(errorKind(err))
}

func errorKind(err error) string {
	switch errors.KindOf(err) {
	case errors.ErrFraming:
		return "framing"
	case errors.ErrProtocol:
		return "protocol"
	case errors.ErrTransport:
		return "transport"
	case errors.ErrSession:
		return "session"
	case errors.ErrChannelClosed:
		return "closed"
	default:
		return "other"
	}
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
