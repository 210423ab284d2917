package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/wire"
)

// Fake session identifiers handed out by ListenServer.
const (
	FakeSessionID = "fake-sid"
	FakeServerID  = "fake-gsessionid"
)

// DefaultPollTimeout is how long a streaming GET waits for frames before answering empty.
const DefaultPollTimeout = 50 * time.Millisecond

// RecordedCommand is one decoded command received by ListenServer.
type RecordedCommand struct {
	wire.Command
	Handshake bool
	Offset    int64
	RequestID string
	AckID     string
	// LastPushed is the highest seq queued on the stream when the command arrived.
	LastPushed int64
}

// RecordedRequest is the request line and headers of one request.
type RecordedRequest struct {
	Method string
	Query  url.Values
	Header http.Header
}

// ListenServer is a scripted listen endpoint.
type ListenServer struct {
	*httptest.Server

	// PollTimeout bounds how long a streaming GET blocks without frames.
	PollTimeout time.Duration

	mu          sync.Mutex
	queue       []wire.Frame
	lastPushed  int64
	acks        []int64
	commands    []RecordedCommand
	requests    []RecordedRequest
	onCommand   func(RecordedCommand)
	failStatus  int
	corrupt     bool
	handshakeOK bool
	wake        chan struct{}
	closed      chan struct{}
	closeOnce   sync.Once
}

// NewListenServer starts a ListenServer.
func NewListenServer() *ListenServer {
	s := &ListenServer{
		PollTimeout: DefaultPollTimeout,
		handshakeOK: true,
		wake:        make(chan struct{}),
		closed:      make(chan struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Close unblocks pending streaming GETs and shuts the server down.
func (s *ListenServer) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
	s.Server.Close()
}

// Push queues frames for the next streaming GET.
func (s *ListenServer) Push(frames ...wire.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range frames {
		s.queue = append(s.queue, f)
		if f.Seq > s.lastPushed {
			s.lastPushed = f.Seq
		}
	}
	s.signal()
}

// AckWith scripts the seqs of the next command acknowledgements, in order. Unscripted
// commands are acknowledged with the last pushed seq.
func (s *ListenServer) AckWith(seqs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks = append(s.acks, seqs...)
}

// OnCommand registers fn to run for every decoded command before it is acknowledged.
func (s *ListenServer) OnCommand(fn func(RecordedCommand)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommand = fn
}

// FailStream makes every following streaming GET answer with status.
func (s *ListenServer) FailStream(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.signal()
}

// CorruptStream makes the next streaming GET answer with a malformed length prefix.
func (s *ListenServer) CorruptStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corrupt = true
	s.signal()
}

// RejectHandshake makes the handshake answer without a control message.
func (s *ListenServer) RejectHandshake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handshakeOK = false
}

// AnswerSubscriptions makes the server acknowledge every subscription and follow it with
// a burst: ADD, one document change per document and CURRENT. Query targets get docs;
// document targets get one minimal document per requested reference.
func (s *ListenServer) AnswerSubscriptions(docs ...any) {
	s.OnCommand(func(cmd RecordedCommand) {
		if cmd.Handshake || cmd.AddTarget == nil {
			return
		}
		id := cmd.AddTarget.TargetID
		burst := docs
		if cmd.AddTarget.Documents != nil {
			burst = make([]any, 0, len(cmd.AddTarget.Documents.Documents))
			for _, ref := range cmd.AddTarget.Documents.Documents {
				burst = append(burst, Doc(ref, nil))
			}
		}

		ack := cmd.LastPushed + 1
		s.AckWith(ack)
		seq := ack + 1
		frames := []wire.Frame{TargetChange(seq, "ADD", id)}
		for _, doc := range burst {
			seq++
			frames = append(frames, DocumentChange(seq, doc, id))
		}
		s.Push(append(frames, TargetChange(seq+1, "CURRENT", id))...)
	})
}

// Commands returns the commands received so far.
func (s *ListenServer) Commands() []RecordedCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedCommand, len(s.commands))
	copy(out, s.commands)
	return out
}

// RemovedTargets returns the target ids of the removal commands received so far.
func (s *ListenServer) RemovedTargets() []int32 {
	var ids []int32
	for _, cmd := range s.Commands() {
		if cmd.RemoveTarget != 0 {
			ids = append(ids, cmd.RemoveTarget)
		}
	}
	return ids
}

// Requests returns every request received so far.
func (s *ListenServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// signal wakes blocked streaming GETs. Caller holds mu.
func (s *ListenServer) signal() {
	close(s.wake)
	s.wake = make(chan struct{})
}

func (s *ListenServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: r.Method,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet:
		s.serveStream(w, r)
	case r.Method == http.MethodPost && r.URL.Query().Has(wire.SessionHeader):
		s.serveHandshake(w, r)
	case r.Method == http.MethodPost:
		s.serveCommand(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *ListenServer) serveHandshake(w http.ResponseWriter, r *http.Request) {
	if _, err := s.record(r, true); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	ok := s.handshakeOK
	s.mu.Unlock()

	control := []any{"c", FakeSessionID, "", wire.DefaultProtocolVersion, 14, 30000}
	if !ok {
		control = []any{"noop"}
	}
	frame, err := NewFrame(0, control...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	body, err := wire.EncodeFrames(frame)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(wire.SessionHeader, FakeServerID)
	_, _ = w.Write(body)
}

func (s *ListenServer) serveCommand(w http.ResponseWriter, r *http.Request) {
	n, err := s.record(r, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	var seq int64
	for i := 0; i < n; i++ {
		if len(s.acks) > 0 {
			seq = s.acks[0]
			s.acks = s.acks[1:]
		}
	}
	if seq == 0 {
		seq = max(s.lastPushed, 1)
	}
	s.mu.Unlock()

	ack := fmt.Sprintf("[1,%d,0]", seq)
	_, _ = w.Write(wire.EncodeChunk([]byte(ack)))
}

// record decodes and stores the commands of a POST, runs the hook and returns how many
// commands the body held.
func (s *ListenServer) record(r *http.Request, handshake bool) (int, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return 0, err
	}
	batch, err := wire.DecodeBatch(body)
	if err != nil {
		return 0, err
	}

	q := r.URL.Query()
	recorded := make([]RecordedCommand, 0, len(batch.Commands))
	for _, raw := range batch.Commands {
		var cmd wire.Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			return 0, err
		}
		recorded = append(recorded, RecordedCommand{
			Command:   cmd,
			Handshake: handshake,
			Offset:    batch.Offset,
			RequestID: q.Get("RID"),
			AckID:     q.Get("AID"),
		})
	}

	s.mu.Lock()
	for i := range recorded {
		recorded[i].LastPushed = s.lastPushed
	}
	s.commands = append(s.commands, recorded...)
	hook := s.onCommand
	s.mu.Unlock()

	if hook != nil {
		for _, cmd := range recorded {
			hook(cmd)
		}
	}
	return len(recorded), nil
}

func (s *ListenServer) serveStream(w http.ResponseWriter, r *http.Request) {
	timer := time.NewTimer(s.PollTimeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		status, corrupt := s.failStatus, s.corrupt
		frames := s.queue
		s.queue = nil
		s.corrupt = false
		wake := s.wake
		s.mu.Unlock()

		switch {
		case status != 0:
			http.Error(w, http.StatusText(status), status)
			return
		case corrupt:
			_, _ = w.Write([]byte("12x\n[1,[]]"))
			return
		case len(frames) > 0:
			for _, f := range frames {
				chunk, err := wire.EncodeFrames(f)
				if err != nil {
					return
				}
				_, _ = w.Write(chunk)
			}
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
			return
		}

		select {
		case <-wake:
		case <-timer.C:
			return
		case <-r.Context().Done():
			return
		case <-s.closed:
			return
		}
	}
}

// NewFrame builds a frame whose content elements are JSON-encoded from values.
func NewFrame(seq int64, values ...any) (wire.Frame, error) {
	f := wire.Frame{Seq: seq, Payload: make([]json.RawMessage, 0, len(values))}
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return wire.Frame{}, err
		}
		f.Payload = append(f.Payload, data)
	}
	return f, nil
}

// TargetChange builds a target change frame.
func TargetChange(seq int64, change string, targetIDs ...int32) wire.Frame {
	return mustFrame(seq, map[string]any{
		"targetChange": map[string]any{
			"targetChangeType": change,
			"targetIds":        targetIDs,
		},
	})
}

// DocumentChange builds a document change frame carrying doc for targetIDs.
func DocumentChange(seq int64, doc any, targetIDs ...int32) wire.Frame {
	return mustFrame(seq, map[string]any{
		"documentChange": map[string]any{
			"document":  doc,
			"targetIds": targetIDs,
		},
	})
}

// Other builds a frame without a known shape.
func Other(seq int64, content any) wire.Frame {
	return mustFrame(seq, content)
}

// Doc builds a minimal document object named name.
func Doc(name string, fields map[string]any) map[string]any {
	return map[string]any{"name": name, "fields": fields}
}

func mustFrame(seq int64, content any) wire.Frame {
	f, err := NewFrame(seq, content)
	if err != nil {
		panic("testutil: encode frame " + strconv.FormatInt(seq, 10) + ": " + err.Error())
	}
	return f
}
