package listen

import (
	"sort"
	"sync"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// Store is the sequence-indexed message store shared by the stream reader and the
// correlators, together with the target table. One mutex guards both. Every mutation
// closes and replaces the notify channel so waiters can select on it alongside their
// context; once failed, the store keeps its error and wakes everyone a final time.
type Store struct {
	mu       sync.Mutex
	messages map[int64]*entry
	order    []int64
	targets  map[int32]*target
	lastSeq  int64
	seen     bool
	notify   chan struct{}
	err      error
}

type entry struct {
	msg     Message
	pending map[int32]struct{}
}

// publishResult reports what storing a message changed.
type publishResult struct {
	duplicate bool
	// late lists targets the message referenced that are unknown or already REMOVED
	late []int32
	// claimed lists targets whose queued removal must now be sent, exactly once
	claimed []int32
	// removed lists counted targets that just reached REMOVED
	removed []int32
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		messages: make(map[int64]*entry),
		targets:  make(map[int32]*target),
		notify:   make(chan struct{}),
	}
}

func (s *Store) broadcast() {
	close(s.notify)
	s.notify = make(chan struct{})
}

// register adds a PENDING target.
func (s *Store) register(id int32, discard, removeWhenCurrent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[id] = &target{state: TargetPending, discard: discard, removalQueued: removeWhenCurrent}
}

// acknowledge marks a target as counted once its subscribe command was acknowledged.
func (s *Store) acknowledge(id int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok || t.counted || t.state == TargetRemoved {
		return false
	}
	t.counted = true
	return true
}

// abandon retires a target whose subscribe command failed.
func (s *Store) abandon(id int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.targets[id]; ok {
		t.state = TargetRemoved
		t.removalQueued = false
		t.done = true
	}
	s.broadcast()
}

// State returns the lifecycle state of a target.
func (s *Store) State(id int32) TargetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.targets[id]; ok {
		return t.state
	}
	return TargetUnknown
}

// LastSeq returns the highest seq seen on the stream.
func (s *Store) LastSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Err returns the error the store was failed with, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// openTargets counts targets that are neither REMOVED nor discarded.
func (s *Store) openTargets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.targets {
		if !t.discard && t.state != TargetRemoved {
			n++
		}
	}
	return n
}

// publish applies the target transitions carried by msg and stores it.
// Frames at or below the last seen seq are redeliveries and are dropped.
func (s *Store) publish(msg Message) publishResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res publishResult
	if s.seen && msg.Seq <= s.lastSeq {
		res.duplicate = true
		return res
	}
	s.seen = true
	s.lastSeq = msg.Seq

	pending := make(map[int32]struct{}, len(msg.TargetIDs))
	for _, id := range msg.TargetIDs {
		t, ok := s.targets[id]
		if !ok {
			res.late = append(res.late, id)
			pending[id] = struct{}{}
			continue
		}
		if t.state == TargetRemoved && !(msg.Kind == KindTargetChange && msg.Change == ChangeRemove) {
			res.late = append(res.late, id)
		}
		if msg.Kind == KindTargetChange {
			s.transition(id, t, msg.Change, &res)
		}
		if !t.discard {
			pending[id] = struct{}{}
		}
	}

	if len(msg.TargetIDs) == 0 || len(pending) > 0 {
		s.messages[msg.Seq] = &entry{msg: msg, pending: pending}
		s.order = append(s.order, msg.Seq)
		for id := range pending {
			if t, ok := s.targets[id]; ok {
				t.stored++
			}
		}
	}

	s.broadcast()
	return res
}

func (s *Store) transition(id int32, t *target, change ChangeType, res *publishResult) {
	switch change {
	case ChangeAdd:
		if t.state == TargetPending {
			t.state = TargetAdded
		}
	case ChangeCurrent:
		if t.state.expected() {
			t.state = TargetCurrent
		}
		if t.removalQueued && t.state == TargetCurrent {
			t.removalQueued = false
			t.state = TargetRemoving
			res.claimed = append(res.claimed, id)
		}
	case ChangeRemove:
		if t.state != TargetRemoved {
			t.state = TargetRemoved
			t.removalQueued = false
			if t.counted {
				res.removed = append(res.removed, id)
			}
		}
	}
}

// requestRemoval decides whether a removal can be sent now. A CURRENT target moves to
// REMOVING and the caller must send; a target that is not yet CURRENT gets its removal
// queued for the stream reader. queued reports a newly queued removal.
func (s *Store) requestRemoval(id int32) (send, queued bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, false, s.err
	}
	t, ok := s.targets[id]
	if !ok {
		return false, false, errors.WrapInvalid(errors.ErrInvalidData, "Channel", "RemoveTarget",
			"find target")
	}

	switch t.state {
	case TargetCurrent:
		t.state = TargetRemoving
		t.removalQueued = false
		return true, false, nil
	case TargetPending, TargetAdded:
		if t.removalQueued {
			return false, false, nil
		}
		t.removalQueued = true
		return false, true, nil
	default:
		return false, false, nil
	}
}

// removalFailed returns a REMOVING target to CURRENT so removal can be requested again.
// With requeue set the removal stays owed: the next CURRENT claims it again, and a
// RemoveTarget call sends it directly.
func (s *Store) removalFailed(id int32, requeue bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.targets[id]; ok && t.state == TargetRemoving {
		t.state = TargetCurrent
		t.removalQueued = requeue
	}
}

// fail poisons the store. The first error wins; waiters are woken either way.
func (s *Store) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	s.broadcast()
}

// Prune drops stored messages no correlator can still claim: messages without a
// target and messages whose targets are unknown or already drained.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for seq, e := range s.messages {
		for id := range e.pending {
			t, ok := s.targets[id]
			if !ok {
				delete(e.pending, id)
				continue
			}
			if t.done {
				delete(e.pending, id)
				t.stored--
			}
		}
		if len(e.pending) == 0 {
			delete(s.messages, seq)
			pruned++
		}
	}
	if pruned > 0 {
		s.compact()
	}
	return pruned
}

// compact drops deleted seqs from order. Caller holds mu.
func (s *Store) compact() {
	kept := s.order[:0]
	for _, seq := range s.order {
		if _, ok := s.messages[seq]; ok {
			kept = append(kept, seq)
		}
	}
	s.order = kept
}

// next returns the smallest stored seq greater than cursor. Caller holds mu.
func (s *Store) next(cursor int64) (int64, *entry, bool) {
	i := sort.Search(len(s.order), func(i int) bool { return s.order[i] > cursor })
	for ; i < len(s.order); i++ {
		if e, ok := s.messages[s.order[i]]; ok {
			return s.order[i], e, true
		}
	}
	return 0, nil, false
}

// consume removes target id from a stored entry. Caller holds mu.
func (s *Store) consume(seq int64, e *entry, id int32, t *target) {
	delete(e.pending, id)
	t.stored--
	if len(e.pending) == 0 {
		delete(s.messages, seq)
		if len(s.order) > 0 && len(s.messages)*2 < len(s.order) {
			s.compact()
		}
	}
}

// retireCounted stops counting every open target and returns how many there were.
func (s *Store) retireCounted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.targets {
		if t.counted && t.state != TargetRemoved {
			t.counted = false
			n++
		}
	}
	return n
}
