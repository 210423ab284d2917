package listen

import (
	"context"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// Await blocks until the burst of messages for target id that follows fromSeq has been
// delivered and returns it in seq order. Consumed messages leave the store.
//
// The burst starts at the first stored message for id with seq > fromSeq. From there
// each next message is taken in seq order: messages for id are collected, messages for
// other targets are skipped while id is still expected (PENDING or ADDED). Collection
// ends at id's CURRENT or REMOVE, or once id is no longer expected and nothing more for
// it is stored.
//
// If the store fails before the burst is complete, Await returns the store's error.
func (s *Store) Await(ctx context.Context, id int32, fromSeq int64) ([]Message, error) {
	s.mu.Lock()
	t, ok := s.targets[id]
	if !ok {
		s.mu.Unlock()
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Store", "Await", "find target")
	}

	var (
		out     []Message
		cursor  = fromSeq
		started bool
	)

	for {
		for {
			seq, e, ok := s.next(cursor)
			if !ok {
				break
			}
			cursor = seq

			if _, mine := e.pending[id]; mine {
				started = true
				s.consume(seq, e, id, t)
				out = append(out, e.msg)
				if e.msg.Ends() {
					t.done = true
					s.mu.Unlock()
					return out, nil
				}
				continue
			}

			if started && !t.state.expected() && t.stored == 0 {
				t.done = true
				s.mu.Unlock()
				return out, nil
			}
		}

		if !t.state.expected() {
			t.done = true
			s.mu.Unlock()
			return out, nil
		}
		if s.err != nil {
			err := s.err
			s.mu.Unlock()
			return nil, err
		}

		wake := s.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
		s.mu.Lock()
	}
}
