package listen

import "sync/atomic"

// Counters are the per-channel sequence counters. All methods are safe for concurrent use.
type Counters struct {
	request atomic.Int64
	ack     atomic.Int64
	offset  atomic.Int64
	target  atomic.Int64
}

// NextRequest returns the RID of the next command, starting at 1.
func (c *Counters) NextRequest() int64 {
	return c.request.Add(1)
}

// NextAck returns the AID of the next command, starting at 1.
func (c *Counters) NextAck() int64 {
	return c.ack.Add(1)
}

// NextOffset returns the ofs of the next batch, starting at 0.
func (c *Counters) NextOffset() int64 {
	return c.offset.Add(1) - 1
}

// NextTarget returns the next target id: 2, 4, 6, ...
func (c *Counters) NextTarget() int32 {
	return int32(c.target.Add(2))
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Request int64
	Ack     int64
	Offset  int64
	Target  int32
}

// Snapshot returns the last values handed out.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Request: c.request.Load(),
		Ack:     c.ack.Load(),
		Offset:  c.offset.Load(),
		Target:  int32(c.target.Load()),
	}
}
