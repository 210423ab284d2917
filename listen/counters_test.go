package listen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters_Sequences(t *testing.T) {
	var c Counters

	assert.Equal(t, int64(1), c.NextRequest())
	assert.Equal(t, int64(2), c.NextRequest())
	assert.Equal(t, int64(1), c.NextAck())
	assert.Equal(t, int64(0), c.NextOffset())
	assert.Equal(t, int64(1), c.NextOffset())
	assert.Equal(t, int32(2), c.NextTarget())
	assert.Equal(t, int32(4), c.NextTarget())
	assert.Equal(t, int32(6), c.NextTarget())

	assert.Equal(t, CounterSnapshot{Request: 2, Ack: 1, Offset: 2, Target: 6}, c.Snapshot())
}

func TestCounters_Concurrent(t *testing.T) {
	var (
		c   Counters
		mu  sync.Mutex
		ids = make(map[int32]bool)
		wg  sync.WaitGroup
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := c.NextTarget()
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 50)
	for id := range ids {
		assert.Equal(t, int32(0), id%2)
		assert.NotEqual(t, handshakeTargetID, id)
	}
}

func TestStates_String(t *testing.T) {
	assert.Equal(t, "CURRENT", TargetCurrent.String())
	assert.Equal(t, "UNKNOWN", TargetUnknown.String())
	assert.Equal(t, "running", ReaderRunning.String())
	assert.Equal(t, "stopped", ReaderStopped.String())
	assert.Equal(t, "document_change", KindDocumentChange.String())
}
