package testutil

import (
	"context"
	"sort"
	"sync"
)

// MockNATSClient records publishes in memory. It satisfies natsclient.Publisher.
type MockNATSClient struct {
	mu       sync.Mutex
	bySubj   map[string][][]byte
	failWith error
}

func NewMockNATSClient() *MockNATSClient {
	return &MockNATSClient{bySubj: make(map[string][][]byte)}
}

// Publish stores a copy of data under subject, or returns the configured failure.
func (c *MockNATSClient) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.bySubj[subject] = append(c.bySubj[subject], append([]byte(nil), data...))
	return nil
}

// FailWith makes later publishes return err; nil clears it.
func (c *MockNATSClient) FailWith(err error) {
	c.mu.Lock()
	c.failWith = err
	c.mu.Unlock()
}

// GetMessages returns the payloads published on subject in order.
func (c *MockNATSClient) GetMessages(subject string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.bySubj[subject]...)
}

func (c *MockNATSClient) GetMessageCount(subject string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bySubj[subject])
}

// Subjects lists every subject that received a message, sorted.
func (c *MockNATSClient) Subjects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.bySubj))
	for s := range c.bySubj {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
