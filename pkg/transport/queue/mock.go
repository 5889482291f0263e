package queue

import (
	"context"
	"sync"
)

// Mock is an in-memory, single-process Client fixture for bridge
// tests, mirroring pubsub.Mock's in-memory delivery model.
type Mock struct {
	mu        sync.Mutex
	consumers map[string]func(Delivery)
}

// NewMock returns an empty in-memory queue fixture.
func NewMock() *Mock {
	return &Mock{consumers: make(map[string]func(Delivery))}
}

// Publish delivers body synchronously to queueName's registered
// consumer, if any.
func (m *Mock) Publish(ctx context.Context, queueName string, body []byte) error {
	m.mu.Lock()
	handler, ok := m.consumers[queueName]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	handler(Delivery{Body: body})
	return nil
}

// Consume registers handler for queueName.
func (m *Mock) Consume(queueName string, handler func(Delivery)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumers[queueName] = handler
	return nil
}

// Close is a no-op for the mock.
func (m *Mock) Close() {}
