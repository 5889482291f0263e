package pubsub

import "sync"

// Broker is an in-memory fan-out fixture standing in for the MQTT
// broker in tests: an N-way topic fan-out, since pub/sub has many
// publishers and subscribers per topic, in place of a point-to-point
// in-memory pipe.
type Broker struct {
	mu   sync.Mutex
	subs map[string][]Handler
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string][]Handler)}
}

// Mock is a Client backed by a shared Broker, used to wire OBU/RBC/
// bridge test pairs without a real MQTT server.
type Mock struct {
	broker *Broker
}

// NewMock returns a Client view onto broker.
func NewMock(broker *Broker) *Mock {
	return &Mock{broker: broker}
}

// Publish fans payload out synchronously to every handler currently
// subscribed to topic. qos is accepted for interface compatibility and
// otherwise ignored (the mock delivers everything reliably and in
// order).
func (m *Mock) Publish(topic string, payload []byte, qos int) error {
	m.broker.mu.Lock()
	handlers := append([]Handler(nil), m.broker.subs[topic]...)
	m.broker.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

// Subscribe registers handler for topic. qos is accepted for interface
// compatibility and otherwise ignored.
func (m *Mock) Subscribe(topic string, qos int, handler Handler) error {
	m.broker.mu.Lock()
	defer m.broker.mu.Unlock()
	m.broker.subs[topic] = append(m.broker.subs[topic], handler)
	return nil
}

// Close is a no-op for the mock.
func (m *Mock) Close() {}
