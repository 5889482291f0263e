package bridge

import (
	"context"

	"github.com/etcsdemo/obu-etcs/pkg/bitcodec"
	"github.com/etcsdemo/obu-etcs/pkg/handshake"
	"github.com/etcsdemo/obu-etcs/pkg/transport/pubsub"
	"github.com/etcsdemo/obu-etcs/pkg/transport/queue"
)

// TestPair wires a Forward and Reverse bridge over a shared in-memory
// broker and queue, wiring both sides of the protocol for round-trip
// tests.
type TestPair struct {
	Broker *pubsub.Broker
	Queue  *queue.Mock

	Forward *Forward
	Reverse *Reverse

	rbcID string
}

// NewTestPair starts a Forward/Reverse pair sharing templates and an
// in-memory broker/queue.
func NewTestPair(rbcID string, templates map[uint8]*bitcodec.Template, subTable bitcodec.TemplateTable) *TestPair {
	broker := pubsub.NewBroker()
	q := queue.NewMock()

	fwd := NewForward(ForwardConfig{
		PubSub: pubsub.NewMock(broker), Queue: q,
		Templates: templates, SubPacketTable: subTable, RBCID: rbcID,
	})
	rev := NewReverse(ReverseConfig{
		PubSub: pubsub.NewMock(broker), Queue: q,
		Templates: templates, SubPacketTable: subTable, RBCID: rbcID,
	})

	_ = fwd.Start(context.Background())
	_ = rev.Start()

	return &TestPair{Broker: broker, Queue: q, Forward: fwd, Reverse: rev, rbcID: rbcID}
}

// InstallKeys publishes a KEY_UPDATE onto the shared broker so both
// bridge halves derive identical KeySets, mirroring the real OBU's
// post-AU2 plaintext key leak (spec.md §4.3).
func (p *TestPair) InstallKeys(ku handshake.KeyUpdate) error {
	data, err := ku.Encode()
	if err != nil {
		return err
	}
	pub := pubsub.NewMock(p.Broker)
	return pub.Publish("obu/"+p.rbcID+"/keys", data, 2)
}

// Publish publishes payload on topic via a client sharing the pair's
// broker, standing in for an OBU/RBC orchestrator's own publish.
func (p *TestPair) Publish(topic string, payload []byte) error {
	pub := pubsub.NewMock(p.Broker)
	return pub.Publish(topic, payload, 2)
}

// Subscribe registers handler for topic on the shared broker, standing
// in for an OBU/RBC orchestrator observing the bridge's output.
func (p *TestPair) Subscribe(topic string, handler pubsub.Handler) error {
	sub := pubsub.NewMock(p.Broker)
	return sub.Subscribe(topic, 2, handler)
}
