package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/etcsdemo/obu-etcs/pkg/statemachine"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
}

type publishedMsg struct {
	topic   string
	payload []byte
	qos     int
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMsg{topic, payload, qos})
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func TestBuildFromTemplateStampsEnvelope(t *testing.T) {
	m := NewManager(Config{Publisher: &fakePublisher{}})

	msg, err := m.BuildFromTemplate(NIDSystemVersion, nil, SourceLocalOBU)
	if err != nil {
		t.Fatalf("BuildFromTemplate: %v", err)
	}
	if msg.NID() != NIDSystemVersion {
		t.Errorf("expected NID_MESSAGE=%d, got %d", NIDSystemVersion, msg.NID())
	}
	if msg.Sequence() != 1 {
		t.Errorf("expected first SEQUENCE=1, got %d", msg.Sequence())
	}
	if _, ok := msg.Values.Get("T_TRAIN"); !ok {
		t.Errorf("expected T_TRAIN auto-stamped")
	}

	msg2, err := m.BuildFromTemplate(NIDSystemVersion, nil, SourceLocalOBU)
	if err != nil {
		t.Fatalf("BuildFromTemplate: %v", err)
	}
	if msg2.Sequence() != 2 {
		t.Errorf("expected second SEQUENCE=2, got %d", msg2.Sequence())
	}
}

func TestBuildFromTemplateUnknownNID(t *testing.T) {
	m := NewManager(Config{Publisher: &fakePublisher{}})
	if _, err := m.BuildFromTemplate(200, nil, SourceLocalOBU); err != ErrTemplateMissing {
		t.Fatalf("expected ErrTemplateMissing, got %v", err)
	}
}

func TestHandleETCSMessageRejectsNonWireOrigin(t *testing.T) {
	m := NewManager(Config{Publisher: &fakePublisher{}})
	msg, _ := m.BuildFromTemplate(NIDSystemVersion, nil, SourceLocalOBU)
	if err := m.HandleETCSMessage(msg); err != ErrLoopback {
		t.Fatalf("expected ErrLoopback for non-wire origin, got %v", err)
	}
}

func TestHandleETCSMessageRejectsUnadmittedNID(t *testing.T) {
	machine := statemachine.NewMachine(statemachine.Config{})
	m := NewManager(Config{Publisher: &fakePublisher{}, Machine: machine})
	m.RegisterHandler(NIDSystemVersion, func(m *Manager, msg *Message) error { return nil })

	msg, _ := m.BuildFromTemplate(NIDSystemVersion, nil, SourceWire)
	// machine starts in DISCONNECTED, which admits nothing.
	if err := m.HandleETCSMessage(msg); err != ErrMessageNotAdmitted {
		t.Fatalf("expected ErrMessageNotAdmitted, got %v", err)
	}
}

func TestHandleETCSMessageDispatchesToHandler(t *testing.T) {
	machine := statemachine.NewMachine(statemachine.Config{})
	machine.Transition(statemachine.EventConnected)
	machine.Transition(statemachine.EventAU1Sent) // -> HandshakeInitiated, admits {32,155}

	m := NewManager(Config{Publisher: &fakePublisher{}, Machine: machine})

	called := false
	m.RegisterHandler(NIDSystemVersion, func(m *Manager, msg *Message) error {
		called = true
		return nil
	})

	msg, _ := m.BuildFromTemplate(NIDSystemVersion, nil, SourceWire)
	if err := m.HandleETCSMessage(msg); err != nil {
		t.Fatalf("HandleETCSMessage: %v", err)
	}
	if !called {
		t.Fatalf("expected handler to be called")
	}
}

func TestHandleETCSMessageNoHandlerRegistered(t *testing.T) {
	machine := statemachine.NewMachine(statemachine.Config{})
	machine.Transition(statemachine.EventConnected)
	machine.Transition(statemachine.EventAU1Sent)

	m := NewManager(Config{Publisher: &fakePublisher{}, Machine: machine})
	msg, _ := m.BuildFromTemplate(NIDSystemVersion, nil, SourceWire)
	if err := m.HandleETCSMessage(msg); err != ErrNoHandler {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestSendThrottledImmediateWhenDisabled(t *testing.T) {
	pub := &fakePublisher{}
	m := NewManager(Config{Publisher: pub, Throttle: false})

	msg, _ := m.BuildFromTemplate(NIDSessionAck, nil, SourceLocalOBU)
	if err := m.SendThrottled("rbc/R1/in", msg, 2); err != nil {
		t.Fatalf("SendThrottled: %v", err)
	}
	if pub.count() != 1 {
		t.Fatalf("expected 1 publish, got %d", pub.count())
	}
}

func TestSendThrottledGatedPumpDeliversInOrder(t *testing.T) {
	pub := &fakePublisher{}
	machine := statemachine.NewMachine(statemachine.Config{})
	machine.Transition(statemachine.EventConnected)
	machine.Transition(statemachine.EventAU1Sent) // admits {32, 155}

	m := NewManager(Config{Publisher: pub, Throttle: true, Machine: machine})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	msg1, _ := m.BuildFromTemplate(NIDSystemVersion, nil, SourceLocalOBU)
	msg2, _ := m.BuildFromTemplate(NIDSessionEstablish, nil, SourceLocalOBU)

	if err := m.SendThrottled("rbc/R1/in", msg1, 2); err != nil {
		t.Fatalf("SendThrottled msg1: %v", err)
	}
	if err := m.SendThrottled("rbc/R1/in", msg2, 2); err != nil {
		t.Fatalf("SendThrottled msg2: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if pub.count() == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 2 publishes eventually, got %d", pub.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	pub.mu.Lock()
	published := append([]publishedMsg(nil), pub.published...)
	pub.mu.Unlock()
	for i, want := range []uint8{NIDSystemVersion, NIDSessionEstablish} {
		var got Message
		if err := json.Unmarshal(published[i].payload, &got); err != nil {
			t.Fatalf("unmarshal publish %d: %v", i, err)
		}
		if got.NID() != want {
			t.Fatalf("publish %d: expected NID_MESSAGE=%d, got %d", i, want, got.NID())
		}
	}
}

func TestSendThrottledDropsDuplicateSequence(t *testing.T) {
	pub := &fakePublisher{}
	machine := statemachine.NewMachine(statemachine.Config{})
	machine.Transition(statemachine.EventConnected)
	machine.Transition(statemachine.EventAU1Sent)

	m := NewManager(Config{Publisher: pub, Throttle: true, Machine: machine})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	msg, _ := m.BuildFromTemplate(NIDSystemVersion, nil, SourceLocalOBU)
	m.SendThrottled("rbc/R1/in", msg, 2)
	m.SendThrottled("rbc/R1/in", msg, 2) // same SEQUENCE, should be deduped on send

	time.Sleep(300 * time.Millisecond)
	if pub.count() != 1 {
		t.Fatalf("expected exactly 1 publish for duplicate SEQUENCE, got %d", pub.count())
	}
}
