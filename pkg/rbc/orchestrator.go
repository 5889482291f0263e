package rbc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pion/logging"

	"github.com/etcsdemo/obu-etcs/pkg/dedup"
	"github.com/etcsdemo/obu-etcs/pkg/engine"
	"github.com/etcsdemo/obu-etcs/pkg/handshake"
	"github.com/etcsdemo/obu-etcs/pkg/statemachine"
)

// alertEnvelope mirrors the fields an obstacle alert and its
// acknowledgment carry (spec.md §4.7 "AI_ACK ... to close the RTT
// loop").
type alertEnvelope struct {
	Label   string   `json:"label,omitempty"`
	Conf    *float64 `json:"conf,omitempty"`
	MsgID   string   `json:"msg_id,omitempty"`
	FrameID string   `json:"frame_id,omitempty"`
}

// Orchestrator owns the RBC's half of the ETCS session: handshake
// responder, version/session/train-data exchange, MA generation on
// operator grant, and obstacle-alert acknowledgment.
type Orchestrator struct {
	cfg Config

	machine *statemachine.Machine
	manager *engine.Manager
	session *handshake.Session
	dedup   *dedup.Cache

	mu                sync.Mutex
	maRequestReceived bool

	log logging.LeveledLogger
}

// New returns an Orchestrator ready to Start.
func New(cfg Config) *Orchestrator {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	machine := statemachine.NewMachine(statemachine.Config{LoggerFactory: lf})
	manager := engine.NewManager(engine.Config{Publisher: cfg.PubSub, Machine: machine, Throttle: true, LoggerFactory: lf})

	o := &Orchestrator{
		cfg:     cfg,
		machine: machine,
		manager: manager,
		session: handshake.NewRBCSession(cfg.OBUIdentity, cfg.RBCID, cfg.Roots),
		dedup:   dedup.NewCache(),
		log:     lf.NewLogger("rbc"),
	}
	o.registerHandlers()
	return o
}

// Machine exposes the session state machine, for tests and diagnostics.
func (o *Orchestrator) Machine() *statemachine.Machine { return o.machine }

// Manager exposes the ETCS engine, for tests and diagnostics.
func (o *Orchestrator) Manager() *engine.Manager { return o.manager }

// Start subscribes the RBC's topics.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.manager.Start(ctx)

	if !o.machine.Transition(statemachine.EventConnected) {
		o.log.Warnf("rbc: CONNECTED transition rejected from %s", o.machine.Current())
	}

	subs := []struct {
		topic   string
		handler func(topic string, payload []byte)
	}{
		{o.cfg.handshakeInTopic(), o.handleAU1},
		{o.cfg.rbcInTopic(), o.handleETCSInbound},
		{aiAlertTopic, o.handleAIAlert},
	}
	for _, s := range subs {
		if err := o.cfg.PubSub.Subscribe(s.topic, 2, s.handler); err != nil {
			return err
		}
	}
	return nil
}

// handleAU1 replies AU2 and advances the session into
// HANDSHAKE_INITIATED (spec.md §4.7). The RBC reuses the OBU's
// AU1_SENT event label for its own symmetric action (resolved
// ambiguity: spec.md's transition table names one event per state
// edge regardless of which side drives it).
func (o *Orchestrator) handleAU1(topic string, payload []byte) {
	au1, err := handshake.DecodeAU1(payload)
	if err != nil {
		o.log.Warnf("rbc: malformed AU1: %v", err)
		return
	}
	au2, err := o.session.HandleAU1(au1)
	if err != nil {
		o.log.Warnf("rbc: AU1 rejected: %v", err)
		return
	}
	data, err := au2.Encode()
	if err != nil {
		o.log.Errorf("rbc: encode AU2: %v", err)
		return
	}
	if err := o.cfg.PubSub.Publish(o.cfg.handshakeOutTopic(), data, 2); err != nil {
		o.log.Errorf("rbc: publish AU2: %v", err)
		return
	}
	o.machine.Transition(statemachine.EventAU1Sent)
}

// handleETCSInbound applies the origin gate first, then the dedup gate
// (spec.md §4.10: "applied at the RBC inbound path after the origin
// gate"), then dispatches. Checking origin before touching the dedup
// cache keeps a locally-looped-back message (rejected below, in
// manager.HandleETCSMessage) from occupying a dedup key that a later,
// legitimate wire-originated duplicate would then be wrongly dropped
// against.
func (o *Orchestrator) handleETCSInbound(topic string, payload []byte) {
	var msg engine.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		o.log.Warnf("rbc: malformed inbound message: %v", err)
		return
	}

	if msg.Origin != engine.SourceWire {
		o.log.Debugf("rbc: dropping non-wire-origin NID %d", msg.NID())
		return
	}

	hasSeq := false
	if _, ok := msg.Values.Get("SEQUENCE"); ok {
		hasSeq = true
	}
	key := dedup.Key(msg.MsgID, msg.NID(), msg.Sequence(), hasSeq)
	if o.dedup.SeenRecently(key) {
		o.log.Debugf("rbc: duplicate NID %d dropped (key=%s)", msg.NID(), key)
		return
	}

	if err := o.manager.HandleETCSMessage(&msg); err != nil {
		o.log.Debugf("rbc: inbound NID %d not dispatched: %v", msg.NID(), err)
	}
}

// handleAIAlert acknowledges an obstacle alert back to the OBU,
// closing the RTT loop (spec.md §4.7).
func (o *Orchestrator) handleAIAlert(topic string, payload []byte) {
	var alert alertEnvelope
	if err := json.Unmarshal(payload, &alert); err != nil {
		o.log.Warnf("rbc: malformed AI alert: %v", err)
		return
	}
	ack, err := json.Marshal(alert)
	if err != nil {
		return
	}
	if err := o.cfg.PubSub.Publish(aiAckTopic, ack, 1); err != nil {
		o.log.Warnf("rbc: publish AI_ACK: %v", err)
	}
}

// MARequestReceived reports whether Message 132 has arrived and the
// operator grant button is armed (spec.md §4.7).
func (o *Orchestrator) MARequestReceived() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maRequestReceived
}

// Grant is the operator grant button: generates Packet 15 from the
// configured topology/route and emits Message 3 (spec.md §4.7, §4.8).
func (o *Orchestrator) Grant() error {
	o.mu.Lock()
	armed := o.maRequestReceived
	o.mu.Unlock()
	if !armed {
		return errGrantNotArmed
	}

	ma, err := generateMA(o.cfg)
	if err != nil {
		return err
	}

	msg, err := o.manager.BuildFromTemplate(engine.NIDMovementAuthority, nil, engine.SourceLocalRBC)
	if err != nil {
		return err
	}
	msg.Values.SubPackets = maToSubPacket(ma)

	if err := o.manager.SendThrottled(o.cfg.rbcOutTopic(), msg, 2); err != nil {
		return err
	}
	o.machine.Transition(statemachine.EventM3Sent)
	return nil
}
