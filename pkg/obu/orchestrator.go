package obu

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/etcsdemo/obu-etcs/pkg/autostop"
	"github.com/etcsdemo/obu-etcs/pkg/bitcodec"
	"github.com/etcsdemo/obu-etcs/pkg/engine"
	"github.com/etcsdemo/obu-etcs/pkg/handshake"
	"github.com/etcsdemo/obu-etcs/pkg/kpi"
	"github.com/etcsdemo/obu-etcs/pkg/statemachine"
)

// sensorEvent is the esp32/<id>/sensor payload shape.
type sensorEvent struct {
	SensorID string `json:"sensor_id"`
	TS       int64  `json:"ts,omitempty"`
}

// Orchestrator owns the OBU's session lifecycle: handshake, the ETCS
// engine, the MA-request timer, sensor-to-position reporting, mission
// completion, and the auto-stop coordinator. It owns its transport,
// session state, and a background maintenance loop, the way a device
// lifecycle orchestrator does.
type Orchestrator struct {
	cfg Config

	machine  *statemachine.Machine
	manager  *engine.Manager
	session  *handshake.Session
	autostop *autostop.Coordinator
	kpiLog   *kpi.Logger

	mu             sync.Mutex
	maRequestSent  bool
	awaiting146    bool
	somSent        bool
	passedSections int

	stopCh chan struct{}
	log    logging.LeveledLogger
}

// New returns an Orchestrator ready to Start.
func New(cfg Config) *Orchestrator {
	cfg.applyDefaults()

	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	machine := statemachine.NewMachine(statemachine.Config{LoggerFactory: lf})
	manager := engine.NewManager(engine.Config{Publisher: cfg.PubSub, Machine: machine, Throttle: true, LoggerFactory: lf})

	o := &Orchestrator{
		cfg:      cfg,
		machine:  machine,
		manager:  manager,
		session:  handshake.NewOBUSession(cfg.OBUIdentity, cfg.RBCID, cfg.Roots),
		kpiLog:   kpi.NewLogger(lf),
		stopCh:   make(chan struct{}),
		log:      lf.NewLogger("obu"),
	}
	o.autostop = autostop.New(autostop.Config{
		Publisher:     cfg.PubSub,
		ActuatorTopic: trainTopic,
		StatusTopic:   cfg.statusTopic(),
		Cooldown:      cfg.AutoStopCooldown,
		Threshold:     cfg.AutoStopThreshold,
		LoggerFactory: lf,
	})

	o.registerHandlers()
	return o
}

// Machine exposes the session state machine, for tests and diagnostics.
func (o *Orchestrator) Machine() *statemachine.Machine { return o.machine }

// Manager exposes the ETCS engine, for tests and diagnostics.
func (o *Orchestrator) Manager() *engine.Manager { return o.manager }

// Start subscribes every topic the OBU owns, then initiates the
// handshake (spec.md §4.6).
func (o *Orchestrator) Start(ctx context.Context) error {
	o.manager.Start(ctx)

	if !o.machine.Transition(statemachine.EventConnected) {
		o.log.Warnf("obu: CONNECTED transition rejected from %s", o.machine.Current())
	}

	subs := []struct {
		topic   string
		handler func(topic string, payload []byte)
	}{
		{o.cfg.handshakeInTopic(), o.handleAU2},
		{o.cfg.rbcOutTopic(), o.handleETCSInbound},
		{o.cfg.sensorTopic(), o.handleSensorEvent},
		{aiAlertTopic, o.handleAIAlert},
		{aiAckTopic, o.handleAIAck},
		{videoPingTopic, o.handleVideoPing},
	}
	for _, s := range subs {
		if err := o.cfg.PubSub.Subscribe(s.topic, 2, s.handler); err != nil {
			return err
		}
	}

	go o.maRequestLoop(ctx)

	return o.beginHandshake()
}

// Stop halts the MA-request timer and the engine's outbound pump.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
	o.manager.Stop()
}

func (o *Orchestrator) beginHandshake() error {
	au1, err := o.session.BuildAU1()
	if err != nil {
		return err
	}
	payload, err := au1.Encode()
	if err != nil {
		return err
	}
	if err := o.cfg.PubSub.Publish(o.cfg.handshakeOutTopic(), payload, 2); err != nil {
		return err
	}
	o.machine.Transition(statemachine.EventAU1Sent)
	return nil
}

// handleAU2 completes the handshake: derive session keys, leak them to
// the bridge via KEY_UPDATE, then emit 155 to begin version exchange
// (spec.md §4.3, §4.6).
func (o *Orchestrator) handleAU2(topic string, payload []byte) {
	au2, err := handshake.DecodeAU2(payload)
	if err != nil {
		o.log.Warnf("obu: malformed AU2: %v", err)
		return
	}
	if err := o.session.HandleAU2(au2); err != nil {
		o.log.Warnf("obu: AU2 rejected: %v", err)
		return
	}

	keys := o.session.SessionKeys()
	ku := handshake.KeyUpdate{KS1: keys.KS1[:], KS2: keys.KS2[:], KS3: keys.KS3[:]}
	data, err := ku.Encode()
	if err != nil {
		o.log.Errorf("obu: encode KEY_UPDATE: %v", err)
		return
	}
	if err := o.cfg.PubSub.Publish(o.cfg.keysTopic(), data, 2); err != nil {
		o.log.Errorf("obu: publish KEY_UPDATE: %v", err)
		return
	}

	o.machine.Transition(statemachine.EventAU2Received)

	msg, err := o.manager.BuildFromTemplate(engine.NIDSessionEstablish, nil, engine.SourceLocalOBU)
	if err != nil {
		o.log.Errorf("obu: build 155: %v", err)
		return
	}
	if err := o.manager.SendThrottled(o.cfg.rbcInTopic(), msg, 2); err != nil {
		o.log.Errorf("obu: send 155: %v", err)
	}
}

// handleETCSInbound unmarshals a wire message from rbc/<id>/out and
// hands it to the engine for admit-set gating and per-NID dispatch.
func (o *Orchestrator) handleETCSInbound(topic string, payload []byte) {
	var msg engine.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		o.log.Warnf("obu: malformed inbound message: %v", err)
		return
	}
	if err := o.manager.HandleETCSMessage(&msg); err != nil {
		o.log.Debugf("obu: inbound NID %d not dispatched: %v", msg.NID(), err)
	}
}

// handleAIAck just closes the RTT loop diagnostically; the UI that
// would otherwise render it is out of scope (spec.md §1).
func (o *Orchestrator) handleAIAck(topic string, payload []byte) {
	o.log.Debugf("obu: AI_ACK received: %s", string(payload))
}

// maRequestLoop is the 1 s timer of spec.md §4.6: once the session has
// reached train-data exchange, emit Message 132 exactly once.
func (o *Orchestrator) maRequestLoop(ctx context.Context) {
	ticker := time.NewTicker(MARequestPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.maybeRequestMA()
		}
	}
}

func (o *Orchestrator) maybeRequestMA() {
	o.mu.Lock()
	if o.maRequestSent {
		o.mu.Unlock()
		return
	}
	state := o.machine.Current()
	if state != statemachine.TrainDataExchanged && state != statemachine.MARequestReady {
		o.mu.Unlock()
		return
	}
	o.maRequestSent = true
	o.mu.Unlock()

	msg, err := o.manager.BuildFromTemplate(engine.NIDMARequest, nil, engine.SourceLocalOBU)
	if err != nil {
		o.log.Errorf("obu: build 132: %v", err)
		return
	}
	if err := o.manager.SendThrottled(o.cfg.rbcInTopic(), msg, 2); err != nil {
		o.log.Errorf("obu: send 132: %v", err)
	}
}

// handleSensorEvent maps a physical sensor trigger to D_LRBG, emits
// Message 136, and arms the ack-wait latch (spec.md §4.6, §8 scenario 3).
func (o *Orchestrator) handleSensorEvent(topic string, payload []byte) {
	var ev sensorEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		o.log.Warnf("obu: malformed sensor event: %v", err)
		return
	}
	dist, ok := sensorDistances[ev.SensorID]
	if !ok {
		o.log.Warnf("obu: unknown sensor id %q", ev.SensorID)
		return
	}

	appMS := time.Now().UnixMilli()
	overrides := map[string]int64{"t_app_ms": appMS}
	if ev.TS != 0 {
		overrides["t_sensor_ms"] = ev.TS
	}

	msg, err := o.manager.BuildFromTemplate(engine.NIDPositionReport, overrides, engine.SourceLocalOBU)
	if err != nil {
		o.log.Errorf("obu: build 136: %v", err)
		return
	}
	msg.Values.SubPackets = map[string]*bitcodec.Values{
		"packet0": {Fields: map[string]int64{"NID_PACKET": 0, "Q_SCALE": 1, "D_LRBG": dist}},
	}

	o.mu.Lock()
	o.awaiting146 = true
	o.mu.Unlock()

	if o.machine.Current() == statemachine.MissionActive {
		o.machine.Transition(statemachine.EventMonitoringStarted)
	}

	if err := o.manager.SendThrottled(o.cfg.rbcInTopic(), msg, 2); err != nil {
		o.log.Errorf("obu: send 136: %v", err)
		return
	}

	o.emitPositionKPI(ev.SensorID, dist, appMS)
}

func (o *Orchestrator) emitPositionKPI(sensorID string, dist, appMS int64) {
	event := kpi.Event{NIDMessage: engine.NIDPositionReport, TAppMS: appMS, TSendMS: time.Now().UnixMilli()}
	o.kpiLog.Emit(event)

	payload, err := json.Marshal(struct {
		SensorID string `json:"sensor_id"`
		DLRBG    int64  `json:"d_lrbg"`
		TAppMS   int64  `json:"t_app_ms"`
	}{SensorID: sensorID, DLRBG: dist, TAppMS: appMS})
	if err != nil {
		return
	}
	_ = o.cfg.PubSub.Publish(o.cfg.kpiTopic(), payload, 0)
}

// handleAIAlert forwards one computer-vision obstacle alert to the
// auto-stop coordinator (spec.md §4.6 "Auto-stop coordinator").
func (o *Orchestrator) handleAIAlert(topic string, payload []byte) {
	var alert autostop.Alert
	if err := json.Unmarshal(payload, &alert); err != nil {
		o.log.Warnf("obu: malformed AI alert: %v", err)
		return
	}
	if err := o.autostop.HandleAlert(alert); err != nil {
		o.log.Errorf("obu: auto-stop: %v", err)
	}
}

// handleVideoPing echoes the ping payload back on the pong topic: the
// callback's own buffer, not an outer identifier.
func (o *Orchestrator) handleVideoPing(topic string, payload []byte) {
	if err := o.cfg.PubSub.Publish(videoPongTopic, payload, 0); err != nil {
		o.log.Warnf("obu: publish video pong: %v", err)
	}
}

// checkMissionComplete transitions to SESSION_TERMINATED and emits the
// end-of-mission/termination pair once enough position acks have
// landed (spec.md §4.6, §8 scenario 4).
func (o *Orchestrator) checkMissionComplete() {
	o.mu.Lock()
	done := o.passedSections >= o.cfg.TotalSections+1
	o.mu.Unlock()
	if !done {
		return
	}
	if !o.machine.Transition(statemachine.EventMissionComplete) {
		return
	}

	msg, err := o.manager.BuildFromTemplate(engine.NIDEndOfMission, nil, engine.SourceLocalOBU)
	if err == nil {
		_ = o.manager.SendThrottled(o.cfg.rbcInTopic(), msg, 2)
	}

	go func() {
		select {
		case <-time.After(MissionCompleteLinger):
		case <-o.stopCh:
			return
		}
		term, err := o.manager.BuildFromTemplate(engine.NIDSessionTerminate, nil, engine.SourceLocalOBU)
		if err != nil {
			return
		}
		_ = o.manager.SendThrottled(o.cfg.rbcInTopic(), term, 2)
	}()
}
