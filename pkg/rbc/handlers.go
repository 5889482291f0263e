package rbc

import (
	"github.com/etcsdemo/obu-etcs/pkg/engine"
	"github.com/etcsdemo/obu-etcs/pkg/statemachine"
)

// registerHandlers installs the RBC-side canonical responses (spec.md
// §4.5 "On RBC side, symmetric: inbound 155/159/129/157/132/136/156
// produce 32/38/8/41/146/39 respectively"). Message 132 is handled
// specially (arms the grant button rather than an immediate ack); the
// remaining pairings and their state-machine events are this file's
// resolution of that under-specified symmetry, chosen to keep the
// shared TRANSITIONS table (spec.md §4.4) satisfied on both sides.
func (o *Orchestrator) registerHandlers() {
	o.manager.RegisterHandler(engine.NIDSessionEstablish, o.handleSessionEstablish)
	o.manager.RegisterHandler(engine.NIDKeysAuth, o.handleKeysAuth)
	o.manager.RegisterHandler(engine.NIDTrainData, o.handleTrainData)
	o.manager.RegisterHandler(engine.NIDTrainAcceptance, o.handleTrainAcceptance)
	o.manager.RegisterHandler(engine.NIDMARequest, o.handleMARequest)
	o.manager.RegisterHandler(engine.NIDPositionReport, o.handlePositionReport)
	o.manager.RegisterHandler(engine.NIDGenericAck, o.handleGenericAck)
	o.manager.RegisterHandler(engine.NIDEndOfMission, o.handleEndOfMission)
	o.manager.RegisterHandler(engine.NIDSessionTerminate, o.handleSessionTerminate)
}

// handleSessionEstablish: inbound 155 -> reply 32, M32_SENT (2->3).
func (o *Orchestrator) handleSessionEstablish(m *engine.Manager, msg *engine.Message) error {
	version, err := o.manager.BuildFromTemplate(engine.NIDSystemVersion, map[string]int64{"M_VERSION": SupportedVersion}, engine.SourceLocalRBC)
	if err != nil {
		return err
	}
	if err := o.manager.SendThrottled(o.cfg.rbcOutTopic(), version, 2); err != nil {
		return err
	}
	m.Machine().Transition(statemachine.EventM32Sent)
	return nil
}

// handleKeysAuth: inbound 159 -> reply 38, M38_SENT. If still at
// VERSION_EXCHANGED, first fire M32_ACKED (3->4): the OBU's 146(ref=32)
// ack precedes 159 on the wire, so by the time 159 lands the version
// handshake is implicitly acknowledged.
func (o *Orchestrator) handleKeysAuth(m *engine.Manager, msg *engine.Message) error {
	if m.Machine().Current() == statemachine.VersionExchanged {
		m.Machine().Transition(statemachine.EventM32Acked)
	}

	ack, err := o.manager.BuildFromTemplate(engine.NIDSessionAck, nil, engine.SourceLocalRBC)
	if err != nil {
		return err
	}
	if err := o.manager.SendThrottled(o.cfg.rbcOutTopic(), ack, 2); err != nil {
		return err
	}
	m.Machine().Transition(statemachine.EventM38Sent)
	return nil
}

// handleTrainData: inbound 129 -> reply 8, M8_ACKED (4->5).
func (o *Orchestrator) handleTrainData(m *engine.Manager, msg *engine.Message) error {
	ack, err := o.manager.BuildFromTemplate(engine.NIDTrainDataAck, nil, engine.SourceLocalRBC)
	if err != nil {
		return err
	}
	if err := o.manager.SendThrottled(o.cfg.rbcOutTopic(), ack, 2); err != nil {
		return err
	}
	m.Machine().Transition(statemachine.EventM8Acked)
	return nil
}

// handleTrainAcceptance: inbound 157 -> reply 41. No local state
// transition fires here (spec.md's TRANSITIONS table defines M41_SENT
// only from SESSION_ESTABLISHED, a state this orchestrator has already
// left by the time 157 arrives); the OBU advances instead, via its own
// M41_ACKED on receiving our 41.
func (o *Orchestrator) handleTrainAcceptance(m *engine.Manager, msg *engine.Message) error {
	accepted, err := o.manager.BuildFromTemplate(engine.NIDTrainAccepted, nil, engine.SourceLocalRBC)
	if err != nil {
		return err
	}
	return o.manager.SendThrottled(o.cfg.rbcOutTopic(), accepted, 2)
}

// handleMARequest: inbound 132 arms the operator grant button. No
// immediate reply; Grant() emits Message 3 once the operator acts.
func (o *Orchestrator) handleMARequest(m *engine.Manager, msg *engine.Message) error {
	o.mu.Lock()
	o.maRequestReceived = true
	o.mu.Unlock()
	return nil
}

// handlePositionReport: inbound 136 -> reply 146(ref=136); the first
// occurrence fires MONITORING_STARTED (7->8), subsequent ones
// POSITION_UPDATE (8->8).
func (o *Orchestrator) handlePositionReport(m *engine.Manager, msg *engine.Message) error {
	ack, err := o.manager.BuildFromTemplate(engine.NIDGenericAck, map[string]int64{"NID_MESSAGE_REF": int64(engine.NIDPositionReport)}, engine.SourceLocalRBC)
	if err != nil {
		return err
	}
	if err := o.manager.SendThrottled(o.cfg.rbcOutTopic(), ack, 2); err != nil {
		return err
	}

	if m.Machine().Current() == statemachine.MissionActive {
		m.Machine().Transition(statemachine.EventMonitoringStarted)
	} else {
		m.Machine().Transition(statemachine.EventPositionUpdate)
	}
	return nil
}

// handleGenericAck dispatches on NID_MESSAGE_REF: ref=41 is the OBU's
// ack of our Message 41, advancing TRAIN_DATA_EXCHANGED ->
// MA_REQUEST_READY (5->6). Other refs carry no RBC-side transition.
func (o *Orchestrator) handleGenericAck(m *engine.Manager, msg *engine.Message) error {
	ref, _ := msg.Values.Get("NID_MESSAGE_REF")
	if uint8(ref) == engine.NIDTrainAccepted {
		m.Machine().Transition(statemachine.EventM41Acked)
	}
	return nil
}

// handleEndOfMission: inbound 150 -> MISSION_COMPLETE (8->9).
func (o *Orchestrator) handleEndOfMission(m *engine.Manager, msg *engine.Message) error {
	m.Machine().Transition(statemachine.EventMissionComplete)
	return nil
}

// handleSessionTerminate: inbound 156 -> reply 39.
func (o *Orchestrator) handleSessionTerminate(m *engine.Manager, msg *engine.Message) error {
	ack, err := o.manager.BuildFromTemplate(engine.NIDTerminationAck, nil, engine.SourceLocalRBC)
	if err != nil {
		return err
	}
	return o.manager.SendThrottled(o.cfg.rbcOutTopic(), ack, 2)
}
