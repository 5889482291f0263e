package obu

import (
	"github.com/etcsdemo/obu-etcs/pkg/bitcodec"
	"github.com/etcsdemo/obu-etcs/pkg/engine"
	"github.com/etcsdemo/obu-etcs/pkg/statemachine"
)

// registerHandlers installs the OBU-side canonical responses of
// spec.md §4.5 onto the ETCS engine, keyed by inbound NID_MESSAGE.
func (o *Orchestrator) registerHandlers() {
	o.manager.RegisterHandler(engine.NIDSystemVersion, o.handleSystemVersion)
	o.manager.RegisterHandler(engine.NIDSessionAck, o.handleSessionAck)
	o.manager.RegisterHandler(engine.NIDTrainDataAck, o.handleTrainDataAck)
	o.manager.RegisterHandler(engine.NIDTrainAccepted, o.handleTrainAccepted)
	o.manager.RegisterHandler(engine.NIDGenericAck, o.handleGenericAck)
	o.manager.RegisterHandler(engine.NIDMovementAuthority, o.handleMovementAuthority)
}

func (o *Orchestrator) sendAck(refNID uint8) {
	msg, err := o.manager.BuildFromTemplate(engine.NIDGenericAck, map[string]int64{"NID_MESSAGE_REF": int64(refNID)}, engine.SourceLocalOBU)
	if err != nil {
		o.log.Errorf("obu: build 146(ref=%d): %v", refNID, err)
		return
	}
	if err := o.manager.SendThrottled(o.cfg.rbcInTopic(), msg, 2); err != nil {
		o.log.Errorf("obu: send 146(ref=%d): %v", refNID, err)
	}
}

// handleSystemVersion is canonical response #1: on version match, ack
// plus initiate keys/train-data, then fire M32_ACKED; on mismatch,
// reject and drop the session back to DISCONNECTED.
func (o *Orchestrator) handleSystemVersion(m *engine.Manager, msg *engine.Message) error {
	version, _ := msg.Values.Get("M_VERSION")
	if version != SupportedVersion {
		rej, err := o.manager.BuildFromTemplate(engine.NIDVersionReject, map[string]int64{"NID_MESSAGE_REF": int64(engine.NIDSystemVersion)}, engine.SourceLocalOBU)
		if err == nil {
			_ = o.manager.SendThrottled(o.cfg.rbcInTopic(), rej, 2)
		}
		m.Machine().Transition(statemachine.EventVersionMismatch)
		return nil
	}

	o.sendAck(engine.NIDSystemVersion)

	keysAuth, err := o.manager.BuildFromTemplate(engine.NIDKeysAuth, nil, engine.SourceLocalOBU)
	if err == nil {
		_ = o.manager.SendThrottled(o.cfg.rbcInTopic(), keysAuth, 2)
	}
	trainData, err := o.manager.BuildFromTemplate(engine.NIDTrainData, nil, engine.SourceLocalOBU)
	if err == nil {
		_ = o.manager.SendThrottled(o.cfg.rbcInTopic(), trainData, 2)
	}

	m.Machine().Transition(statemachine.EventM32Acked)
	return nil
}

// handleSessionAck is canonical response #2: just ack.
func (o *Orchestrator) handleSessionAck(m *engine.Manager, msg *engine.Message) error {
	o.sendAck(engine.NIDSessionAck)
	return nil
}

// handleTrainDataAck is canonical response #3: ack, and on the first
// occurrence also send the train-acceptance message (Packet 0).
func (o *Orchestrator) handleTrainDataAck(m *engine.Manager, msg *engine.Message) error {
	o.sendAck(engine.NIDTrainDataAck)

	o.mu.Lock()
	first := !o.somSent
	o.somSent = true
	o.mu.Unlock()

	if first {
		acceptance, err := o.manager.BuildFromTemplate(engine.NIDTrainAcceptance, nil, engine.SourceLocalOBU)
		if err == nil {
			acceptance.Values.SubPackets = map[string]*bitcodec.Values{
				"packet0": {Fields: map[string]int64{"NID_PACKET": 0, "Q_SCALE": 1, "D_LRBG": 0}},
			}
			_ = o.manager.SendThrottled(o.cfg.rbcInTopic(), acceptance, 2)
		}
	}

	m.Machine().Transition(statemachine.EventM8Received)
	return nil
}

// handleTrainAccepted is canonical response #4: ack with the ref, then
// fire M41_ACKED (spec.md §8 scenario 2).
func (o *Orchestrator) handleTrainAccepted(m *engine.Manager, msg *engine.Message) error {
	o.sendAck(engine.NIDTrainAccepted)
	m.Machine().Transition(statemachine.EventM41Acked)
	return nil
}

// handleGenericAck is canonical response #5. The only ref the OBU ever
// receives in practice is 136 (the RBC's ack of a position report);
// that case advances passedSections (spec.md §8 scenario 3).
func (o *Orchestrator) handleGenericAck(m *engine.Manager, msg *engine.Message) error {
	ref, _ := msg.Values.Get("NID_MESSAGE_REF")

	if uint8(ref) == engine.NIDPositionReport {
		o.mu.Lock()
		if o.awaiting146 {
			o.passedSections++
			o.awaiting146 = false
		}
		o.mu.Unlock()
	}

	m.Machine().Transition(statemachine.EventPositionUpdate)
	o.checkMissionComplete()
	return nil
}

// handleMovementAuthority is canonical response #6: no reply, just the
// M3_RECEIVED transition into MISSION_ACTIVE.
func (o *Orchestrator) handleMovementAuthority(m *engine.Manager, msg *engine.Message) error {
	m.Machine().Transition(statemachine.EventM3Received)
	return nil
}
