package statemachine

// State is one of the ten ETCS session lifecycle states (spec.md §3).
type State int

const (
	Disconnected State = iota
	Ready
	HandshakeInitiated
	VersionExchanged
	SessionEstablished
	TrainDataExchanged
	MARequestReady
	MissionActive
	MissionMonitoring
	SessionTerminated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Ready:
		return "READY"
	case HandshakeInitiated:
		return "HANDSHAKE_INITIATED"
	case VersionExchanged:
		return "VERSION_EXCHANGED"
	case SessionEstablished:
		return "SESSION_ESTABLISHED"
	case TrainDataExchanged:
		return "TRAIN_DATA_EXCHANGED"
	case MARequestReady:
		return "MA_REQUEST_READY"
	case MissionActive:
		return "MISSION_ACTIVE"
	case MissionMonitoring:
		return "MISSION_MONITORING"
	case SessionTerminated:
		return "SESSION_TERMINATED"
	default:
		return "UNKNOWN"
	}
}

// Event is one of the named transition triggers from spec.md §4.4's
// transition table.
type Event string

const (
	EventConnected         Event = "CONNECTED"
	EventReset             Event = "RESET"
	EventAU1Sent           Event = "AU1_SENT"
	EventDisconnect        Event = "DISCONNECT"
	EventAU2Received       Event = "AU2_RECEIVED"
	EventM32Sent           Event = "M32_SENT"
	EventTimeout           Event = "TIMEOUT"
	EventM32Acked          Event = "M32_ACKED"
	EventM38Sent           Event = "M38_SENT"
	EventVersionMismatch   Event = "VERSION_MISMATCH"
	EventM8Received        Event = "M8_RECEIVED"
	EventM8Acked           Event = "M8_ACKED"
	EventM38Received       Event = "M38_RECEIVED"
	EventM41Sent           Event = "M41_SENT"
	EventSessionTerminated Event = "SESSION_TERMINATED"
	EventM3Received        Event = "M3_RECEIVED"
	EventM41Acked          Event = "M41_ACKED"
	EventM41Received       Event = "M41_RECEIVED"
	EventTrainRejected     Event = "TRAIN_REJECTED"
	EventM3Sent            Event = "M3_SENT"
	EventMonitoringStarted Event = "MONITORING_STARTED"
	EventMAExpired         Event = "MA_EXPIRED"
	EventEmergencyStop     Event = "EMERGENCY_STOP"
	EventPositionUpdate    Event = "POSITION_UPDATE"
	EventMissionComplete   Event = "MISSION_COMPLETE"
)

// admitSets is the per-state set of NID_MESSAGE values admitted
// inbound, exactly as tabulated in spec.md §GLOSSARY.
var admitSets = map[State]map[uint8]struct{}{
	Disconnected:        set(),
	Ready:               set(), // AU1 has no NID_MESSAGE; admitted via the handshake path, not this table
	HandshakeInitiated:  set(32, 155),
	VersionExchanged:    set(32, 38, 146, 155, 159),
	SessionEstablished:  set(8, 38, 129, 146, 155, 159, 157),
	TrainDataExchanged:  set(3, 41, 157, 146, 40),
	MARequestReady:      set(132, 146, 129, 3),
	MissionActive:       set(15, 16, 42, 132, 136),
	MissionMonitoring:   set(136, 146, 150, 156),
	SessionTerminated:   set(150, 156, 39),
}

func set(nids ...uint8) map[uint8]struct{} {
	m := make(map[uint8]struct{}, len(nids))
	for _, n := range nids {
		m[n] = struct{}{}
	}
	return m
}

// AdmitSet returns the NID_MESSAGE values admitted inbound while in s.
func AdmitSet(s State) map[uint8]struct{} {
	return admitSets[s]
}
