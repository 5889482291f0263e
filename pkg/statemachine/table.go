package statemachine

// transitionKey identifies one cell of the sparse TRANSITIONS map.
type transitionKey struct {
	from  State
	event Event
}

// transitions is the exact 2-D sparse map from spec.md §4.4.
var transitions = map[transitionKey]State{
	{Disconnected, EventConnected}: Ready,
	{Disconnected, EventReset}:     Disconnected,

	{Ready, EventAU1Sent}:    HandshakeInitiated,
	{Ready, EventDisconnect}: Disconnected,

	{HandshakeInitiated, EventAU2Received}: VersionExchanged,
	{HandshakeInitiated, EventM32Sent}:     VersionExchanged,
	{HandshakeInitiated, EventTimeout}:     Disconnected,

	{VersionExchanged, EventM32Acked}:        SessionEstablished,
	{VersionExchanged, EventM38Sent}:         VersionExchanged,
	{VersionExchanged, EventVersionMismatch}: Disconnected,

	{SessionEstablished, EventM8Received}:        TrainDataExchanged,
	{SessionEstablished, EventM8Acked}:            TrainDataExchanged,
	{SessionEstablished, EventM38Sent}:             SessionEstablished,
	{SessionEstablished, EventM38Received}:         SessionEstablished,
	{SessionEstablished, EventM41Sent}:              MARequestReady,
	{SessionEstablished, EventSessionTerminated}: Disconnected,

	{TrainDataExchanged, EventM3Received}:    MissionActive,
	{TrainDataExchanged, EventM41Acked}:       MARequestReady,
	{TrainDataExchanged, EventM41Received}:    TrainDataExchanged,
	{TrainDataExchanged, EventM8Received}:     TrainDataExchanged,
	{TrainDataExchanged, EventM8Acked}:         TrainDataExchanged,
	{TrainDataExchanged, EventTrainRejected}: Disconnected,

	{MARequestReady, EventM3Sent}:     MissionActive,
	{MARequestReady, EventM3Received}: MissionActive,

	{MissionActive, EventMonitoringStarted}: MissionMonitoring,
	{MissionActive, EventMAExpired}:         Disconnected,
	{MissionActive, EventEmergencyStop}:     Disconnected,

	{MissionMonitoring, EventPositionUpdate}:  MissionMonitoring,
	{MissionMonitoring, EventMissionComplete}: SessionTerminated,

	{SessionTerminated, EventReset}: Disconnected,
}

// lookup returns the next state for (from, event) and whether the
// pair is defined.
func lookup(from State, event Event) (State, bool) {
	next, ok := transitions[transitionKey{from, event}]
	return next, ok
}
