// Package kpi defines the structured RTT/position telemetry event shape
// named in original_source/kpiTable.py and pcap_port_kpis.py, and emits
// it through the ambient logger. File persistence is out of scope
// (spec.md Non-goals); the typed event and its log rendering are not.
package kpi

// Event is one telemetry record: a sent message's round trip through
// the OBU, the bridge, and back, or a position report's timing chain.
type Event struct {
	NIDMessage uint8
	MsgID      string

	TAppMS       int64 // t_app_ms: orchestrator build time
	TSendMS      int64 // t_send_ms: publish time
	TBridgeAppMS int64 // t_bridge_app_ms: reverse-bridge receipt of the queue delivery
	TBridgeSendMS int64 // t_bridge_send_ms: reverse-bridge publish onto pub/sub
	TRecvMS      int64 // t_recv_ms: counterpart receipt
}
