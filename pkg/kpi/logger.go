package kpi

import "github.com/pion/logging"

// Logger emits Events as structured log lines via pion/logging, the
// same ambient logging stack every other package uses.
type Logger struct {
	log logging.LeveledLogger
}

// NewLogger returns a Logger writing through factory's "kpi" logger.
// If factory is nil, the default pion/logging factory is used.
func NewLogger(factory logging.LoggerFactory) *Logger {
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}
	return &Logger{log: factory.NewLogger("kpi")}
}

// Emit logs e as one structured info line.
func (l *Logger) Emit(e Event) {
	l.log.Infof(
		"kpi nid=%d msg_id=%q t_app_ms=%d t_send_ms=%d t_bridge_app_ms=%d t_bridge_send_ms=%d t_recv_ms=%d",
		e.NIDMessage, e.MsgID, e.TAppMS, e.TSendMS, e.TBridgeAppMS, e.TBridgeSendMS, e.TRecvMS,
	)
}
