// Package obu implements the On-Board Unit orchestrator of spec.md
// §4.6: session lifecycle, MA request, sensor-to-position-report,
// mission completion, and auto-stop, wired atop pkg/engine,
// pkg/statemachine, and pkg/handshake.
package obu

import (
	"time"

	"github.com/pion/logging"

	"github.com/etcsdemo/obu-etcs/pkg/autostop"
	"github.com/etcsdemo/obu-etcs/pkg/handshake"
	"github.com/etcsdemo/obu-etcs/pkg/transport/pubsub"
)

// SupportedVersion is the M_VERSION value the OBU accepts from Message
// 32 (spec.md §4.5: "if M_VERSION matches template expectation").
const SupportedVersion = int64(1)

// MARequestPollInterval is the OBU's 1 s MA-request timer (spec.md
// §4.6).
const MARequestPollInterval = time.Second

// MissionCompleteLinger is the pause between emitting 150 and 156
// (spec.md §4.6 "waits 1 s").
const MissionCompleteLinger = time.Second

// DefaultTotalSections matches the worked example of spec.md §8
// scenario 4 (totalSections=3).
const DefaultTotalSections = 3

// Config configures an Orchestrator.
type Config struct {
	PubSub pubsub.Client

	RBCID       string
	OBUIdentity string
	TrainID     string

	Roots handshake.RootKeys

	TotalSections int

	AutoStopCooldown  time.Duration
	AutoStopThreshold float64

	LoggerFactory logging.LoggerFactory
}

func (c *Config) applyDefaults() {
	if c.TotalSections == 0 {
		c.TotalSections = DefaultTotalSections
	}
	if c.AutoStopCooldown == 0 {
		c.AutoStopCooldown = autostop.DefaultCooldown
	}
	if c.AutoStopThreshold == 0 {
		c.AutoStopThreshold = autostop.DefaultThreshold
	}
}

func (c *Config) handshakeOutTopic() string { return "obu/" + c.RBCID + "/handshake" }
func (c *Config) handshakeInTopic() string  { return "rbc/" + c.RBCID + "/handshake" }
func (c *Config) keysTopic() string         { return "obu/" + c.RBCID + "/keys" }
func (c *Config) rbcInTopic() string        { return "rbc/" + c.RBCID + "/in" }
func (c *Config) rbcOutTopic() string       { return "rbc/" + c.RBCID + "/out" }
func (c *Config) sensorTopic() string       { return "esp32/" + c.RBCID + "/sensor" }
func (c *Config) statusTopic() string       { return "obu/" + c.TrainID + "/status" }
func (c *Config) kpiTopic() string          { return "kpi/" + c.RBCID + "/pos" }

const (
	aiAlertTopic   = "obu/ai/alert"
	aiAckTopic     = "obu/ai/ack"
	trainTopic     = "obu/train"
	videoPingTopic = "obu/video/ping"
	videoPongTopic = "obu/video/pong"
)

// sensorDistances is the fixed S1..S8 -> D_LRBG mapping (spec.md
// §6 "Sensor→distance mapping").
var sensorDistances = map[string]int64{
	"S1": 1000, "S2": 2000, "S3": 3000, "S4": 4000,
	"S5": 5000, "S6": 6000, "S7": 7000, "S8": 8000,
}
