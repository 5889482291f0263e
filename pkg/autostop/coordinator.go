// Package autostop turns AI obstacle alerts into a debounced actuator
// stop command (spec.md §4.6/§4.11): mutable state behind a mutex, a
// command handler that validates then acts, and a callback standing in
// for the actuator effect (here, a topic publish instead of a
// persisted attribute).
package autostop

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/logging"
)

// DefaultCooldown is the suppression window between stop commands
// (spec.md §4.6).
const DefaultCooldown = 1500 * time.Millisecond

// DefaultThreshold is the minimum confidence required to stop when the
// alert carries one (spec.md §4.6).
const DefaultThreshold = 0.25

// Publisher is the pub/sub sink the coordinator publishes onto.
type Publisher interface {
	Publish(topic string, payload []byte, qos int) error
}

// Alert is one inbound AI obstacle alert (obu/ai/alert).
type Alert struct {
	Label   string   `json:"label"`
	Conf    *float64 `json:"conf,omitempty"`
	MsgID   string   `json:"msg_id,omitempty"`
	FrameID string   `json:"frame_id,omitempty"`
}

// StatusEvent is the TRAIN_EVENT published alongside the stop command.
type StatusEvent struct {
	Event            string   `json:"event"`
	Label            string   `json:"label"`
	Conf             *float64 `json:"conf,omitempty"`
	MsgID            string   `json:"msg_id,omitempty"`
	FrameID          string   `json:"frame_id,omitempty"`
	TAutoStopSendMS  int64    `json:"t_auto_stop_send_ms"`
	TS               int64    `json:"ts"`
}

// Config configures a Coordinator.
type Config struct {
	Publisher Publisher

	ActuatorTopic string // default "obu/train"
	StatusTopic   string // e.g. "obu/TRAIN1/status"

	Cooldown  time.Duration // default DefaultCooldown
	Threshold float64       // default DefaultThreshold

	// Clock is injectable for deterministic cooldown tests.
	Clock func() time.Time

	LoggerFactory logging.LoggerFactory
}

// Coordinator applies the cooldown/threshold policy and emits the stop
// command plus status event.
type Coordinator struct {
	mu sync.Mutex

	publisher     Publisher
	actuatorTopic string
	statusTopic   string
	cooldown      time.Duration
	threshold     float64
	clock         func() time.Time
	lastStop      time.Time

	log logging.LeveledLogger
}

// New returns a ready Coordinator.
func New(cfg Config) *Coordinator {
	actuatorTopic := cfg.ActuatorTopic
	if actuatorTopic == "" {
		actuatorTopic = "obu/train"
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = DefaultCooldown
	}
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	return &Coordinator{
		publisher:     cfg.Publisher,
		actuatorTopic: actuatorTopic,
		statusTopic:   cfg.StatusTopic,
		cooldown:      cooldown,
		threshold:     threshold,
		clock:         clock,
		log:           lf.NewLogger("autostop"),
	}
}

// HandleAlert applies spec.md §4.6's policy: a present confidence below
// threshold never stops, regardless of cooldown; otherwise the stop is
// suppressed if the last stop was within the cooldown window, else it
// fires and arms the cooldown.
func (c *Coordinator) HandleAlert(alert Alert) error {
	if alert.Conf != nil && *alert.Conf < c.threshold {
		c.log.Debugf("autostop: confidence %.2f below threshold %.2f, ignoring", *alert.Conf, c.threshold)
		return nil
	}

	c.mu.Lock()
	now := c.clock()
	if !c.lastStop.IsZero() && now.Sub(c.lastStop) < c.cooldown {
		c.mu.Unlock()
		c.log.Debugf("autostop: suppressed, within %s cooldown", c.cooldown)
		return nil
	}
	c.lastStop = now
	c.mu.Unlock()

	if err := c.publisher.Publish(c.actuatorTopic, []byte("0"), 1); err != nil {
		return err
	}

	event := StatusEvent{
		Event:           "AUTO_STOP_OBSTACLE",
		Label:           alert.Label,
		Conf:            alert.Conf,
		MsgID:           alert.MsgID,
		FrameID:         alert.FrameID,
		TAutoStopSendMS: now.UnixMilli(),
		TS:              now.Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.publisher.Publish(c.statusTopic, payload, 1)
}
