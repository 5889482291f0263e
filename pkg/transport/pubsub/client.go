// Package pubsub wraps an MQTT client behind the small interface
// pkg/engine, pkg/obu, pkg/rbc and pkg/bridge actually need: publish at
// a QoS, subscribe a topic to a handler. Config struct, LoggerFactory,
// and a mutex-guarded subscription map, with the paho client's own
// callback dispatch in place of a hand-rolled read loop.
package pubsub

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pion/logging"
)

// Handler processes one message delivered on a subscribed topic.
type Handler func(topic string, payload []byte)

// Client is the pub/sub surface used throughout this repository. The
// paho-backed implementation and the in-memory Mock both satisfy it,
// and it is a superset of engine.Publisher.
type Client interface {
	Publish(topic string, payload []byte, qos int) error
	Subscribe(topic string, qos int, handler Handler) error
	Close()
}

// Config configures a broker-backed Client.
type Config struct {
	// BrokerURL, e.g. "tcp://localhost:1883".
	BrokerURL string
	ClientID  string

	ConnectTimeout time.Duration // default 10s

	LoggerFactory logging.LoggerFactory
}

// mqttClient adapts github.com/eclipse/paho.mqtt.golang to Client.
type mqttClient struct {
	conn mqtt.Client
	log  logging.LeveledLogger

	mu   sync.Mutex
	subs map[string]Handler
}

// New dials the broker at cfg.BrokerURL and returns a connected Client.
func New(cfg Config) (Client, error) {
	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	log := lf.NewLogger("pubsub")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(timeout)

	c := &mqttClient{subs: make(map[string]Handler), log: log}
	opts.SetDefaultPublishHandler(c.dispatch)

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: timed out connecting to %s", ErrConnectFailed, cfg.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	c.conn = conn
	return c, nil
}

func (c *mqttClient) dispatch(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	h, ok := c.subs[msg.Topic()]
	c.mu.Unlock()
	if !ok {
		return
	}
	h(msg.Topic(), msg.Payload())
}

// Publish implements Client and engine.Publisher.
func (c *mqttClient) Publish(topic string, payload []byte, qos int) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}
	token := c.conn.Publish(topic, byte(qos), false, payload)
	token.Wait()
	return token.Error()
}

// Subscribe registers handler for topic at qos.
func (c *mqttClient) Subscribe(topic string, qos int, handler Handler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}
	token := c.conn.Subscribe(topic, byte(qos), func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

// Close disconnects the underlying client.
func (c *mqttClient) Close() {
	if c.conn != nil && c.conn.IsConnected() {
		c.conn.Disconnect(250)
	}
}
