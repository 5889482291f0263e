package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/etcsdemo/obu-etcs/pkg/statemachine"
)

// MinMessageInterval is the throttle's minimum inter-publish gap
// (spec.md §4.5).
const MinMessageInterval = 100 * time.Millisecond

// Publisher is the pub/sub sink the engine publishes onto. OBU/RBC
// orchestrators supply a thin adapter over their MQTT client.
type Publisher interface {
	Publish(topic string, payload []byte, qos int) error
}

// Handler processes one admitted inbound message for a given NID and
// drives the state machine; registered per NID_MESSAGE by the owning
// orchestrator (spec.md §4.5 "Canonical responses").
type Handler func(m *Manager, msg *Message) error

// Config configures a Manager.
type Config struct {
	Publisher     Publisher
	Machine       *statemachine.Machine
	Throttle      bool // zero value (false) publishes immediately; true enables the gated pump
	QueueSize     int  // default 256
	LoggerFactory logging.LoggerFactory
}

type outboundItem struct {
	topic string
	msg   *Message
	qos   int
}

// Manager is the ETCS Engine of spec.md §4.5: templates, sequence
// counter, processed-message dedup-on-send, and a throttled outbound
// pump, with per-protocol handler registration and a mutex-guarded
// dispatch table.
type Manager struct {
	mu sync.Mutex

	publisher Publisher
	machine   *statemachine.Machine
	throttle  bool

	sequence  int64
	processed map[int64]struct{}
	sentTable *SentTable

	handlers map[uint8]Handler

	outbound chan outboundItem
	stopCh   chan struct{}
	wg       sync.WaitGroup
	started  bool

	log logging.LeveledLogger
}

// NewManager returns a Manager ready to have handlers registered and
// Start called.
func NewManager(cfg Config) *Manager {
	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = 256
	}
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}

	throttle := cfg.Throttle
	return &Manager{
		publisher: cfg.Publisher,
		machine:   cfg.Machine,
		throttle:  throttle,
		processed: make(map[int64]struct{}),
		sentTable: NewSentTable(),
		handlers:  make(map[uint8]Handler),
		outbound:  make(chan outboundItem, queueSize),
		stopCh:    make(chan struct{}),
		log:       lf.NewLogger("engine"),
	}
}

// RegisterHandler installs the handler for nid.
func (m *Manager) RegisterHandler(nid uint8, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[nid] = h
}

// SentTable exposes the manager's RTT tracking table.
func (m *Manager) SentTable() *SentTable {
	return m.sentTable
}

// Machine exposes the manager's state machine.
func (m *Manager) Machine() *statemachine.Machine {
	return m.machine
}

// nextSequence returns the next monotonically increasing SEQUENCE
// value.
func (m *Manager) nextSequence() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence++
	return m.sequence
}

// BuildFromTemplate merges templates[nid].Defaults with overrides,
// auto-stamps SEQUENCE and the absent timestamp fields, and tags the
// result with origin (spec.md §4.5 "buildFromTemplate").
func (m *Manager) BuildFromTemplate(nid uint8, overrides map[string]int64, origin Source) (*Message, error) {
	tmpl, ok := Templates[nid]
	if !ok {
		return nil, ErrTemplateMissing
	}

	msg := NewMessage(origin)
	for k, v := range tmpl.Defaults {
		msg.Values.Fields[k] = v
	}
	for k, v := range overrides {
		msg.Values.Fields[k] = v
	}

	if _, ok := msg.Values.Fields["T_TRAIN"]; !ok {
		msg.Values.Fields["T_TRAIN"] = nowSeconds()
	}
	if _, ok := msg.Values.Fields["T_TRAIN_ack"]; !ok {
		msg.Values.Fields["T_TRAIN_ack"] = nowSeconds()
	}
	msg.Values.Fields["SEQUENCE"] = m.nextSequence()

	return msg, nil
}

// Start launches the throttled outbound pump. It runs until ctx is
// done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pump(ctx)
}

// Stop halts the outbound pump and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

// pump is the timer-gated sender: a dedicated goroutine draining the
// bounded outbound channel, enforcing MinMessageInterval between
// publishes and the dedup/admit-set checks spec.md §4.5 assigns to the
// send path.
func (m *Manager) pump(ctx context.Context) {
	defer m.wg.Done()
	var lastSend time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case item := <-m.outbound:
			if gap := time.Since(lastSend); gap < MinMessageInterval {
				select {
				case <-time.After(MinMessageInterval - gap):
				case <-ctx.Done():
					return
				case <-m.stopCh:
					return
				}
			}
			if m.shouldSend(item.msg) {
				m.publish(item)
			}
			lastSend = time.Now()
		}
	}
}

// shouldSend applies the send-path dedup and admit-set gates (spec.md
// §4.5): skip if SEQUENCE already processed, skip if the current
// state does not admit the message's NID.
func (m *Manager) shouldSend(msg *Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := msg.Sequence()
	if _, seen := m.processed[seq]; seen {
		m.log.Debugf("engine: SEQUENCE %d already processed, dropping outbound duplicate", seq)
		return false
	}
	if m.machine != nil && !m.machine.ValidateMessage(msg.NID()) {
		m.log.Warnf("engine: NID %d not admitted in state %s, dropping outbound message", msg.NID(), m.machine.Current())
		return false
	}
	m.processed[seq] = struct{}{}
	return true
}

func (m *Manager) publish(item outboundItem) {
	payload, err := json.Marshal(item.msg)
	if err != nil {
		m.log.Errorf("engine: marshal outbound message: %v", err)
		return
	}
	if err := m.publisher.Publish(item.topic, payload, item.qos); err != nil {
		m.log.Errorf("engine: publish to %s: %v", item.topic, err)
		return
	}
	m.sentTable.Record(item.msg.NID(), nowMillis())
}

// SendThrottled publishes msg to topic at qos, either immediately (if
// throttling is disabled) or via the gated pump (spec.md §4.5).
func (m *Manager) SendThrottled(topic string, msg *Message, qos int) error {
	if !m.throttle {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err := m.publisher.Publish(topic, payload, qos); err != nil {
			return err
		}
		m.sentTable.Record(msg.NID(), nowMillis())
		return nil
	}

	select {
	case m.outbound <- outboundItem{topic: topic, msg: msg, qos: qos}:
		return nil
	default:
		m.log.Warnf("engine: outbound queue full, dropping message NID=%d", msg.NID())
		return nil
	}
}

// HandleETCSMessage implements spec.md §4.5's handleETCSMessage: the
// loop guard, admit-set gate, and per-NID dispatch.
func (m *Manager) HandleETCSMessage(msg *Message) error {
	if msg.Values == nil {
		return ErrMissingNID
	}
	if _, ok := msg.Values.Get("NID_MESSAGE"); !ok {
		return ErrMissingNID
	}

	if msg.Origin != SourceWire {
		return ErrLoopback
	}

	nid := msg.NID()
	if m.machine != nil && !m.machine.ValidateMessage(nid) {
		return ErrMessageNotAdmitted
	}

	m.mu.Lock()
	handler, ok := m.handlers[nid]
	m.mu.Unlock()
	if !ok {
		return ErrNoHandler
	}

	return handler(m, msg)
}
