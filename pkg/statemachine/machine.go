package statemachine

import (
	"sync"
	"time"

	"github.com/pion/logging"
)

// Transition is one entry of the append-only history (spec.md §3).
// Never read by the protocol; diagnostics only.
type Transition struct {
	From      State
	To        State
	Event     Event
	Timestamp time.Time
}

// Hook is an optional callback run on entry/exit of a state.
type Hook func(s State)

// Machine is the deterministic ETCS session state machine (spec.md
// §4.4): a sparse transition table, append-only history, and
// admit-set gating, all guarded by a single mutex.
type Machine struct {
	mu sync.Mutex

	current State
	history []Transition

	onEnter map[State]Hook
	onExit  map[State]Hook

	log logging.LeveledLogger
}

// Config carries the optional onEnter/onExit hooks and logger.
type Config struct {
	OnEnter       map[State]Hook
	OnExit        map[State]Hook
	LoggerFactory logging.LoggerFactory
}

// NewMachine returns a Machine starting in Disconnected.
func NewMachine(cfg Config) *Machine {
	lf := cfg.LoggerFactory
	if lf == nil {
		lf = logging.NewDefaultLoggerFactory()
	}
	m := &Machine{
		current: Disconnected,
		onEnter: cfg.OnEnter,
		onExit:  cfg.OnExit,
		log:     lf.NewLogger("statemachine"),
	}
	return m
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// History returns a copy of the transition history.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Transition attempts (from, event) -> next. If undefined, it is a
// no-op returning false (spec.md §4.4: "if the pair is undefined,
// return false without side effect and log an error").
func (m *Machine) Transition(event Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	next, ok := lookup(from, event)
	if !ok {
		m.log.Warnf("statemachine: no transition for state=%s event=%s", from, event)
		return false
	}

	if hook := m.onExit[from]; hook != nil {
		hook(from)
	}

	m.history = append(m.history, Transition{
		From:      from,
		To:        next,
		Event:     event,
		Timestamp: time.Now(),
	})
	m.current = next

	if hook := m.onEnter[next]; hook != nil {
		hook(next)
	}

	m.log.Debugf("statemachine: %s --%s--> %s", from, event, next)
	return true
}

// ValidateMessage reports whether nid is admitted inbound while in
// the current state.
func (m *Machine) ValidateMessage(nid uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := AdmitSet(m.current)[nid]
	return ok
}

// Reset unconditionally returns to Disconnected and clears history
// (spec.md §4.4).
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Disconnected
	m.history = nil
	if hook := m.onEnter[Disconnected]; hook != nil {
		hook(Disconnected)
	}
}
