package handshake

import "sync"

// Role is which side of AU1/AU2 a Session plays.
type Role int

const (
	RoleOBU Role = iota
	RoleRBC
)

func (r Role) String() string {
	switch r {
	case RoleOBU:
		return "OBU"
	case RoleRBC:
		return "RBC"
	default:
		return "Unknown"
	}
}

// State is the handshake sub-protocol's own tiny state machine. It is
// deliberately separate from pkg/statemachine's ten-state ETCS session
// machine: this one only tracks AU1/AU2 progress, while the session
// machine records the broader HANDSHAKE_INITIATED phase it lives
// inside of.
type State int

const (
	StateInit State = iota
	StateWaitingAU1 // RBC: created, has not yet seen AU1
	StateWaitingAU2 // OBU: sent AU1, waiting on AU2
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateWaitingAU1:
		return "WaitingAU1"
	case StateWaitingAU2:
		return "WaitingAU2"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// SessionKeys holds the three derived keys for handoff into a
// safety.KeySet.
type SessionKeys struct {
	KS1, KS2, KS3 [8]byte
}

// Session drives one side of the AU1/AU2 exchange and, on success,
// holds the derived session keys.
//
// Usage (OBU):
//
//	s := handshake.NewOBUSession(obuID, rbcID, roots)
//	au1, _ := s.BuildAU1()
//	// publish au1, receive au2
//	_ = s.HandleAU2(au2)
//	keys := s.SessionKeys()
//
// Usage (RBC):
//
//	s := handshake.NewRBCSession(obuID, rbcID, roots)
//	// receive au1
//	au2, _ := s.HandleAU1(au1)
//	// publish au2
//	keys := s.SessionKeys()
type Session struct {
	mu sync.Mutex

	role  Role
	state State

	obuIdentity string
	rbcIdentity string
	roots       RootKeys

	localNonce NoncePair
	peerNonce  NoncePair

	keys *SessionKeys
}

// NewOBUSession creates a handshake session as the OBU (initiator).
func NewOBUSession(obuIdentity, rbcIdentity string, roots RootKeys) *Session {
	return &Session{
		role:        RoleOBU,
		state:       StateInit,
		obuIdentity: obuIdentity,
		rbcIdentity: rbcIdentity,
		roots:       roots,
	}
}

// NewRBCSession creates a handshake session as the RBC (responder).
func NewRBCSession(obuIdentity, rbcIdentity string, roots RootKeys) *Session {
	return &Session{
		role:        RoleRBC,
		state:       StateWaitingAU1,
		obuIdentity: obuIdentity,
		rbcIdentity: rbcIdentity,
		roots:       roots,
	}
}

// BuildAU1 generates the OBU's nonce pair and returns AU1 (OBU only).
func (s *Session) BuildAU1() (AU1, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleOBU || s.state != StateInit {
		return AU1{}, ErrInvalidState
	}

	nonce, err := GenerateNoncePair()
	if err != nil {
		return AU1{}, err
	}
	s.localNonce = nonce
	s.state = StateWaitingAU2

	return AU1{
		OBUIdentity: s.obuIdentity,
		RBCIdentity: s.rbcIdentity,
		OBUNonce:    nonce,
	}, nil
}

// HandleAU1 processes an inbound AU1, generates the RBC's nonce pair,
// derives the session keys, and returns AU2 (RBC only).
func (s *Session) HandleAU1(msg AU1) (AU2, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleRBC || s.state != StateWaitingAU1 {
		return AU2{}, ErrInvalidState
	}
	if msg.RBCIdentity != s.rbcIdentity {
		s.state = StateFailed
		return AU2{}, ErrIdentityMismatch
	}

	s.peerNonce = msg.OBUNonce

	nonce, err := GenerateNoncePair()
	if err != nil {
		return AU2{}, err
	}
	s.localNonce = nonce

	if err := s.deriveKeys(s.peerNonce, nonce); err != nil {
		return AU2{}, err
	}
	s.state = StateComplete

	return AU2{
		OBUIdentity: s.obuIdentity,
		RBCIdentity: s.rbcIdentity,
		RBCNonce:    nonce,
	}, nil
}

// HandleAU2 processes an inbound AU2 and derives the session keys
// (OBU only).
func (s *Session) HandleAU2(msg AU2) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleOBU || s.state != StateWaitingAU2 {
		return ErrInvalidState
	}
	if msg.OBUIdentity != s.obuIdentity {
		s.state = StateFailed
		return ErrIdentityMismatch
	}

	s.peerNonce = msg.RBCNonce
	if err := s.deriveKeys(s.localNonce, s.peerNonce); err != nil {
		return err
	}
	s.state = StateComplete
	return nil
}

func (s *Session) deriveKeys(obuNonce, rbcNonce NoncePair) error {
	ks1, ks2, ks3, err := DeriveSessionKeys(s.roots, obuNonce, rbcNonce)
	if err != nil {
		return err
	}
	s.keys = &SessionKeys{KS1: ks1, KS2: ks2, KS3: ks3}
	return nil
}

// SessionKeys returns the derived keys, or nil if the handshake has
// not completed.
func (s *Session) SessionKeys() *SessionKeys {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
