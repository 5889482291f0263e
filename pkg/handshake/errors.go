package handshake

import (
	"errors"
	"time"
)

var (
	ErrInvalidState     = errors.New("handshake: message not valid in current state")
	ErrInvalidRole      = errors.New("handshake: method not valid for this role")
	ErrIdentityMismatch = errors.New("handshake: peer identity does not match expected RBC/OBU id")
	ErrSessionNotReady  = errors.New("handshake: session keys requested before AU2 completion")
)

// DefaultTimeout is the handshake's HANDSHAKE_INITIATED → DISCONNECTED
// timeout. Not specified by the source; spec.md §9 Open Questions
// suggests ≈5s, which this module adopts as the documented default.
const DefaultTimeout = 5 * time.Second
