package safety

import "errors"

// Safety layer errors (spec.md §7 taxonomy: Safety::{NoKeys,
// CrcMismatch, MacMismatch, TooShort}).
var (
	ErrTooShort          = errors.New("safety: PDU shorter than header+mac+crc minimum")
	ErrCrcMismatch       = errors.New("safety: CRC-16 mismatch")
	ErrMacMismatch       = errors.New("safety: MAC mismatch")
	ErrNoKeys            = errors.New("safety: no session keys installed")
	ErrInvalidKeyLength  = errors.New("safety: session key must be 8 bytes")
)

// minPDUSize is header(1) + mac(4) + crc(2), the size of a PDU with a
// zero-length payload; Unwrap rejects such a PDU with ErrTooShort, so
// the smallest PDU it accepts is one byte longer.
const minPDUSize = 1 + 4 + 2
