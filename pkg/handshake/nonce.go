package handshake

import (
	"crypto/rand"
	"encoding/binary"
)

// NoncePair is a party's left/right 32-bit nonce, the atomic unit
// exchanged in AU1/AU2 (spec.md §4.3).
type NoncePair struct {
	L uint32 `json:"l"`
	R uint32 `json:"r"`
}

// GenerateNoncePair draws a fresh L/R pair from a CSPRNG.
func GenerateNoncePair() (NoncePair, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return NoncePair{}, err
	}
	return NoncePair{
		L: binary.BigEndian.Uint32(buf[0:4]),
		R: binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}
