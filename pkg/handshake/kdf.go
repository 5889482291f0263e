package handshake

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
)

// handshakeSalt is the fixed HKDF salt agreed between OBU and RBC
// implementations, resolving spec.md §9's key-derivation Open
// Question (any deterministic mix of the six nonces and three root
// keys is acceptable, provided both sides compute the same one).
const handshakeSalt = "ETCS-HANDSHAKE-v1"

// RootKeys is the pre-shared key triple both parties hold before the
// handshake, one 8-byte secret per derived session key.
type RootKeys struct {
	K1, K2, K3 [8]byte
}

// DeriveSessionKeys computes KS1/KS2/KS3 from the handshake's two
// nonce pairs and the pre-shared root keys:
//
//	KSn = HKDF-SHA256(
//	  ikm  = RootKey[n] || OBUNonce.L || OBUNonce.R || RBCNonce.L || RBCNonce.R,
//	  salt = "ETCS-HANDSHAKE-v1",
//	  info = "KS" + n,
//	  L    = 8 bytes,
//	)
//
// Both OBU and RBC run this over the same nonce pairs after AU2, so
// the result is identical on both sides without any further exchange.
func DeriveSessionKeys(roots RootKeys, obuNonce, rbcNonce NoncePair) (ks1, ks2, ks3 [8]byte, err error) {
	nonceBytes := encodeNonces(obuNonce, rbcNonce)

	if ks1, err = deriveOne(roots.K1[:], nonceBytes, "KS1"); err != nil {
		return
	}
	if ks2, err = deriveOne(roots.K2[:], nonceBytes, "KS2"); err != nil {
		return
	}
	ks3, err = deriveOne(roots.K3[:], nonceBytes, "KS3")
	return
}

func encodeNonces(obu, rbc NoncePair) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint32(b[0:4], obu.L)
	binary.BigEndian.PutUint32(b[4:8], obu.R)
	binary.BigEndian.PutUint32(b[8:12], rbc.L)
	binary.BigEndian.PutUint32(b[12:16], rbc.R)
	return b
}

func deriveOne(rootKey, nonceBytes []byte, info string) ([8]byte, error) {
	var out [8]byte
	ikm := append(append([]byte(nil), rootKey...), nonceBytes...)
	reader := hkdf.New(sha256.New, ikm, []byte(handshakeSalt), []byte(info))
	if _, err := io.ReadFull(reader, out[:]); err != nil {
		return out, err
	}
	return out, nil
}
