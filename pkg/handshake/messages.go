package handshake

import "encoding/json"

// AU1 is the OBU→RBC handshake opener, carried on
// obu/<RBC_ID>/handshake, outside the safety layer (spec.md §4.3: "The
// handshake path bypasses the safety layer").
type AU1 struct {
	OBUIdentity string    `json:"obu_identity"`
	RBCIdentity string    `json:"rbc_identity"`
	OBUNonce    NoncePair `json:"obu_nonce"`
}

// AU2 is the RBC→OBU handshake reply, carried on
// rbc/<RBC_ID>/handshake.
type AU2 struct {
	OBUIdentity string    `json:"obu_identity"`
	RBCIdentity string    `json:"rbc_identity"`
	RBCNonce    NoncePair `json:"rbc_nonce"`
}

// KeyUpdate is the OBU's plaintext session-key leak onto
// obu/<RBC_ID>/keys, the only point session keys cross the wire in
// the clear (spec.md §4.3).
type KeyUpdate struct {
	KS1 []byte `json:"ks1"`
	KS2 []byte `json:"ks2"`
	KS3 []byte `json:"ks3"`
}

func (m AU1) Encode() ([]byte, error)      { return json.Marshal(m) }
func (m AU2) Encode() ([]byte, error)      { return json.Marshal(m) }
func (m KeyUpdate) Encode() ([]byte, error) { return json.Marshal(m) }

func DecodeAU1(data []byte) (AU1, error) {
	var m AU1
	err := json.Unmarshal(data, &m)
	return m, err
}

func DecodeAU2(data []byte) (AU2, error) {
	var m AU2
	err := json.Unmarshal(data, &m)
	return m, err
}

func DecodeKeyUpdate(data []byte) (KeyUpdate, error) {
	var m KeyUpdate
	err := json.Unmarshal(data, &m)
	return m, err
}
