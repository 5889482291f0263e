package bridge

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
)

// Magic marks the start of the out-of-band metadata trailer appended
// after a Secure PDU (spec.md §4.9/§6): the ASCII bytes "~META".
var Magic = []byte{0x7E, 0x4D, 0x45, 0x54, 0x41}

// AppendTrailer appends MAGIC || len32be || json(fields) to pdu. The
// trailer is explicitly untrusted diagnostic data (spec.md §9): it is
// not covered by the PDU's MAC or CRC, and no state transition may
// depend on it.
func AppendTrailer(pdu []byte, fields map[string]any) ([]byte, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(pdu)+len(Magic)+4+len(data))
	out = append(out, pdu...)
	out = append(out, Magic...)

	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	out = append(out, lenBuf...)
	out = append(out, data...)
	return out, nil
}

// ExtractTrailer locates the last occurrence of Magic in blob and, if
// found with a well-formed length-prefixed JSON body, returns the
// preceding PDU bytes and the parsed trailer fields. ok is false if no
// trailer is present or it is malformed, in which case pdu is blob
// unchanged.
func ExtractTrailer(blob []byte) (pdu []byte, fields map[string]any, ok bool) {
	idx := bytes.LastIndex(blob, Magic)
	if idx < 0 {
		return blob, nil, false
	}

	rest := blob[idx+len(Magic):]
	if len(rest) < 4 {
		return blob, nil, false
	}
	n := binary.BigEndian.Uint32(rest[:4])
	if uint32(len(rest)-4) < n {
		return blob, nil, false
	}

	var parsed map[string]any
	if err := json.Unmarshal(rest[4:4+n], &parsed); err != nil {
		return blob, nil, false
	}
	return blob[:idx], parsed, true
}
