package safety

import (
	"encoding/binary"

	"github.com/etcsdemo/obu-etcs/pkg/bitcodec"
)

// WrapOptions carries the header fields a caller may override. The
// zero value selects spec.md's defaults (ETY=0, MTI=5).
type WrapOptions struct {
	ETY uint8
	MTI uint8
}

func (o WrapOptions) header(dir uint8) Header {
	ety, mti := o.ETY, o.MTI
	if ety == 0 && mti == 0 {
		mti = DefaultMTI
	}
	return Header{ETY: ety, MTI: mti, Dir: dir}
}

// Wrap bit-packs values according to template (recursing into any
// declared sub-packets via table, e.g. Packet 15 nested under a
// movement-authority message), then encapsulates the result per
// spec.md §4.2: one header byte, the packed payload, a truncated MAC,
// and a trailing CRC-16 over everything preceding it.
//
// The payload's first field must be NID_MESSAGE; Wrap does not enforce
// the field's position, but Unwrap assumes payload[0] is the NID used
// to select the session key, matching every template in this module.
func Wrap(keys *KeySet, template *bitcodec.Template, values *bitcodec.Values, table bitcodec.TemplateTable, dir uint8, opts WrapOptions) ([]byte, error) {
	payload, err := bitcodec.Pack(template, values, table)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, ErrTooShort
	}

	nid := payload[0]
	key, err := keys.selectKey(nid)
	if err != nil {
		return nil, err
	}

	mac, err := computeMAC(key, payload)
	if err != nil {
		return nil, err
	}

	hdr := opts.header(dir).Encode()

	body := make([]byte, 0, 1+len(payload)+macSize)
	body = append(body, hdr)
	body = append(body, payload...)
	body = append(body, mac...)

	crc := ComputeCRC16(body)
	pdu := make([]byte, len(body)+2)
	copy(pdu, body)
	binary.BigEndian.PutUint16(pdu[len(body):], crc)
	return pdu, nil
}

// Unwrap validates a PDU's CRC and MAC and returns its payload (the
// bit-packed ETCS message, unchanged from what Wrap packed). The
// caller is responsible for looking up the right Template by
// payload[0] (NID_MESSAGE) and calling bitcodec.Unpack.
//
// Verification order is CRC first, then MAC: a corrupted PDU almost
// always fails the cheap CRC check, so the MAC's constant-time compare
// only runs on frames that look structurally sound.
func Unwrap(keys *KeySet, pdu []byte) ([]byte, error) {
	if len(pdu) < minPDUSize {
		return nil, ErrTooShort
	}

	body := pdu[:len(pdu)-2]
	wantCRC := binary.BigEndian.Uint16(pdu[len(pdu)-2:])
	if ComputeCRC16(body) != wantCRC {
		return nil, ErrCrcMismatch
	}

	mac := body[len(body)-macSize:]
	payload := body[1 : len(body)-macSize]
	if len(payload) == 0 {
		return nil, ErrTooShort
	}

	nid := payload[0]
	key, err := keys.selectKey(nid)
	if err != nil {
		return nil, err
	}

	ok, err := verifyMAC(key, payload, mac)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMacMismatch
	}

	return payload, nil
}
