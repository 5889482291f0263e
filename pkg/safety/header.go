package safety

// DefaultETY and DefaultMTI are the header field values used by every
// wrap call that does not override them (spec.md §4.2).
const (
	DefaultETY uint8 = 0
	DefaultMTI uint8 = 5
)

// Header is the one-byte safety-layer header prefixed to every PDU's
// body: [ETY:3][MTI:4][DIR:1].
type Header struct {
	ETY uint8
	MTI uint8
	Dir uint8
}

// Encode packs the header into a single byte.
func (h Header) Encode() byte {
	return byte((h.ETY << 5) | (h.MTI << 1) | (h.Dir & 1))
}

// DecodeHeader splits a header byte back into its fields.
func DecodeHeader(b byte) Header {
	return Header{
		ETY: (b >> 5) & 0x07,
		MTI: (b >> 1) & 0x0F,
		Dir: b & 0x01,
	}
}
