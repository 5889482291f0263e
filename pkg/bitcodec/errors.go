package bitcodec

import "errors"

// Codec errors (spec.md CodecError taxonomy).
var (
	// ErrOutOfRange is returned by Pack when a field value does not fit
	// in its declared bit width, or is non-numeric.
	ErrOutOfRange = errors.New("bitcodec: value out of range for field width")

	// ErrInsufficientBits is returned by Unpack when the remaining bit
	// stream is too short to decode the next declared field. Callers
	// treat this as a non-fatal warning: decoding stops and whatever was
	// already decoded is returned.
	ErrInsufficientBits = errors.New("bitcodec: insufficient bits remaining")

	// ErrUnknownTemplate is returned when a sub-packet name has no entry
	// in the supplied template table.
	ErrUnknownTemplate = errors.New("bitcodec: unknown sub-packet template")

	// ErrSectionCountMismatch reports an N_ITER that disagrees with the
	// supplied sections. Pack does not return it: Pack always writes
	// N_ITER as len(Sections), ignoring any N_ITER value in Fields.
	ErrSectionCountMismatch = errors.New("bitcodec: N_ITER does not match sections length")
)
