package engine

// Source is the typed replacement for the original string `origin`
// sentinel (spec.md §9 Design Notes: "replace the string sentinel
// with a typed variant Source::{Wire, LocalObu, LocalRbc, Internal}").
// Only Wire is admitted from the wire by protocol peers; the bridge
// is the sole writer of Wire.
type Source int

const (
	SourceWire Source = iota
	SourceLocalOBU
	SourceLocalRBC
	SourceInternal
)

func (s Source) String() string {
	switch s {
	case SourceWire:
		return "amqp"
	case SourceLocalOBU:
		return "obu"
	case SourceLocalRBC:
		return "rbc"
	case SourceInternal:
		return "system"
	default:
		return "unknown"
	}
}

// ParseSource maps the wire-compatible string spellings from
// spec.md §3 (`obu`, `rbc`, `amqp`, `system`) onto Source, where
// `amqp` is the bridge's wire marker and becomes SourceWire.
func ParseSource(s string) (Source, bool) {
	switch s {
	case "amqp":
		return SourceWire, true
	case "obu":
		return SourceLocalOBU, true
	case "rbc":
		return SourceLocalRBC, true
	case "system":
		return SourceInternal, true
	default:
		return 0, false
	}
}
