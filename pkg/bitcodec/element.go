package bitcodec

// Field describes one named, fixed-width bit field in a Template.
//
// Repeat marks fields that belong to the repeated section group of a
// template with an N_ITER field (Packet 15's section block is the only
// user of this in the message set, but the mechanism is generic).
type Field struct {
	Name   string
	Bits   int
	Repeat bool
}

// Template is a named record describing how to pack/unpack one ETCS
// message or sub-packet: an ordered field list, default values for
// fields absent from the caller-supplied Values, and the names of
// sub-packet templates that may be nested after the fixed fields.
//
// Fields before the first Repeat field are emitted/parsed once, in
// order. A contiguous run of Repeat fields forms the section group,
// emitted/parsed once per N_ITER. Fields after the group are emitted
// once, in order (this is where Packet 15's end-section block lives).
type Template struct {
	Name string

	// NIDPacket is the expected first-byte value when this template is
	// used as a sub-packet. Zero for top-level message templates, which
	// are selected by NID_MESSAGE instead.
	NIDPacket uint8

	Fields     []Field
	Defaults   map[string]int64
	SubPackets []string
}

// TemplateTable maps a sub-packet template name to its Template, used
// for the recursive decode of declared sub-packets.
type TemplateTable map[string]*Template

// Values is the decoded/to-be-encoded content of one Template
// instance: flat fields, an ordered list of section records for the
// repeated group, and at most one nested Values per declared
// sub-packet name.
type Values struct {
	Fields     map[string]int64     `json:"fields"`
	Sections   []map[string]int64   `json:"sections,omitempty"`
	SubPackets map[string]*Values   `json:"sub_packets,omitempty"`
}

// NewValues returns an empty Values ready for population.
func NewValues() *Values {
	return &Values{
		Fields:     make(map[string]int64),
		SubPackets: make(map[string]*Values),
	}
}

// Get returns a field's value, or false if absent.
func (v *Values) Get(name string) (int64, bool) {
	val, ok := v.Fields[name]
	return val, ok
}

// Set assigns a field's value.
func (v *Values) Set(name string, val int64) {
	v.Fields[name] = val
}
