package bitcodec

import "testing"

func simpleTemplate() *Template {
	return &Template{
		Name: "simple",
		Fields: []Field{
			{Name: "NID_MESSAGE", Bits: 8},
			{Name: "L_MESSAGE", Bits: 16},
			{Name: "FLAG", Bits: 1},
		},
		Defaults: map[string]int64{"NID_MESSAGE": 3},
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	tmpl := simpleTemplate()
	v := NewValues()
	v.Set("NID_MESSAGE", 3)
	v.Set("L_MESSAGE", 1234)
	v.Set("FLAG", 1)

	data, err := Pack(tmpl, v, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// 8 + 16 + 1 = 25 bits -> 4 bytes
	if len(data) != 4 {
		t.Fatalf("expected 4 bytes, got %d (%x)", len(data), data)
	}

	got, err := Unpack(tmpl, data, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	for _, f := range tmpl.Fields {
		want, _ := v.Get(f.Name)
		have, ok := got.Get(f.Name)
		if !ok || have != want {
			t.Errorf("field %s: want %d, got %d (present=%v)", f.Name, want, have, ok)
		}
	}
}

func TestPackOutOfRange(t *testing.T) {
	tmpl := &Template{Fields: []Field{{Name: "X", Bits: 4}}}
	v := NewValues()
	v.Set("X", 16) // 2^4 == 16, out of range for 4 bits
	if _, err := Pack(tmpl, v, nil); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestPackNegativeOutOfRange(t *testing.T) {
	tmpl := &Template{Fields: []Field{{Name: "X", Bits: 4}}}
	v := NewValues()
	v.Set("X", -1)
	if _, err := Pack(tmpl, v, nil); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestUnpackInsufficientBitsReturnsPartial(t *testing.T) {
	tmpl := &Template{Fields: []Field{
		{Name: "A", Bits: 8},
		{Name: "B", Bits: 16},
	}}
	data := []byte{0x42} // only 8 bits, B needs 16 more

	v, err := Unpack(tmpl, data, nil)
	if err != ErrInsufficientBits {
		t.Fatalf("expected ErrInsufficientBits, got %v", err)
	}
	got, ok := v.Get("A")
	if !ok || got != 0x42 {
		t.Fatalf("expected partial field A=0x42, got %d ok=%v", got, ok)
	}
	if _, ok := v.Get("B"); ok {
		t.Fatalf("field B should not be present in partial result")
	}
}

// sectionTemplate models a minimal Packet 15-shaped template: a header
// field, N_ITER, a repeated section group (field name carries the _k
// suffix per spec.md), and an end-section field after the group.
func sectionTemplate() *Template {
	return &Template{
		Name: "packet15",
		Fields: []Field{
			{Name: "NID_PACKET", Bits: 8},
			{Name: "N_ITER", Bits: 5},
			{Name: "L_SECTION_k", Bits: 15, Repeat: true},
			{Name: "Q_SECTIONTIMER_k", Bits: 1, Repeat: true},
			{Name: "L_ENDSECTION", Bits: 15},
		},
		NIDPacket: 15,
	}
}

func TestRepeatedSectionsRoundTrip(t *testing.T) {
	tmpl := sectionTemplate()
	v := NewValues()
	v.Set("NID_PACKET", 15)
	v.Set("L_ENDSECTION", 500)
	v.Sections = []map[string]int64{
		{"L_SECTION": 100, "Q_SECTIONTIMER": 0},
		{"L_SECTION": 200, "Q_SECTIONTIMER": 1},
		{"L_SECTION": 300, "Q_SECTIONTIMER": 0},
	}

	data, err := Pack(tmpl, v, nil)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got, err := Unpack(tmpl, data, nil)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	if n, _ := got.Get("N_ITER"); n != 3 {
		t.Fatalf("expected N_ITER=3, got %d", n)
	}
	if len(got.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(got.Sections))
	}
	for i, want := range v.Sections {
		have := got.Sections[i]
		if have["L_SECTION"] != want["L_SECTION"] || have["Q_SECTIONTIMER"] != want["Q_SECTIONTIMER"] {
			t.Errorf("section %d mismatch: want %v, got %v", i, want, have)
		}
	}
	if end, _ := got.Get("L_ENDSECTION"); end != 500 {
		t.Fatalf("expected L_ENDSECTION=500, got %d", end)
	}

	// Repeated section block must be byte-aligned before it starts:
	// header (8+5=13 bits) pads to 16 bits (2 bytes) before sections.
	headerWriter := NewWriter()
	headerWriter.WriteBits(15, 8)
	headerWriter.WriteBits(3, 5)
	if headerWriter.BitLen() != 13 {
		t.Fatalf("sanity: expected 13 header bits, got %d", headerWriter.BitLen())
	}
}

func TestSubPacketLookaheadMismatchSkips(t *testing.T) {
	sub := &Template{
		Name:      "packet2",
		NIDPacket: 2,
		Fields: []Field{
			{Name: "NID_PACKET", Bits: 8},
			{Name: "M_VERSION", Bits: 8},
		},
	}
	base := &Template{
		Name:       "msg32",
		Fields:     []Field{{Name: "NID_MESSAGE", Bits: 8}},
		SubPackets: []string{"packet2"},
	}
	table := TemplateTable{"packet2": sub}

	// Encode base only, with a trailing byte that is NOT NID_PACKET=2.
	data := []byte{32, 99}

	v, err := Unpack(base, data, table)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if _, ok := v.SubPackets["packet2"]; ok {
		t.Fatalf("expected packet2 to be skipped on NID_PACKET mismatch")
	}
}

func TestSubPacketLookaheadMatchDecodes(t *testing.T) {
	sub := &Template{
		Name:      "packet2",
		NIDPacket: 2,
		Fields: []Field{
			{Name: "NID_PACKET", Bits: 8},
			{Name: "M_VERSION", Bits: 8},
		},
	}
	base := &Template{
		Name:       "msg32",
		Fields:     []Field{{Name: "NID_MESSAGE", Bits: 8}},
		SubPackets: []string{"packet2"},
	}
	table := TemplateTable{"packet2": sub}

	v := NewValues()
	v.Set("NID_MESSAGE", 32)
	subVals := NewValues()
	subVals.Set("NID_PACKET", 2)
	subVals.Set("M_VERSION", 7)
	v.SubPackets["packet2"] = subVals

	data, err := Pack(base, v, table)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got, err := Unpack(base, data, table)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	p2, ok := got.SubPackets["packet2"]
	if !ok {
		t.Fatalf("expected packet2 sub-packet to decode")
	}
	if ver, _ := p2.Get("M_VERSION"); ver != 7 {
		t.Fatalf("expected M_VERSION=7, got %d", ver)
	}
}
