package bitcodec

import "strings"

// Pack bit-packs values according to template, recursively packing any
// declared sub-packet present in values.SubPackets. See spec.md §4.1.
func Pack(t *Template, values *Values, table TemplateTable) ([]byte, error) {
	w := NewWriter()
	if err := packInto(w, t, values, table); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func packInto(w *Writer, t *Template, v *Values, table TemplateTable) error {
	i := 0
	n := len(t.Fields)

	for i < n && !t.Fields[i].Repeat {
		f := t.Fields[i]
		val := fieldValue(t, v, f.Name)
		if f.Name == "N_ITER" {
			val = int64(len(v.Sections))
		}
		if err := writeField(w, f, val); err != nil {
			return err
		}
		i++
	}

	var group []Field
	for i < n && t.Fields[i].Repeat {
		group = append(group, t.Fields[i])
		i++
	}
	if len(group) > 0 {
		w.AlignToByte()
		for _, sec := range v.Sections {
			for _, f := range group {
				base := strings.TrimSuffix(f.Name, "_k")
				val, ok := sec[base]
				if !ok {
					val = t.Defaults[base]
				}
				if err := writeField(w, f, val); err != nil {
					return err
				}
			}
		}
	}

	for i < n {
		f := t.Fields[i]
		val := fieldValue(t, v, f.Name)
		if err := writeField(w, f, val); err != nil {
			return err
		}
		i++
	}

	for _, name := range t.SubPackets {
		sub, ok := v.SubPackets[name]
		if !ok || sub == nil {
			continue
		}
		subTemplate, ok := table[name]
		if !ok {
			return ErrUnknownTemplate
		}
		w.AlignToByte()
		if err := packInto(w, subTemplate, sub, table); err != nil {
			return err
		}
	}

	return nil
}

func fieldValue(t *Template, v *Values, name string) int64 {
	if val, ok := v.Fields[name]; ok {
		return val
	}
	return t.Defaults[name]
}

func writeField(w *Writer, f Field, val int64) error {
	if val < 0 {
		return ErrOutOfRange
	}
	return w.WriteBits(uint64(val), f.Bits)
}

// Unpack mirrors Pack. On ErrInsufficientBits it returns the partial
// Values decoded so far alongside the error, per spec.md's non-fatal
// decode-failure policy: callers log the warning and use the partial
// result (or drop the message) rather than treating it as fatal.
func Unpack(t *Template, data []byte, table TemplateTable) (*Values, error) {
	r := NewReader(data)
	return unpackFrom(r, t, table)
}

func unpackFrom(r *Reader, t *Template, table TemplateTable) (*Values, error) {
	v := NewValues()
	i := 0
	n := len(t.Fields)

	for i < n && !t.Fields[i].Repeat {
		f := t.Fields[i]
		val, err := readField(r, f)
		if err != nil {
			return v, err
		}
		v.Fields[f.Name] = val
		i++
	}

	var group []Field
	for i < n && t.Fields[i].Repeat {
		group = append(group, t.Fields[i])
		i++
	}
	if len(group) > 0 {
		nIter := v.Fields["N_ITER"]
		r.AlignToByte()
		for s := int64(0); s < nIter; s++ {
			sec := make(map[string]int64, len(group))
			for _, f := range group {
				val, err := readField(r, f)
				if err != nil {
					return v, err
				}
				sec[strings.TrimSuffix(f.Name, "_k")] = val
			}
			v.Sections = append(v.Sections, sec)
		}
	}

	for i < n {
		f := t.Fields[i]
		val, err := readField(r, f)
		if err != nil {
			return v, err
		}
		v.Fields[f.Name] = val
		i++
	}

	for _, name := range t.SubPackets {
		subTemplate, ok := table[name]
		if !ok {
			continue
		}
		r.AlignToByte()
		nidByte, ok := r.PeekByte()
		if !ok {
			continue
		}
		if nidByte != subTemplate.NIDPacket {
			continue
		}
		sub, err := unpackFrom(r, subTemplate, table)
		v.SubPackets[name] = sub
		if err != nil {
			return v, err
		}
	}

	return v, nil
}

func readField(r *Reader, f Field) (int64, error) {
	u, err := r.ReadBits(f.Bits)
	if err != nil {
		return 0, err
	}
	return int64(u), nil
}
