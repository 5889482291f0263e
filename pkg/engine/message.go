package engine

import (
	"encoding/json"
	"time"

	"github.com/etcsdemo/obu-etcs/pkg/bitcodec"
)

// Message is the ETCS Message (logical) of spec.md §3: a dictionary
// of named numeric fields plus nested sub-packets, stamped with the
// envelope fields needed for loop prevention and KPI telemetry. It is
// published as JSON on the pub/sub plane; the bridge is the only
// place it gets bit-packed into a Secure PDU.
type Message struct {
	Values *bitcodec.Values `json:"-"`
	Origin Source           `json:"-"`
	MsgID  string           `json:"msg_id,omitempty"`
}

// NewMessage returns an empty Message stamped with origin.
func NewMessage(origin Source) *Message {
	return &Message{Values: bitcodec.NewValues(), Origin: origin}
}

// NID returns the message's NID_MESSAGE field.
func (m *Message) NID() uint8 {
	v, _ := m.Values.Get("NID_MESSAGE")
	return uint8(v)
}

// Sequence returns the message's SEQUENCE field.
func (m *Message) Sequence() int64 {
	v, _ := m.Values.Get("SEQUENCE")
	return v
}

// wireMessage is Message's JSON shape: bitcodec.Values' parts under
// their own keys ("fields", "sections", "sub_packets") beside the
// envelope fields "origin" and "msg_id".
type wireMessage struct {
	Fields     map[string]int64            `json:"fields"`
	Sections   []map[string]int64          `json:"sections,omitempty"`
	SubPackets map[string]*bitcodec.Values `json:"sub_packets,omitempty"`
	Origin     string                      `json:"origin"`
	MsgID      string                      `json:"msg_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Fields:     m.Values.Fields,
		Sections:   m.Values.Sections,
		SubPackets: m.Values.SubPackets,
		Origin:     m.Origin.String(),
		MsgID:      m.MsgID,
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	origin, ok := ParseSource(w.Origin)
	if !ok {
		return ErrMissingOrigin
	}
	m.Origin = origin
	m.MsgID = w.MsgID
	m.Values = &bitcodec.Values{
		Fields:     w.Fields,
		Sections:   w.Sections,
		SubPackets: w.SubPackets,
	}
	if m.Values.Fields == nil {
		m.Values.Fields = make(map[string]int64)
	}
	return nil
}

// nowMillis is epoch milliseconds, the unit spec.md §4.5 uses for
// t_app_ms/t_send_ms.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// nowSeconds is epoch seconds, the unit spec.md §4.5 uses for
// T_TRAIN/T_TRAIN_ack.
func nowSeconds() int64 {
	return time.Now().Unix()
}
