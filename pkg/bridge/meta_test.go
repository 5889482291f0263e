package bridge

import (
	"bytes"
	"testing"
)

func TestAppendExtractTrailerRoundTrip(t *testing.T) {
	pdu := []byte{0x01, 0x02, 0x03}
	fields := map[string]any{"msg_id": "X-42", "label": "car"}

	blob, err := AppendTrailer(pdu, fields)
	if err != nil {
		t.Fatalf("AppendTrailer: %v", err)
	}

	gotPDU, gotFields, ok := ExtractTrailer(blob)
	if !ok {
		t.Fatalf("expected trailer to be found")
	}
	if !bytes.Equal(gotPDU, pdu) {
		t.Fatalf("expected pdu %v, got %v", pdu, gotPDU)
	}
	if gotFields["msg_id"] != "X-42" || gotFields["label"] != "car" {
		t.Fatalf("expected both trailer fields preserved, got %v", gotFields)
	}
}

func TestExtractTrailerAbsent(t *testing.T) {
	blob := []byte{0x01, 0x02, 0x03}
	pdu, fields, ok := ExtractTrailer(blob)
	if ok {
		t.Fatalf("expected no trailer found")
	}
	if !bytes.Equal(pdu, blob) || fields != nil {
		t.Fatalf("expected blob returned unchanged when no trailer present")
	}
}
