package handshake

import "testing"

func testRoots() RootKeys {
	return RootKeys{
		K1: [8]byte{1, 1, 1, 1, 1, 1, 1, 1},
		K2: [8]byte{2, 2, 2, 2, 2, 2, 2, 2},
		K3: [8]byte{3, 3, 3, 3, 3, 3, 3, 3},
	}
}

func TestHandshakeHappyPath(t *testing.T) {
	roots := testRoots()
	obu := NewOBUSession("OBU-1", "RBC-1", roots)
	rbc := NewRBCSession("OBU-1", "RBC-1", roots)

	au1, err := obu.BuildAU1()
	if err != nil {
		t.Fatalf("BuildAU1: %v", err)
	}
	if obu.State() != StateWaitingAU2 {
		t.Fatalf("expected WaitingAU2, got %v", obu.State())
	}

	au2, err := rbc.HandleAU1(au1)
	if err != nil {
		t.Fatalf("HandleAU1: %v", err)
	}
	if rbc.State() != StateComplete {
		t.Fatalf("expected RBC Complete, got %v", rbc.State())
	}

	if err := obu.HandleAU2(au2); err != nil {
		t.Fatalf("HandleAU2: %v", err)
	}
	if obu.State() != StateComplete {
		t.Fatalf("expected OBU Complete, got %v", obu.State())
	}

	obuKeys := obu.SessionKeys()
	rbcKeys := rbc.SessionKeys()
	if obuKeys == nil || rbcKeys == nil {
		t.Fatalf("expected both sides to derive session keys")
	}
	if obuKeys.KS1 != rbcKeys.KS1 || obuKeys.KS2 != rbcKeys.KS2 || obuKeys.KS3 != rbcKeys.KS3 {
		t.Fatalf("OBU and RBC derived different session keys:\nOBU=%+v\nRBC=%+v", obuKeys, rbcKeys)
	}
	if obuKeys.KS1 == obuKeys.KS2 || obuKeys.KS2 == obuKeys.KS3 {
		t.Fatalf("expected KS1/KS2/KS3 to be distinct")
	}
}

func TestHandshakeIdentityMismatch(t *testing.T) {
	roots := testRoots()
	obu := NewOBUSession("OBU-1", "RBC-1", roots)
	rbc := NewRBCSession("OBU-1", "RBC-WRONG", roots)

	au1, err := obu.BuildAU1()
	if err != nil {
		t.Fatalf("BuildAU1: %v", err)
	}
	if _, err := rbc.HandleAU1(au1); err != ErrIdentityMismatch {
		t.Fatalf("expected ErrIdentityMismatch, got %v", err)
	}
}

func TestHandshakeWrongRoleRejected(t *testing.T) {
	roots := testRoots()
	obu := NewOBUSession("OBU-1", "RBC-1", roots)
	if _, err := obu.HandleAU1(AU1{}); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState for HandleAU1 on an OBU session, got %v", err)
	}
}

func TestEncodeDecodeKeyUpdate(t *testing.T) {
	ku := KeyUpdate{KS1: []byte{1, 2, 3, 4, 5, 6, 7, 8}, KS2: []byte{8, 7, 6, 5, 4, 3, 2, 1}, KS3: []byte{9, 9, 9, 9, 9, 9, 9, 9}}
	data, err := ku.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeKeyUpdate(data)
	if err != nil {
		t.Fatalf("DecodeKeyUpdate: %v", err)
	}
	if string(got.KS1) != string(ku.KS1) {
		t.Fatalf("KS1 round-trip mismatch")
	}
}
