package wire

import "testing"

func TestArpRoundTrip(t *testing.T) {
	req := NewArpRequest(Mac{1, 2, 3, 4, 5, 6}, IPv4Addr{192, 168, 0, 31}, IPv4Addr{192, 168, 0, 30})
	encoded, err := EncodeArp(req)
	if err != nil {
		t.Fatalf("EncodeArp: %v", err)
	}
	decoded, err := DecodeArp(encoded)
	if err != nil {
		t.Fatalf("DecodeArp: %v", err)
	}
	if decoded != req {
		t.Fatalf("DecodeArp(EncodeArp(req)) = %+v, want %+v", decoded, req)
	}
}

func TestArpReplyRoundTrip(t *testing.T) {
	reply := NewArpReply(
		Mac{6, 5, 4, 3, 2, 1}, IPv4Addr{192, 168, 0, 30},
		Mac{1, 2, 3, 4, 5, 6}, IPv4Addr{192, 168, 0, 31},
	)
	encoded, err := EncodeArp(reply)
	if err != nil {
		t.Fatalf("EncodeArp: %v", err)
	}
	decoded, err := DecodeArp(encoded)
	if err != nil {
		t.Fatalf("DecodeArp: %v", err)
	}
	if decoded != reply {
		t.Fatalf("DecodeArp(EncodeArp(reply)) = %+v, want %+v", decoded, reply)
	}
}

func TestArpDecodeRejectsHlenMismatch(t *testing.T) {
	req := NewArpRequest(Mac{1, 2, 3, 4, 5, 6}, IPv4Addr{10, 0, 0, 1}, IPv4Addr{10, 0, 0, 2})
	encoded, err := EncodeArp(req)
	if err != nil {
		t.Fatalf("EncodeArp: %v", err)
	}
	encoded[4] = 8 // claim hlen=8 while htype still says Ethernet (hlen=6)
	if _, err := DecodeArp(encoded); err == nil {
		t.Fatal("DecodeArp accepted a packet with mismatched hlen")
	}
}

func TestArpDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeArp(make([]byte, 7)); err == nil {
		t.Fatal("DecodeArp accepted a 7-byte buffer")
	}
}

func TestArpRejectsIPv6PType(t *testing.T) {
	pkt := NewArpRequest(Mac{1, 2, 3, 4, 5, 6}, IPv4Addr{10, 0, 0, 1}, IPv4Addr{10, 0, 0, 2})
	pkt.PType = ArpPTypeIPv6
	if _, err := EncodeArp(pkt); err == nil {
		t.Fatal("EncodeArp accepted an IPv6 ptype its 4-byte address fields cannot carry")
	}

	encoded, err := EncodeArp(NewArpRequest(Mac{1, 2, 3, 4, 5, 6}, IPv4Addr{10, 0, 0, 1}, IPv4Addr{10, 0, 0, 2}))
	if err != nil {
		t.Fatalf("EncodeArp: %v", err)
	}
	encoded[2], encoded[3] = 0x86, 0xdd // rewrite ptype to IPv6
	if _, err := DecodeArp(encoded); err == nil {
		t.Fatal("DecodeArp accepted an IPv6 ptype packet")
	}
}
