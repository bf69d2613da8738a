package wire

import (
	"bytes"
	"testing"
)

func TestUDPRoundTrip(t *testing.T) {
	p := UDPPacket{SrcPort: 5000, DstPort: 53, Payload: []byte("hello")}
	encoded := EncodeUDP(p)
	decoded, err := DecodeUDP(encoded)
	if err != nil {
		t.Fatalf("DecodeUDP: %v", err)
	}
	if decoded.SrcPort != p.SrcPort || decoded.DstPort != p.DstPort {
		t.Fatalf("decoded ports = (%d,%d), want (%d,%d)", decoded.SrcPort, decoded.DstPort, p.SrcPort, p.DstPort)
	}
	if !bytes.Equal(decoded.Payload, p.Payload) {
		t.Fatalf("decoded payload = %q, want %q", decoded.Payload, p.Payload)
	}
}

// TestEncodeUDPIncludesPayload pins that EncodeUDP emits the payload
// bytes after the header, not just a length field that claims them.
func TestEncodeUDPIncludesPayload(t *testing.T) {
	p := UDPPacket{SrcPort: 1, DstPort: 2, Payload: []byte{1, 2, 3, 4, 5}}
	encoded := EncodeUDP(p)
	if got, want := len(encoded), 8+len(p.Payload); got != want {
		t.Fatalf("len(EncodeUDP(p)) = %d, want %d (header+payload)", got, want)
	}
	if !bytes.Equal(encoded[8:], p.Payload) {
		t.Fatalf("EncodeUDP(p)[8:] = %v, want payload %v", encoded[8:], p.Payload)
	}
}

func TestUDPEmptyPayloadRoundTrip(t *testing.T) {
	p := UDPPacket{SrcPort: 10, DstPort: 20}
	encoded := EncodeUDP(p)
	if len(encoded) != 8 {
		t.Fatalf("len(EncodeUDP(empty payload)) = %d, want 8", len(encoded))
	}
	decoded, err := DecodeUDP(encoded)
	if err != nil {
		t.Fatalf("DecodeUDP: %v", err)
	}
	if len(decoded.Payload) != 0 {
		t.Fatalf("decoded.Payload = %v, want empty", decoded.Payload)
	}
}

func TestUDPDecodeRejectsShortBuffer(t *testing.T) {
	if _, err := DecodeUDP(make([]byte, 7)); err == nil {
		t.Fatal("DecodeUDP accepted a 7-byte buffer")
	}
}
