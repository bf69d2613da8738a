package wire

import (
	"encoding/binary"
	"fmt"
)

// udpHeaderLen is the fixed UDP header length (RFC 768): source port,
// destination port, length, checksum.
const udpHeaderLen = 8

// UDPPacket is a UDP datagram. Checksum is carried but never validated
// or computed.
type UDPPacket struct {
	SrcPort  uint16
	DstPort  uint16
	Checksum uint16
	Payload  []byte
}

// EncodeUDP serializes p as header followed by payload.
func EncodeUDP(p UDPPacket) []byte {
	out := make([]byte, udpHeaderLen, udpHeaderLen+len(p.Payload))
	binary.BigEndian.PutUint16(out[0:2], p.SrcPort)
	binary.BigEndian.PutUint16(out[2:4], p.DstPort)
	binary.BigEndian.PutUint16(out[4:6], uint16(udpHeaderLen+len(p.Payload)))
	binary.BigEndian.PutUint16(out[6:8], 0)
	return append(out, p.Payload...)
}

// DecodeUDP parses a UDP datagram from data, trusting the frame length
// over the header's declared length (the declared length is not
// validated, matching the checksum's non-validation, per Non-goals).
func DecodeUDP(data []byte) (UDPPacket, error) {
	if len(data) < udpHeaderLen {
		return UDPPacket{}, fmt.Errorf("%w: udp header needs %d bytes, got %d", ErrShortBuffer, udpHeaderLen, len(data))
	}
	return UDPPacket{
		SrcPort:  binary.BigEndian.Uint16(data[0:2]),
		DstPort:  binary.BigEndian.Uint16(data[2:4]),
		Checksum: binary.BigEndian.Uint16(data[6:8]),
		Payload:  append([]byte(nil), data[udpHeaderLen:]...),
	}, nil
}
