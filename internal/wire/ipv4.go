package wire

import (
	"encoding/binary"
	"fmt"
)

// IPProtocol is the IPv4 header's protocol field (RFC 791).
type IPProtocol uint8

const (
	IPProtocolICMP IPProtocol = 1
	IPProtocolTCP  IPProtocol = 6
	IPProtocolUDP  IPProtocol = 17
)

func (p IPProtocol) String() string {
	switch p {
	case IPProtocolICMP:
		return "ICMP"
	case IPProtocolTCP:
		return "TCP"
	case IPProtocolUDP:
		return "UDP"
	default:
		return fmt.Sprintf("IPProtocol(%d)", uint8(p))
	}
}

// IPv4Flags are the header's two meaningful flag bits.
type IPv4Flags struct {
	DF bool
	MF bool
}

func (f IPv4Flags) encode() uint8 {
	var b uint8
	if f.DF {
		b |= 0x02
	}
	if f.MF {
		b |= 0x01
	}
	return b
}

func decodeIPv4Flags(b uint8) IPv4Flags {
	return IPv4Flags{DF: b&0x02 != 0, MF: b&0x01 != 0}
}

// minIHL is the minimum Internet Header Length in 32-bit words (20 bytes,
// no options).
const minIHL = 5

// ipv4HeaderMinLen is minIHL expressed in bytes.
const ipv4HeaderMinLen = minIHL * 4

// IPv4Header is the fixed+options portion of an IPv4 datagram (RFC 791).
// Checksum is meaningful on decode (it is the value read off the wire) and
// is recomputed by EncodeIPv4 rather than trusted on encode.
type IPv4Header struct {
	DSCP           uint8
	ECN            uint8
	Identification uint16
	Flags          IPv4Flags
	FragmentOffset uint16
	TTL            uint8
	Protocol       IPProtocol
	Checksum       uint16
	Source         IPv4Addr
	Destination    IPv4Addr
	Options        []byte

	// TotalLength is the header's declared total datagram length; it is
	// set by DecodeIPv4 and recomputed by EncodeIPv4 from the payload
	// actually supplied.
	TotalLength uint16
}

// IPv4Packet pairs a header with its payload.
type IPv4Packet struct {
	Header  IPv4Header
	Payload []byte
}

// ihl returns the Internet Header Length in 32-bit words implied by the
// header's options.
func (h IPv4Header) ihl() (int, error) {
	if len(h.Options)%4 != 0 {
		return 0, fmt.Errorf("wire: ipv4 options length %d is not a multiple of 4", len(h.Options))
	}
	return minIHL + len(h.Options)/4, nil
}

// onesComplementSum computes the RFC 791 one's-complement checksum over
// data; an odd-length input is summed as if padded with a trailing zero
// byte. The accumulator's carries are folded back in before the final
// complement.
func onesComplementSum(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i : i+2]))
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// Bytes re-serializes the header using its current Checksum and
// TotalLength fields as-is (no recomputation). This is used to quote the
// original header's exact bytes back in an ICMP Time Exceeded payload.
func (h IPv4Header) Bytes() []byte {
	ihl, err := h.ihl()
	if err != nil {
		ihl = minIHL
	}
	out := make([]byte, ihl*4)
	out[0] = 0x40 | byte(ihl&0x0f)
	out[1] = h.DSCP<<2 | h.ECN&0x03
	binary.BigEndian.PutUint16(out[2:4], h.TotalLength)
	binary.BigEndian.PutUint16(out[4:6], h.Identification)
	flagsAndOffset := uint16(h.Flags.encode())<<13 | h.FragmentOffset&0x1fff
	binary.BigEndian.PutUint16(out[6:8], flagsAndOffset)
	out[8] = h.TTL
	out[9] = byte(h.Protocol)
	binary.BigEndian.PutUint16(out[10:12], h.Checksum)
	copy(out[12:16], h.Source[:])
	copy(out[16:20], h.Destination[:])
	copy(out[20:], h.Options)
	return out
}

// EncodeIPv4 serializes a full datagram, computing the header checksum
// with the checksum field held at zero during summing and recomputing
// TotalLength from the supplied payload.
func EncodeIPv4(pkt IPv4Packet) ([]byte, error) {
	h := pkt.Header
	ihl, err := h.ihl()
	if err != nil {
		return nil, err
	}
	headerLen := ihl * 4
	h.TotalLength = uint16(headerLen + len(pkt.Payload))
	h.Checksum = 0
	raw := h.Bytes()
	h.Checksum = onesComplementSum(raw)
	raw = h.Bytes()
	return append(raw, pkt.Payload...), nil
}

// DecodeIPv4 parses a full datagram. Version must be 4, IHL must be at
// least 5 words and fit within the buffer, TotalLength must not exceed
// the buffer length, and the header checksum (computed over the declared
// header including options) must evaluate to zero.
func DecodeIPv4(data []byte) (IPv4Packet, error) {
	if len(data) < ipv4HeaderMinLen {
		return IPv4Packet{}, fmt.Errorf("%w: ipv4 header needs %d bytes, got %d", ErrShortBuffer, ipv4HeaderMinLen, len(data))
	}
	version := data[0] >> 4
	if version != 4 {
		return IPv4Packet{}, fmt.Errorf("wire: ipv4 version must be 4, got %d", version)
	}
	ihl := int(data[0] & 0x0f)
	if ihl < minIHL {
		return IPv4Packet{}, fmt.Errorf("wire: ipv4 IHL must be >= %d, got %d", minIHL, ihl)
	}
	headerLen := ihl * 4
	if len(data) < headerLen {
		return IPv4Packet{}, fmt.Errorf("%w: ipv4 header declares %d bytes, buffer has %d", ErrShortBuffer, headerLen, len(data))
	}
	if onesComplementSum(data[:headerLen]) != 0 {
		return IPv4Packet{}, fmt.Errorf("wire: ipv4 header checksum invalid")
	}

	totalLength := binary.BigEndian.Uint16(data[2:4])
	if int(totalLength) > len(data) {
		return IPv4Packet{}, fmt.Errorf("wire: ipv4 total length %d exceeds buffer length %d", totalLength, len(data))
	}
	if int(totalLength) < headerLen {
		return IPv4Packet{}, fmt.Errorf("wire: ipv4 total length %d shorter than header length %d", totalLength, headerLen)
	}

	flagsAndOffset := binary.BigEndian.Uint16(data[6:8])
	h := IPv4Header{
		DSCP:           data[1] >> 2,
		ECN:            data[1] & 0x03,
		TotalLength:    totalLength,
		Identification: binary.BigEndian.Uint16(data[4:6]),
		Flags:          decodeIPv4Flags(uint8(flagsAndOffset >> 13)),
		FragmentOffset: flagsAndOffset & 0x1fff,
		TTL:            data[8],
		Protocol:       IPProtocol(data[9]),
		Checksum:       binary.BigEndian.Uint16(data[10:12]),
	}
	copy(h.Source[:], data[12:16])
	copy(h.Destination[:], data[16:20])
	if headerLen > ipv4HeaderMinLen {
		h.Options = append([]byte(nil), data[ipv4HeaderMinLen:headerLen]...)
	}
	payload := append([]byte(nil), data[headerLen:totalLength]...)
	return IPv4Packet{Header: h, Payload: payload}, nil
}
