package wire

import (
	"encoding/binary"
	"fmt"
)

// ICMPKind is the discriminator for the small, closed set of ICMP
// messages this simulator produces and consumes.
type ICMPKind uint8

const (
	ICMPEchoReply ICMPKind = iota
	ICMPEchoRequest
	ICMPTimeExceededTTLInTransit
)

const (
	icmpTypeEchoReply      = 0
	icmpTypeEchoRequest    = 8
	icmpTypeTimeExceeded   = 11
	icmpCodeTTLInTransit   = 0
	icmpEchoFixedWireLen   = 8
	icmpHeaderLen          = 4
	icmpChecksumPlaceholder = 0
)

// ICMPPacket is a tagged union over the ICMP messages this simulator
// models: Echo Reply/Request (type 0/8) and Time Exceeded, TTL-in-transit
// (type 11, code 0). The checksum field is present on the wire but is not
// validated on decode.
type ICMPPacket struct {
	Kind ICMPKind

	// ID and Seq are meaningful for EchoReply/EchoRequest.
	ID  uint16
	Seq uint16

	// Data carries the quoted original IPv4 header plus up to 8 payload
	// bytes for TimeExceededTTLInTransit; it is unused by the echo kinds.
	Data []byte
}

// NewEchoRequest builds an EchoRequest{id, seq}.
func NewEchoRequest(id, seq uint16) ICMPPacket {
	return ICMPPacket{Kind: ICMPEchoRequest, ID: id, Seq: seq}
}

// NewEchoReply builds an EchoReply{id, seq}.
func NewEchoReply(id, seq uint16) ICMPPacket {
	return ICMPPacket{Kind: ICMPEchoReply, ID: id, Seq: seq}
}

// NewTimeExceeded builds a TimeExceeded(TtlInTransit{data}).
func NewTimeExceeded(data []byte) ICMPPacket {
	return ICMPPacket{Kind: ICMPTimeExceededTTLInTransit, Data: append([]byte(nil), data...)}
}

// EncodeICMP serializes p. The checksum field is always written as zero;
// this simulator does not compute or validate ICMP checksums.
func EncodeICMP(p ICMPPacket) ([]byte, error) {
	var typ, code uint8
	var body []byte
	switch p.Kind {
	case ICMPEchoReply:
		typ, code = icmpTypeEchoReply, 0
		body = make([]byte, 4)
		binary.BigEndian.PutUint16(body[0:2], p.ID)
		binary.BigEndian.PutUint16(body[2:4], p.Seq)
	case ICMPEchoRequest:
		typ, code = icmpTypeEchoRequest, 0
		body = make([]byte, 4)
		binary.BigEndian.PutUint16(body[0:2], p.ID)
		binary.BigEndian.PutUint16(body[2:4], p.Seq)
	case ICMPTimeExceededTTLInTransit:
		typ, code = icmpTypeTimeExceeded, icmpCodeTTLInTransit
		body = p.Data
	default:
		return nil, fmt.Errorf("wire: unknown icmp kind %d", p.Kind)
	}
	out := make([]byte, 0, icmpHeaderLen+len(body))
	out = append(out, typ, code)
	out = append(out, 0, icmpChecksumPlaceholder)
	out = append(out, body...)
	return out, nil
}

// DecodeICMP parses an ICMP message. Echo{Request,Reply} must be exactly
// 8 bytes total; TimeExceeded with code 0 captures everything after the
// 4-byte header as opaque quoted data.
func DecodeICMP(data []byte) (ICMPPacket, error) {
	if len(data) < icmpHeaderLen {
		return ICMPPacket{}, fmt.Errorf("%w: icmp header needs %d bytes, got %d", ErrShortBuffer, icmpHeaderLen, len(data))
	}
	typ := data[0]
	code := data[1]
	switch typ {
	case icmpTypeEchoReply, icmpTypeEchoRequest:
		if len(data) != icmpEchoFixedWireLen {
			return ICMPPacket{}, fmt.Errorf("wire: icmp echo message must be %d bytes, got %d", icmpEchoFixedWireLen, len(data))
		}
		kind := ICMPEchoReply
		if typ == icmpTypeEchoRequest {
			kind = ICMPEchoRequest
		}
		return ICMPPacket{
			Kind: kind,
			ID:   binary.BigEndian.Uint16(data[4:6]),
			Seq:  binary.BigEndian.Uint16(data[6:8]),
		}, nil
	case icmpTypeTimeExceeded:
		if code != icmpCodeTTLInTransit {
			return ICMPPacket{}, fmt.Errorf("wire: unsupported icmp time exceeded code %d", code)
		}
		return ICMPPacket{
			Kind: ICMPTimeExceededTTLInTransit,
			Data: append([]byte(nil), data[icmpHeaderLen:]...),
		}, nil
	default:
		return ICMPPacket{}, fmt.Errorf("wire: unknown icmp type %d", typ)
	}
}
