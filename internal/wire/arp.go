package wire

import (
	"encoding/binary"
	"fmt"
)

// ArpHType is the ARP hardware-type field. Only Ethernet is modeled.
type ArpHType uint16

// ArpPType is the ARP protocol-type field, aliasing EtherType values.
type ArpPType uint16

// Hardware and protocol type constants used by this simulator.
const (
	ArpHTypeEthernet ArpHType = 1

	ArpPTypeIPv4 ArpPType = ArpPType(EtherTypeIPv4)
	ArpPTypeIPv6 ArpPType = ArpPType(EtherTypeIPv6)
)

// ArpOp is the ARP operation code.
type ArpOp uint16

const (
	ArpOpRequest ArpOp = 1
	ArpOpReply   ArpOp = 2
)

func (op ArpOp) String() string {
	switch op {
	case ArpOpRequest:
		return "Request"
	case ArpOpReply:
		return "Reply"
	default:
		return fmt.Sprintf("ArpOp(%d)", uint16(op))
	}
}

// hlenFor returns the hardware address length implied by htype.
func hlenFor(htype ArpHType) (uint8, error) {
	switch htype {
	case ArpHTypeEthernet:
		return 6, nil
	default:
		return 0, fmt.Errorf("wire: unsupported arp htype %d", htype)
	}
}

// plenFor returns the protocol address length implied by ptype. Only
// IPv4 is accepted: ArpPacket's SPA/TPA fields are 4-byte IPv4Addr, so a
// 16-byte IPv6 address cannot round-trip through them.
func plenFor(ptype ArpPType) (uint8, error) {
	switch ptype {
	case ArpPTypeIPv4:
		return 4, nil
	default:
		return 0, fmt.Errorf("wire: unsupported arp ptype 0x%04x", uint16(ptype))
	}
}

// ArpPacket is an Ethernet/IPv4 Address Resolution Protocol message
// (RFC 826). Only the Ethernet+IPv4 combination used by this simulator is
// modeled; SHA/THA are hardware (MAC) addresses, SPA/TPA are protocol
// (IPv4) addresses.
type ArpPacket struct {
	HType ArpHType
	PType ArpPType
	Op    ArpOp
	SHA   Mac
	SPA   IPv4Addr
	THA   Mac
	TPA   IPv4Addr
}

// NewArpRequest builds a Request asking who has tpa, sent from (sha, spa).
func NewArpRequest(sha Mac, spa IPv4Addr, tpa IPv4Addr) ArpPacket {
	return ArpPacket{
		HType: ArpHTypeEthernet,
		PType: ArpPTypeIPv4,
		Op:    ArpOpRequest,
		SHA:   sha,
		SPA:   spa,
		THA:   Mac{},
		TPA:   tpa,
	}
}

// NewArpReply builds a Reply from (sha, spa) back to (tha, tpa).
func NewArpReply(sha Mac, spa IPv4Addr, tha Mac, tpa IPv4Addr) ArpPacket {
	return ArpPacket{
		HType: ArpHTypeEthernet,
		PType: ArpPTypeIPv4,
		Op:    ArpOpReply,
		SHA:   sha,
		SPA:   spa,
		THA:   tha,
		TPA:   tpa,
	}
}

// EncodeArp serializes p to its on-wire representation: an 8-byte fixed
// header followed by sha, spa, tha, tpa at the lengths implied by HType
// and PType.
func EncodeArp(p ArpPacket) ([]byte, error) {
	hlen, err := hlenFor(p.HType)
	if err != nil {
		return nil, err
	}
	plen, err := plenFor(p.PType)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+2*int(hlen)+2*int(plen))
	binary.BigEndian.PutUint16(out[0:2], uint16(p.HType))
	binary.BigEndian.PutUint16(out[2:4], uint16(p.PType))
	out[4] = hlen
	out[5] = plen
	binary.BigEndian.PutUint16(out[6:8], uint16(p.Op))
	off := 8
	off += copy(out[off:], p.SHA[:hlen])
	off += copy(out[off:], p.SPA[:plen])
	off += copy(out[off:], p.THA[:hlen])
	copy(out[off:], p.TPA[:plen])
	return out, nil
}

// DecodeArp parses an ARP packet, rejecting buffers whose declared hlen/
// plen disagree with the lengths implied by htype/ptype.
func DecodeArp(data []byte) (ArpPacket, error) {
	if len(data) < 8 {
		return ArpPacket{}, fmt.Errorf("%w: arp header needs 8 bytes, got %d", ErrShortBuffer, len(data))
	}
	htype := ArpHType(binary.BigEndian.Uint16(data[0:2]))
	ptype := ArpPType(binary.BigEndian.Uint16(data[2:4]))
	hlen := data[4]
	plen := data[5]
	op := ArpOp(binary.BigEndian.Uint16(data[6:8]))

	wantHlen, err := hlenFor(htype)
	if err != nil {
		return ArpPacket{}, err
	}
	wantPlen, err := plenFor(ptype)
	if err != nil {
		return ArpPacket{}, err
	}
	if hlen != wantHlen || plen != wantPlen {
		return ArpPacket{}, fmt.Errorf("wire: arp hlen/plen mismatch: got (%d,%d), want (%d,%d)", hlen, plen, wantHlen, wantPlen)
	}
	want := 8 + 2*int(hlen) + 2*int(plen)
	if len(data) < want {
		return ArpPacket{}, fmt.Errorf("%w: arp packet needs %d bytes, got %d", ErrShortBuffer, want, len(data))
	}

	p := ArpPacket{HType: htype, PType: ptype, Op: op}
	off := 8
	copy(p.SHA[:], data[off:off+int(hlen)])
	off += int(hlen)
	copy(p.SPA[:], data[off:off+int(plen)])
	off += int(plen)
	copy(p.THA[:], data[off:off+int(hlen)])
	off += int(hlen)
	copy(p.TPA[:], data[off:off+int(plen)])
	return p, nil
}
