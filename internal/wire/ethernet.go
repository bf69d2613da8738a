package wire

import (
	"encoding/binary"
	"fmt"
)

// EtherType is the 16-bit payload-type tag carried by an Ethernet frame.
type EtherType uint16

// Well-known EtherType values.
const (
	EtherTypeIPv4 EtherType = 0x0800
	EtherTypeARP  EtherType = 0x0806
	EtherTypeIPv6 EtherType = 0x86dd
)

func (e EtherType) String() string {
	switch e {
	case EtherTypeIPv4:
		return "IPv4"
	case EtherTypeARP:
		return "ARP"
	case EtherTypeIPv6:
		return "IPv6"
	case Dot1QTPID:
		return "802.1Q"
	default:
		return fmt.Sprintf("EtherType(0x%04x)", uint16(e))
	}
}

// MaxUntaggedPayload is the largest payload an untagged Ethernet II frame
// may carry.
const MaxUntaggedPayload = 1500

// ethernetHeaderLen is the minimum length of an untagged Ethernet frame:
// 6 (dst) + 6 (src) + 2 (ethertype).
const ethernetHeaderLen = 14

// dot1qHeaderLen is the minimum length of a tagged Ethernet frame: the
// untagged header plus the 4-byte 802.1Q tag.
const dot1qHeaderLen = ethernetHeaderLen + 4

// EthernetFrame is an immutable Ethernet II frame, optionally carrying one
// 802.1Q tag. Constructing a new frame is the only way to change one;
// nothing mutates a frame in place.
type EthernetFrame struct {
	Dst       Mac
	Src       Mac
	Tag       *Dot1QTag
	EtherType EtherType
	Payload   []byte
}

// WithTag returns a copy of f carrying the given 802.1Q tag.
func (f EthernetFrame) WithTag(tag Dot1QTag) EthernetFrame {
	f.Tag = &tag
	return f
}

// WithoutTag returns a copy of f with any 802.1Q tag removed.
func (f EthernetFrame) WithoutTag() EthernetFrame {
	f.Tag = nil
	return f
}

// EncodeEthernet serializes f to its on-wire byte representation.
//
// Oversize untagged payloads are rejected; callers must enforce the
// 1500-byte limit before calling (the NIC layer logs and drops rather than
// erroring).
func EncodeEthernet(f EthernetFrame) ([]byte, error) {
	if f.Tag == nil && len(f.Payload) > MaxUntaggedPayload {
		return nil, fmt.Errorf("wire: untagged ethernet payload too large: %d bytes", len(f.Payload))
	}
	size := ethernetHeaderLen
	if f.Tag != nil {
		size = dot1qHeaderLen
	}
	out := make([]byte, 0, size+len(f.Payload))
	out = append(out, f.Dst[:]...)
	out = append(out, f.Src[:]...)
	if f.Tag != nil {
		out = appendDot1Q(out, *f.Tag)
	}
	var et [2]byte
	binary.BigEndian.PutUint16(et[:], uint16(f.EtherType))
	out = append(out, et[:]...)
	out = append(out, f.Payload...)
	return out, nil
}

// DecodeEthernet parses an Ethernet II frame, detecting an optional 802.1Q
// tag by TPID. Buffers shorter than 14 bytes (18 once a tag is detected)
// are rejected.
func DecodeEthernet(data []byte) (EthernetFrame, error) {
	if len(data) < ethernetHeaderLen {
		return EthernetFrame{}, fmt.Errorf("%w: ethernet frame needs %d bytes, got %d", ErrShortBuffer, ethernetHeaderLen, len(data))
	}
	var f EthernetFrame
	copy(f.Dst[:], data[0:6])
	copy(f.Src[:], data[6:12])

	offset := 12
	maybeTPID := EtherType(binary.BigEndian.Uint16(data[offset : offset+2]))
	if maybeTPID == Dot1QTPID {
		if len(data) < dot1qHeaderLen {
			return EthernetFrame{}, fmt.Errorf("%w: tagged ethernet frame needs %d bytes, got %d", ErrShortBuffer, dot1qHeaderLen, len(data))
		}
		tci := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		tag := decodeTCI(tci)
		f.Tag = &tag
		offset += 4
	}
	f.EtherType = EtherType(binary.BigEndian.Uint16(data[offset : offset+2]))
	offset += 2
	f.Payload = append([]byte(nil), data[offset:]...)
	return f, nil
}
