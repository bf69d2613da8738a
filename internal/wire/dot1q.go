package wire

import "encoding/binary"

// Dot1QTPID is the tag protocol identifier that marks a frame as carrying
// an 802.1Q tag (IEEE 802.1Q).
const Dot1QTPID EtherType = 0x8100

// Dot1QTag is an IEEE 802.1Q VLAN tag: priority code point (3 bits), drop
// eligible indicator (1 bit), and VLAN identifier (12 bits).
type Dot1QTag struct {
	PCP uint8
	DEI bool
	VID uint16
}

// encodeTCI packs the tag control information into its 16-bit wire form.
func (t Dot1QTag) encodeTCI() uint16 {
	tci := uint16(t.PCP&0x07) << 13
	if t.DEI {
		tci |= 1 << 12
	}
	tci |= t.VID & 0x0fff
	return tci
}

// decodeTCI unpacks a 16-bit TCI into its PCP/DEI/VID fields.
func decodeTCI(tci uint16) Dot1QTag {
	return Dot1QTag{
		PCP: uint8(tci >> 13),
		DEI: tci&(1<<12) != 0,
		VID: tci & 0x0fff,
	}
}

// appendDot1Q appends the 4-byte TPID+TCI tag to dst.
func appendDot1Q(dst []byte, t Dot1QTag) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint16(buf[0:2], uint16(Dot1QTPID))
	binary.BigEndian.PutUint16(buf[2:4], t.encodeTCI())
	return append(dst, buf[:]...)
}
