// Package wire implements pure, side-effect-free encode/decode of the
// Ethernet/802.1Q/ARP/IPv4/ICMP/UDP wire formats used by the simulator.
//
// Every decoder validates lengths and reserved fields before accepting a
// buffer; malformed input returns an error rather than panicking, so callers
// can log-and-drop per the protocol engine's failure semantics.
package wire

import (
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by decoders when the input is too short to
// contain even the fixed portion of the wire format.
var ErrShortBuffer = errors.New("wire: buffer too short")

// Mac is a 6-octet Ethernet hardware address.
type Mac [6]byte

// BroadcastMac is the all-ones Ethernet broadcast address.
var BroadcastMac = Mac{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// String renders the address as six hex pairs separated by hyphens, e.g.
// "AA-BB-CC-DD-EE-FF".
func (m Mac) String() string {
	return fmt.Sprintf("%02X-%02X-%02X-%02X-%02X-%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsUniversallyAdministered reports whether bit 1 (the U/L bit) of the
// first octet is clear.
func (m Mac) IsUniversallyAdministered() bool {
	return m[0]&0x02 == 0
}

// IsLocallyAdministered reports whether bit 1 of the first octet is set.
func (m Mac) IsLocallyAdministered() bool {
	return !m.IsUniversallyAdministered()
}

// IsUnicast reports whether bit 0 (the I/G bit) of the first octet is clear.
func (m Mac) IsUnicast() bool {
	return m[0]&0x01 == 0
}

// IsMulticast reports whether bit 0 of the first octet is set.
func (m Mac) IsMulticast() bool {
	return !m.IsUnicast()
}

// IsBroadcast reports whether m is the all-ones address.
func (m Mac) IsBroadcast() bool {
	return m == BroadcastMac
}

// ParseMac parses a "XX-XX-XX-XX-XX-XX" or "XX:XX:XX:XX:XX:XX" string.
func ParseMac(s string) (Mac, error) {
	var m Mac
	if len(s) != 17 {
		return m, fmt.Errorf("wire: invalid mac %q", s)
	}
	for i := 0; i < 6; i++ {
		off := i * 3
		var b byte
		if _, err := fmt.Sscanf(s[off:off+2], "%02X", &b); err != nil {
			return Mac{}, fmt.Errorf("wire: invalid mac %q: %w", s, err)
		}
		m[i] = b
	}
	return m, nil
}
