package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// IPv4Addr is a 4-octet IPv4 address.
type IPv4Addr [4]byte

// BroadcastIPv4 is 255.255.255.255.
var BroadcastIPv4 = IPv4Addr{255, 255, 255, 255}

// String renders the address in dotted-decimal form.
func (a IPv4Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// ParseIPv4Addr parses a dotted-decimal string such as "192.168.0.1".
func ParseIPv4Addr(s string) (IPv4Addr, error) {
	var a IPv4Addr
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return a, fmt.Errorf("wire: invalid ipv4 address %q", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return IPv4Addr{}, fmt.Errorf("wire: invalid ipv4 address %q", s)
		}
		a[i] = byte(n)
	}
	return a, nil
}

// And returns the bitwise AND of a and m's 32-bit mask, as required by the
// routing table's longest-prefix-match lookup.
func (a IPv4Addr) And(m IPv4Mask) IPv4Addr {
	bits := m.Bits()
	var out IPv4Addr
	for i := range out {
		shift := uint(24 - 8*i)
		maskByte := byte(bits >> shift)
		out[i] = a[i] & maskByte
	}
	return out
}

// IPv4Mask is a CIDR prefix length in [0, 32].
type IPv4Mask struct {
	prefixLen uint8
}

// NewIPv4Mask clamps prefixLen to [0, 32] and returns the mask.
func NewIPv4Mask(prefixLen int) IPv4Mask {
	if prefixLen < 0 {
		prefixLen = 0
	}
	if prefixLen > 32 {
		prefixLen = 32
	}
	return IPv4Mask{prefixLen: uint8(prefixLen)}
}

// PrefixLen returns the mask's prefix length.
func (m IPv4Mask) PrefixLen() int {
	return int(m.prefixLen)
}

// Specificity is the mask's prefix length; longer prefixes are more
// specific and sort ahead in the routing table.
func (m IPv4Mask) Specificity() int {
	return int(m.prefixLen)
}

// Bits returns the 32-bit mask with the top prefixLen bits set.
func (m IPv4Mask) Bits() uint32 {
	if m.prefixLen == 0 {
		return 0
	}
	return ^uint32(0) << (32 - m.prefixLen)
}

// String renders the mask as its prefix length, e.g. "/24".
func (m IPv4Mask) String() string {
	return fmt.Sprintf("/%d", m.prefixLen)
}
