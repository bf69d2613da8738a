package wire

import "sync"

// MacAuthority mints fresh, locally-administered Ethernet addresses for
// callers that don't supply an explicit Mac (chassis convenience
// constructors such as AddNIC), pairing a fixed OUI with a sequential
// 24-bit counter.
type MacAuthority struct {
	mu   sync.Mutex
	oui  [3]byte
	next uint32
}

// DefaultOUI is the OUI this authority uses when none is given: the U/L
// bit (0x02) set on the first octet marks every minted address as
// locally administered, avoiding collision with any real vendor OUI.
var DefaultOUI = [3]byte{0x02, 0x00, 0x00}

// NewMacAuthority constructs an authority minting addresses under oui.
func NewMacAuthority(oui [3]byte) *MacAuthority {
	return &MacAuthority{oui: oui}
}

// NextMac returns the next address in sequence. It panics once the
// 24-bit counter is exhausted.
func (a *MacAuthority) NextMac() Mac {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next > 0xffffff {
		panic("wire: mac authority exhausted its 24-bit address space")
	}
	b := a.next
	a.next++
	return Mac{a.oui[0], a.oui[1], a.oui[2], byte(b >> 16), byte(b >> 8), byte(b)}
}
