package udpproc

import (
	"context"

	"github.com/dantte-lp/netsim/internal/wire"
)

// Datagram is what Socket.Recv hands back: the envelope the UDP ingress
// path builds once it has demultiplexed by destination port.
type Datagram struct {
	SrcAddr wire.IPv4Addr
	SrcPort uint16
	Payload []byte
	TTL     *uint8
}

// Socket is a bound UDP port: send to any destination, receive whatever
// arrives addressed to this port.
type Socket struct {
	port uint16
	recv chan Datagram
	send func(srcPort uint16, dstAddr wire.IPv4Addr, dstPort uint16, payload []byte, ttl *uint8)
}

// Port returns the port this socket is bound to (useful when it was
// allocated from the ephemeral range).
func (s *Socket) Port() uint16 { return s.port }

// Send transmits payload to (dstAddr, dstPort) using the default TTL.
func (s *Socket) Send(dstAddr wire.IPv4Addr, dstPort uint16, payload []byte) {
	s.send(s.port, dstAddr, dstPort, payload, nil)
}

// SendWithTTL transmits payload to (dstAddr, dstPort) with an explicit
// TTL, used by traceroute to probe successive hops.
func (s *Socket) SendWithTTL(dstAddr wire.IPv4Addr, dstPort uint16, payload []byte, ttl uint8) {
	s.send(s.port, dstAddr, dstPort, payload, &ttl)
}

// Recv blocks until a datagram addressed to this port arrives or ctx is
// done.
func (s *Socket) Recv(ctx context.Context) (Datagram, bool) {
	select {
	case dg := <-s.recv:
		return dg, true
	case <-ctx.Done():
		return Datagram{}, false
	}
}
