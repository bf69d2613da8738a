package chassis

import (
	"context"
	"log/slog"
	"time"

	"github.com/dantte-lp/netsim/internal/icmpproc"
	"github.com/dantte-lp/netsim/internal/udpproc"
	"github.com/dantte-lp/netsim/internal/wire"
)

// tracerouteProbe is the fixed UDP payload every probe carries. A
// traceroute run reuses one ICMP Time Exceeded subscription across every
// hop, which requires the quoted bytes to be byte-identical each time
// (the subscription matches byte-exact, not by prefix).
var tracerouteProbe = []byte{0x69, 0x69}

// probeQuotedBytes is what a router's Time Exceeded will quote of one of
// our probes once its IPv4 header is stripped: the first 8 bytes of the
// expired datagram's payload, which for a UDP probe is exactly its UDP
// header. Every field of that header is fixed for the run once the
// socket's source port is known.
func probeQuotedBytes(srcPort uint16) []byte {
	encoded := wire.EncodeUDP(wire.UDPPacket{
		SrcPort: srcPort,
		DstPort: traceroutePort,
		Payload: tracerouteProbe,
	})
	return encoded[:8]
}

// traceroutePort is the destination port every probe targets. Traceroute
// doesn't care what answers, only who routes it, so any fixed port
// serves.
const traceroutePort = 50000

// DefaultMaxHops bounds a traceroute run when the caller doesn't name an
// explicit limit.
const DefaultMaxHops = 30

// Hop is one line of a traceroute's report: the probe's TTL and the
// address that returned a Time Exceeded for it, or a timeout.
type Hop struct {
	TTL  int
	Addr wire.IPv4Addr
	Ok   bool
}

// Traceroute acquires an ephemeral UDP socket and a Time-Exceeded
// subscription on the exact bytes routers will quote of its probes,
// then probes successively higher TTLs until a hop's source equals
// target, a hop times out, or maxHops is exhausted. onHop, if non-nil,
// is invoked synchronously as each hop resolves.
func Traceroute(ctx context.Context, udp *udpproc.Handle, icmp *icmpproc.Handle, target wire.IPv4Addr, maxHops int, perHopTimeout time.Duration, onHop func(Hop)) []Hop {
	socket := udp.GetSocket(0)
	handler := icmp.TTLHandler(probeQuotedBytes(socket.Port()))

	hops := make([]Hop, 0, maxHops)
	for ttl := 0; ttl < maxHops; ttl++ {
		socket.SendWithTTL(target, traceroutePort, tracerouteProbe, uint8(ttl))

		hopCtx, cancel := context.WithTimeout(ctx, perHopTimeout)
		var hop Hop
		select {
		case addr := <-handler:
			hop = Hop{TTL: ttl, Addr: addr, Ok: true}
		case <-hopCtx.Done():
			hop = Hop{TTL: ttl, Ok: false}
		}
		cancel()

		hops = append(hops, hop)
		if onHop != nil {
			onHop(hop)
		}
		if !hop.Ok {
			break
		}
		if hop.Addr == target {
			break
		}
	}
	return hops
}

// LogHop writes one traceroute hop at info (reached) or warn (timeout)
// level.
func LogHop(logger *slog.Logger, hop Hop) {
	if hop.Ok {
		logger.Info("traceroute hop", slog.Int("ttl", hop.TTL), slog.String("addr", hop.Addr.String()))
		return
	}
	logger.Warn("traceroute hop timed out", slog.Int("ttl", hop.TTL))
}
