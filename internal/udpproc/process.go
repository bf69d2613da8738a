// Package udpproc implements the UDP transport process:
// port-multiplexed sockets bound to a shared IPv4 egress path, with
// ephemeral port allocation for callers (traceroute) that don't care
// which port they get.
package udpproc

import (
	"context"
	"log/slog"

	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/layermsg"
	"github.com/dantte-lp/netsim/internal/wire"
)

// ephemeralBase is the first port handed out when GetSocket is asked for
// port 0, mirroring a real stack's ephemeral range (kept narrow since
// this simulator never actually contends with the OS for ports).
const ephemeralBase = 32768

type ctrlRequest struct {
	port  uint16
	reply chan ctrlReply
}

type ctrlReply struct {
	socket *Socket
}

// Process is the chassis's UDP transport process.
type Process struct {
	logger *slog.Logger

	sockets map[uint16]chan Datagram
	nextEph uint16
	inbox   layermsg.NetworkToTransportMailbox
	ipPeers *bus.PeerMap[ids.TransportLayerId, ids.NetworkLayerId, layermsg.NetworkTransport]
	ctrl    chan ctrlRequest
}

const ctrlBuffer = 16

// New constructs a UDP process.
func New(logger *slog.Logger) *Process {
	return &Process{
		logger:  logger.With(slog.String("process", "udp")),
		sockets: make(map[uint16]chan Datagram),
		nextEph: ephemeralBase,
		inbox:   make(layermsg.NetworkToTransportMailbox, 64),
		ipPeers: bus.NewPeerMap[ids.TransportLayerId, ids.NetworkLayerId, layermsg.NetworkTransport](),
		ctrl:    make(chan ctrlRequest, ctrlBuffer),
	}
}

// Inbox is the mailbox IPv4 sends ingress datagrams and NewConn
// announcements to.
func (p *Process) Inbox() layermsg.NetworkToTransportMailbox { return p.inbox }

// Handle returns the client-facing façade used to acquire sockets.
func (p *Process) Handle() *Handle { return &Handle{ctrl: p.ctrl} }

// Run executes the UDP process's main loop until ctx is cancelled.
func (p *Process) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-p.inbox:
			if msg.Kind == bus.KindNewConn {
				p.ipPeers.Register(msg.From, msg.Peer)
				continue
			}
			p.handleIngress(msg.Payload)

		case req := <-p.ctrl:
			p.handleCtrl(req)
		}
	}
}

func (p *Process) handleCtrl(req ctrlRequest) {
	port := req.port
	if port == 0 {
		port = p.allocEphemeral()
	}
	recvCh := make(chan Datagram, 16)
	p.sockets[port] = recvCh
	req.reply <- ctrlReply{socket: &Socket{
		port: port,
		recv: recvCh,
		send: p.sendFromSocket,
	}}
}

// allocEphemeral returns the next unused port at or above nextEph,
// wrapping within the ephemeral range if necessary.
func (p *Process) allocEphemeral() uint16 {
	for i := 0; i < 65536-ephemeralBase; i++ {
		port := p.nextEph
		p.nextEph++
		if p.nextEph == 0 {
			p.nextEph = ephemeralBase
		}
		if _, taken := p.sockets[port]; !taken {
			return port
		}
	}
	// Exhausting the ephemeral range means every port is bound; the caller
	// gets back a port that steals an existing socket's traffic rather than
	// blocking forever.
	return p.nextEph
}

func (p *Process) handleIngress(payload layermsg.NetworkTransport) {
	pkt, err := wire.DecodeUDP(payload.Data)
	if err != nil {
		p.logger.Warn("dropping undecodable udp datagram", slog.String("error", err.Error()))
		return
	}
	recvCh, ok := p.sockets[pkt.DstPort]
	if !ok {
		return
	}
	dg := Datagram{
		SrcAddr: payload.Addr,
		SrcPort: pkt.SrcPort,
		Payload: pkt.Payload,
		TTL:     payload.TTL,
	}
	select {
	case recvCh <- dg:
	default:
		// Socket's receiver isn't keeping up; drop rather than block the
		// whole process loop.
		p.logger.Warn("dropping udp datagram, socket recv buffer full", slog.Uint64("port", uint64(pkt.DstPort)))
	}
}

// sendFromSocket builds and forwards a UDP datagram to IPv4 on behalf of
// a bound Socket.
func (p *Process) sendFromSocket(srcPort uint16, dstAddr wire.IPv4Addr, dstPort uint16, payload []byte, ttl *uint8) {
	pkt := wire.UDPPacket{
		SrcPort: srcPort,
		DstPort: dstPort,
		Payload: payload,
	}
	data := wire.EncodeUDP(pkt)
	mb, ok := p.ipPeers.Get(ids.NetworkLayerIPv4)
	if !ok {
		p.logger.Warn("dropping udp egress, ipv4 not registered")
		return
	}
	msg := bus.DataMessage[ids.TransportLayerId, ids.NetworkLayerId](ids.TransportUDP, layermsg.NetworkTransport{
		Addr: dstAddr,
		TTL:  ttl,
		Data: data,
	})
	if !bus.Send(mb, msg) {
		p.ipPeers.Remove(ids.NetworkLayerIPv4)
	}
}
