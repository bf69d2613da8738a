// Package icmpproc implements the ICMP transport process:
// answers Echo Requests, delivers Echo Replies to waiting `ping` callers,
// and demultiplexes Time Exceeded messages to traceroute's per-run
// subscriptions by exact quoted-payload match.
package icmpproc

import (
	"context"
	"log/slog"

	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/layermsg"
	"github.com/dantte-lp/netsim/internal/wire"
)

type ctrlKind uint8

const (
	ctrlEcho ctrlKind = iota
	ctrlTTLHandler
)

type echoKey struct {
	id   uint16
	seq  uint16
	addr wire.IPv4Addr
}

// EchoResult is what a pending echo_ipv4 call receives once the matching
// Echo Reply arrives.
type EchoResult struct {
	ID   uint16
	Seq  uint16
	Addr wire.IPv4Addr
	TTL  uint8
}

type ctrlRequest struct {
	kind    ctrlKind
	echoKey echoKey
	payload []byte
	reply   chan ctrlReply
}

type ctrlReply struct {
	echoCh chan EchoResult
	ttlCh  chan wire.IPv4Addr
}

// Process is the chassis's ICMP transport process.
type Process struct {
	logger *slog.Logger

	pending map[echoKey]chan EchoResult
	ttlSubs map[string][]chan wire.IPv4Addr

	inbox   layermsg.NetworkToTransportMailbox
	ipPeers *bus.PeerMap[ids.TransportLayerId, ids.NetworkLayerId, layermsg.NetworkTransport]
	ctrl    chan ctrlRequest
}

const ctrlBuffer = 16

// New constructs an ICMP process.
func New(logger *slog.Logger) *Process {
	return &Process{
		logger:  logger.With(slog.String("process", "icmp")),
		pending: make(map[echoKey]chan EchoResult),
		ttlSubs: make(map[string][]chan wire.IPv4Addr),
		inbox:   make(layermsg.NetworkToTransportMailbox, 64),
		ipPeers: bus.NewPeerMap[ids.TransportLayerId, ids.NetworkLayerId, layermsg.NetworkTransport](),
		ctrl:    make(chan ctrlRequest, ctrlBuffer),
	}
}

// Inbox is the mailbox IPv4 sends ingress datagrams and NewConn
// announcements to.
func (p *Process) Inbox() layermsg.NetworkToTransportMailbox { return p.inbox }

// Handle returns the client-facing façade `ping`/`traceroute` use.
func (p *Process) Handle() *Handle { return &Handle{ctrl: p.ctrl} }

// Run executes the ICMP process's main loop until ctx is cancelled.
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
	switch req.kind {
	case ctrlEcho:
		ch := make(chan EchoResult, 1)
		p.pending[req.echoKey] = ch
		req.reply <- ctrlReply{echoCh: ch}
		p.sendToIPv4(req.echoKey.addr, nil, wire.NewEchoRequest(req.echoKey.id, req.echoKey.seq))

	case ctrlTTLHandler:
		ch := make(chan wire.IPv4Addr, 1)
		key := string(req.payload)
		p.ttlSubs[key] = append(p.ttlSubs[key], ch)
		req.reply <- ctrlReply{ttlCh: ch}
	}
}

func (p *Process) handleIngress(payload layermsg.NetworkTransport) {
	pkt, err := wire.DecodeICMP(payload.Data)
	if err != nil {
		p.logger.Warn("dropping undecodable icmp packet", slog.String("error", err.Error()))
		return
	}

	switch pkt.Kind {
	case wire.ICMPEchoRequest:
		p.sendToIPv4(payload.Addr, nil, wire.NewEchoReply(pkt.ID, pkt.Seq))

	case wire.ICMPEchoReply:
		key := echoKey{id: pkt.ID, seq: pkt.Seq, addr: payload.Addr}
		ch, ok := p.pending[key]
		if !ok {
			return
		}
		delete(p.pending, key)
		ttl := uint8(255)
		if payload.TTL != nil {
			ttl = *payload.TTL
		}
		select {
		case ch <- EchoResult{ID: pkt.ID, Seq: pkt.Seq, Addr: payload.Addr, TTL: ttl}:
		default:
		}

	case wire.ICMPTimeExceededTTLInTransit:
		key := string(quotedTransportBytes(pkt.Data))
		waiters := p.ttlSubs[key]
		if len(waiters) == 0 {
			return
		}
		// A subscription stays registered across multiple deliveries:
		// traceroute sends the same quoted payload at every hop and reuses
		// one handler for the whole probe, so only a full/gone receiver
		// retires it.
		kept := waiters[:0]
		for _, ch := range waiters {
			select {
			case ch <- payload.Addr:
				kept = append(kept, ch)
			default:
			}
		}
		if len(kept) == 0 {
			delete(p.ttlSubs, key)
		} else {
			p.ttlSubs[key] = kept
		}
	}
}

// quotedTransportBytes strips the quoted IPv4 header from a Time
// Exceeded payload, leaving the leading bytes of the expired datagram's
// own payload that the reporting router carried back. Subscribers can
// predict those bytes (they sent them); they cannot predict the quoted
// header, whose TTL and checksum depend on where the datagram expired.
// Data that doesn't start with a plausible IPv4 header is matched as-is.
func quotedTransportBytes(data []byte) []byte {
	if len(data) == 0 || data[0]>>4 != 4 {
		return data
	}
	headerLen := int(data[0]&0x0f) * 4
	if headerLen < 20 || len(data) < headerLen {
		return data
	}
	return data[headerLen:]
}

// sendToIPv4 encodes pkt and forwards it to IPv4 as an egress request.
func (p *Process) sendToIPv4(addr wire.IPv4Addr, ttl *uint8, pkt wire.ICMPPacket) {
	data, err := wire.EncodeICMP(pkt)
	if err != nil {
		p.logger.Warn("failed to encode icmp packet", slog.String("error", err.Error()))
		return
	}
	mb, ok := p.ipPeers.Get(ids.NetworkLayerIPv4)
	if !ok {
		p.logger.Warn("dropping icmp egress, ipv4 not registered")
		return
	}
	msg := bus.DataMessage[ids.TransportLayerId, ids.NetworkLayerId](ids.TransportICMP, layermsg.NetworkTransport{
		Addr: addr,
		TTL:  ttl,
		Data: data,
	})
	if !bus.Send(mb, msg) {
		p.ipPeers.Remove(ids.NetworkLayerIPv4)
	}
}
