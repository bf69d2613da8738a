// Package ipv4proc implements the IPv4 process: local
// delivery vs forwarding, TTL handling with ICMP-on-expiry, and routing
// lookups against the chassis's shared routing table.
package ipv4proc

import (
	"context"
	"log/slog"
	"time"

	"github.com/dantte-lp/netsim/internal/arpproc"
	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/ipconfig"
	"github.com/dantte-lp/netsim/internal/layermsg"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
	"github.com/dantte-lp/netsim/internal/wire"
)

// DefaultArpTimeout bounds how long egress and forwarding wait for ARP to
// resolve a next hop before dropping the datagram.
const DefaultArpTimeout = time.Second

// DefaultTTL is used for datagrams a transport process sends without an
// explicit TTL.
const DefaultTTL = 255

// quotedPayloadMax is how many bytes of the original payload an ICMP Time
// Exceeded message quotes alongside the original header.
const quotedPayloadMax = 8

// Process is the chassis's IPv4 layer process.
type Process struct {
	logger  *slog.Logger
	config  *ipconfig.Config
	arp     *arpproc.Handle
	metrics *netsimmetrics.Collector
	chassis string

	arpTimeout time.Duration

	linkInbox      layermsg.LinkToNetworkMailbox
	transportInbox layermsg.TransportToNetworkMailbox

	downPeers *bus.PeerMap[ids.NetworkLayerId, ids.LinkLayerId, layermsg.LinkNetwork]
	upPeers   *bus.PeerMap[ids.NetworkLayerId, ids.TransportLayerId, layermsg.NetworkTransport]
}

// Option configures optional IPv4 process collaborators.
type Option func(*Process)

// WithMetrics attaches the chassis's metrics collector so forwarding,
// drop, and TTL-expiry events are counted.
func WithMetrics(m *netsimmetrics.Collector, chassis string) Option {
	return func(p *Process) {
		p.metrics = m
		p.chassis = chassis
	}
}

// New constructs an IPv4 process bound to config and an ARP resolver.
func New(config *ipconfig.Config, arp *arpproc.Handle, logger *slog.Logger, opts ...Option) *Process {
	p := &Process{
		logger:         logger.With(slog.String("process", "ipv4")),
		config:         config,
		arp:            arp,
		arpTimeout:     DefaultArpTimeout,
		linkInbox:      make(layermsg.LinkToNetworkMailbox, 64),
		transportInbox: make(layermsg.TransportToNetworkMailbox, 64),
		downPeers:      bus.NewPeerMap[ids.NetworkLayerId, ids.LinkLayerId, layermsg.LinkNetwork](),
		upPeers:        bus.NewPeerMap[ids.NetworkLayerId, ids.TransportLayerId, layermsg.NetworkTransport](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LinkInbox is the mailbox NICs send ingress frames and NewConn
// announcements to.
func (p *Process) LinkInbox() layermsg.LinkToNetworkMailbox { return p.linkInbox }

// TransportInbox is the mailbox ICMP/UDP send egress requests and NewConn
// announcements to.
func (p *Process) TransportInbox() layermsg.TransportToNetworkMailbox { return p.transportInbox }

// Run executes the IPv4 process's main loop until ctx is cancelled.
func (p *Process) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-p.linkInbox:
			if msg.Kind == bus.KindNewConn {
				p.downPeers.Register(msg.From, msg.Peer)
				continue
			}
			p.handleLinkIngress(ctx, msg.From, msg.Payload)

		case msg := <-p.transportInbox:
			if msg.Kind == bus.KindNewConn {
				p.upPeers.Register(msg.From, msg.Peer)
				continue
			}
			p.handleTransportEgress(ctx, msg.From, msg.Payload)
		}
	}
}

func (p *Process) handleLinkIngress(ctx context.Context, from ids.LinkLayerId, payload layermsg.LinkNetwork) {
	pkt, err := wire.DecodeIPv4(payload.Data)
	if err != nil {
		p.logger.Warn("dropping undecodable ipv4 datagram", slog.String("error", err.Error()))
		p.metrics.IncDatagramsDropped(p.chassis, netsimmetrics.DropDecodeError)
		return
	}
	header := pkt.Header

	// A datagram arriving with TTL 0 is answered with Time Exceeded even
	// when it is addressed to this chassis; that reply is how traceroute
	// learns its probe reached the target. Forwarding decrements without
	// re-checking, so the zero is detected at the next hop.
	if header.TTL == 0 {
		p.expireInTransit(ctx, header, pkt.Payload)
		return
	}

	if header.Destination == p.config.Addr() {
		p.deliverLocal(header, pkt.Payload)
		return
	}

	p.forward(ctx, header, header.TTL-1, pkt.Payload)
}

// deliverLocal demultiplexes a datagram addressed to this chassis to the
// registered transport process for its protocol.
func (p *Process) deliverLocal(header wire.IPv4Header, payload []byte) {
	tid, ok := transportFor(header.Protocol)
	if !ok {
		p.logger.Warn("dropping datagram, unsupported protocol", slog.Any("protocol", header.Protocol))
		return
	}
	mb, ok := p.upPeers.Get(tid)
	if !ok {
		p.logger.Warn("dropping datagram, no transport process registered", slog.Any("protocol", header.Protocol))
		return
	}
	ttl := header.TTL
	msg := bus.DataMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, layermsg.NetworkTransport{
		Addr: header.Source,
		TTL:  &ttl,
		Data: payload,
	})
	if !bus.Send(mb, msg) {
		p.upPeers.Remove(tid)
	}
}

// expireInTransit drops an expired datagram and replies to its source
// with ICMP Time Exceeded, quoting the original header and up to the
// first 8 bytes of its payload.
func (p *Process) expireInTransit(ctx context.Context, header wire.IPv4Header, payload []byte) {
	p.logger.Warn("dropping datagram, ttl expired in transit", slog.String("dst", header.Destination.String()))
	p.metrics.IncTTLExceeded(p.chassis)
	quoted := append([]byte(nil), header.Bytes()...)
	n := len(payload)
	if n > quotedPayloadMax {
		n = quotedPayloadMax
	}
	quoted = append(quoted, payload[:n]...)

	icmpPkt := wire.NewTimeExceeded(quoted)
	data, err := wire.EncodeICMP(icmpPkt)
	if err != nil {
		p.logger.Warn("failed to encode icmp time exceeded", slog.String("error", err.Error()))
		return
	}
	p.sendDatagram(ctx, header.Source, nil, wire.IPProtocolICMP, data)
}

// forward re-emits a datagram not addressed to this chassis: routing
// lookup, ARP resolve the next hop, decrement TTL, re-encode.
func (p *Process) forward(ctx context.Context, header wire.IPv4Header, newTTL uint8, payload []byte) {
	route, ok := p.config.Routes().GetRoute(header.Destination)
	if !ok {
		p.logger.Warn("dropping datagram, no route", slog.String("dst", header.Destination.String()))
		p.metrics.IncDatagramsDropped(p.chassis, netsimmetrics.DropRouteMiss)
		return
	}
	nextHop := route.Gateway
	if nextHop == (wire.IPv4Addr{}) {
		nextHop = header.Destination
	}
	resolveCtx, cancel := context.WithTimeout(ctx, p.arpTimeout)
	defer cancel()
	mac, ok := p.arp.Resolve(resolveCtx, nextHop, route.Iface)
	if !ok {
		p.logger.Warn("dropping datagram, arp resolve failed", slog.String("next_hop", nextHop.String()))
		p.metrics.IncDatagramsDropped(p.chassis, netsimmetrics.DropArpTimeout)
		return
	}
	outHeader := header
	outHeader.TTL = newTTL
	data, err := wire.EncodeIPv4(wire.IPv4Packet{Header: outHeader, Payload: payload})
	if err != nil {
		p.logger.Warn("failed to encode forwarded datagram", slog.String("error", err.Error()))
		return
	}
	p.transmit(route.Iface, mac, data)
	p.metrics.IncDatagramsForwarded(p.chassis)
}

func (p *Process) handleTransportEgress(ctx context.Context, from ids.TransportLayerId, payload layermsg.NetworkTransport) {
	proto, ok := protocolFor(from)
	if !ok {
		p.logger.Warn("dropping egress request from unknown transport", slog.Any("transport", from))
		return
	}
	p.sendDatagram(ctx, payload.Addr, payload.TTL, proto, payload.Data)
}

// sendDatagram builds and emits a fresh datagram originated by this
// chassis: DSCP=0, ECN=NotECT, identification=0,
// no flags, ttl = maybe_ttl or 255.
func (p *Process) sendDatagram(ctx context.Context, dst wire.IPv4Addr, ttl *uint8, proto wire.IPProtocol, payload []byte) {
	route, ok := p.config.Routes().GetRoute(dst)
	if !ok {
		p.logger.Warn("dropping egress datagram, no route", slog.String("dst", dst.String()))
		p.metrics.IncDatagramsDropped(p.chassis, netsimmetrics.DropRouteMiss)
		return
	}
	nextHop := route.Gateway
	if nextHop == (wire.IPv4Addr{}) {
		nextHop = dst
	}
	resolveCtx, cancel := context.WithTimeout(ctx, p.arpTimeout)
	defer cancel()
	mac, ok := p.arp.Resolve(resolveCtx, nextHop, route.Iface)
	if !ok {
		p.logger.Warn("dropping egress datagram, arp resolve failed", slog.String("next_hop", nextHop.String()))
		p.metrics.IncDatagramsDropped(p.chassis, netsimmetrics.DropArpTimeout)
		return
	}
	effTTL := uint8(DefaultTTL)
	if ttl != nil {
		effTTL = *ttl
	}
	header := wire.IPv4Header{
		TTL:         effTTL,
		Protocol:    proto,
		Source:      p.config.Addr(),
		Destination: dst,
	}
	data, err := wire.EncodeIPv4(wire.IPv4Packet{Header: header, Payload: payload})
	if err != nil {
		p.logger.Warn("failed to encode egress datagram", slog.String("error", err.Error()))
		return
	}
	p.transmit(route.Iface, mac, data)
}

func (p *Process) transmit(iface ids.LinkLayerId, mac wire.Mac, data []byte) {
	mb, ok := p.downPeers.Get(iface)
	if !ok {
		p.logger.Warn("dropping datagram, no nic registered", slog.Any("iface", iface))
		return
	}
	msg := bus.DataMessage[ids.NetworkLayerId, ids.LinkLayerId](ids.NetworkLayerIPv4, layermsg.LinkNetwork{
		Mac:  mac,
		Data: data,
	})
	if !bus.Send(mb, msg) {
		p.downPeers.Remove(iface)
	}
}

func transportFor(proto wire.IPProtocol) (ids.TransportLayerId, bool) {
	switch proto {
	case wire.IPProtocolICMP:
		return ids.TransportICMP, true
	case wire.IPProtocolUDP:
		return ids.TransportUDP, true
	default:
		return 0, false
	}
}

func protocolFor(tid ids.TransportLayerId) (wire.IPProtocol, bool) {
	switch tid {
	case ids.TransportICMP:
		return wire.IPProtocolICMP, true
	case ids.TransportUDP:
		return wire.IPProtocolUDP, true
	default:
		return 0, false
	}
}
