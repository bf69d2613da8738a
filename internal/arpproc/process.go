// Package arpproc implements the ARP process: resolves
// IPv4 addresses to Ethernet hardware addresses on demand, answers
// incoming requests addressed to the chassis's own address, and ages
// cache entries by a configurable TTL.
package arpproc

import (
	"context"
	"log/slog"
	"time"

	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/ipconfig"
	"github.com/dantte-lp/netsim/internal/layermsg"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
	"github.com/dantte-lp/netsim/internal/wire"
)

type ctrlKind uint8

const (
	ctrlResolve ctrlKind = iota
	ctrlSnapshot
	ctrlSetLinkMac
)

type ctrlRequest struct {
	kind  ctrlKind
	ip    wire.IPv4Addr
	link  ids.LinkLayerId
	mac   wire.Mac
	reply chan ctrlReply
}

type ctrlReply struct {
	mac      wire.Mac
	ok       bool
	snapshot map[wire.IPv4Addr]wire.Mac
}

type pendingKey struct {
	ip   wire.IPv4Addr
	link ids.LinkLayerId
}

// Process is the ARP layer process: one per chassis, wired to every NIC
// as the ARP-EtherType peer.
type Process struct {
	logger  *slog.Logger
	config  *ipconfig.Config
	metrics *netsimmetrics.Collector
	chassis string

	cache    *cache
	pending  map[pendingKey][]chan ctrlReply
	linkMacs map[ids.LinkLayerId]wire.Mac

	inbox     layermsg.LinkToNetworkMailbox
	downPeers *bus.PeerMap[ids.NetworkLayerId, ids.LinkLayerId, layermsg.LinkNetwork]
	ctrl      chan ctrlRequest
}

const ctrlBuffer = 16

// Option configures optional ARP process collaborators.
type Option func(*Process)

// WithMetrics attaches the chassis's metrics collector so resolve
// outcomes (hit, miss, timeout) are counted.
func WithMetrics(m *netsimmetrics.Collector, chassis string) Option {
	return func(p *Process) {
		p.metrics = m
		p.chassis = chassis
	}
}

// New constructs an ARP process bound to the chassis's shared IPv4
// configuration.
func New(config *ipconfig.Config, logger *slog.Logger, opts ...Option) *Process {
	p := &Process{
		logger:    logger.With(slog.String("process", "arp")),
		config:    config,
		cache:     newCache(),
		pending:   make(map[pendingKey][]chan ctrlReply),
		linkMacs:  make(map[ids.LinkLayerId]wire.Mac),
		inbox:     make(layermsg.LinkToNetworkMailbox, 64),
		downPeers: bus.NewPeerMap[ids.NetworkLayerId, ids.LinkLayerId, layermsg.LinkNetwork](),
		ctrl:      make(chan ctrlRequest, ctrlBuffer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Inbox is the mailbox NICs send ingress frames and NewConn
// announcements to.
func (p *Process) Inbox() layermsg.LinkToNetworkMailbox {
	return p.inbox
}

// Handle returns the client-facing façade other processes and the CLI
// use to resolve addresses and inspect the cache.
func (p *Process) Handle() *Handle {
	return &Handle{ctrl: p.ctrl, metrics: p.metrics, chassis: p.chassis}
}

// Run executes the ARP process's main loop until ctx is cancelled.
func (p *Process) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-p.inbox:
			if msg.Kind == bus.KindNewConn {
				p.downPeers.Register(msg.From, msg.Peer)
				continue
			}
			p.handleIngress(msg.From, msg.Payload)

		case req := <-p.ctrl:
			p.handleCtrl(req)
		}
	}
}

func (p *Process) handleCtrl(req ctrlRequest) {
	switch req.kind {
	case ctrlSetLinkMac:
		p.linkMacs[req.link] = req.mac
		if req.reply != nil {
			req.reply <- ctrlReply{ok: true}
		}

	case ctrlSnapshot:
		req.reply <- ctrlReply{snapshot: p.cache.snapshot()}

	case ctrlResolve:
		now := time.Now()
		if mac, ok := p.cache.lookup(req.ip, req.link, p.config.ArpTTL(), now); ok {
			p.metrics.RecordArpResolution(p.chassis, netsimmetrics.ArpHit)
			req.reply <- ctrlReply{mac: mac, ok: true}
			return
		}
		p.metrics.RecordArpResolution(p.chassis, netsimmetrics.ArpMiss)
		key := pendingKey{req.ip, req.link}
		already := len(p.pending[key]) > 0
		p.pending[key] = append(p.pending[key], req.reply)
		if already {
			// Already awaiting a reply for this (ip, link); don't send a
			// second broadcast request.
			return
		}
		p.sendRequest(req.ip, req.link)
	}
}

// sendRequest emits a broadcast ARP Request for ip on the given link
// only. ARP never retries: a lost request surfaces to the
// caller as a timeout, enforced by Handle.Resolve's context deadline.
func (p *Process) sendRequest(ip wire.IPv4Addr, link ids.LinkLayerId) {
	mb, ok := p.downPeers.Get(link)
	if !ok {
		p.logger.Warn("no nic registered for link, cannot send arp request", slog.Any("link", link))
		return
	}
	sha, _ := p.linkMac(link)
	pkt := wire.NewArpRequest(sha, p.config.Addr(), ip)
	data, err := wire.EncodeArp(pkt)
	if err != nil {
		p.logger.Warn("failed to encode arp request", slog.String("error", err.Error()))
		return
	}
	msg := bus.DataMessage[ids.NetworkLayerId, ids.LinkLayerId](ids.NetworkLayerARP, layermsg.LinkNetwork{
		Mac:  wire.BroadcastMac,
		Data: data,
	})
	if !bus.Send(mb, msg) {
		p.downPeers.Remove(link)
	}
}

// linkMac is supplied by the chassis controller via Handle.SetLinkMac
// when a NIC is wired in, so outgoing ARP requests and replies can carry
// the correct SHA without ARP needing to query the NIC synchronously.
func (p *Process) linkMac(link ids.LinkLayerId) (wire.Mac, bool) {
	mac, ok := p.linkMacs[link]
	return mac, ok
}

func (p *Process) handleIngress(from ids.LinkLayerId, payload layermsg.LinkNetwork) {
	pkt, err := wire.DecodeArp(payload.Data)
	if err != nil {
		p.logger.Warn("dropping undecodable arp packet", slog.String("error", err.Error()))
		return
	}
	if pkt.HType != wire.ArpHTypeEthernet || pkt.PType != wire.ArpPTypeIPv4 {
		return
	}

	now := time.Now()
	p.cache.put(pkt.SPA, from, pkt.SHA, now)

	switch pkt.Op {
	case wire.ArpOpRequest:
		if pkt.TPA != p.config.Addr() {
			return
		}
		myMac, ok := p.linkMac(from)
		if !ok {
			return
		}
		reply := wire.NewArpReply(myMac, p.config.Addr(), pkt.SHA, pkt.SPA)
		data, err := wire.EncodeArp(reply)
		if err != nil {
			p.logger.Warn("failed to encode arp reply", slog.String("error", err.Error()))
			return
		}
		mb, ok := p.downPeers.Get(from)
		if !ok {
			return
		}
		msg := bus.DataMessage[ids.NetworkLayerId, ids.LinkLayerId](ids.NetworkLayerARP, layermsg.LinkNetwork{
			Mac:  pkt.SHA,
			Data: data,
		})
		if !bus.Send(mb, msg) {
			p.downPeers.Remove(from)
		}

	case wire.ArpOpReply:
		key := pendingKey{pkt.SPA, from}
		waiters := p.pending[key]
		delete(p.pending, key)
		for _, ch := range waiters {
			select {
			case ch <- ctrlReply{mac: pkt.SHA, ok: true}:
			default:
			}
		}
	}
}
