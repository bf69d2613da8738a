package link

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/layermsg"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
	"github.com/dantte-lp/netsim/internal/wire"
)

// inboxSize bounds how many outstanding egress/announcement messages a
// NIC will buffer from the network layer before dropping, matching the
// session mailbox idiom used throughout this codebase.
const inboxSize = 64

type ctrlKind uint8

const (
	ctrlConnect ctrlKind = iota
	ctrlDisconnect
	ctrlStatus
)

type ctrlRequest struct {
	kind  ctrlKind
	cable *Cable
	reply chan ctrlReply
}

type ctrlReply struct {
	ok    bool
	up    bool
	cable *Cable
}

// Nic is one Ethernet interface: it owns a Mac, is Up iff it holds a
// cable handle, and runs a task that multiplexes cable ingress, network-
// layer egress/announcements, and connection-state control requests.
type Nic struct {
	ID  ids.LinkLayerId
	Mac wire.Mac

	logger  *slog.Logger
	metrics *netsimmetrics.Collector
	chassis string

	inbox   layermsg.NetworkToLinkMailbox
	upPeers *bus.PeerMap[ids.LinkLayerId, ids.NetworkLayerId, layermsg.LinkNetwork]
	ctrl    chan ctrlRequest
	connUp  atomic.Bool
}

// NicOption configures optional NIC collaborators.
type NicOption func(*Nic)

// WithNicMetrics attaches the chassis's metrics collector so the NIC
// counts the frames it sends, accepts, and drops.
func WithNicMetrics(m *netsimmetrics.Collector, chassis string) NicOption {
	return func(n *Nic) {
		n.metrics = m
		n.chassis = chassis
	}
}

// NewNic constructs a NIC in the Down state.
func NewNic(id ids.LinkLayerId, mac wire.Mac, logger *slog.Logger, opts ...NicOption) *Nic {
	n := &Nic{
		ID:      id,
		Mac:     mac,
		logger:  logger.With(slog.String("nic", id.String()), slog.String("mac", mac.String())),
		inbox:   make(layermsg.NetworkToLinkMailbox, inboxSize),
		upPeers: bus.NewPeerMap[ids.LinkLayerId, ids.NetworkLayerId, layermsg.LinkNetwork](),
		ctrl:    make(chan ctrlRequest),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Inbox is the mailbox network-layer processes send egress frames and
// NewConn announcements to.
func (n *Nic) Inbox() layermsg.NetworkToLinkMailbox {
	return n.inbox
}

// Handle returns the client-facing façade for this NIC's connection
// state machine.
func (n *Nic) Handle() *NicHandle {
	return &NicHandle{ctrl: n.ctrl, connUp: &n.connUp}
}

// Run executes the NIC's main loop until ctx is cancelled. It must be
// started exactly once, typically by the chassis controller.
func (n *Nic) Run(ctx context.Context) {
	var cable *Cable
	var rx chan wire.EthernetFrame

	defer func() {
		if cable != nil {
			cable.Unsubscribe(rx)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-n.ctrl:
			switch req.kind {
			case ctrlStatus:
				req.reply <- ctrlReply{up: cable != nil, cable: cable}

			case ctrlConnect:
				if cable != nil {
					req.reply <- ctrlReply{ok: false}
					continue
				}
				cable = req.cable
				rx = cable.Subscribe()
				n.connUp.Store(true)
				n.logger.Debug("nic connected")
				req.reply <- ctrlReply{ok: true}

			case ctrlDisconnect:
				if cable == nil {
					req.reply <- ctrlReply{ok: false}
					continue
				}
				cable.Unsubscribe(rx)
				cable = nil
				rx = nil
				n.connUp.Store(false)
				n.logger.Debug("nic disconnected")
				req.reply <- ctrlReply{ok: true}
			}

		case msg := <-n.inbox:
			// NewConn announcements are processed regardless of link
			// state so a NIC's peer map stays current even before it is
			// ever connected to a cable.
			if msg.Kind == bus.KindNewConn {
				n.upPeers.Register(msg.From, msg.Peer)
				continue
			}
			n.handleEgress(cable, rx, msg)

		case frame := <-rx:
			n.handleIngress(frame)
		}
	}
}

func (n *Nic) handleEgress(cable *Cable, rx chan wire.EthernetFrame, msg bus.Message[ids.NetworkLayerId, ids.LinkLayerId, layermsg.LinkNetwork]) {
	if cable == nil {
		n.logger.Warn("dropping egress frame, nic is down")
		n.metrics.IncFramesDropped(n.chassis, n.ID.String())
		return
	}
	ethertype := etherTypeFor(msg.From)
	frame := wire.EthernetFrame{
		Dst:       msg.Payload.Mac,
		Src:       n.Mac,
		EtherType: ethertype,
		Payload:   msg.Payload.Data,
	}
	if _, err := wire.EncodeEthernet(frame); err != nil {
		n.logger.Warn("dropping oversize egress frame", slog.String("error", err.Error()))
		n.metrics.IncFramesDropped(n.chassis, n.ID.String())
		return
	}
	cable.Send(rx, frame)
	n.metrics.IncFramesSent(n.chassis, n.ID.String())
}

func (n *Nic) handleIngress(frame wire.EthernetFrame) {
	if frame.Dst != n.Mac && !frame.Dst.IsMulticast() {
		return
	}
	var nid ids.NetworkLayerId
	switch frame.EtherType {
	case wire.EtherTypeIPv4:
		nid = ids.NetworkLayerIPv4
	case wire.EtherTypeIPv6:
		nid = ids.NetworkLayerIPv6
	case wire.EtherTypeARP:
		nid = ids.NetworkLayerARP
	default:
		n.logger.Warn("unknown ethertype, dropping frame", slog.Any("ethertype", frame.EtherType))
		n.metrics.IncFramesDropped(n.chassis, n.ID.String())
		return
	}
	mb, ok := n.upPeers.Get(nid)
	if !ok {
		n.logger.Warn("no registered peer for ethertype, dropping frame", slog.Any("ethertype", frame.EtherType))
		n.metrics.IncFramesDropped(n.chassis, n.ID.String())
		return
	}
	if !bus.Send(mb, bus.DataMessage[ids.LinkLayerId, ids.NetworkLayerId](n.ID, layermsg.LinkNetwork{Mac: frame.Src, Data: frame.Payload})) {
		n.upPeers.Remove(nid)
		n.metrics.IncFramesDropped(n.chassis, n.ID.String())
		return
	}
	n.metrics.IncFramesReceived(n.chassis, n.ID.String())
}

func etherTypeFor(nid ids.NetworkLayerId) wire.EtherType {
	switch nid {
	case ids.NetworkLayerIPv4:
		return wire.EtherTypeIPv4
	case ids.NetworkLayerIPv6:
		return wire.EtherTypeIPv6
	case ids.NetworkLayerARP:
		return wire.EtherTypeARP
	default:
		return wire.EtherTypeIPv4
	}
}

// NicHandle is the client-facing façade over a connection state machine
// shared by NICs and switch ports: connect_to, disconnect, connect_other,
// and a readable connected flag.
type NicHandle struct {
	ctrl   chan ctrlRequest
	connUp *atomic.Bool
}

// Connected reports whether the underlying port currently holds a cable
// handle.
func (h *NicHandle) Connected() bool {
	return h.connUp.Load()
}

func (h *NicHandle) String() string {
	if h.Connected() {
		return "UP"
	}
	return "DOWN"
}

// status issues a synchronous status query to the owning run loop.
func (h *NicHandle) status() ctrlReply {
	reply := make(chan ctrlReply, 1)
	h.ctrl <- ctrlRequest{kind: ctrlStatus, reply: reply}
	return <-reply
}

// ConnectTo installs cable on this port, requiring it to currently be
// Down. Returns false if the port is already Up.
func (h *NicHandle) ConnectTo(cable *Cable) bool {
	reply := make(chan ctrlReply, 1)
	h.ctrl <- ctrlRequest{kind: ctrlConnect, cable: cable, reply: reply}
	return (<-reply).ok
}

// Disconnect drops this port's cable, requiring it to currently be Up.
func (h *NicHandle) Disconnect() bool {
	reply := make(chan ctrlReply, 1)
	h.ctrl <- ctrlRequest{kind: ctrlDisconnect, reply: reply}
	return (<-reply).ok
}

// ConnectOther joins two NICs so they share a cable.
// (Down,Down) creates a new cable; (Up,Down) or (Down,Up) installs
// the Up side's cable into the Down side; (Up,Up) fails.
func ConnectOther(a, b *NicHandle) bool {
	aStatus := a.status()
	bStatus := b.status()

	switch {
	case !aStatus.up && !bStatus.up:
		cable := NewCable()
		return a.ConnectTo(cable) && b.ConnectTo(cable)
	case aStatus.up && !bStatus.up:
		return b.ConnectTo(aStatus.cable)
	case !aStatus.up && bStatus.up:
		return a.ConnectTo(bStatus.cable)
	default:
		return false
	}
}
