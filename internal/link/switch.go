package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dantte-lp/netsim/internal/wire"
)

// DefaultLearnTTL is the default MAC-learning table entry lifetime.
const DefaultLearnTTL = 5 * time.Second

// portKind is a switch port's VLAN tagging policy.
type portKind uint8

const (
	PortUnknown portKind = iota
	PortNoDot1q
	PortTrunk
	PortAccess
)

// PortMode is a switch port's VLAN policy: Trunk forwards only tagged
// frames, Access(vid) forwards only untagged frames on the wire and
// tags/untags them internally, NoDot1q forwards only untagged frames,
// and Unknown defers the decision to the first frame it observes.
type PortMode struct {
	kind portKind
	vid  uint16
}

func NewTrunkPort() PortMode          { return PortMode{kind: PortTrunk} }
func NewAccessPort(vid uint16) PortMode { return PortMode{kind: PortAccess, vid: vid} }
func NewNoDot1qPort() PortMode        { return PortMode{kind: PortNoDot1q} }
func NewUnknownPort() PortMode        { return PortMode{kind: PortUnknown} }

func (m PortMode) String() string {
	switch m.kind {
	case PortTrunk:
		return "Trunk"
	case PortAccess:
		return fmt.Sprintf("Access(%d)", m.vid)
	case PortNoDot1q:
		return "NoDot1q"
	default:
		return "Unknown"
	}
}

type switchIngress struct {
	port  int
	frame wire.EthernetFrame
}

// switchPort is one port of a Switch: its own cable connection state
// machine, run by its own small goroutine, feeding decoded frames into
// the switch's central ingress channel and accepting frames the switch
// decides to transmit out this port.
type switchPort struct {
	index  int
	mode   PortMode
	ctrl   chan ctrlRequest
	send   chan wire.EthernetFrame
	connUp atomic.Bool
	logger *slog.Logger

	ingress chan<- switchIngress
}

func (p *switchPort) run(ctx context.Context) {
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

		case req := <-p.ctrl:
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
				p.connUp.Store(true)
				req.reply <- ctrlReply{ok: true}
			case ctrlDisconnect:
				if cable == nil {
					req.reply <- ctrlReply{ok: false}
					continue
				}
				cable.Unsubscribe(rx)
				cable = nil
				rx = nil
				p.connUp.Store(false)
				req.reply <- ctrlReply{ok: true}
			}

		case frame := <-rx:
			select {
			case p.ingress <- switchIngress{port: p.index, frame: frame}:
			case <-ctx.Done():
				return
			}

		case frame := <-p.send:
			if cable == nil {
				p.logger.Warn("dropping egress frame, port is down")
				continue
			}
			cable.Send(rx, frame)
		}
	}
}

func (p *switchPort) handle() *NicHandle {
	return &NicHandle{ctrl: p.ctrl, connUp: &p.connUp}
}

type learnedEntry struct {
	port    int
	learned time.Time
}

// Switch is a multi-port learning bridge with optional 802.1Q-aware port
// modes. It never originates frames; its single goroutine
// multiplexes ingress from every port and performs MAC learning and
// forwarding.
type Switch struct {
	logger  *slog.Logger
	ttl     time.Duration
	ingress chan switchIngress
	learn   map[wire.Mac]learnedEntry

	// mu guards ports: AddPort may be called while the forwarding loop is
	// already running.
	mu    sync.Mutex
	ports []*switchPort
}

// NewSwitch constructs an empty switch.
func NewSwitch(logger *slog.Logger, ttl time.Duration) *Switch {
	if ttl <= 0 {
		ttl = DefaultLearnTTL
	}
	return &Switch{
		logger:  logger,
		ttl:     ttl,
		ingress: make(chan switchIngress, 256),
		learn:   make(map[wire.Mac]learnedEntry),
	}
}

// AddPort adds a new port in the given mode and starts its connection
// goroutine, returning the NicHandle external code uses to cable it to a
// NIC or another switch port.
func (s *Switch) AddPort(ctx context.Context, mode PortMode) *NicHandle {
	s.mu.Lock()
	idx := len(s.ports)
	p := &switchPort{
		index:   idx,
		mode:    mode,
		ctrl:    make(chan ctrlRequest),
		send:    make(chan wire.EthernetFrame, 64),
		logger:  s.logger.With(slog.Int("port", idx)),
		ingress: s.ingress,
	}
	s.ports = append(s.ports, p)
	s.mu.Unlock()
	go p.run(ctx)
	return p.handle()
}

// portsSnapshot copies the current port list; a frame's ingress port
// index is always valid in any snapshot taken after the frame arrived.
func (s *Switch) portsSnapshot() []*switchPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*switchPort(nil), s.ports...)
}

// Run executes the switch's forwarding loop until ctx is cancelled.
func (s *Switch) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case in := <-s.ingress:
			s.forward(in)
		}
	}
}

// forward applies ingress validation, MAC learning, and
// forwarding/flood policy for a single received frame.
func (s *Switch) forward(in switchIngress) {
	ports := s.portsSnapshot()
	port := ports[in.port]
	frame := in.frame

	effective, accept := applyIngressPolicy(port, frame)
	if !accept {
		s.logger.Warn("dropping frame, port mode rejects tagging", slog.Int("port", in.port))
		return
	}

	s.learn[frame.Src] = learnedEntry{port: in.port, learned: now()}

	if dst, ok := s.learnedFresh(frame.Dst); ok {
		target := ports[dst]
		switch {
		case effective != nil && !portAccepts(target.mode, *effective):
			delete(s.learn, frame.Dst)
		case effective == nil && target.mode.kind == PortTrunk:
			// An untagged frame has no VID to tag the trunk egress
			// with; transmit would need to dereference a nil
			// effective tag. Evict the stale learning and fall
			// through to flood instead.
			delete(s.learn, frame.Dst)
		case dst != in.port:
			s.transmit(target, frame, effective)
			return
		default:
			return
		}
	}

	for _, p := range ports {
		if p.index == in.port {
			continue
		}
		if effective != nil {
			if p.mode.kind == PortTrunk || (p.mode.kind == PortAccess && p.mode.vid == effective.VID) {
				s.transmit(p, frame, effective)
			}
			continue
		}
		if p.mode.kind == PortNoDot1q || p.mode.kind == PortUnknown {
			s.transmit(p, frame, effective)
		}
	}
}

// applyIngressPolicy validates frame against port's mode, returning the
// effective internal tag (nil means untagged) and whether the frame is
// accepted at all. Unknown ports are promoted to Trunk permanently on
// the first tagged frame they see; an untagged frame on an Unknown port
// is handled as NoDot1q for that frame only.
func applyIngressPolicy(port *switchPort, frame wire.EthernetFrame) (*wire.Dot1QTag, bool) {
	switch port.mode.kind {
	case PortTrunk:
		if frame.Tag == nil {
			return nil, false
		}
		return frame.Tag, true

	case PortAccess:
		if frame.Tag != nil {
			return nil, false
		}
		tag := wire.Dot1QTag{VID: port.mode.vid}
		return &tag, true

	case PortNoDot1q:
		if frame.Tag != nil {
			return nil, false
		}
		return nil, true

	default: // PortUnknown
		if frame.Tag != nil {
			port.mode = NewTrunkPort()
			return frame.Tag, true
		}
		return nil, true
	}
}

// portAccepts reports whether a learned destination port's mode would
// accept a tagged frame carrying tag on egress.
func portAccepts(mode PortMode, tag wire.Dot1QTag) bool {
	switch mode.kind {
	case PortTrunk:
		return true
	case PortAccess:
		return mode.vid == tag.VID
	default:
		return false
	}
}

// transmit sends frame out p, applying the egress tag transform implied
// by p's mode: Trunk keeps the effective tag, Access strips it, and
// NoDot1q/Unknown carry it untagged.
func (s *Switch) transmit(p *switchPort, frame wire.EthernetFrame, effective *wire.Dot1QTag) {
	out := frame
	switch p.mode.kind {
	case PortTrunk:
		out = frame.WithTag(*effective)
	case PortAccess, PortNoDot1q, PortUnknown:
		out = frame.WithoutTag()
	}
	select {
	case p.send <- out:
	default:
		s.logger.Warn("dropping egress frame, port send buffer full", slog.Int("port", p.index))
	}
}

func (s *Switch) learnedFresh(mac wire.Mac) (int, bool) {
	e, ok := s.learn[mac]
	if !ok {
		return 0, false
	}
	if now().Sub(e.learned) >= s.ttl {
		delete(s.learn, mac)
		return 0, false
	}
	return e.port, true
}

// now is a seam so learning-table aging can be tested deterministically.
var now = time.Now
