package chassis

import (
	"context"
	"log/slog"

	"github.com/dantte-lp/netsim/internal/arpproc"
	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/icmpproc"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/ipconfig"
	"github.com/dantte-lp/netsim/internal/ipv4proc"
	"github.com/dantte-lp/netsim/internal/layermsg"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
	"github.com/dantte-lp/netsim/internal/udpproc"
	"github.com/dantte-lp/netsim/internal/wire"
)

// ChassisData owns one simulated device: its process graph (a *Chassis),
// the shared IPv4 configuration, and the client handles for ARP, ICMP,
// and UDP that the shell and the ping/traceroute helpers in this package
// use.
type ChassisData struct {
	Name string

	Chassis *Chassis
	Config  *ipconfig.Config

	Arp  *arpproc.Handle
	Icmp *icmpproc.Handle
	Udp  *udpproc.Handle

	Pids *ProcessManager[context.CancelFunc]
}

// Option configures optional ChassisData collaborators.
type Option func(*chassisOptions)

type chassisOptions struct {
	metrics *netsimmetrics.Collector
}

// WithMetrics attaches a metrics collector; it is threaded into every
// layer process and NIC the chassis spawns, so engine events (frames,
// ARP resolutions, forwards, drops, expiries) are counted at the site
// they happen. A nil collector disables counting without any further
// checks at the call sites.
func WithMetrics(m *netsimmetrics.Collector) Option {
	return func(o *chassisOptions) {
		o.metrics = m
	}
}

// NewChassisData wires a default chassis: ARP, IPv4 (bound to the shared config and an ARP
// resolver), ICMP, and UDP(IPv4), each spawned as its own goroutine
// under ctx and connected through the inter-layer bus. Individual NICs
// are added afterwards via Chassis.AddNIC/AddNICWithID.
func NewChassisData(ctx context.Context, name string, logger *slog.Logger, opts ...Option) *ChassisData {
	var o chassisOptions
	for _, opt := range opts {
		opt(&o)
	}

	logger = logger.With(slog.String("chassis", name))
	config := ipconfig.New(wire.IPv4Addr{}, 0)

	arpProc := arpproc.New(config, logger, arpproc.WithMetrics(o.metrics, name))
	ipProc := ipv4proc.New(config, arpProc.Handle(), logger, ipv4proc.WithMetrics(o.metrics, name))
	icmpProc := icmpproc.New(logger)
	udpProc := udpproc.New(logger)

	go arpProc.Run(ctx)
	go ipProc.Run(ctx)
	go icmpProc.Run(ctx)
	go udpProc.Run(ctx)

	c := New(ctx, logger)
	c.metrics = o.metrics
	c.name = name

	// ARP and IPv4 both sit on the network layer, wired to every NIC the
	// chassis controller adds from here on (and to any NIC added before
	// this call, though in practice NewChassisData always runs first).
	c.AddNetworkProcess(NetworkProcess{
		ID:    ids.NetworkLayerARP,
		Inbox: arpProc.Inbox(),
		OnNicAdded: func(id ids.LinkLayerId, mac wire.Mac) {
			arpProc.Handle().SetLinkMac(id, mac)
		},
	})
	c.AddNetworkProcess(NetworkProcess{
		ID:    ids.NetworkLayerIPv4,
		Inbox: ipProc.LinkInbox(),
	})

	// ICMP and UDP sit on the transport layer, one level up from IPv4;
	// the chassis controller's NewConn fan-out only spans link<->network,
	// so the network<->transport pairing is wired directly here, the same
	// bidirectional-announcement idiom as wireNicToNetwork.
	wireTransport(ipProc.TransportInbox(), ids.TransportICMP, icmpProc.Inbox())
	wireTransport(ipProc.TransportInbox(), ids.TransportUDP, udpProc.Inbox())

	return &ChassisData{
		Name:    name,
		Chassis: c,
		Config:  config,
		Arp:     arpProc.Handle(),
		Icmp:    icmpProc.Handle(),
		Udp:     udpProc.Handle(),
		Pids:    NewProcessManager[context.CancelFunc](),
	}
}

// wireTransport performs the bidirectional NewConn exchange that lets
// IPv4 and one transport-layer process (ICMP or UDP) address each other.
func wireTransport(ipv4Transport layermsg.TransportToNetworkMailbox, tid ids.TransportLayerId, transportInbox layermsg.NetworkToTransportMailbox) {
	bus.Send(transportInbox, bus.NewConnMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, ipv4Transport))
	bus.Send(ipv4Transport, bus.NewConnMessage[ids.TransportLayerId, ids.NetworkLayerId](tid, transportInbox))
}
