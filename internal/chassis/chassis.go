// Package chassis implements the controller that wires a device's layer
// processes together: it owns the link- and
// network-layer process maps and fans `NewConn` announcements out to
// the adjacent layer whenever a new process joins, so every process's
// peer map stays current regardless of join order.
package chassis

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/layermsg"
	"github.com/dantte-lp/netsim/internal/link"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
	"github.com/dantte-lp/netsim/internal/wire"
)

// NetworkProcess is a network-layer process a Chassis can wire to NICs:
// ARP or IPv4. OnNicAdded,
// when set, lets a process that needs a link's hardware address (ARP)
// learn it the moment the NIC joins, rather than querying the NIC over
// a mailbox round trip.
type NetworkProcess struct {
	ID         ids.NetworkLayerId
	Inbox      layermsg.LinkToNetworkMailbox
	OnNicAdded func(ids.LinkLayerId, wire.Mac)
}

// macs is the process-wide authority for auto-assigned NIC addresses.
// It is shared by every chassis so that no two devices in one simulation
// can mint the same hardware address.
var macs = wire.NewMacAuthority(wire.DefaultOUI)

// Chassis owns one device's link-layer (NIC) and network-layer process
// maps and keeps every process's peer map current as new processes join:
// every peer on the adjacent layer receives a NewConn announcement.
type Chassis struct {
	ctx     context.Context
	logger  *slog.Logger
	metrics *netsimmetrics.Collector
	name    string

	mu       sync.Mutex
	nics     map[ids.LinkLayerId]*link.Nic
	networks []NetworkProcess
	nextLink ids.LinkLayerId
}

// New constructs an empty Chassis. Every process added to it is spawned
// as a goroutine under ctx; cancelling ctx stops the whole device.
func New(ctx context.Context, logger *slog.Logger) *Chassis {
	return &Chassis{
		ctx:    ctx,
		logger: logger,
		nics:   make(map[ids.LinkLayerId]*link.Nic),
	}
}

// AddNIC mints a fresh LinkLayerId and, if mac is the zero address, a
// fresh locally-administered Mac, then wires the NIC as AddNICWithID
// does.
func (c *Chassis) AddNIC(mac wire.Mac) (*link.Nic, ids.LinkLayerId) {
	c.mu.Lock()
	id := c.nextLink
	c.nextLink++
	c.mu.Unlock()

	if mac == (wire.Mac{}) {
		mac = macs.NextMac()
	}
	return c.AddNICWithID(id, mac), id
}

// AddNICWithID spawns a NIC under the given id, registers it with every
// already-added network-layer process, and announces it to them (and
// vice versa) via NewConn.
func (c *Chassis) AddNICWithID(id ids.LinkLayerId, mac wire.Mac) *link.Nic {
	nic := link.NewNic(id, mac, c.logger, link.WithNicMetrics(c.metrics, c.name))

	c.mu.Lock()
	c.nics[id] = nic
	networks := append([]NetworkProcess(nil), c.networks...)
	c.mu.Unlock()

	go nic.Run(c.ctx)

	for _, np := range networks {
		c.wireNicToNetwork(nic, id, np)
	}
	return nic
}

// AddNetworkProcess registers a network-layer process and wires it to
// every already-added NIC.
func (c *Chassis) AddNetworkProcess(np NetworkProcess) {
	c.mu.Lock()
	c.networks = append(c.networks, np)
	nics := make(map[ids.LinkLayerId]*link.Nic, len(c.nics))
	for id, nic := range c.nics {
		nics[id] = nic
	}
	c.mu.Unlock()

	for id, nic := range nics {
		c.wireNicToNetwork(nic, id, np)
	}
}

// wireNicToNetwork performs the bidirectional NewConn exchange that
// lets nic and np address each other, then lets np learn the NIC's
// hardware address if it cares to.
func (c *Chassis) wireNicToNetwork(nic *link.Nic, id ids.LinkLayerId, np NetworkProcess) {
	bus.Send(np.Inbox, bus.NewConnMessage[ids.LinkLayerId, ids.NetworkLayerId](id, nic.Inbox()))
	bus.Send(nic.Inbox(), bus.NewConnMessage[ids.NetworkLayerId, ids.LinkLayerId](np.ID, np.Inbox))
	if np.OnNicAdded != nil {
		np.OnNicAdded(id, nic.Mac)
	}
}

// Nic returns the NIC registered under id, if any.
func (c *Chassis) Nic(id ids.LinkLayerId) (*link.Nic, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nic, ok := c.nics[id]
	return nic, ok
}

// Nics returns a snapshot of every NIC currently attached to this
// chassis, keyed by its LinkLayerId.
func (c *Chassis) Nics() map[ids.LinkLayerId]*link.Nic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ids.LinkLayerId]*link.Nic, len(c.nics))
	for id, nic := range c.nics {
		out[id] = nic
	}
	return out
}
