package arpproc

import (
	"context"

	"github.com/dantte-lp/netsim/internal/ids"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
	"github.com/dantte-lp/netsim/internal/wire"
)

// Handle is the client-facing façade over the ARP process: resolve an
// address, snapshot the cache, and
// (chassis wiring only) register a link's hardware address.
type Handle struct {
	ctrl    chan ctrlRequest
	metrics *netsimmetrics.Collector
	chassis string
}

// Resolve asks ARP to resolve ip on the given link, blocking until a
// cached or freshly-learned Mac is available, ctx is done, or the
// process itself is gone. A lost ARP request surfaces here as ctx
// expiring; ARP itself never retries.
func (h *Handle) Resolve(ctx context.Context, ip wire.IPv4Addr, link ids.LinkLayerId) (wire.Mac, bool) {
	reply := make(chan ctrlReply, 1)
	select {
	case h.ctrl <- ctrlRequest{kind: ctrlResolve, ip: ip, link: link, reply: reply}:
	case <-ctx.Done():
		h.metrics.RecordArpResolution(h.chassis, netsimmetrics.ArpTimeout)
		return wire.Mac{}, false
	}
	select {
	case r := <-reply:
		return r.mac, r.ok
	case <-ctx.Done():
		h.metrics.RecordArpResolution(h.chassis, netsimmetrics.ArpTimeout)
		return wire.Mac{}, false
	}
}

// SnapshotCache returns a copy of the current IPv4 ARP table.
func (h *Handle) SnapshotCache() map[wire.IPv4Addr]wire.Mac {
	reply := make(chan ctrlReply, 1)
	h.ctrl <- ctrlRequest{kind: ctrlSnapshot, reply: reply}
	return (<-reply).snapshot
}

// SetLinkMac records the hardware address ARP should use as SHA when it
// sends requests or replies on link. Called once by the chassis
// controller when a NIC is wired into the ARP process.
func (h *Handle) SetLinkMac(link ids.LinkLayerId, mac wire.Mac) {
	reply := make(chan ctrlReply, 1)
	h.ctrl <- ctrlRequest{kind: ctrlSetLinkMac, link: link, mac: mac, reply: reply}
	<-reply
}
