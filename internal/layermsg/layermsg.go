// Package layermsg defines the payload shapes and bus mailbox types that
// carry traffic between the link, network, and transport layers of a
// chassis, instantiating the generic bus.Message/bus.Mailbox types from
// internal/bus with this simulator's concrete identifiers and payloads.
package layermsg

import (
	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/wire"
)

// LinkNetwork is exchanged between a NIC and a network-layer process
// (ARP, IPv4). Going down (network -> link), Mac is the resolved
// destination hardware address and Data is the network-layer datagram to
// wrap in an Ethernet frame; the frame's EtherType is chosen by the NIC
// from the sender's NetworkLayerId. Going up (link -> network), Mac is
// the frame's source address and Data is the decoded payload.
type LinkNetwork struct {
	Mac  wire.Mac
	Data []byte
}

// NetworkTransport is exchanged between IPv4 and a transport-layer
// process (ICMP, UDP). Going up (network -> transport, ingress), Addr is
// the datagram's source and TTL is the TTL it arrived with. Going down
// (transport -> network, egress), Addr is the destination and a nil TTL
// means "use the default of 255".
type NetworkTransport struct {
	Addr wire.IPv4Addr
	TTL  *uint8
	Data []byte
}

// Mailbox type aliases for the four concrete bus instantiations a
// chassis wires together.

// NetworkToLinkMailbox is a NIC's inbound mailbox for messages
// originating from a network-layer process.
type NetworkToLinkMailbox = bus.Mailbox[ids.NetworkLayerId, ids.LinkLayerId, LinkNetwork]

// LinkToNetworkMailbox is a network-layer process's inbound mailbox for
// messages originating from a NIC.
type LinkToNetworkMailbox = bus.Mailbox[ids.LinkLayerId, ids.NetworkLayerId, LinkNetwork]

// TransportToNetworkMailbox is IPv4's inbound mailbox for messages
// originating from a transport-layer process.
type TransportToNetworkMailbox = bus.Mailbox[ids.TransportLayerId, ids.NetworkLayerId, NetworkTransport]

// NetworkToTransportMailbox is a transport-layer process's inbound
// mailbox for messages originating from IPv4.
type NetworkToTransportMailbox = bus.Mailbox[ids.NetworkLayerId, ids.TransportLayerId, NetworkTransport]

// TTLPtr is a small convenience for building a NetworkTransport message:
// it returns a pointer to v for use as an explicit TTL.
func TTLPtr(v uint8) *uint8 {
	return &v
}
