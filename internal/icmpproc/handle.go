package icmpproc

import (
	"context"

	"github.com/dantte-lp/netsim/internal/wire"
)

// Handle is the client-facing façade over the ICMP process, used by
// `ping` and `traceroute`.
type Handle struct {
	ctrl chan ctrlRequest
}

// EchoIPv4 sends an EchoRequest{id,seq} to ip and blocks for the matching
// EchoReply, ctx expiring, or the process being gone. A lost reply
// surfaces only as ctx expiring — ICMP itself never retries.
func (h *Handle) EchoIPv4(ctx context.Context, id, seq uint16, ip wire.IPv4Addr) (EchoResult, bool) {
	reply := make(chan ctrlReply, 1)
	req := ctrlRequest{kind: ctrlEcho, echoKey: echoKey{id: id, seq: seq, addr: ip}, reply: reply}
	select {
	case h.ctrl <- req:
	case <-ctx.Done():
		return EchoResult{}, false
	}
	var ch chan EchoResult
	select {
	case r := <-reply:
		ch = r.echoCh
	case <-ctx.Done():
		return EchoResult{}, false
	}
	select {
	case res := <-ch:
		return res, true
	case <-ctx.Done():
		return EchoResult{}, false
	}
}

// TTLHandler registers a subscription for a Time Exceeded message whose
// quoted data exactly matches payload, returning the channel its source
// IP will be delivered on. The match is byte-exact, not a prefix.
func (h *Handle) TTLHandler(payload []byte) chan wire.IPv4Addr {
	reply := make(chan ctrlReply, 1)
	h.ctrl <- ctrlRequest{kind: ctrlTTLHandler, payload: append([]byte(nil), payload...), reply: reply}
	return (<-reply).ttlCh
}
