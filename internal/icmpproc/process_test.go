package icmpproc_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/dantte-lp/netsim/internal/bus"
	"github.com/dantte-lp/netsim/internal/icmpproc"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/layermsg"
	"github.com/dantte-lp/netsim/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRunning(t *testing.T) (*icmpproc.Process, layermsg.TransportToNetworkMailbox, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p := icmpproc.New(testLogger())
	go p.Run(ctx)

	ipInbox := make(layermsg.TransportToNetworkMailbox, 8)
	bus.Send(p.Inbox(), bus.NewConnMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, ipInbox))
	return p, ipInbox, ctx
}

func TestEchoRequestAnsweredImmediately(t *testing.T) {
	p, ipInbox, _ := newRunning(t)

	src := wire.IPv4Addr{10, 0, 0, 5}
	req := wire.NewEchoRequest(7, 1)
	data, err := wire.EncodeICMP(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bus.Send(p.Inbox(), bus.DataMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, layermsg.NetworkTransport{
		Addr: src, Data: data,
	}))

	select {
	case msg := <-ipInbox:
		pkt, err := wire.DecodeICMP(msg.Payload.Data)
		if err != nil {
			t.Fatalf("decode reply: %v", err)
		}
		if pkt.Kind != wire.ICMPEchoReply || pkt.ID != 7 || pkt.Seq != 1 {
			t.Fatalf("unexpected reply: %+v", pkt)
		}
		if msg.Payload.Addr != src {
			t.Fatalf("reply addr = %v, want %v", msg.Payload.Addr, src)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echo reply")
	}
}

func TestEchoIPv4RoundTrip(t *testing.T) {
	p, ipInbox, ctx := newRunning(t)
	h := p.Handle()

	target := wire.IPv4Addr{192, 168, 1, 1}
	resultCh := make(chan icmpproc.EchoResult, 1)
	go func() {
		res, ok := h.EchoIPv4(ctx, 3, 9, target)
		if !ok {
			t.Error("EchoIPv4 returned ok=false")
			return
		}
		resultCh <- res
	}()

	select {
	case msg := <-ipInbox:
		pkt, err := wire.DecodeICMP(msg.Payload.Data)
		if err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if pkt.Kind != wire.ICMPEchoRequest || pkt.ID != 3 || pkt.Seq != 9 {
			t.Fatalf("unexpected request: %+v", pkt)
		}
		reply := wire.NewEchoReply(3, 9)
		replyData, err := wire.EncodeICMP(reply)
		if err != nil {
			t.Fatalf("encode reply: %v", err)
		}
		bus.Send(p.Inbox(), bus.DataMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, layermsg.NetworkTransport{
			Addr: target, TTL: layermsg.TTLPtr(64), Data: replyData,
		}))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for echo request")
	}

	select {
	case res := <-resultCh:
		if res.TTL != 64 || res.ID != 3 || res.Seq != 9 || res.Addr != target {
			t.Fatalf("unexpected echo result: %+v", res)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EchoIPv4 to return")
	}
}

func TestEchoIPv4TimesOutWithoutReply(t *testing.T) {
	p, _, _ := newRunning(t)
	h := p.Handle()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, ok := h.EchoIPv4(ctx, 1, 1, wire.IPv4Addr{1, 2, 3, 4}); ok {
		t.Fatal("expected timeout, got a reply")
	}
}

func TestTTLHandlerDeliversOnExactPayloadMatch(t *testing.T) {
	p, _, _ := newRunning(t)
	h := p.Handle()

	quoted := []byte{1, 2, 3, 4, 5}
	ch := h.TTLHandler(quoted)

	hop := wire.IPv4Addr{172, 16, 0, 1}
	pkt := wire.NewTimeExceeded(quoted)
	data, err := wire.EncodeICMP(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bus.Send(p.Inbox(), bus.DataMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, layermsg.NetworkTransport{
		Addr: hop, Data: data,
	}))

	select {
	case addr := <-ch:
		if addr != hop {
			t.Fatalf("delivered addr = %v, want %v", addr, hop)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ttl handler delivery")
	}
}

func TestTTLHandlerSurvivesMultipleHops(t *testing.T) {
	p, _, _ := newRunning(t)
	h := p.Handle()

	quoted := []byte{0x69, 0x69}
	ch := h.TTLHandler(quoted)

	hops := []wire.IPv4Addr{{10, 0, 0, 1}, {10, 0, 0, 2}, {10, 0, 0, 3}}
	for _, hop := range hops {
		pkt := wire.NewTimeExceeded(quoted)
		data, err := wire.EncodeICMP(pkt)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		bus.Send(p.Inbox(), bus.DataMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, layermsg.NetworkTransport{
			Addr: hop, Data: data,
		}))

		select {
		case addr := <-ch:
			if addr != hop {
				t.Fatalf("delivered addr = %v, want %v", addr, hop)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for delivery from hop %v", hop)
		}
	}
}

// TestTTLHandlerStripsQuotedIPv4Header pins the on-wire shape: a router's
// Time Exceeded quotes the expired datagram's IPv4 header plus the first
// bytes of its payload, but a subscriber only knows the bytes it sent.
// The process must strip the quoted header and match on the remainder.
func TestTTLHandlerStripsQuotedIPv4Header(t *testing.T) {
	p, _, _ := newRunning(t)
	h := p.Handle()

	sent := []byte{0xca, 0xfe, 0xba, 0xbe}
	ch := h.TTLHandler(sent)

	expired, err := wire.EncodeIPv4(wire.IPv4Packet{
		Header: wire.IPv4Header{
			TTL:         1,
			Protocol:    wire.IPProtocolUDP,
			Source:      wire.IPv4Addr{10, 0, 0, 1},
			Destination: wire.IPv4Addr{10, 0, 2, 9},
		},
		Payload: sent,
	})
	if err != nil {
		t.Fatalf("encode expired datagram: %v", err)
	}
	quoted := expired[:20+len(sent)]

	hop := wire.IPv4Addr{10, 0, 1, 1}
	data, err := wire.EncodeICMP(wire.NewTimeExceeded(quoted))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bus.Send(p.Inbox(), bus.DataMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, layermsg.NetworkTransport{
		Addr: hop, Data: data,
	}))

	select {
	case addr := <-ch:
		if addr != hop {
			t.Fatalf("delivered addr = %v, want %v", addr, hop)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for ttl handler delivery")
	}
}

func TestTTLHandlerIgnoresMismatchedPayload(t *testing.T) {
	p, _, _ := newRunning(t)
	h := p.Handle()

	ch := h.TTLHandler([]byte{9, 9, 9})

	pkt := wire.NewTimeExceeded([]byte{1, 1, 1})
	data, err := wire.EncodeICMP(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bus.Send(p.Inbox(), bus.DataMessage[ids.NetworkLayerId, ids.TransportLayerId](ids.NetworkLayerIPv4, layermsg.NetworkTransport{
		Addr: wire.IPv4Addr{1, 1, 1, 1}, Data: data,
	}))

	select {
	case addr := <-ch:
		t.Fatalf("unexpected delivery for mismatched payload: %v", addr)
	case <-time.After(100 * time.Millisecond):
	}
}
