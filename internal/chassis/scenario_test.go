package chassis_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/dantte-lp/netsim/internal/chassis"
	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/ipconfig"
	"github.com/dantte-lp/netsim/internal/link"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
	"github.com/dantte-lp/netsim/internal/wire"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addr(a, b, c, d byte) wire.IPv4Addr { return wire.IPv4Addr{a, b, c, d} }

// twoHosts wires up a pair of single-NIC chassis directly cabled
// together, each configured with a /24 address on the same subnet, and
// returns them ready for ARP/ICMP traffic.
func twoHosts(t *testing.T, opts ...chassis.Option) (*chassis.ChassisData, *chassis.ChassisData) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a := chassis.NewChassisData(ctx, "host-a", testLogger(), opts...)
	b := chassis.NewChassisData(ctx, "host-b", testLogger(), opts...)

	a.Config.SetAddr(addr(10, 0, 0, 1))
	b.Config.SetAddr(addr(10, 0, 0, 2))

	mask := wire.NewIPv4Mask(24)
	a.Config.Routes().AddRoute(ipconfig.RoutingEntry{Dest: addr(10, 0, 0, 0), Mask: mask, Iface: 0})
	b.Config.Routes().AddRoute(ipconfig.RoutingEntry{Dest: addr(10, 0, 0, 0), Mask: mask, Iface: 0})

	nicA, idA := a.Chassis.AddNIC(wire.Mac{})
	nicB, idB := b.Chassis.AddNIC(wire.Mac{})
	if idA != 0 || idB != 0 {
		t.Fatalf("expected both chassis to allocate link id 0, got %d and %d", idA, idB)
	}

	if !link.ConnectOther(nicA.Handle(), nicB.Handle()) {
		t.Fatal("ConnectOther failed to cable the two hosts together")
	}

	// Give both NICs a moment to process the NewConn fan-out before the
	// test starts sending traffic.
	time.Sleep(10 * time.Millisecond)

	return a, b
}

// TestPingBetweenTwoHosts: host A pings host B
// across a directly cabled link and gets all replies back.
func TestPingBetweenTwoHosts(t *testing.T) {
	a, b := twoHosts(t)
	_ = b

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary := chassis.Ping(ctx, a.Icmp, addr(10, 0, 0, 2), 3, time.Second, nil)

	if summary.Sent != 3 {
		t.Fatalf("Sent = %d, want 3", summary.Sent)
	}
	if summary.Received != 3 {
		t.Fatalf("Received = %d, want 3 (lost %d)", summary.Received, summary.Lost)
	}
	if summary.Lost != 0 {
		t.Fatalf("Lost = %d, want 0", summary.Lost)
	}
}

// TestPingUnreachableHostTimesOut exercises the ARP-miss path:
// pinging an address nothing answers for must report every request
// lost, not hang forever.
func TestPingUnreachableHostTimesOut(t *testing.T) {
	a, _ := twoHosts(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary := chassis.Ping(ctx, a.Icmp, addr(10, 0, 0, 99), 2, 200*time.Millisecond, nil)

	if summary.Sent != 2 {
		t.Fatalf("Sent = %d, want 2", summary.Sent)
	}
	if summary.Lost != 2 {
		t.Fatalf("Lost = %d, want 2 (received %d)", summary.Lost, summary.Received)
	}
}

// TestArpCacheLearnsPeer confirms that after a successful ping, host A's
// ARP cache holds an entry for host B's address.
func TestArpCacheLearnsPeer(t *testing.T) {
	a, _ := twoHosts(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chassis.Ping(ctx, a.Icmp, addr(10, 0, 0, 2), 1, time.Second, nil)

	cache := a.Arp.SnapshotCache()
	if _, ok := cache[addr(10, 0, 0, 2)]; !ok {
		t.Fatalf("ARP cache missing entry for 10.0.0.2 after ping: %+v", cache)
	}
}

// TestTracerouteReachesDirectlyCabledTarget: the first probe goes out
// with TTL 0 and arrives at the target already expired, so the target
// itself answers with Time Exceeded and traceroute names it as hop 0 and
// stops.
func TestTracerouteReachesDirectlyCabledTarget(t *testing.T) {
	a, _ := twoHosts(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	target := addr(10, 0, 0, 2)
	hops := chassis.Traceroute(ctx, a.Udp, a.Icmp, target, chassis.DefaultMaxHops, time.Second, nil)

	if len(hops) != 1 {
		t.Fatalf("got %d hops, want exactly 1 (stops on reaching the target)", len(hops))
	}
	if !hops[0].Ok || hops[0].Addr != target {
		t.Fatalf("hop 0 = %+v, want Ok=true addr=%v", hops[0], target)
	}
}

// threeHosts wires A and B into separate /24 subnets joined by a router
// R with one NIC on each: A (10.0.1.1) -- R (10.0.99.1) -- B (10.0.2.1).
func threeHosts(t *testing.T) (a, r, b *chassis.ChassisData) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	a = chassis.NewChassisData(ctx, "host-a", testLogger())
	r = chassis.NewChassisData(ctx, "router", testLogger())
	b = chassis.NewChassisData(ctx, "host-b", testLogger())

	a.Config.SetAddr(addr(10, 0, 1, 1))
	r.Config.SetAddr(addr(10, 0, 99, 1))
	b.Config.SetAddr(addr(10, 0, 2, 1))

	gw := addr(10, 0, 99, 1)
	a.Config.Routes().AddRoute(ipconfig.RoutingEntry{Dest: addr(0, 0, 0, 0), Mask: wire.NewIPv4Mask(0), Gateway: gw, Iface: 0})
	b.Config.Routes().AddRoute(ipconfig.RoutingEntry{Dest: addr(0, 0, 0, 0), Mask: wire.NewIPv4Mask(0), Gateway: gw, Iface: 0})
	r.Config.Routes().AddRoute(ipconfig.RoutingEntry{Dest: addr(10, 0, 1, 0), Mask: wire.NewIPv4Mask(24), Iface: 0})
	r.Config.Routes().AddRoute(ipconfig.RoutingEntry{Dest: addr(10, 0, 2, 0), Mask: wire.NewIPv4Mask(24), Iface: 1})

	nicA, _ := a.Chassis.AddNIC(wire.Mac{})
	nicR0, _ := r.Chassis.AddNIC(wire.Mac{})
	nicR1, _ := r.Chassis.AddNIC(wire.Mac{})
	nicB, _ := b.Chassis.AddNIC(wire.Mac{})

	if !link.ConnectOther(nicA.Handle(), nicR0.Handle()) {
		t.Fatal("failed to cable A to R")
	}
	if !link.ConnectOther(nicR1.Handle(), nicB.Handle()) {
		t.Fatal("failed to cable R to B")
	}

	time.Sleep(10 * time.Millisecond)
	return a, r, b
}

// TestPingAcrossRouter: A pings B through R, exercising forwarding with
// TTL decrement and the return path in both directions.
func TestPingAcrossRouter(t *testing.T) {
	a, _, _ := threeHosts(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary := chassis.Ping(ctx, a.Icmp, addr(10, 0, 2, 1), 2, 2*time.Second, nil)
	if summary.Received != 2 {
		t.Fatalf("Received = %d, want 2 (lost %d)", summary.Received, summary.Lost)
	}
}

// TestTracerouteAcrossRouter: the TTL-0 probe expires at R, which names
// it as hop 0; the TTL-1 probe is forwarded by R with TTL 0 and expires
// on arrival at B, which names the target and stops the run.
func TestTracerouteAcrossRouter(t *testing.T) {
	a, r, b := threeHosts(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	target := addr(10, 0, 2, 1)
	hops := chassis.Traceroute(ctx, a.Udp, a.Icmp, target, chassis.DefaultMaxHops, 2*time.Second, nil)

	if len(hops) != 2 {
		t.Fatalf("got %d hops %+v, want 2", len(hops), hops)
	}
	if !hops[0].Ok || hops[0].Addr != r.Config.Addr() {
		t.Fatalf("hop 0 = %+v, want the router %v", hops[0], r.Config.Addr())
	}
	if !hops[1].Ok || hops[1].Addr != b.Config.Addr() {
		t.Fatalf("hop 1 = %+v, want the target %v", hops[1], b.Config.Addr())
	}
}

// TestRoutingTableMissDropsDatagram confirms a ping to an address with no
// covering route never gets an ICMP reply.
func TestRoutingTableMissDropsDatagram(t *testing.T) {
	a, _ := twoHosts(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	summary := chassis.Ping(ctx, a.Icmp, addr(172, 16, 0, 5), 1, 200*time.Millisecond, nil)

	if summary.Received != 0 {
		t.Fatalf("Received = %d, want 0 for an unrouted destination", summary.Received)
	}
}

// TestMetricsCountEngineEvents confirms a collector threaded through
// NewChassisData is incremented by the engine itself: a single ping
// leaves frame, ARP, and echo activity visible on the registry.
func TestMetricsCountEngineEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := netsimmetrics.NewCollector(reg)

	a, _ := twoHosts(t, chassis.WithMetrics(m))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary := chassis.Ping(ctx, a.Icmp, addr(10, 0, 0, 2), 1, time.Second, nil)
	if summary.Received != 1 {
		t.Fatalf("Received = %d, want 1", summary.Received)
	}

	if got := testutil.ToFloat64(m.FramesSent.WithLabelValues("host-a", "eth0")); got < 2 {
		t.Fatalf("host-a frames sent = %v, want >= 2 (arp request + echo request)", got)
	}
	if got := testutil.ToFloat64(m.FramesReceived.WithLabelValues("host-a", "eth0")); got < 2 {
		t.Fatalf("host-a frames received = %v, want >= 2 (arp reply + echo reply)", got)
	}
	if got := testutil.ToFloat64(m.ArpResolutions.WithLabelValues("host-a", netsimmetrics.ArpMiss)); got < 1 {
		t.Fatalf("host-a arp misses = %v, want >= 1 (cold cache)", got)
	}
}

// TestChassisNicAllocationIsDense confirms successive AddNIC calls on one
// chassis allocate LinkLayerIds 0, 1, 2, ...
func TestChassisNicAllocationIsDense(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := chassis.NewChassisData(ctx, "dense", testLogger())

	_, id0 := c.Chassis.AddNIC(wire.Mac{})
	_, id1 := c.Chassis.AddNIC(wire.Mac{})
	_, id2 := c.Chassis.AddNIC(wire.Mac{})

	if id0 != ids.LinkLayerId(0) || id1 != ids.LinkLayerId(1) || id2 != ids.LinkLayerId(2) {
		t.Fatalf("expected dense allocation 0,1,2; got %d,%d,%d", id0, id1, id2)
	}
}
