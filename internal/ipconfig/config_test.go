package ipconfig_test

import (
	"testing"

	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/ipconfig"
	"github.com/dantte-lp/netsim/internal/wire"
)

func addr(a, b, c, d byte) wire.IPv4Addr { return wire.IPv4Addr{a, b, c, d} }

// TestRoutingTableOrdering pins the sort invariant: inserting routes with
// prefixes [8, 24, 16, 24, 0] must result in stored specificities
// [24, 24, 16, 8, 0], with the two /24 entries in insertion order.
func TestRoutingTableOrdering(t *testing.T) {
	rt := ipconfig.NewRoutingTable()
	prefixes := []int{8, 24, 16, 24, 0}
	for i, p := range prefixes {
		rt.AddRoute(ipconfig.RoutingEntry{
			Dest:  addr(10, 0, byte(i), 0),
			Mask:  wire.NewIPv4Mask(p),
			Iface: ids.LinkLayerId(i),
		})
	}
	snap := rt.Snapshot()
	gotSpecificities := make([]int, len(snap))
	for i, e := range snap {
		gotSpecificities[i] = e.Mask.Specificity()
	}
	want := []int{24, 24, 16, 8, 0}
	for i := range want {
		if gotSpecificities[i] != want[i] {
			t.Fatalf("specificity[%d] = %d, want %d (full: %v)", i, gotSpecificities[i], want[i], gotSpecificities)
		}
	}
	// The two /24 entries (original indices 1 and 3) must keep insertion order.
	if snap[0].Iface != ids.LinkLayerId(1) || snap[1].Iface != ids.LinkLayerId(3) {
		t.Fatalf("equal-specificity entries out of insertion order: %+v", snap)
	}
}

func TestRoutingTableAddRemoveRoundTrip(t *testing.T) {
	rt := ipconfig.NewRoutingTable()
	e := ipconfig.RoutingEntry{Dest: addr(192, 168, 1, 0), Mask: wire.NewIPv4Mask(24), Iface: ids.LinkLayerId(0)}
	rt.AddRoute(e)
	if !rt.RemoveRoute(e) {
		t.Fatal("RemoveRoute reported false for an entry just added")
	}
	if len(rt.Snapshot()) != 0 {
		t.Fatal("table not empty after add+remove of the same entry")
	}
}

func TestRoutingTableLongestPrefixMatch(t *testing.T) {
	rt := ipconfig.NewRoutingTable()
	rt.AddRoute(ipconfig.RoutingEntry{Dest: addr(10, 0, 0, 0), Mask: wire.NewIPv4Mask(8), Iface: ids.LinkLayerId(0)})
	rt.AddRoute(ipconfig.RoutingEntry{Dest: addr(10, 1, 0, 0), Mask: wire.NewIPv4Mask(16), Iface: ids.LinkLayerId(1)})

	e, ok := rt.GetRoute(addr(10, 1, 5, 5))
	if !ok || e.Iface != ids.LinkLayerId(1) {
		t.Fatalf("expected the more specific /16 route to win, got %+v ok=%v", e, ok)
	}

	e, ok = rt.GetRoute(addr(10, 2, 5, 5))
	if !ok || e.Iface != ids.LinkLayerId(0) {
		t.Fatalf("expected the /8 route to win for a non-/16 address, got %+v ok=%v", e, ok)
	}

	if _, ok := rt.GetRoute(addr(172, 16, 0, 1)); ok {
		t.Fatal("expected a route miss for an unrelated address")
	}
}

func TestIPv4AddrMaskIdempotent(t *testing.T) {
	a := addr(192, 168, 57, 200)
	m := wire.NewIPv4Mask(20)
	if a.And(m).And(m) != a.And(m) {
		t.Fatal("masking is not idempotent")
	}
}

func TestConfigAddrRoundTrip(t *testing.T) {
	c := ipconfig.New(addr(192, 168, 0, 31), 0)
	if c.ArpTTL() != ipconfig.DefaultArpTTL {
		t.Fatalf("zero ttl should default to DefaultArpTTL, got %v", c.ArpTTL())
	}
	c.SetAddr(addr(10, 0, 0, 1))
	if c.Addr() != addr(10, 0, 0, 1) {
		t.Fatal("SetAddr did not take effect")
	}
}
