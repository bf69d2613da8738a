// Package ipconfig holds the per-chassis IPv4 configuration shared by the
// ARP and IPv4 processes: the configured address, the routing table, and
// the ARP cache TTL. It is the only state in this simulator shared across
// goroutines outside of message passing, so it sits behind RWMutexes
// (one for the addressing state, one inside its RoutingTable) rather
// than being owned by one process's mailbox loop.
package ipconfig

import (
	"sort"
	"sync"
	"time"

	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/wire"
)

// DefaultArpTTL is the default lifetime of an ARP cache entry before it is
// treated as stale.
const DefaultArpTTL = 30 * time.Second

// Config is the shared, read-mostly IPv4 configuration of one chassis.
// Readers (ARP, IPv4, CLI) take the read lock only long enough to copy
// out a snapshot; only the CLI and DHCP-like logic write it.
type Config struct {
	mu      sync.RWMutex
	addr    wire.IPv4Addr
	routes  *RoutingTable
	arpTTL  time.Duration
	dhcpRun bool
}

// New constructs a Config with the given address and ARP TTL. A zero ttl
// is replaced with DefaultArpTTL.
func New(addr wire.IPv4Addr, arpTTL time.Duration) *Config {
	if arpTTL <= 0 {
		arpTTL = DefaultArpTTL
	}
	return &Config{
		addr:   addr,
		routes: NewRoutingTable(),
		arpTTL: arpTTL,
	}
}

// Addr returns the chassis's configured IPv4 address.
func (c *Config) Addr() wire.IPv4Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// SetAddr replaces the chassis's configured IPv4 address.
func (c *Config) SetAddr(addr wire.IPv4Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addr = addr
}

// ArpTTL returns the configured ARP cache entry lifetime.
func (c *Config) ArpTTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.arpTTL
}

// SetArpTTL replaces the configured ARP cache entry lifetime.
func (c *Config) SetArpTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arpTTL = ttl
}

// Routes returns the chassis's routing table. RoutingTable has its own
// internal lock, so callers may use it concurrently without holding
// Config's lock.
func (c *Config) Routes() *RoutingTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.routes
}

// DHCPRun reports whether a DHCP-like address-acquisition process has run
// for this chassis. Not exercised by the core protocol engine.
func (c *Config) DHCPRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dhcpRun
}

// SetDHCPRun records that DHCP-like address acquisition has run.
func (c *Config) SetDHCPRun(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dhcpRun = v
}

// RoutingEntry is one row of a RoutingTable: the network addressed by
// (Dest, Mask), reached via Gateway (the zero address for a directly
// connected route) out Iface.
type RoutingEntry struct {
	Dest    wire.IPv4Addr
	Mask    wire.IPv4Mask
	Gateway wire.IPv4Addr
	Iface   ids.LinkLayerId
}

// RoutingTable is an ordered list of RoutingEntry, kept sorted by prefix
// specificity descending.
type RoutingTable struct {
	mu      sync.RWMutex
	entries []RoutingEntry
}

// NewRoutingTable returns an empty routing table.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{}
}

// AddRoute inserts e, keeping the table sorted by specificity descending.
// Entries of equal specificity keep their relative insertion order.
func (t *RoutingTable) AddRoute(e RoutingEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	sort.SliceStable(t.entries, func(i, j int) bool {
		return t.entries[i].Mask.Specificity() > t.entries[j].Mask.Specificity()
	})
}

// RemoveRoute removes the first entry exactly matching e, reporting
// whether an entry was removed.
func (t *RoutingTable) RemoveRoute(e RoutingEntry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.entries {
		if existing == e {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// GetRoute returns the first entry (in specificity-descending order)
// whose (Dest, Mask) covers query: the first row whose mask & destination
// == mask & query wins, with ties broken by insertion order (preserved by
// AddRoute's stable sort).
func (t *RoutingTable) GetRoute(query wire.IPv4Addr) (RoutingEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if e.Dest.And(e.Mask) == query.And(e.Mask) {
			return e, true
		}
	}
	return RoutingEntry{}, false
}

// Snapshot returns a copy of the table's current entries in their stored
// order, for display or testing.
func (t *RoutingTable) Snapshot() []RoutingEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]RoutingEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
