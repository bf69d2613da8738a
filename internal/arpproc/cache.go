package arpproc

import (
	"time"

	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/wire"
)

// cacheKey is the ARP cache's key: a resolved protocol address is only
// meaningful relative to the link it was learned on.
type cacheKey struct {
	addr wire.IPv4Addr
	link ids.LinkLayerId
}

type cacheEntry struct {
	mac     wire.Mac
	learned time.Time
}

// cache is the ARP process's private `(ip, link) -> (mac, time)` table.
// It is owned exclusively by the process goroutine; every other task
// reaches it only through process messages.
type cache struct {
	entries map[cacheKey]cacheEntry
}

func newCache() *cache {
	return &cache{entries: make(map[cacheKey]cacheEntry)}
}

// put records a resolution, overwriting any prior entry for the same
// (ip, link), including unsolicited replies and gratuitous requests.
func (c *cache) put(addr wire.IPv4Addr, link ids.LinkLayerId, mac wire.Mac, now time.Time) {
	c.entries[cacheKey{addr, link}] = cacheEntry{mac: mac, learned: now}
}

// lookup returns the cached hardware address for (addr, link) if present
// and fresher than ttl; a stale entry is evicted on the lookup that finds
// it.
func (c *cache) lookup(addr wire.IPv4Addr, link ids.LinkLayerId, ttl time.Duration, now time.Time) (wire.Mac, bool) {
	key := cacheKey{addr, link}
	e, ok := c.entries[key]
	if !ok {
		return wire.Mac{}, false
	}
	if now.Sub(e.learned) >= ttl {
		delete(c.entries, key)
		return wire.Mac{}, false
	}
	return e.mac, true
}

// snapshot returns the entire IPv4 table as a plain map, for the `arp
// ip-v4-list` command and tests, un-pruned of stale entries (callers
// wanting only fresh entries should re-resolve).
func (c *cache) snapshot() map[wire.IPv4Addr]wire.Mac {
	out := make(map[wire.IPv4Addr]wire.Mac, len(c.entries))
	for k, e := range c.entries {
		out[k.addr] = e.mac
	}
	return out
}
