package bus

import "sync"

// PeerMap is a process's outbound view of one adjacent layer: a map from
// peer identifier to that peer's inbound mailbox. Processes hold one
// PeerMap per adjacent layer (down-side and up-side) and mutate it only
// in response to NewConn announcements, so access is synchronized but
// never contended on the hot ingress/egress path.
type PeerMap[FromID, ToID comparable, Payload any] struct {
	mu    sync.RWMutex
	peers map[ToID]Mailbox[FromID, ToID, Payload]
}

// NewPeerMap returns an empty PeerMap.
func NewPeerMap[FromID, ToID comparable, Payload any]() *PeerMap[FromID, ToID, Payload] {
	return &PeerMap[FromID, ToID, Payload]{
		peers: make(map[ToID]Mailbox[FromID, ToID, Payload]),
	}
}

// Register records the inbound mailbox for peer id, replacing any prior
// entry. Used both when a process discovers a peer directly and when it
// handles a NewConn announcement.
func (m *PeerMap[FromID, ToID, Payload]) Register(id ToID, mb Mailbox[FromID, ToID, Payload]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[id] = mb
}

// Remove prunes a peer, used when a send fails because the peer process
// is gone. The entry is pruned lazily, never treated as fatal.
func (m *PeerMap[FromID, ToID, Payload]) Remove(id ToID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, id)
}

// Get returns the mailbox registered for id, if any.
func (m *PeerMap[FromID, ToID, Payload]) Get(id ToID) (Mailbox[FromID, ToID, Payload], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mb, ok := m.peers[id]
	return mb, ok
}

// Ids returns a snapshot of every currently registered peer id, for
// propagating a NewConn announcement to each of them.
func (m *PeerMap[FromID, ToID, Payload]) Ids() []ToID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]ToID, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

// Each calls fn for every registered (id, mailbox) pair. fn must not call
// back into the PeerMap; Each holds the read lock for its duration.
func (m *PeerMap[FromID, ToID, Payload]) Each(fn func(id ToID, mb Mailbox[FromID, ToID, Payload])) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, mb := range m.peers {
		fn(id, mb)
	}
}

// Len reports how many peers are currently registered.
func (m *PeerMap[FromID, ToID, Payload]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}
