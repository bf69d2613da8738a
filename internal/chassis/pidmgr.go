package chassis

import "sync"

// PID is a small dense identifier for a user-spawned background task
// (ping, traceroute) running against a chassis.
type PID uint32

// ProcessManager allocates small dense PIDs for user-spawned tasks
// within a chassis. An allocated PID
// is the top of the free stack if one exists, otherwise the next
// counter value; freeing the highest allocated PID (next-1) shrinks the
// counter and absorbs any contiguous run of frees immediately below it,
// so steady alloc/free traffic never grows `free` without bound.
type ProcessManager[T any] struct {
	mu      sync.Mutex
	live    map[PID]T
	free    []PID
	freeSet map[PID]struct{}
	next    PID
}

// NewProcessManager returns an empty manager.
func NewProcessManager[T any]() *ProcessManager[T] {
	return &ProcessManager[T]{
		live:    make(map[PID]T),
		freeSet: make(map[PID]struct{}),
	}
}

// Spawn registers task under a freshly allocated PID.
func (m *ProcessManager[T]) Spawn(task T) PID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pid PID
	if n := len(m.free); n > 0 {
		pid = m.free[n-1]
		m.free = m.free[:n-1]
		delete(m.freeSet, pid)
	} else {
		pid = m.next
		m.next++
	}
	m.live[pid] = task
	return pid
}

// Free releases pid, reporting whether it was live. Releasing the
// PID immediately below `next` shrinks the counter and absorbs any
// contiguous run of already-free PIDs below the new boundary, keeping
// the allocator dense rather than accumulating holes.
func (m *ProcessManager[T]) Free(pid PID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live[pid]; !ok {
		return false
	}
	delete(m.live, pid)

	if pid != m.next-1 {
		m.free = append(m.free, pid)
		m.freeSet[pid] = struct{}{}
		return true
	}

	m.next--
	for m.next > 0 {
		prev := m.next - 1
		if _, ok := m.freeSet[prev]; !ok {
			break
		}
		delete(m.freeSet, prev)
		m.removeFree(prev)
		m.next--
	}
	return true
}

func (m *ProcessManager[T]) removeFree(pid PID) {
	for i, p := range m.free {
		if p == pid {
			m.free = append(m.free[:i], m.free[i+1:]...)
			return
		}
	}
}

// Get returns the task registered under pid, if live.
func (m *ProcessManager[T]) Get(pid PID) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.live[pid]
	return task, ok
}

// Live returns the currently live PIDs in no particular order.
func (m *ProcessManager[T]) Live() []PID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PID, 0, len(m.live))
	for pid := range m.live {
		out = append(out, pid)
	}
	return out
}

// Len reports how many tasks are currently live.
func (m *ProcessManager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
