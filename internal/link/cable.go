// Package link implements the link layer: NIC endpoints, the in-memory
// "cable" broadcast channel that joins them, and the optional VLAN-aware
// learning switch.
package link

import (
	"sync"

	"github.com/dantte-lp/netsim/internal/wire"
)

// cableRxBuffer sizes the channel hops inside a cable. It is a
// scheduling cushion, not a drop threshold: a listener that lags spills
// into its pump's unbounded queue and every frame is eventually
// delivered in order.
const cableRxBuffer = 64

// Cable is an in-memory many-to-many broadcast channel: every frame a
// subscriber sends is delivered to every other subscriber, in the order
// it was sent, but never echoed back to the sender itself. Delivery is
// unbounded and lossless; a sender suspends briefly while the fan-out
// hands its frame to each listener's queue, and a slow listener delays
// only itself.
type Cable struct {
	register   chan chan wire.EthernetFrame
	unregister chan chan wire.EthernetFrame
	send       chan cableSend
	done       chan struct{}
	closeOnce  sync.Once
}

type cableSend struct {
	from  chan wire.EthernetFrame
	frame wire.EthernetFrame
}

// cableListener is one subscriber's delivery path: a pump goroutine
// moving frames from the fan-out loop to the subscriber's receive
// channel through an unbounded in-memory queue, so the fan-out never
// blocks on a slow receiver and never discards a frame.
type cableListener struct {
	in   chan wire.EthernetFrame
	stop chan struct{}
}

func newCableListener(out chan wire.EthernetFrame) *cableListener {
	l := &cableListener{
		in:   make(chan wire.EthernetFrame, cableRxBuffer),
		stop: make(chan struct{}),
	}
	go l.pump(out)
	return l
}

// pump drains in and replays to out in order. It is always ready to
// receive, so the fan-out loop's handoff suspends for at most a
// scheduling delay; frames the receiver hasn't consumed yet accumulate
// in queue.
func (l *cableListener) pump(out chan<- wire.EthernetFrame) {
	var queue []wire.EthernetFrame
	for {
		var send chan<- wire.EthernetFrame
		var next wire.EthernetFrame
		if len(queue) > 0 {
			send = out
			next = queue[0]
		}
		select {
		case f := <-l.in:
			queue = append(queue, f)
		case send <- next:
			queue = queue[1:]
		case <-l.stop:
			return
		}
	}
}

// NewCable creates a cable and starts its fan-out goroutine.
func NewCable() *Cable {
	c := &Cable{
		register:   make(chan chan wire.EthernetFrame),
		unregister: make(chan chan wire.EthernetFrame),
		send:       make(chan cableSend, cableRxBuffer),
		done:       make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Cable) run() {
	listeners := make(map[chan wire.EthernetFrame]*cableListener)
	defer func() {
		for _, l := range listeners {
			close(l.stop)
		}
	}()
	for {
		select {
		case rx := <-c.register:
			listeners[rx] = newCableListener(rx)
		case rx := <-c.unregister:
			if l, ok := listeners[rx]; ok {
				close(l.stop)
				delete(listeners, rx)
			}
			// The last subscriber dropping its handle closes the cable.
			if len(listeners) == 0 {
				c.shutdown()
				return
			}
		case s := <-c.send:
			for rx, l := range listeners {
				if rx == s.from {
					continue
				}
				l.in <- s.frame
			}
		case <-c.done:
			return
		}
	}
}

// Subscribe joins the cable and returns the channel frames from other
// subscribers will arrive on. Unsubscribe must be called with the same
// channel to leave.
func (c *Cable) Subscribe() chan wire.EthernetFrame {
	rx := make(chan wire.EthernetFrame, cableRxBuffer)
	select {
	case c.register <- rx:
	case <-c.done:
	}
	return rx
}

// Unsubscribe leaves the cable.
func (c *Cable) Unsubscribe(rx chan wire.EthernetFrame) {
	select {
	case c.unregister <- rx:
	case <-c.done:
	}
}

// Send broadcasts frame to every subscriber except from, suspending the
// caller until the fan-out loop accepts it.
func (c *Cable) Send(from chan wire.EthernetFrame, frame wire.EthernetFrame) {
	select {
	case c.send <- cableSend{from: from, frame: frame}:
	case <-c.done:
	}
}

// Close shuts down the cable's fan-out goroutine. Unsubscribing the last
// listener closes the cable implicitly; Close covers cables that never
// gained a subscriber.
func (c *Cable) Close() {
	c.shutdown()
}

func (c *Cable) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}
