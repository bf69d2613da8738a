package link

import (
	"testing"
	"time"

	"github.com/dantte-lp/netsim/internal/wire"
)

func TestCableDeliversToOtherSubscribersNotSender(t *testing.T) {
	cable := NewCable()
	defer cable.Close()

	a := cable.Subscribe()
	b := cable.Subscribe()
	defer cable.Unsubscribe(a)
	defer cable.Unsubscribe(b)

	frame := wire.EthernetFrame{Dst: wire.BroadcastMac, Src: testMac(1), EtherType: wire.EtherTypeIPv4}
	cable.Send(a, frame)

	select {
	case got := <-b:
		if got.Src != frame.Src {
			t.Fatalf("b received %+v, want %+v", got, frame)
		}
	case <-time.After(time.Second):
		t.Fatal("b never received the broadcast frame")
	}

	select {
	case got := <-a:
		t.Fatalf("sender a received its own frame: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func testMac(b byte) wire.Mac {
	return wire.Mac{0, 0, 0, 0, 0, b}
}
