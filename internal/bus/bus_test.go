package bus

import "testing"

type fromID int
type toID int

func TestPeerMapRegisterGetRemove(t *testing.T) {
	pm := NewPeerMap[fromID, toID, string]()
	mb := make(Mailbox[fromID, toID, string], 1)
	pm.Register(toID(1), mb)

	got, ok := pm.Get(toID(1))
	if !ok {
		t.Fatal("Get(1) not found after Register")
	}
	if got == nil {
		t.Fatal("Get(1) returned a nil mailbox")
	}

	pm.Remove(toID(1))
	if _, ok := pm.Get(toID(1)); ok {
		t.Fatal("Get(1) still found after Remove")
	}
}

func TestSendDeliversAndDropsWhenFull(t *testing.T) {
	mb := make(Mailbox[fromID, toID, string], 1)
	msg := DataMessage[fromID, toID](fromID(1), "hello")

	if !Send(mb, msg) {
		t.Fatal("Send failed on empty buffered channel")
	}
	if Send(mb, msg) {
		t.Fatal("Send succeeded on a full channel, want drop")
	}
	if got := <-mb; got.Payload != "hello" {
		t.Fatalf("received payload = %q, want %q", got.Payload, "hello")
	}
}

func TestSendOnNilMailboxReturnsFalse(t *testing.T) {
	var mb Mailbox[fromID, toID, string]
	if Send(mb, DataMessage[fromID, toID](fromID(1), "x")) {
		t.Fatal("Send on a nil mailbox returned true")
	}
}

func TestBroadcastReachesEveryPeer(t *testing.T) {
	pm := NewPeerMap[fromID, toID, string]()
	a := make(Mailbox[fromID, toID, string], 1)
	b := make(Mailbox[fromID, toID, string], 1)
	pm.Register(toID(1), a)
	pm.Register(toID(2), b)

	Broadcast(pm, NewConnMessage[fromID, toID, string](fromID(9), nil))

	for name, ch := range map[string]Mailbox[fromID, toID, string]{"a": a, "b": b} {
		select {
		case msg := <-ch:
			if msg.Kind != KindNewConn || msg.From != fromID(9) {
				t.Errorf("%s received %+v, want NewConn from 9", name, msg)
			}
		default:
			t.Errorf("%s did not receive the broadcast", name)
		}
	}
}
