package bus

// Send attempts a non-blocking delivery to mb, mirroring the session
// mailbox idiom used throughout this codebase: a full or nil mailbox
// means the peer is unreachable right now, and the caller logs and moves
// on rather than blocking the process loop.
func Send[FromID, ToID comparable, Payload any](mb Mailbox[FromID, ToID, Payload], msg Message[FromID, ToID, Payload]) bool {
	if mb == nil {
		return false
	}
	select {
	case mb <- msg:
		return true
	default:
		return false
	}
}

// Broadcast delivers a NewConn announcement to every peer currently
// registered in m, keeping each side's map current as processes join.
func Broadcast[FromID, ToID comparable, Payload any](m *PeerMap[FromID, ToID, Payload], msg Message[FromID, ToID, Payload]) {
	m.Each(func(_ ToID, mb Mailbox[FromID, ToID, Payload]) {
		Send(mb, msg)
	})
}
