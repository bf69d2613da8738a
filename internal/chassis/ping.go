package chassis

import (
	"context"
	"log/slog"
	"time"

	"github.com/dantte-lp/netsim/internal/icmpproc"
	"github.com/dantte-lp/netsim/internal/wire"
)

// pingID is the fixed ICMP echo identifier every ping run uses. One
// chassis only ever has one ping in flight per target in the scenarios
// this simulator exercises, so a single shared id never causes
// collisions that would be distinguishable from a lost packet.
const pingID = 0

// pingInterval is the delay between successive echo requests.
const pingInterval = 500 * time.Millisecond

// PingReply is what one echo request yielded: either a round-trip time
// and the reply's TTL, or a timeout.
type PingReply struct {
	Seq int
	TTL uint8
	RTT time.Duration
	Ok  bool
}

// PingSummary is the aggregate report `ping` prints once every request
// has been sent and awaited.
type PingSummary struct {
	Sent     int
	Received int
	Lost     int
	Min      time.Duration
	Max      time.Duration
	Avg      time.Duration
}

// LossPercent returns the fraction of Sent requests that went
// unanswered, as a percentage.
func (s PingSummary) LossPercent() float64 {
	if s.Sent == 0 {
		return 0
	}
	return float64(s.Lost) * 100 / float64(s.Sent)
}

// Ping sends count echo requests to target, one every pingInterval,
// each bounded by perReqTimeout, and returns the aggregate summary.
// onReply, if non-nil, is invoked synchronously for every reply or
// timeout in sequence order, letting the caller log each one as it
// completes. Ping returns early if ctx is
// cancelled before all count requests have been sent.
func Ping(ctx context.Context, icmp *icmpproc.Handle, target wire.IPv4Addr, count int, perReqTimeout time.Duration, onReply func(PingReply)) PingSummary {
	replies := make([]PingReply, 0, count)

	for seq := 0; seq < count; seq++ {
		if ctx.Err() != nil {
			break
		}
		replies = append(replies, echoOnce(ctx, icmp, target, seq, perReqTimeout))
		if onReply != nil {
			onReply(replies[len(replies)-1])
		}
		if seq < count-1 {
			select {
			case <-time.After(pingInterval):
			case <-ctx.Done():
			}
		}
	}

	return summarize(replies)
}

func echoOnce(ctx context.Context, icmp *icmpproc.Handle, target wire.IPv4Addr, seq int, timeout time.Duration) PingReply {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, ok := icmp.EchoIPv4(reqCtx, pingID, uint16(seq), target)
	if !ok {
		return PingReply{Seq: seq, Ok: false}
	}
	return PingReply{Seq: seq, TTL: res.TTL, RTT: time.Since(start), Ok: true}
}

func summarize(replies []PingReply) PingSummary {
	s := PingSummary{Sent: len(replies)}
	var sum time.Duration
	for _, r := range replies {
		if !r.Ok {
			s.Lost++
			continue
		}
		s.Received++
		sum += r.RTT
		if s.Min == 0 || r.RTT < s.Min {
			s.Min = r.RTT
		}
		if r.RTT > s.Max {
			s.Max = r.RTT
		}
	}
	if s.Received > 0 {
		s.Avg = sum / time.Duration(s.Received)
	}
	return s
}

// LogSummary writes the ping summary at info level.
func LogSummary(logger *slog.Logger, target wire.IPv4Addr, s PingSummary) {
	logger.Info("ping stats",
		slog.String("target", target.String()),
		slog.Int("sent", s.Sent),
		slog.Int("received", s.Received),
		slog.Int("lost", s.Lost),
		slog.Float64("loss_percent", s.LossPercent()),
	)
	if s.Received > 0 {
		logger.Info("ping round trip",
			slog.Duration("min", s.Min),
			slog.Duration("max", s.Max),
			slog.Duration("avg", s.Avg),
		)
	}
}
