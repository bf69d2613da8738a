package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/netsim/internal/chassis"
	"github.com/dantte-lp/netsim/internal/wire"
)

// pingCmd sends a run of ICMP echo requests from the selected chassis.
func pingCmd() *cobra.Command {
	var count int
	var timeoutSecs float64

	cmd := &cobra.Command{
		Use:   "ping <addr>",
		Short: "Ping an address from the selected chassis",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, name, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}
			target, err := wire.ParseIPv4Addr(args[0])
			if err != nil {
				state.logger.Error("invalid address", slog.String("error", err.Error()))
				return nil
			}

			runCtx, cancel := context.WithCancel(state.ctx)
			pid := c.Pids.Spawn(cancel)
			defer func() {
				cancel()
				c.Pids.Free(pid)
			}()

			timeout := time.Duration(timeoutSecs * float64(time.Second))
			summary := chassis.Ping(runCtx, c.Icmp, target, count, timeout, func(r chassis.PingReply) {
				state.metrics.IncEchoRequestsSent(name)
				if r.Ok {
					state.metrics.IncEchoRepliesReceived(name)
					state.logger.Info("ping reply",
						slog.Int("seq", r.Seq),
						slog.Int("ttl", int(r.TTL)),
						slog.Duration("rtt", r.RTT))
				} else {
					state.logger.Warn("ping timeout", slog.Int("seq", r.Seq))
				}
			})
			chassis.LogSummary(state.logger, target, summary)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 4, "number of echo requests to send")
	cmd.Flags().Float64VarP(&timeoutSecs, "timeout-secs", "t", 1, "per-request timeout in seconds")
	return cmd
}
