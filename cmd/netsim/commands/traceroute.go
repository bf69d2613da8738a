package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/netsim/internal/chassis"
	"github.com/dantte-lp/netsim/internal/wire"
)

// tracerouteCmd runs a traceroute from the selected chassis.
func tracerouteCmd() *cobra.Command {
	var maxHops int
	var timeoutSecs float64

	cmd := &cobra.Command{
		Use:   "traceroute <addr>",
		Short: "Trace the route to an address from the selected chassis",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, ok := current()
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
			hops := chassis.Traceroute(runCtx, c.Udp, c.Icmp, target, maxHops, timeout, func(h chassis.Hop) {
				chassis.LogHop(state.logger, h)
			})
			if len(hops) == maxHops && maxHops > 0 {
				if last := hops[len(hops)-1]; last.Ok && last.Addr != target {
					state.logger.Warn("max hops reached")
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxHops, "max-hops", "m", chassis.DefaultMaxHops, "maximum number of hops to probe")
	cmd.Flags().Float64VarP(&timeoutSecs, "timeout-secs", "t", 5, "per-hop timeout in seconds")
	return cmd
}
