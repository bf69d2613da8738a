package commands

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/ipconfig"
	"github.com/dantte-lp/netsim/internal/wire"
)

// ipv4Cmd groups the selected chassis's IPv4 address and routing
// commands.
func ipv4Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ip-v4",
		Short: "Manage the selected chassis's IPv4 configuration",
	}
	cmd.AddCommand(ipv4SetCmd())
	cmd.AddCommand(ipv4GetCmd())
	cmd.AddCommand(ipv4RouteCmd())
	return cmd
}

func ipv4SetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <addr>",
		Short: "Set the selected chassis's IPv4 address",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, name, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}
			addr, err := wire.ParseIPv4Addr(args[0])
			if err != nil {
				state.logger.Error("invalid address", slog.String("error", err.Error()))
				return nil
			}
			c.Config.SetAddr(addr)
			state.logger.Info("set chassis ipv4 addr", slog.String("chassis", name), slog.String("addr", addr.String()))
			return nil
		},
	}
}

func ipv4GetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the selected chassis's IPv4 address",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, name, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}
			state.logger.Info("chassis ipv4 addr", slog.String("chassis", name), slog.String("addr", c.Config.Addr().String()))
			return nil
		},
	}
}

func ipv4RouteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Manage the selected chassis's routing table",
	}
	cmd.AddCommand(ipv4RouteListCmd())
	cmd.AddCommand(ipv4RouteAddCmd())
	cmd.AddCommand(ipv4RouteGetCmd())
	return cmd
}

func ipv4RouteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the selected chassis's routing table",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, name, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}
			state.logger.Info("chassis ipv4 routes", slog.String("chassis", name))
			for _, e := range c.Config.Routes().Snapshot() {
				state.logger.Info("route",
					slog.String("dest", e.Dest.String()),
					slog.String("mask", e.Mask.String()),
					slog.String("gateway", e.Gateway.String()),
					slog.String("iface", e.Iface.String()))
			}
			return nil
		},
	}
}

func ipv4RouteAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <destination> <mask> <next-hop> <iface>",
		Short: "Add a routing table entry",
		Args:  cobra.ExactArgs(4),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}

			dest, err := wire.ParseIPv4Addr(args[0])
			if err != nil {
				state.logger.Error("invalid destination", slog.String("error", err.Error()))
				return nil
			}
			prefixLen, err := strconv.Atoi(args[1])
			if err != nil {
				state.logger.Error("invalid mask", slog.String("error", err.Error()))
				return nil
			}
			nextHop, err := wire.ParseIPv4Addr(args[2])
			if err != nil {
				state.logger.Error("invalid next hop", slog.String("error", err.Error()))
				return nil
			}
			iface, err := parseLinkID(args[3])
			if err != nil {
				state.logger.Error("invalid interface id", slog.String("error", err.Error()))
				return nil
			}

			c.Config.Routes().AddRoute(ipconfig.RoutingEntry{
				Dest:    dest,
				Mask:    wire.NewIPv4Mask(prefixLen),
				Gateway: nextHop,
				Iface:   ids.LinkLayerId(iface),
			})
			state.logger.Info("route added")
			return nil
		},
	}
}

func ipv4RouteGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <destination>",
		Short: "Look up the route a destination would take",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}
			dest, err := wire.ParseIPv4Addr(args[0])
			if err != nil {
				state.logger.Error("invalid destination", slog.String("error", err.Error()))
				return nil
			}
			route, ok := c.Config.Routes().GetRoute(dest)
			if !ok {
				state.logger.Warn("route not found", slog.String("destination", dest.String()))
				return nil
			}
			state.logger.Info("route found",
				slog.String("destination", dest.String()),
				slog.String("gateway", route.Gateway.String()),
				slog.String("iface", route.Iface.String()))
			return nil
		},
	}
}
