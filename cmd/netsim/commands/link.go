package commands

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/netsim/internal/ids"
	"github.com/dantte-lp/netsim/internal/link"
	"github.com/dantte-lp/netsim/internal/wire"
)

// linkCmd groups the currently-selected chassis's NIC commands: list,
// add, and connect.
func linkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Manage the selected chassis's network interfaces",
	}
	cmd.AddCommand(linkListCmd())
	cmd.AddCommand(linkAddCmd())
	cmd.AddCommand(linkConnectCmd())
	return cmd
}

func linkListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List interfaces on the selected chassis",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, name, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}
			state.logger.Info("chassis interfaces", slog.String("chassis", name))
			for id, nic := range c.Chassis.Nics() {
				state.logger.Info("interface",
					slog.String("id", id.String()),
					slog.String("mac", nic.Mac.String()),
					slog.String("status", nic.Handle().String()))
			}
			return nil
		},
	}
}

func linkAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [mac]",
		Short: "Add a new NIC to the selected chassis",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, name, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}
			var mac wire.Mac
			if len(args) == 1 {
				m, err := wire.ParseMac(args[0])
				if err != nil {
					state.logger.Error("invalid mac", slog.String("error", err.Error()))
					return nil
				}
				mac = m
			}
			_, id := c.Chassis.AddNIC(mac)
			state.logger.Info("nic added", slog.String("chassis", name), slog.String("id", id.String()))
			return nil
		},
	}
}

func linkConnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <id> <other-chassis> <other-id>",
		Short: "Cable an interface on the selected chassis to one on another",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			c, name, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}

			selfID, err := parseLinkID(args[0])
			if err != nil {
				state.logger.Error("invalid interface id", slog.String("error", err.Error()))
				return nil
			}
			otherName := args[1]
			otherID, err := parseLinkID(args[2])
			if err != nil {
				state.logger.Error("invalid interface id", slog.String("error", err.Error()))
				return nil
			}

			state.mu.Lock()
			other, exists := state.chassis[otherName]
			state.mu.Unlock()
			if !exists {
				state.logger.Warn("chassis doesn't exist", slog.String("name", otherName))
				return nil
			}

			selfNic, ok := c.Chassis.Nic(selfID)
			if !ok {
				state.logger.Warn("chassis doesn't have interface", slog.String("chassis", name), slog.String("id", selfID.String()))
				return nil
			}
			otherNic, ok := other.Chassis.Nic(otherID)
			if !ok {
				state.logger.Warn("chassis doesn't have interface", slog.String("chassis", otherName), slog.String("id", otherID.String()))
				return nil
			}

			if link.ConnectOther(selfNic.Handle(), otherNic.Handle()) {
				state.logger.Info("connected")
				if state.metrics != nil {
					state.metrics.NicsUp.WithLabelValues(name).Inc()
					state.metrics.NicsUp.WithLabelValues(otherName).Inc()
				}
			} else {
				state.logger.Warn("didn't connect")
			}
			return nil
		},
	}
}

func parseLinkID(s string) (ids.LinkLayerId, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return ids.LinkLayerId(n), nil
}
