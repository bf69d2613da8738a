package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// arpCmd groups the selected chassis's ARP inspection commands.
func arpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arp",
		Short: "Inspect the selected chassis's ARP cache",
	}
	cmd.AddCommand(arpIPv4ListCmd())
	return cmd
}

func arpIPv4ListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ip-v4-list",
		Short: "List the selected chassis's IPv4 ARP cache",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			c, name, ok := current()
			if !ok {
				state.logger.Warn("no chassis selected")
				return nil
			}
			state.logger.Info("chassis arp cache", slog.String("chassis", name))
			cache := c.Arp.SnapshotCache()
			if len(cache) == 0 {
				state.logger.Info("arp cache empty")
				return nil
			}
			for ip, mac := range cache {
				state.logger.Info("arp entry", slog.String("ip", ip.String()), slog.String("mac", mac.String()))
			}
			return nil
		},
	}
}
