package commands

import (
	"bufio"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/netsim/internal/chassis"
)

// stopCmd terminates the whole simulator.
func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the simulator",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			state.logger.Info("stopping")
			os.Exit(0)
			return nil
		},
	}
}

// listCmd prints every chassis created so far.
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every chassis created this session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			state.mu.Lock()
			defer state.mu.Unlock()
			state.logger.Info("chassis list")
			i := 0
			for name := range state.chassis {
				state.logger.Info("chassis", slog.Int("index", i), slog.String("name", name))
				i++
			}
			return nil
		},
	}
}

// newCmd creates a chassis and selects it. Creating a chassis that
// already exists warns and just switches to it.
func newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new chassis and select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]

			state.mu.Lock()
			defer state.mu.Unlock()

			if _, exists := state.chassis[name]; exists {
				state.logger.Warn("chassis already exists", slog.String("name", name))
				state.current = name
				return nil
			}

			state.logger.Info("created chassis", slog.String("name", name))
			c := chassis.NewChassisData(state.ctx, name, state.logger, chassis.WithMetrics(state.metrics))
			c.Config.SetArpTTL(state.sim.ArpTTL)
			state.chassis[name] = c
			state.current = name
			if state.metrics != nil {
				state.metrics.ActiveChassis.Inc()
			}
			return nil
		},
	}
}

// useCmd selects an existing chassis by name.
func useCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Select an existing chassis",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]

			state.mu.Lock()
			defer state.mu.Unlock()

			if _, ok := state.chassis[name]; !ok {
				state.logger.Warn("chassis doesn't exist", slog.String("name", name))
				return nil
			}
			state.logger.Info("using chassis", slog.String("name", name))
			state.current = name
			return nil
		},
	}
}

// exitCmd leaves the currently selected chassis.
func exitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exit",
		Short: "Leave the currently selected chassis",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, name, ok := current()
			if !ok {
				state.logger.Warn("not inside a chassis")
				return nil
			}
			state.mu.Lock()
			state.current = ""
			state.mu.Unlock()
			state.logger.Info("exiting chassis", slog.String("name", name))
			return nil
		},
	}
}

// sourceCmd reads a file of shell lines and runs each one exactly as if
// typed at the prompt.
func sourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "source <path>",
		Short: "Run shell commands from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				state.logger.Error("read error", slog.String("error", err.Error()))
				return nil
			}
			defer f.Close()

			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				runLine(scanner.Text())
			}
			return scanner.Err()
		},
	}
}
