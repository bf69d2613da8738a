// Package commands implements netsim's interactive command tree: a
// cobra-based grammar re-parsed on every line of the shell's REPL.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/netsim/internal/chassis"
	"github.com/dantte-lp/netsim/internal/config"
	netsimmetrics "github.com/dantte-lp/netsim/internal/metrics"
)

// state is the shell's session state: every chassis created so far and
// which one, if any, is currently selected.
var state = struct {
	mu      sync.Mutex
	ctx     context.Context
	logger  *slog.Logger
	sim     config.SimConfig
	metrics *netsimmetrics.Collector
	chassis map[string]*chassis.ChassisData
	current string
}{
	chassis: make(map[string]*chassis.ChassisData),
}

// Init wires the package's global session state. Must be called once
// before Execute or RunShell. metrics may be nil when the caller ran
// with the metrics server disabled.
func Init(ctx context.Context, logger *slog.Logger, sim config.SimConfig, metrics *netsimmetrics.Collector) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.ctx = ctx
	state.logger = logger
	state.sim = sim
	state.metrics = metrics
}

// current returns the active ChassisData and its name, or false if no
// chassis is selected.
func current() (*chassis.ChassisData, string, bool) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.current == "" {
		return nil, "", false
	}
	c, ok := state.chassis[state.current]
	return c, state.current, ok
}

// rootCmd is the top-level command every shell line is parsed against.
var rootCmd = &cobra.Command{
	Use:           "netsim",
	Short:         "In-process TCP/IP stack simulator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(stopCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(newCmd())
	rootCmd.AddCommand(useCmd())
	rootCmd.AddCommand(sourceCmd())
	rootCmd.AddCommand(exitCmd())
	rootCmd.AddCommand(linkCmd())
	rootCmd.AddCommand(ipv4Cmd())
	rootCmd.AddCommand(arpCmd())
	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(tracerouteCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command once against os.Args[1:] and exits
// with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
