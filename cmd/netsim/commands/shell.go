package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// shellCmd starts the interactive REPL: read a line, split it into
// args, re-parse it against the root command. Selecting a chassis
// switches the prompt from " > " to "(name) > ".
func shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive netsim shell",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			RunShell()
			return nil
		},
	}
}

// RunShell drives the REPL until stdin closes or `stop` exits the
// process. Exported so cmd/netsim's main can launch it directly without
// going through os.Args.
func RunShell() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print(prompt())

	for scanner.Scan() {
		runLine(scanner.Text())
		fmt.Print(prompt())
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "read stdin:", err)
	}
}

func prompt() string {
	if _, name, ok := current(); ok {
		return fmt.Sprintf("(%s) > ", name)
	}
	return " > "
}

// runLine splits one shell line into arguments and re-runs rootCmd
// against them.
func runLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	args := strings.Fields(line)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}
