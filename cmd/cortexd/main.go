// Command cortexd is the personal assistant daemon: it loads configuration,
// wires the LLM provider, tool registry, confirmation broker, notification
// router, and task scheduler together, and runs an inbound transport until
// signalled.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "cortexd",
		Short:   "Personal assistant daemon",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}

	root.AddCommand(buildRunCmd())
	root.AddCommand(buildTasksCmd())
	return root
}
