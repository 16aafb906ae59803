// Command simcore hosts the control plane: the JobGateway HTTP server and
// the JobScheduler dispatcher/reaper (spec.md §5 "the core is a single
// process hosting the JobGateway... and the JobScheduler").
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "simcore",
	Short: "Control plane for the RIS/ray-trace simulator workbench",
	Long: `simcore hosts the JobGateway HTTP surface and the JobScheduler that
dispatches sim and RIS Lab jobs to short-lived simworker subprocesses.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
