// Command simworker is the short-lived worker process spawned once per job
// by simcore's JobScheduler (spec.md §4.6): it resolves the effective
// config the scheduler wrote into the run directory, invokes either the
// Tracer facade (sim jobs) or RisKernel (ris jobs), writes the run's
// artifact set through ArtifactWriter, and exits with the code the
// scheduler reaps (§6: 0 success, 2 invalid config, 3 resource exhaustion,
// 1 anything else).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "simworker",
	Short: "Runs one sim or RIS Lab job to completion",
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if code, ok := err.(exitCodeError); ok {
		os.Exit(int(code))
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(exitOther)
}
