// Package cmd is the ad hoc / benchmark command-line driver for the
// solver, grounded on gocfd's cmd/1D.go and 2D.go pattern: a
// package-level rootCmd, subcommands registered from their own init(),
// and an exported Execute entry point.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "solve",
	Short: "Distributed parallel sparse triangular solve",
	Long: `
solve drives the forward/backward triangular solve core against a small
generated test system, for benchmarking and ad hoc experimentation
outside of the package's own test suite.`,
}

// Execute runs the selected subcommand, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
