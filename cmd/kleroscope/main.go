package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kleroscope/kleroscope/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kleroscope",
		Short: "Schelling-point voting oracle simulator",
		Long: `kleroscope simulates a Schelling-point voting oracle: a decentralized
jury in which bounded-rational jurors vote under configurable reward
mechanisms, with an optional p+epsilon bribery attack.

It runs single simulations, sweeps parameter grids in parallel and
parses real Kleros dispute records for side-by-side validation.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for scripted consumption)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log verbosity: info, debug or trace")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		slog.SetDefault(logging.NewLogger(level, os.Stderr))
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newBatchCmd(),
		newGridCmd(),
		newDisputeCmd(),
		newExportCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
