package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kleroscope/kleroscope/internal/store"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <results.csv> <results.arrow>",
		Short: "Convert a CSV results file to Arrow IPC",
		Long: `Re-encode a CSV results file as an Arrow IPC file.

The Arrow file carries the same columns as the CSV and loads directly into
dataframe tooling (pandas, polars, DuckDB) without re-parsing parameters
from text.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, attack, err := store.ReadCSV(args[0])
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("%s has no result rows", args[0])
			}
			if err := store.WriteArrowIPC(args[1], rows, attack); err != nil {
				return err
			}
			fmt.Printf("Wrote %d rows to %s\n", len(rows), args[1])
			return nil
		},
	}
	return cmd
}
