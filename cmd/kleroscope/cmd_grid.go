package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newGridCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Preview a sweep's parameter grid without running it",
		Long: `Expand the parameter grid of a batch config and report its size.

Nothing is simulated: the command shows the concrete values each axis takes,
the number of parameter combinations, and the number of result rows a run
would produce. Use it to sanity-check a config before committing to a long
sweep.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadBatchConfig(cmd)
			if err != nil {
				return err
			}
			grid, err := cfg.BuildGrid()
			if err != nil {
				return err
			}

			combos := grid.Size()
			totalRows := combos * cfg.Batch.Simulations

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"mechanism":    cfg.Grid.Mechanism,
					"attack":       grid.Attack,
					"epsilon":      grid.Epsilon,
					"combinations": combos,
					"simulations":  cfg.Batch.Simulations,
					"total_rows":   totalRows,
				})
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Axis", "Values"})
			tw.AppendRow(table.Row{"jurors", formatInts(grid.Jurors)})
			tw.AppendRow(table.Row{"reward", formatFloats(grid.Reward)})
			tw.AppendRow(table.Row{"deposit", formatFloats(grid.Deposit)})
			tw.AppendRow(table.Row{"lambda", formatFloats(grid.Lambda)})
			tw.AppendRow(table.Row{"noise", formatFloats(grid.Noise)})
			tw.AppendRow(table.Row{"x_mean", formatFloats(grid.XMean)})
			tw.Render()

			fmt.Printf("\nMechanism: %s", cfg.Grid.Mechanism)
			if grid.Attack {
				fmt.Printf(" (attack enabled, epsilon %g)", grid.Epsilon)
			}
			fmt.Println()
			fmt.Printf("Combinations: %d\n", combos)
			fmt.Printf("Rows per run: %d combinations x %d rounds = %d\n",
				combos, cfg.Batch.Simulations, totalRows)
			if totalRows > largeSweepRows {
				fmt.Println("This is a large sweep; consider narrowing an axis or lowering simulations.")
			}
			return nil
		},
	}

	cmd.Flags().StringP("config", "c", "", "Batch configuration file (YAML); defaults apply when omitted")
	cmd.Flags().Int("simulations", 0, "Override rounds per parameter combination")

	return cmd
}

func formatInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

func formatFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ", ")
}
