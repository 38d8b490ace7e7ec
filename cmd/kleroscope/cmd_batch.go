package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kleroscope/kleroscope/internal/batch"
	"github.com/kleroscope/kleroscope/internal/config"
	"github.com/kleroscope/kleroscope/internal/logging"
	"github.com/kleroscope/kleroscope/internal/store"
)

// Past this many result rows a sweep gets a heads-up before it starts.
const largeSweepRows = 1_000_000

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a parameter sweep from a config file",
		Long: `Run a batch of simulations over a parameter grid.

The grid, worker-pool sizing and output are read from a YAML config file
(see 'kleroscope batch --example' for a starting point); flags override
individual settings. Each parameter combination becomes one job, jobs run
in parallel, and every completed job appends its per-round rows to the
configured CSV file or SQLite database. A runs.jsonl manifest next to the
output file records what each run produced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if example, _ := cmd.Flags().GetBool("example"); example {
				fmt.Print(exampleConfig)
				return nil
			}

			cfg, err := loadBatchConfig(cmd)
			if err != nil {
				return err
			}
			grid, err := cfg.BuildGrid()
			if err != nil {
				return err
			}
			jobs, err := batch.JobsFromGrid(grid, cfg.Batch.Simulations)
			if err != nil {
				return err
			}

			totalRows := len(jobs) * cfg.Batch.Simulations
			if totalRows > largeSweepRows {
				fmt.Fprintf(os.Stderr, "warning: sweep spans %d combinations x %d rounds = %d rows; this may take a while\n",
					len(jobs), cfg.Batch.Simulations, totalRows)
			}

			w, err := openStore(cfg.Batch.Output, grid.Attack)
			if err != nil {
				return err
			}
			defer w.Close()

			logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

			bar := progressbar.NewOptions(len(jobs),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("sweeping"),
				progressbar.OptionClearOnFinish(),
			)
			runner := batch.NewRunner(w, batch.Options{
				Workers:   cfg.Batch.Workers,
				ChunkSize: cfg.Batch.ChunkSize,
				Seed:      cfg.Batch.Seed,
				Logger:    logger,
				Observer: func(fraction float64, msg string) {
					_ = bar.Set(int(fraction * float64(len(jobs))))
				},
			})

			sum, runErr := runner.Run(cmd.Context(), jobs)
			if sum != nil {
				writeRunManifest(cfg, sum)
				if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
					_ = json.NewEncoder(os.Stdout).Encode(sum)
				} else {
					renderSummary(sum, cfg.Batch.Output.Path)
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringP("config", "c", "", "Batch configuration file (YAML); defaults apply when omitted")
	cmd.Flags().Int("simulations", 0, "Override rounds per parameter combination")
	cmd.Flags().Int("workers", 0, "Override worker-pool size")
	cmd.Flags().Uint64("seed", 0, "Override the batch seed")
	cmd.Flags().String("out", "", "Override the output path")
	cmd.Flags().String("format", "", "Override the output format: csv or sqlite")
	cmd.Flags().Bool("example", false, "Print an example config file and exit")

	return cmd
}

// loadBatchConfig reads the config file (or the defaults) and layers any
// flag overrides on top, re-validating the result.
func loadBatchConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg config.Config
	if path == "" {
		cfg = config.DefaultConfig()
	} else {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if cmd.Flags().Changed("simulations") {
		cfg.Batch.Simulations, _ = cmd.Flags().GetInt("simulations")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Batch.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	if cmd.Flags().Changed("out") {
		cfg.Batch.Output.Path, _ = cmd.Flags().GetString("out")
	}
	if cmd.Flags().Changed("format") {
		cfg.Batch.Output.Format, _ = cmd.Flags().GetString("format")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, cfg.Validate()
}

func openStore(out config.OutputConfig, attack bool) (store.RowWriter, error) {
	switch out.Format {
	case "sqlite":
		return store.NewSQLiteStore(out.Path)
	default:
		return store.NewCSVStore(out.Path, attack)
	}
}

// writeRunManifest appends one JSONL event describing the finished run next
// to the output file.
func writeRunManifest(cfg config.Config, sum *batch.Summary) {
	dir := filepath.Dir(cfg.Batch.Output.Path)
	rl := logging.NewRunLogger(filepath.Join(dir, "runs.jsonl"))
	defer rl.Close()

	rl.Log(map[string]any{
		"run_id":       sum.RunID,
		"output":       cfg.Batch.Output.Path,
		"format":       cfg.Batch.Output.Format,
		"mechanism":    cfg.Grid.Mechanism,
		"attack":       cfg.Grid.Attack,
		"simulations":  cfg.Batch.Simulations,
		"seed":         cfg.Batch.Seed,
		"total_jobs":   sum.TotalJobs,
		"completed":    sum.Completed,
		"failed":       sum.Failed,
		"rows_written": sum.RowsWritten,
		"elapsed":      sum.Elapsed.String(),
	})
}

func renderSummary(sum *batch.Summary, outPath string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Run", sum.RunID})
	tw.AppendRow(table.Row{"Jobs", sum.TotalJobs})
	tw.AppendRow(table.Row{"Completed", sum.Completed})
	tw.AppendRow(table.Row{"Failed", sum.Failed})
	tw.AppendRow(table.Row{"Rows written", sum.RowsWritten})
	tw.AppendRow(table.Row{"Elapsed", sum.Elapsed.Round(time.Millisecond)})
	tw.AppendRow(table.Row{"Output", outPath})
	tw.Render()

	for _, f := range sum.Failures {
		fmt.Printf("  job %d failed: %s (%s)\n", f.JobIndex, f.Reason, f.Params.String())
	}
}

const exampleConfig = `logging:
  level: info

batch:
  simulations: 500
  workers: 0        # 0 = number of CPUs minus one
  chunk_size: 4
  seed: 1
  output:
    format: csv     # csv or sqlite
    path: results.csv

grid:
  mechanism: Redistributive
  attack: true
  epsilon: 0.25
  x_guess_noise: 0.1
  jurors:
    fixed: 9
  reward:
    fixed: 1.0
  deposit:
    min: 0.0
    max: 2.0
    step: 0.5
  lambda:
    min: 0.5
    max: 3.0
    step: 0.5
  noise:
    fixed: 0.1
  x_mean:
    fixed: 0.5
`
