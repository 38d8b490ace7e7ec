package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kleroscope/kleroscope/internal/oracle"
	"github.com/kleroscope/kleroscope/internal/params"
	"github.com/kleroscope/kleroscope/internal/payoff"
	"github.com/kleroscope/kleroscope/internal/store"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a single oracle simulation",
		Long: `Run one simulation of the voting oracle for a fixed parameter set.

Each round draws independent juror votes under the quantal-response model,
tallies the outcome and settles payoffs. Results are printed as a summary;
--out additionally writes the per-round table as CSV.

Example:
  kleroscope simulate --jurors 9 --lambda 1.5 --rounds 1000 --mechanism Basic`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := paramsFromFlags(cmd)
			if err != nil {
				return err
			}
			rounds, _ := cmd.Flags().GetInt("rounds")
			seed, _ := cmd.Flags().GetUint64("seed")
			out, _ := cmd.Flags().GetString("out")
			showMatrix, _ := cmd.Flags().GetBool("show-matrix")
			jsonOut, _ := cmd.Flags().GetBool("json")

			model, err := oracle.New(p)
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(rounds,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("simulating"),
				progressbar.OptionClearOnFinish(),
			)
			res, err := model.Run(rounds, seed, func(fraction float64, msg string) {
				_ = bar.Set(int(fraction * float64(rounds)))
			})
			if err != nil {
				return err
			}

			if out != "" {
				if err := writeRunCSV(cmd.Context(), out, res); err != nil {
					return err
				}
			}

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			if showMatrix {
				renderMatrix(payoff.SymbolicMatrix(p.Mechanism, p.Attack))
			}
			renderResult(res)
			if out != "" {
				fmt.Printf("\nPer-round results written to %s\n", out)
			}
			return nil
		},
	}

	cmd.Flags().Int("jurors", 9, "Number of jurors M")
	cmd.Flags().Float64("lambda", 1.5, "QRE sensitivity; 0 is fully random voting")
	cmd.Flags().Float64("noise", 0.1, "Perception noise on observed payoffs, in [0,1]")
	cmd.Flags().Float64("reward", 1.0, "Base reward p for majority voters")
	cmd.Flags().Float64("deposit", 0.0, "Deposit d forfeited by minority voters")
	cmd.Flags().String("mechanism", "Basic", "Payoff mechanism: Basic, Redistributive or Symbiotic")
	cmd.Flags().Float64("x-mean", 0.5, "Focal expected share of other jurors voting X")
	cmd.Flags().Float64("x-guess-noise", 0.0, "Spread of the juror's belief about the X count, in [0,1]")
	cmd.Flags().Bool("attack", false, "Enable the p+epsilon bribery attack")
	cmd.Flags().Float64("epsilon", 0.0, "Bribe amount when the attack is enabled")
	cmd.Flags().Int("rounds", 100, "Number of simulation rounds")
	cmd.Flags().Uint64("seed", 1, "RNG seed; identical seeds reproduce identical histories")
	cmd.Flags().String("out", "", "Write per-round results to this CSV file")
	cmd.Flags().Bool("show-matrix", false, "Print the mechanism's payoff matrix")

	return cmd
}

// paramsFromFlags assembles and validates the parameter set shared by
// simulate and the single-run paths.
func paramsFromFlags(cmd *cobra.Command) (params.Parameters, error) {
	mechName, _ := cmd.Flags().GetString("mechanism")
	mech, err := payoff.ParseMechanism(mechName)
	if err != nil {
		return params.Parameters{}, err
	}

	jurors, _ := cmd.Flags().GetInt("jurors")
	lambda, _ := cmd.Flags().GetFloat64("lambda")
	noise, _ := cmd.Flags().GetFloat64("noise")
	reward, _ := cmd.Flags().GetFloat64("reward")
	deposit, _ := cmd.Flags().GetFloat64("deposit")
	xMean, _ := cmd.Flags().GetFloat64("x-mean")
	xGuessNoise, _ := cmd.Flags().GetFloat64("x-guess-noise")
	attack, _ := cmd.Flags().GetBool("attack")
	epsilon, _ := cmd.Flags().GetFloat64("epsilon")

	p := params.Parameters{
		Jurors:      jurors,
		Reward:      reward,
		Deposit:     deposit,
		Lambda:      lambda,
		Noise:       noise,
		XMean:       xMean,
		XGuessNoise: xGuessNoise,
		Mechanism:   mech,
		Attack:      attack,
		Epsilon:     epsilon,
	}
	if err := p.Validate(); err != nil {
		return params.Parameters{}, err
	}
	return p, nil
}

// writeRunCSV persists the per-round table of a single run with the same
// schema batch output uses.
func writeRunCSV(ctx context.Context, path string, res *oracle.Result) error {
	s, err := store.NewCSVStore(path, res.Params.Attack)
	if err != nil {
		return err
	}
	defer s.Close()

	runID := uuid.NewString()
	rows := make([]store.ResultRow, 0, res.Rounds)
	for i := 0; i < res.Rounds; i++ {
		row := store.ResultRow{
			RunID:      runID,
			Round:      i + 1,
			Params:     res.Params,
			VotesX:     res.HistoryX[i],
			VotesY:     res.HistoryY[i],
			AvgPayoffX: res.AvgPayoffX[i],
			AvgPayoffY: res.AvgPayoffY[i],
		}
		if res.Params.Attack {
			row.VotesXNoAttack = res.HistoryXNoAttack[i]
			row.VotesYNoAttack = res.HistoryYNoAttack[i]
		}
		rows = append(rows, row)
	}
	return s.WriteRows(ctx, rows)
}

func renderMatrix(m payoff.Matrix) {
	fmt.Printf("%s\n\n", m.Title)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"", "X wins", "Y wins"})
	tw.AppendRow(table.Row{"Vote X", m.Cells[0][0], m.Cells[0][1]})
	tw.AppendRow(table.Row{"Vote Y", m.Cells[1][0], m.Cells[1][1]})
	tw.Render()

	for _, v := range m.Variables {
		fmt.Printf("  %s\n", v)
	}
	fmt.Println()
}

func renderResult(res *oracle.Result) {
	if res.Rounds == 1 {
		outcome := "X"
		if res.Outcomes.Y == 1 {
			outcome = "Y"
		}
		fmt.Printf("Outcome of this round: %s\n", outcome)
		fmt.Printf("Votes - X: %d, Y: %d\n", res.HistoryX[0], res.HistoryY[0])
		fmt.Printf("Average payoff - X: %.2f, Y: %.2f\n", res.AvgPayoffX[0], res.AvgPayoffY[0])
		if res.Params.Attack {
			if outcome == "Y" {
				fmt.Println("Attack outcome: succeeded (target outcome Y achieved)")
			} else {
				fmt.Println("Attack outcome: failed (target outcome Y not achieved)")
			}
		}
		return
	}

	total := float64(res.Rounds)
	fmt.Printf("Out of %d simulation rounds:\n", res.Rounds)
	fmt.Printf("- Outcome X won %d times (%.1f%%)\n", res.Outcomes.X, 100*float64(res.Outcomes.X)/total)
	fmt.Printf("- Outcome Y won %d times (%.1f%%)\n", res.Outcomes.Y, 100*float64(res.Outcomes.Y)/total)
	if res.Params.Attack {
		fmt.Printf("Attack success rate (Y-win rate vs no attack): %+.1f%%\n", res.AttackSuccessRate)
	}
	fmt.Printf("Average votes per round - X: %.2f, Y: %.2f\n", res.AverageVotesX, res.AverageVotesY)
}
