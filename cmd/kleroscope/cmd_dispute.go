package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kleroscope/kleroscope/internal/dispute"
)

func newDisputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispute",
		Short: "Work with real Kleros dispute records",
	}
	cmd.AddCommand(newDisputeParseCmd())
	return cmd
}

func newDisputeParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <dispute.json>",
		Short: "Tally the final round of a dispute record",
		Long: `Parse a dispute record exported from the arbitration subgraph and
tally its final appeal round.

The majority side is labelled X and the minority Y, matching the simulator's
output, so real disputes and simulated rounds can be compared side by side.
--out writes the tally as a small CSV table.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := dispute.Load(args[0])
			if err != nil {
				return err
			}
			sum, err := rec.FinalRoundSummary()
			if err != nil {
				return fmt.Errorf("dispute %s: %w", rec.ID, err)
			}

			if out, _ := cmd.Flags().GetString("out"); out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := sum.WriteCSV(f); err != nil {
					return err
				}
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"id":              string(rec.ID),
					"ruling":          rec.FinalRuling(),
					"rounds":          len(rec.Rounds),
					"x_votes":         sum.XVotes,
					"y_votes":         sum.YVotes,
					"x_percent":       sum.XPercent,
					"y_percent":       sum.YPercent,
					"majority_choice": sum.MajorityChoice,
					"total_votes":     sum.TotalVotes,
				})
			}

			majorityLabel := "No"
			if sum.XIsYes() {
				majorityLabel = "Yes"
			}

			fmt.Printf("Dispute %s (%d rounds, ruling: %s)\n\n", rec.ID, len(rec.Rounds), rec.FinalRuling())
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Side", "Choice", "Votes", "Share"})
			tw.AppendRow(table.Row{"X", majorityLabel, sum.XVotes, fmt.Sprintf("%.2f%%", sum.XPercent)})
			tw.AppendRow(table.Row{"Y", otherLabel(majorityLabel), sum.YVotes, fmt.Sprintf("%.2f%%", sum.YPercent)})
			tw.Render()
			return nil
		},
	}

	cmd.Flags().String("out", "", "Write the tally to this CSV file")
	return cmd
}

func otherLabel(label string) string {
	if label == "Yes" {
		return "No"
	}
	return "Yes"
}
