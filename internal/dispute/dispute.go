// Package dispute parses real Kleros dispute records and reduces them to
// the same vote-tally summary the simulator emits, so historical outcomes
// can be compared against simulated ones with identical downstream analysis.
package dispute

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// Choice values used in dispute records. Choice "1" is interpreted as "No",
// choice "2" as "Yes"; anything else (including abstentions) is ignored in
// tallies.
const (
	ChoiceNo  = "1"
	ChoiceYes = "2"
)

// Record is a dispute as exported from the arbitration subgraph. The
// currentRulling spelling matches the upstream data.
type Record struct {
	ID            flexString `json:"id"`
	CurrentRuling flexString `json:"currentRulling"`
	StartTime     int64      `json:"startTime"`
	Rounds        []Round    `json:"rounds"`
}

// Round is one appeal round of a dispute.
type Round struct {
	Votes []Vote `json:"votes"`
}

// Vote is a single juror's vote entry. Voted is false for jurors who were
// drawn but never committed a choice.
type Vote struct {
	Voted  bool       `json:"voted"`
	Choice flexString `json:"choice"`
}

// flexString decodes JSON strings and bare numbers alike; subgraph exports
// are inconsistent about which one they use for ids and choices.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("value %s is neither string nor number", data)
	}
	*f = flexString(n.String())
	return nil
}

// Summary is the vote tally of a dispute's final round, aligned with the
// simulator's schema: X is the majority side, Y the minority.
type Summary struct {
	XVotes         int
	YVotes         int
	XPercent       float64
	YPercent       float64
	MajorityChoice string
	TotalVotes     int
}

// Majority returns "X" for compatibility with simulated round results; the
// majority side is X by construction.
func (s *Summary) Majority() string { return "X" }

// XIsYes reports whether the majority side corresponds to the "Yes" choice.
func (s *Summary) XIsYes() bool { return s.MajorityChoice == ChoiceYes }

// ErrNoVotes is returned when the final round contains no countable votes.
var ErrNoVotes = errors.New("dispute has no countable votes")

// Load reads a dispute record from a JSON file.
func Load(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dispute file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a dispute record from r.
func Decode(r io.Reader) (*Record, error) {
	var rec Record
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode dispute: %w", err)
	}
	return &rec, nil
}

// FinalRoundSummary tallies the last round's committed "1"/"2" votes.
// Jurors who never voted or voted outside the binary choices are excluded.
// Ties go to choice "2", matching the upstream parser.
func (r *Record) FinalRoundSummary() (*Summary, error) {
	if len(r.Rounds) == 0 {
		return nil, errors.New("dispute has no rounds")
	}
	final := r.Rounds[len(r.Rounds)-1]

	counts := map[string]int{}
	for _, v := range final.Votes {
		choice := string(v.Choice)
		if v.Voted && (choice == ChoiceNo || choice == ChoiceYes) {
			counts[choice]++
		}
	}
	total := counts[ChoiceNo] + counts[ChoiceYes]
	if total == 0 {
		return nil, ErrNoVotes
	}

	majority := ChoiceYes
	if counts[ChoiceNo] > counts[ChoiceYes] {
		majority = ChoiceNo
	}
	minority := ChoiceNo
	if majority == ChoiceNo {
		minority = ChoiceYes
	}

	return &Summary{
		XVotes:         counts[majority],
		YVotes:         counts[minority],
		XPercent:       percent(counts[majority], total),
		YPercent:       percent(counts[minority], total),
		MajorityChoice: majority,
		TotalVotes:     total,
	}, nil
}

// FinalRuling interprets the dispute's current ruling as Yes/No.
func (r *Record) FinalRuling() string {
	if string(r.CurrentRuling) == ChoiceYes {
		return "Yes"
	}
	return "No"
}

// WriteCSV writes the two-row summary table (one row per side) for
// spreadsheet analysis.
func (s *Summary) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"side", "vote_count", "total_jurors", "ratio"},
		{"X", strconv.Itoa(s.XVotes), strconv.Itoa(s.TotalVotes), ratio(s.XPercent)},
		{"Y", strconv.Itoa(s.YVotes), strconv.Itoa(s.TotalVotes), ratio(s.YPercent)},
	}
	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func percent(count, total int) float64 {
	return math.Round(10000*float64(count)/float64(total)) / 100
}

// ratio renders pct/100 rounded to 2 decimals, halves to even, matching
// the rounding of the upstream export.
func ratio(pct float64) string {
	return strconv.FormatFloat(math.RoundToEven(pct)/100, 'g', -1, 64)
}
