package dispute

import (
	"strings"
	"testing"
)

const sampleDispute = `{
	"id": 302,
	"currentRulling": "2",
	"startTime": 1625097600,
	"rounds": [
		{"votes": [
			{"voted": true, "choice": "1"},
			{"voted": true, "choice": "2"}
		]},
		{"votes": [
			{"voted": true, "choice": "2"},
			{"voted": true, "choice": "2"},
			{"voted": true, "choice": "1"},
			{"voted": false, "choice": "0"},
			{"voted": true, "choice": "0"}
		]}
	]
}`

func decodeSample(t *testing.T, raw string) *Record {
	t.Helper()
	rec, err := Decode(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return rec
}

func TestDecodeFlexibleFields(t *testing.T) {
	rec := decodeSample(t, sampleDispute)
	if rec.ID != "302" {
		t.Errorf("ID = %q, want \"302\" (numeric id coerced)", rec.ID)
	}
	if rec.CurrentRuling != "2" {
		t.Errorf("CurrentRuling = %q", rec.CurrentRuling)
	}
	if len(rec.Rounds) != 2 {
		t.Fatalf("rounds = %d, want 2", len(rec.Rounds))
	}
}

func TestFinalRoundSummaryUsesLastRoundOnly(t *testing.T) {
	rec := decodeSample(t, sampleDispute)
	sum, err := rec.FinalRoundSummary()
	if err != nil {
		t.Fatalf("FinalRoundSummary: %v", err)
	}

	// Final round: two "2" votes, one "1"; the unvoted juror and the "0"
	// choice are excluded.
	if sum.TotalVotes != 3 {
		t.Errorf("TotalVotes = %d, want 3", sum.TotalVotes)
	}
	if sum.MajorityChoice != ChoiceYes {
		t.Errorf("MajorityChoice = %q, want %q", sum.MajorityChoice, ChoiceYes)
	}
	if sum.XVotes != 2 || sum.YVotes != 1 {
		t.Errorf("votes = %d/%d, want 2/1", sum.XVotes, sum.YVotes)
	}
	if sum.XPercent != 66.67 || sum.YPercent != 33.33 {
		t.Errorf("percentages = %v/%v, want 66.67/33.33", sum.XPercent, sum.YPercent)
	}
	if !sum.XIsYes() {
		t.Error("XIsYes() = false for a Yes majority")
	}
	if sum.Majority() != "X" {
		t.Errorf("Majority() = %q, want X", sum.Majority())
	}
}

func TestFinalRoundSummaryTieGoesToYes(t *testing.T) {
	rec := decodeSample(t, `{"id": "1", "rounds": [{"votes": [
		{"voted": true, "choice": "1"},
		{"voted": true, "choice": "1"},
		{"voted": true, "choice": "2"},
		{"voted": true, "choice": "2"}
	]}]}`)
	sum, err := rec.FinalRoundSummary()
	if err != nil {
		t.Fatalf("FinalRoundSummary: %v", err)
	}
	if sum.MajorityChoice != ChoiceYes {
		t.Errorf("tie resolved to %q, want %q", sum.MajorityChoice, ChoiceYes)
	}
	if !sum.XIsYes() {
		t.Error("XIsYes() = false for a tie")
	}
	if sum.XVotes != 2 || sum.YVotes != 2 {
		t.Errorf("votes = %d/%d, want 2/2", sum.XVotes, sum.YVotes)
	}
}

func TestFinalRoundSummaryErrors(t *testing.T) {
	rec := decodeSample(t, `{"id": "1", "rounds": []}`)
	if _, err := rec.FinalRoundSummary(); err == nil {
		t.Error("expected error for dispute without rounds")
	}

	rec = decodeSample(t, `{"id": "1", "rounds": [{"votes": [
		{"voted": false, "choice": "1"},
		{"voted": true, "choice": "7"}
	]}]}`)
	if _, err := rec.FinalRoundSummary(); err == nil {
		t.Error("expected ErrNoVotes for a round with no countable votes")
	}
}

func TestFinalRuling(t *testing.T) {
	rec := decodeSample(t, sampleDispute)
	if got := rec.FinalRuling(); got != "Yes" {
		t.Errorf("FinalRuling = %q, want Yes", got)
	}
	rec.CurrentRuling = "1"
	if got := rec.FinalRuling(); got != "No" {
		t.Errorf("FinalRuling = %q, want No", got)
	}
}

func TestWriteCSV(t *testing.T) {
	rec := decodeSample(t, sampleDispute)
	sum, err := rec.FinalRoundSummary()
	if err != nil {
		t.Fatalf("FinalRoundSummary: %v", err)
	}

	var buf strings.Builder
	if err := sum.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 sides", len(lines))
	}
	if lines[0] != "side,vote_count,total_jurors,ratio" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "X,2,3,0.67" {
		t.Errorf("X row = %q, want X,2,3,0.67", lines[1])
	}
	if lines[2] != "Y,1,3,0.33" {
		t.Errorf("Y row = %q, want Y,1,3,0.33", lines[2])
	}
}

func TestWriteCSVRoundsHalvesToEven(t *testing.T) {
	// 7-1 split of 8: 87.5% and 12.5% round to 0.88 and 0.12.
	votes := `{"voted": true, "choice": "2"},`
	raw := `{"id": "1", "rounds": [{"votes": [` +
		strings.Repeat(votes, 7) + `{"voted": true, "choice": "1"}]}]}`
	sum, err := decodeSample(t, raw).FinalRoundSummary()
	if err != nil {
		t.Fatalf("FinalRoundSummary: %v", err)
	}

	var buf strings.Builder
	if err := sum.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[1] != "X,7,8,0.88" {
		t.Errorf("X row = %q, want X,7,8,0.88", lines[1])
	}
	if lines[2] != "Y,1,8,0.12" {
		t.Errorf("Y row = %q, want Y,1,8,0.12", lines[2])
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"rounds": [`)); err == nil {
		t.Error("expected decode error")
	}
}
