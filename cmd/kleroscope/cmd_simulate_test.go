package main

import (
	"path/filepath"
	"testing"

	"github.com/kleroscope/kleroscope/internal/store"
)

func TestSimulateWritesPerRoundCSV(t *testing.T) {
	out := filepath.Join(t.TempDir(), "run.csv")

	err := execCommand(t, newSimulateCmd(),
		"--jurors", "5",
		"--rounds", "20",
		"--seed", "7",
		"--out", out,
	)
	if err != nil {
		t.Fatalf("simulate failed: %v", err)
	}

	rows, attack, err := store.ReadCSV(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if attack {
		t.Error("attack columns present for a no-attack run")
	}
	if len(rows) != 20 {
		t.Fatalf("got %d rows, want 20", len(rows))
	}
	for i, r := range rows {
		if r.Round != i+1 {
			t.Errorf("row %d: round = %d, want %d", i, r.Round, i+1)
		}
		if r.VotesX+r.VotesY != 5 {
			t.Errorf("row %d: votes sum to %d, want 5", i, r.VotesX+r.VotesY)
		}
	}
}

func TestSimulateRejectsUnknownMechanism(t *testing.T) {
	if err := execCommand(t, newSimulateCmd(), "--mechanism", "Quadratic"); err == nil {
		t.Fatal("expected error for unknown mechanism")
	}
}

func TestSimulateRejectsInvalidParameters(t *testing.T) {
	if err := execCommand(t, newSimulateCmd(), "--jurors", "0"); err == nil {
		t.Fatal("expected error for zero jurors")
	}
}
