package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/kleroscope/kleroscope/internal/params"
	"github.com/kleroscope/kleroscope/internal/payoff"
	"github.com/kleroscope/kleroscope/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGrid() params.Grid {
	return params.Grid{
		Jurors:    []int{3, 5},
		Reward:    []float64{1.0},
		Deposit:   []float64{0.0, 0.5},
		Lambda:    []float64{1.5},
		Noise:     []float64{0.1},
		XMean:     []float64{0.5},
		Mechanism: payoff.Basic,
	}
}

func TestRunEmitsExactlyJobsTimesRounds(t *testing.T) {
	const rounds = 50
	jobs, err := JobsFromGrid(testGrid(), rounds)
	if err != nil {
		t.Fatalf("JobsFromGrid: %v", err)
	}

	mem := store.NewMemoryStore()
	r := NewRunner(mem, Options{Workers: 3, ChunkSize: 2, Seed: 7, Logger: quietLogger()})

	sum, err := r.Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantRows := len(jobs) * rounds
	if sum.RowsWritten != wantRows || len(mem.Rows()) != wantRows {
		t.Errorf("rows = %d (summary %d), want %d", len(mem.Rows()), sum.RowsWritten, wantRows)
	}
	if sum.Completed != len(jobs) || sum.Failed != 0 {
		t.Errorf("completed/failed = %d/%d, want %d/0", sum.Completed, sum.Failed, len(jobs))
	}

	// Every job contributes its full round sequence exactly once.
	perJob := map[int]map[int]bool{}
	for _, row := range mem.Rows() {
		if perJob[row.JobIndex] == nil {
			perJob[row.JobIndex] = map[int]bool{}
		}
		if perJob[row.JobIndex][row.Round] {
			t.Fatalf("duplicate row for job %d round %d", row.JobIndex, row.Round)
		}
		perJob[row.JobIndex][row.Round] = true
	}
	for i := range jobs {
		if len(perJob[i]) != rounds {
			t.Errorf("job %d has %d rows, want %d", i, len(perJob[i]), rounds)
		}
	}
}

func TestRunIsolatesFailedJobs(t *testing.T) {
	jobs, err := JobsFromGrid(testGrid(), 10)
	if err != nil {
		t.Fatalf("JobsFromGrid: %v", err)
	}
	jobs[1].Rounds = 0 // fails at run time, contributes zero rows

	mem := store.NewMemoryStore()
	r := NewRunner(mem, Options{Workers: 2, ChunkSize: 1, Logger: quietLogger()})

	sum, err := r.Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Failed != 1 || sum.Completed != len(jobs)-1 {
		t.Errorf("completed/failed = %d/%d, want %d/1", sum.Completed, sum.Failed, len(jobs)-1)
	}
	if sum.Completed+sum.Failed != sum.TotalJobs {
		t.Errorf("completed %d + failed %d != total %d", sum.Completed, sum.Failed, sum.TotalJobs)
	}

	wantRows := (len(jobs) - 1) * 10
	if len(mem.Rows()) != wantRows {
		t.Errorf("rows = %d, want %d", len(mem.Rows()), wantRows)
	}
	for _, row := range mem.Rows() {
		if row.JobIndex == 1 {
			t.Fatal("failed job emitted rows")
		}
	}

	if len(mem.Failures()) != 1 || mem.Failures()[0].JobIndex != 1 {
		t.Fatalf("store failures = %+v, want job 1", mem.Failures())
	}
	if mem.Failures()[0].Reason == "" {
		t.Error("failure reason is empty")
	}
}

func TestRunDeterministicAcrossWorkerSchedules(t *testing.T) {
	jobs, err := JobsFromGrid(testGrid(), 20)
	if err != nil {
		t.Fatalf("JobsFromGrid: %v", err)
	}

	run := func(workers int) map[[2]int][2]int {
		mem := store.NewMemoryStore()
		r := NewRunner(mem, Options{Workers: workers, ChunkSize: 1, Seed: 99, Logger: quietLogger()})
		if _, err := r.Run(context.Background(), jobs); err != nil {
			t.Fatalf("Run(workers=%d): %v", workers, err)
		}
		out := map[[2]int][2]int{}
		for _, row := range mem.Rows() {
			out[[2]int{row.JobIndex, row.Round}] = [2]int{row.VotesX, row.VotesY}
		}
		return out
	}

	serial := run(1)
	parallel := run(4)
	if len(serial) != len(parallel) {
		t.Fatalf("row counts differ: %d vs %d", len(serial), len(parallel))
	}
	for key, votes := range serial {
		if parallel[key] != votes {
			t.Fatalf("job %d round %d: %v (serial) != %v (parallel)", key[0], key[1], votes, parallel[key])
		}
	}
}

func TestRunSeedsJobsIndependently(t *testing.T) {
	// Two jobs with identical parameters must not replay the same stream.
	p := params.Parameters{
		Jurors: 9, Reward: 1.0, Lambda: 1.5, Noise: 0.1, XMean: 0.5,
		Mechanism: payoff.Basic,
	}
	jobs := []Job{{Params: p, Rounds: 50}, {Params: p, Rounds: 50}}

	mem := store.NewMemoryStore()
	r := NewRunner(mem, Options{Workers: 1, Seed: 5, Logger: quietLogger()})
	if _, err := r.Run(context.Background(), jobs); err != nil {
		t.Fatalf("Run: %v", err)
	}

	votes := map[int][]int{}
	for _, row := range mem.Rows() {
		votes[row.JobIndex] = append(votes[row.JobIndex], row.VotesX)
	}
	same := true
	for i := range votes[0] {
		if votes[0][i] != votes[1][i] {
			same = false
			break
		}
	}
	if same {
		t.Error("identical jobs produced identical histories; per-job seeding is broken")
	}
}

func TestRunSurfacesPersistenceFailure(t *testing.T) {
	jobs, err := JobsFromGrid(testGrid(), 10)
	if err != nil {
		t.Fatalf("JobsFromGrid: %v", err)
	}

	mem := store.NewMemoryStore()
	mem.FailAfter = 15 // fails partway through the second chunk's write

	r := NewRunner(mem, Options{Workers: 1, ChunkSize: 1, Logger: quietLogger()})
	sum, err := r.Run(context.Background(), jobs)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if !errors.Is(err, store.ErrWriteFailed) {
		t.Errorf("error = %v, want wrapped ErrWriteFailed", err)
	}
	// Partial output stays intact and is reported.
	if sum.RowsWritten != mem.RowsWritten() || sum.RowsWritten == 0 {
		t.Errorf("summary rows = %d, store rows = %d", sum.RowsWritten, mem.RowsWritten())
	}
}

func TestRunCancellationDrains(t *testing.T) {
	jobs, err := JobsFromGrid(params.Grid{
		Jurors:    []int{9, 11, 13, 15},
		Reward:    []float64{1.0},
		Deposit:   []float64{0.0, 0.5},
		Lambda:    []float64{1.5},
		Noise:     []float64{0.1},
		XMean:     []float64{0.4, 0.5, 0.6},
		Mechanism: payoff.Basic,
	}, 100)
	if err != nil {
		t.Fatalf("JobsFromGrid: %v", err)
	}

	mem := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(mem, Options{
		Workers:   2,
		ChunkSize: 2,
		Logger:    quietLogger(),
		Observer: func(fraction float64, msg string) {
			cancel() // abort after the first chunk lands
		},
	})

	sum, err := r.Run(ctx, jobs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// In-flight chunks drained: whatever completed is persisted, complete
	// per job, and counted.
	if sum.RowsWritten != len(mem.Rows()) {
		t.Errorf("summary rows %d != store rows %d", sum.RowsWritten, len(mem.Rows()))
	}
	perJob := map[int]int{}
	for _, row := range mem.Rows() {
		perJob[row.JobIndex]++
	}
	for job, n := range perJob {
		if n != 100 {
			t.Errorf("job %d persisted %d rows, want all 100 (no partial jobs)", job, n)
		}
	}
	if sum.Completed+sum.Failed > sum.TotalJobs {
		t.Errorf("completed %d + failed %d exceeds total %d", sum.Completed, sum.Failed, sum.TotalJobs)
	}
}

func TestRunRejectsEmptyJobList(t *testing.T) {
	r := NewRunner(store.NewMemoryStore(), Options{Logger: quietLogger()})
	if _, err := r.Run(context.Background(), nil); err == nil {
		t.Error("expected error for empty job list")
	}
}

func TestJobsFromGridRejectsBadRounds(t *testing.T) {
	if _, err := JobsFromGrid(testGrid(), 0); err == nil {
		t.Error("expected error for zero rounds")
	}
}
