// Package batch executes parameter sweeps: it fans a job sequence out over
// a bounded worker pool in chunks, streams completed chunks into a result
// store, and isolates per-job failures so one bad job never aborts a sweep.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kleroscope/kleroscope/internal/oracle"
	"github.com/kleroscope/kleroscope/internal/params"
	"github.com/kleroscope/kleroscope/internal/store"
)

// Job is one unit of work: a parameter set plus the number of rounds to
// simulate. A completed job emits exactly Rounds result rows; a failed job
// emits none.
type Job struct {
	Params params.Parameters
	Rounds int
}

// Options tunes the runner. Zero values pick sensible defaults.
type Options struct {
	// Workers is the pool size. Defaults to NumCPU-1 (minimum 1), leaving
	// headroom for the coordinator and the rest of the host.
	Workers int

	// ChunkSize bounds how many jobs a worker picks up at once and how many
	// job results are buffered before hitting the store. Defaults to 4.
	ChunkSize int

	// Seed is the batch-level seed; each job derives its own independent
	// stream from it.
	Seed uint64

	// RunID labels all rows and failures of this run. Defaults to a random
	// UUID.
	RunID string

	// Logger receives job failures (warn) and chunk completions (debug).
	// Defaults to slog.Default().
	Logger *slog.Logger

	// Observer, when non-nil, is invoked from the coordinator as jobs
	// complete.
	Observer oracle.Observer
}

// Summary reports a finished (or aborted) batch run.
type Summary struct {
	RunID       string
	TotalJobs   int
	Completed   int
	Failed      int
	RowsWritten int
	Failures    []store.Failure
	Elapsed     time.Duration
}

// Runner executes batches against a single result store.
type Runner struct {
	w    store.RowWriter
	opts Options
}

// NewRunner builds a runner writing to w.
func NewRunner(w store.RowWriter, opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU() - 1
		if opts.Workers < 1 {
			opts.Workers = 1
		}
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 4
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{w: w, opts: opts}
}

type indexedJob struct {
	index int
	job   Job
}

type chunkResult struct {
	rows     []store.ResultRow
	failures []store.Failure
	jobs     int
}

// Run executes jobs and returns the run summary.
//
// Jobs are dispatched in chunks; workers run fully independent simulations
// (job index seeds each one separately) and the coordinator is the sole
// writer to the store and the sole caller of the observer. Chunks may
// complete out of order; the contract is completeness, not ordering.
//
// Canceling ctx stops dispatching new chunks; chunks already in flight
// drain and their rows are still persisted. A store write error stops
// further writing but also lets in-flight work drain; the rows already
// written stay intact and are counted in the summary. In both cases the
// summary is returned alongside the error.
func (r *Runner) Run(ctx context.Context, jobs []Job) (*Summary, error) {
	if len(jobs) == 0 {
		return nil, errors.New("batch has no jobs")
	}

	start := time.Now()
	sum := &Summary{RunID: r.opts.RunID, TotalJobs: len(jobs)}

	chunks := makeChunks(jobs, r.opts.ChunkSize)
	chunkCh := make(chan []indexedJob)
	resCh := make(chan chunkResult)

	var wg sync.WaitGroup
	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for chunk := range chunkCh {
				resCh <- r.runChunk(chunk)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resCh)
	}()

	canceled := false
	go func() {
		defer close(chunkCh)
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return
			case chunkCh <- chunk:
			}
		}
	}()

	// Persistence must survive cancellation: in-flight chunks drain into
	// the store even after ctx is done.
	writeCtx := context.WithoutCancel(ctx)

	jobsDone := 0
	var writeErr error
	for cr := range resCh {
		if writeErr == nil && len(cr.rows) > 0 {
			if err := r.w.WriteRows(writeCtx, cr.rows); err != nil {
				writeErr = fmt.Errorf("persist chunk: %w", err)
				r.opts.Logger.Error("chunk persistence failed", "error", err, "rows_written", r.w.RowsWritten())
			}
		}
		for _, f := range cr.failures {
			sum.Failed++
			sum.Failures = append(sum.Failures, f)
			r.opts.Logger.Warn("job failed", "job", f.JobIndex, "params", f.Params.String(), "reason", f.Reason)
			if err := r.w.RecordFailure(writeCtx, f); err != nil {
				r.opts.Logger.Error("recording job failure failed", "job", f.JobIndex, "error", err)
			}
		}
		sum.Completed += cr.jobs - len(cr.failures)
		jobsDone += cr.jobs
		r.opts.Logger.Debug("chunk complete", "jobs_done", jobsDone, "total", len(jobs))
		if r.opts.Observer != nil {
			r.opts.Observer(float64(jobsDone)/float64(len(jobs)),
				fmt.Sprintf("jobs %d/%d", jobsDone, len(jobs)))
		}
	}
	if err := ctx.Err(); err != nil {
		canceled = true
	}

	sum.RowsWritten = r.w.RowsWritten()
	sum.Elapsed = time.Since(start)

	switch {
	case writeErr != nil:
		return sum, writeErr
	case canceled:
		return sum, ctx.Err()
	default:
		return sum, nil
	}
}

// runChunk executes every job in the chunk, collecting rows and failures.
func (r *Runner) runChunk(chunk []indexedJob) chunkResult {
	var cr chunkResult
	cr.jobs = len(chunk)
	for _, ij := range chunk {
		rows, fail := r.runJob(ij)
		if fail != nil {
			cr.failures = append(cr.failures, *fail)
			continue
		}
		cr.rows = append(cr.rows, rows...)
	}
	return cr
}

// runJob runs one simulation to completion. A panic inside the model is
// converted into a job failure so the batch keeps going.
func (r *Runner) runJob(ij indexedJob) (rows []store.ResultRow, fail *store.Failure) {
	defer func() {
		if p := recover(); p != nil {
			rows = nil
			fail = r.failure(ij, fmt.Sprintf("panic: %v", p))
		}
	}()

	if ij.job.Rounds < 1 {
		return nil, r.failure(ij, fmt.Sprintf("rounds = %d, want >= 1", ij.job.Rounds))
	}
	m, err := oracle.New(ij.job.Params)
	if err != nil {
		return nil, r.failure(ij, err.Error())
	}

	seed := oracle.DeriveSeed(r.opts.Seed, uint64(ij.index))
	res, err := m.Run(ij.job.Rounds, seed, nil)
	if err != nil {
		return nil, r.failure(ij, err.Error())
	}

	rows = make([]store.ResultRow, 0, res.Rounds)
	for i := 0; i < res.Rounds; i++ {
		row := store.ResultRow{
			RunID:      r.opts.RunID,
			JobIndex:   ij.index,
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
	return rows, nil
}

func (r *Runner) failure(ij indexedJob, reason string) *store.Failure {
	return &store.Failure{
		RunID:    r.opts.RunID,
		JobIndex: ij.index,
		Params:   ij.job.Params,
		Reason:   reason,
	}
}

func makeChunks(jobs []Job, size int) [][]indexedJob {
	var chunks [][]indexedJob
	for start := 0; start < len(jobs); start += size {
		end := start + size
		if end > len(jobs) {
			end = len(jobs)
		}
		chunk := make([]indexedJob, 0, end-start)
		for i := start; i < end; i++ {
			chunk = append(chunk, indexedJob{index: i, job: jobs[i]})
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// JobsFromGrid expands a parameter grid into the ordered job sequence, each
// combination paired with the per-job round count.
func JobsFromGrid(g params.Grid, rounds int) ([]Job, error) {
	if rounds < 1 {
		return nil, fmt.Errorf("rounds per job = %d, want >= 1", rounds)
	}
	combos, err := g.Expand()
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, len(combos))
	for i, p := range combos {
		jobs[i] = Job{Params: p, Rounds: rounds}
	}
	return jobs, nil
}
