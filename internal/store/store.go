// Package store persists batch simulation output. The durable contract is
// one row per (job, round); the CSV layout is the schema downstream analysis
// tooling consumes. SQLite and Arrow IPC carry the same columns.
package store

import (
	"context"

	"github.com/kleroscope/kleroscope/internal/params"
)

// ResultRow is one persisted row: one round of one batch job, tagged with
// the job's parameters. The no-attack columns are meaningful only when the
// job ran with the attack enabled.
type ResultRow struct {
	RunID    string
	JobIndex int
	Round    int // 1-based round index within the job

	Params params.Parameters

	VotesX     int
	VotesY     int
	AvgPayoffX float64
	AvgPayoffY float64

	VotesXNoAttack int
	VotesYNoAttack int
}

// Failure records a job that produced no rows.
type Failure struct {
	RunID    string
	JobIndex int
	Params   params.Parameters
	Reason   string
}

// RowWriter is the sink the batch coordinator streams results into. The
// coordinator is the sole caller, so implementations need not be
// goroutine-safe. RowsWritten must stay accurate even after a write error,
// so callers can report how much partial output survived.
type RowWriter interface {
	WriteRows(ctx context.Context, rows []ResultRow) error
	RecordFailure(ctx context.Context, f Failure) error
	RowsWritten() int
	Close() error
}
