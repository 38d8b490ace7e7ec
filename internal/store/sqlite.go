package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS result_rows (
	run_id          TEXT    NOT NULL,
	job_index       INTEGER NOT NULL,
	round           INTEGER NOT NULL,
	num_jurors      INTEGER NOT NULL,
	lambda_qre      REAL    NOT NULL,
	base_reward     REAL    NOT NULL,
	deposit         REAL    NOT NULL,
	noise           REAL    NOT NULL,
	x_guess_noise   REAL    NOT NULL,
	payoff_type     TEXT    NOT NULL,
	attack          INTEGER NOT NULL,
	epsilon         REAL    NOT NULL,
	x_votes         INTEGER NOT NULL,
	y_votes         INTEGER NOT NULL,
	avg_payoff_x    REAL    NOT NULL,
	avg_payoff_y    REAL    NOT NULL,
	x_votes_no_attack INTEGER,
	y_votes_no_attack INTEGER,
	PRIMARY KEY (run_id, job_index, round)
);

CREATE TABLE IF NOT EXISTS job_failures (
	run_id     TEXT    NOT NULL,
	job_index  INTEGER NOT NULL,
	parameters TEXT    NOT NULL,
	reason     TEXT    NOT NULL,
	PRIMARY KEY (run_id, job_index)
);
`

// SQLiteStore persists result rows to a SQLite database, for batch archives
// that need to be queried rather than streamed into analysis tooling.
type SQLiteStore struct {
	db   *sql.DB
	rows int
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// WriteRows inserts rows in a single transaction. A failed transaction
// leaves previously committed chunks intact.
func (s *SQLiteStore) WriteRows(ctx context.Context, rows []ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO result_rows (
		run_id, job_index, round,
		num_jurors, lambda_qre, base_reward, deposit, noise, x_guess_noise,
		payoff_type, attack, epsilon,
		x_votes, y_votes, avg_payoff_x, avg_payoff_y,
		x_votes_no_attack, y_votes_no_attack
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		var noAttackX, noAttackY any
		if r.Params.Attack {
			noAttackX, noAttackY = r.VotesXNoAttack, r.VotesYNoAttack
		}
		_, err := stmt.ExecContext(ctx,
			r.RunID, r.JobIndex, r.Round,
			r.Params.Jurors, r.Params.Lambda, r.Params.Reward, r.Params.Deposit,
			r.Params.Noise, r.Params.XGuessNoise,
			string(r.Params.Mechanism), boolToInt(r.Params.Attack), r.Params.Epsilon,
			r.VotesX, r.VotesY, r.AvgPayoffX, r.AvgPayoffY,
			noAttackX, noAttackY,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert row (job %d, round %d): %w", r.JobIndex, r.Round, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rows: %w", err)
	}
	s.rows += len(rows)
	return nil
}

// RecordFailure stores the failed job alongside its parameter set.
func (s *SQLiteStore) RecordFailure(ctx context.Context, f Failure) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO job_failures (run_id, job_index, parameters, reason) VALUES (?, ?, ?, ?)`,
		f.RunID, f.JobIndex, f.Params.String(), f.Reason)
	if err != nil {
		return fmt.Errorf("record failure (job %d): %w", f.JobIndex, err)
	}
	return nil
}

// CountRows returns the number of rows stored for a run, across all jobs.
func (s *SQLiteStore) CountRows(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM result_rows WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// CountFailures returns the number of failed jobs recorded for a run.
func (s *SQLiteStore) CountFailures(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_failures WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return n, nil
}

// RowsWritten returns the number of rows committed in this session.
func (s *SQLiteStore) RowsWritten() int { return s.rows }

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
