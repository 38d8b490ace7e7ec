package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/kleroscope/kleroscope/internal/params"
	"github.com/kleroscope/kleroscope/internal/payoff"
)

// baseHeader is the fixed column order of the durable CSV schema.
var baseHeader = []string{
	"round",
	"num_jurors",
	"lambda_qre",
	"base_reward",
	"deposit",
	"noise",
	"x_guess_noise",
	"payoff_type",
	"X_votes",
	"Y_votes",
	"avg_payoff_X",
	"avg_payoff_Y",
}

// attackHeader extends baseHeader with the counterfactual columns written
// for attack-mode batches.
var attackHeader = append(append([]string{}, baseHeader...),
	"X_votes_no_attack", "Y_votes_no_attack")

// CSVStore appends result rows to a CSV file. Failures are not written to
// the CSV (the schema has no column for them); they are kept in memory for
// the batch summary. Rows are flushed on every write so partially written
// output survives a crash or cancellation.
type CSVStore struct {
	f        *os.File
	w        *csv.Writer
	attack   bool
	rows     int
	failures []Failure
}

// NewCSVStore opens (or creates) the CSV file at path for appending. The
// header is written only when the file is new or empty. attack selects the
// extended schema with the no-attack counterfactual columns.
func NewCSVStore(path string, attack bool) (*CSVStore, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &CSVStore{f: f, w: csv.NewWriter(f), attack: attack}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		if err := s.w.Write(s.header()); err != nil {
			f.Close()
			return nil, fmt.Errorf("write header: %w", err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush header: %w", err)
		}
	} else if err := s.checkHeader(path); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// checkHeader verifies an existing file already carries this store's
// schema; appending must never mix column layouts in one file.
func (s *CSVStore) checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	want := s.header()
	if len(header) != len(want) {
		return fmt.Errorf("%s has %d columns, want %d; refusing to append a different schema", path, len(header), len(want))
	}
	for i, col := range want {
		if header[i] != col {
			return fmt.Errorf("%s column %d is %q, want %q; refusing to append a different schema", path, i, header[i], col)
		}
	}
	return nil
}

func (s *CSVStore) header() []string {
	if s.attack {
		return attackHeader
	}
	return baseHeader
}

// WriteRows appends rows and flushes them to disk. On error the rows
// already flushed remain in the file and are reflected in RowsWritten.
func (s *CSVStore) WriteRows(ctx context.Context, rows []ResultRow) error {
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.w.Write(s.record(r)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
		s.rows++
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush rows: %w", err)
	}
	return nil
}

func (s *CSVStore) record(r ResultRow) []string {
	rec := []string{
		strconv.Itoa(r.Round),
		strconv.Itoa(r.Params.Jurors),
		formatFloat(r.Params.Lambda),
		formatFloat(r.Params.Reward),
		formatFloat(r.Params.Deposit),
		formatFloat(r.Params.Noise),
		formatFloat(r.Params.XGuessNoise),
		string(r.Params.Mechanism),
		strconv.Itoa(r.VotesX),
		strconv.Itoa(r.VotesY),
		formatFloat(r.AvgPayoffX),
		formatFloat(r.AvgPayoffY),
	}
	if s.attack {
		rec = append(rec, strconv.Itoa(r.VotesXNoAttack), strconv.Itoa(r.VotesYNoAttack))
	}
	return rec
}

// RecordFailure keeps the failure for the batch summary; the CSV itself
// carries result rows only.
func (s *CSVStore) RecordFailure(ctx context.Context, f Failure) error {
	s.failures = append(s.failures, f)
	return nil
}

// Failures returns the failures recorded so far.
func (s *CSVStore) Failures() []Failure { return s.failures }

// RowsWritten returns the number of rows flushed to the file.
func (s *CSVStore) RowsWritten() int { return s.rows }

// Close flushes and closes the file.
func (s *CSVStore) Close() error {
	s.w.Flush()
	flushErr := s.w.Error()
	if err := s.f.Close(); err != nil {
		return err
	}
	return flushErr
}

// ReadCSV loads a result CSV written by CSVStore. The attack columns are
// detected from the header. Parameters echoed in each row are parsed back
// so exports can carry them forward.
func ReadCSV(path string) ([]ResultRow, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, false, fmt.Errorf("read %s: empty file", path)
	}

	header := records[0]
	attack := len(header) == len(attackHeader)
	want := baseHeader
	if attack {
		want = attackHeader
	}
	if len(header) != len(want) {
		return nil, false, fmt.Errorf("read %s: unexpected column count %d", path, len(header))
	}
	for i, col := range want {
		if header[i] != col {
			return nil, false, fmt.Errorf("read %s: column %d is %q, want %q", path, i, header[i], col)
		}
	}

	rows := make([]ResultRow, 0, len(records)-1)
	for n, rec := range records[1:] {
		row, err := parseRecord(rec, attack)
		if err != nil {
			return nil, false, fmt.Errorf("read %s: line %d: %w", path, n+2, err)
		}
		rows = append(rows, row)
	}
	return rows, attack, nil
}

func parseRecord(rec []string, attack bool) (ResultRow, error) {
	var row ResultRow
	var err error

	ints := func(s string) int {
		if err != nil {
			return 0
		}
		var v int
		v, err = strconv.Atoi(s)
		return v
	}
	floats := func(s string) float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = strconv.ParseFloat(s, 64)
		return v
	}

	row.Round = ints(rec[0])
	row.Params = params.Parameters{
		Jurors:      ints(rec[1]),
		Lambda:      floats(rec[2]),
		Reward:      floats(rec[3]),
		Deposit:     floats(rec[4]),
		Noise:       floats(rec[5]),
		XGuessNoise: floats(rec[6]),
		Mechanism:   payoff.Mechanism(rec[7]),
		Attack:      attack,
	}
	row.VotesX = ints(rec[8])
	row.VotesY = ints(rec[9])
	row.AvgPayoffX = floats(rec[10])
	row.AvgPayoffY = floats(rec[11])
	if attack {
		row.VotesXNoAttack = ints(rec[12])
		row.VotesYNoAttack = ints(rec[13])
	}
	return row, err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
