package store

import "context"

// MemoryStore keeps rows and failures in memory. Used by tests and by the
// single-run path where results are rendered rather than archived.
type MemoryStore struct {
	rows     []ResultRow
	failures []Failure

	// FailAfter, when > 0, makes WriteRows return ErrWriteFailed once that
	// many rows have been accepted. Tests use it to exercise persistence
	// failure handling.
	FailAfter int
}

// ErrWriteFailed is the injected write error produced by FailAfter.
var ErrWriteFailed = errInjectedWrite{}

type errInjectedWrite struct{}

func (errInjectedWrite) Error() string { return "injected write failure" }

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// WriteRows appends rows, honoring FailAfter.
func (s *MemoryStore) WriteRows(ctx context.Context, rows []ResultRow) error {
	for _, r := range rows {
		if s.FailAfter > 0 && len(s.rows) >= s.FailAfter {
			return ErrWriteFailed
		}
		s.rows = append(s.rows, r)
	}
	return nil
}

// RecordFailure appends the failure.
func (s *MemoryStore) RecordFailure(ctx context.Context, f Failure) error {
	s.failures = append(s.failures, f)
	return nil
}

// Rows returns the accepted rows.
func (s *MemoryStore) Rows() []ResultRow { return s.rows }

// Failures returns the recorded failures.
func (s *MemoryStore) Failures() []Failure { return s.failures }

// RowsWritten returns the number of accepted rows.
func (s *MemoryStore) RowsWritten() int { return len(s.rows) }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
