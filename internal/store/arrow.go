package store

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// arrowSchema mirrors the CSV schema as a columnar layout. The counterfactual
// columns are included only for attack-mode exports.
func arrowSchema(attack bool) *arrow.Schema {
	fields := []arrow.Field{
		{Name: "round", Type: arrow.PrimitiveTypes.Int64},
		{Name: "num_jurors", Type: arrow.PrimitiveTypes.Int64},
		{Name: "lambda_qre", Type: arrow.PrimitiveTypes.Float64},
		{Name: "base_reward", Type: arrow.PrimitiveTypes.Float64},
		{Name: "deposit", Type: arrow.PrimitiveTypes.Float64},
		{Name: "noise", Type: arrow.PrimitiveTypes.Float64},
		{Name: "x_guess_noise", Type: arrow.PrimitiveTypes.Float64},
		{Name: "payoff_type", Type: arrow.BinaryTypes.String},
		{Name: "X_votes", Type: arrow.PrimitiveTypes.Int64},
		{Name: "Y_votes", Type: arrow.PrimitiveTypes.Int64},
		{Name: "avg_payoff_X", Type: arrow.PrimitiveTypes.Float64},
		{Name: "avg_payoff_Y", Type: arrow.PrimitiveTypes.Float64},
	}
	if attack {
		fields = append(fields,
			arrow.Field{Name: "X_votes_no_attack", Type: arrow.PrimitiveTypes.Int64},
			arrow.Field{Name: "Y_votes_no_attack", Type: arrow.PrimitiveTypes.Int64},
		)
	}
	return arrow.NewSchema(fields, nil)
}

// WriteArrowIPC writes rows to path as an Arrow IPC file with the same
// columns as the CSV contract, for direct loading into pandas or R without
// re-parsing text.
func WriteArrowIPC(path string, rows []ResultRow, attack bool) error {
	schema := arrowSchema(attack)
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for _, r := range rows {
		b.Field(0).(*array.Int64Builder).Append(int64(r.Round))
		b.Field(1).(*array.Int64Builder).Append(int64(r.Params.Jurors))
		b.Field(2).(*array.Float64Builder).Append(r.Params.Lambda)
		b.Field(3).(*array.Float64Builder).Append(r.Params.Reward)
		b.Field(4).(*array.Float64Builder).Append(r.Params.Deposit)
		b.Field(5).(*array.Float64Builder).Append(r.Params.Noise)
		b.Field(6).(*array.Float64Builder).Append(r.Params.XGuessNoise)
		b.Field(7).(*array.StringBuilder).Append(string(r.Params.Mechanism))
		b.Field(8).(*array.Int64Builder).Append(int64(r.VotesX))
		b.Field(9).(*array.Int64Builder).Append(int64(r.VotesY))
		b.Field(10).(*array.Float64Builder).Append(r.AvgPayoffX)
		b.Field(11).(*array.Float64Builder).Append(r.AvgPayoffY)
		if attack {
			b.Field(12).(*array.Int64Builder).Append(int64(r.VotesXNoAttack))
			b.Field(13).(*array.Int64Builder).Append(int64(r.VotesYNoAttack))
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema))
	if err != nil {
		return fmt.Errorf("open arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize arrow file: %w", err)
	}
	return nil
}

// ReadArrowIPC loads an Arrow IPC file written by WriteArrowIPC and reports
// its row count. Used to verify exports round-trip.
func ReadArrowIPC(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f)
	if err != nil {
		return 0, fmt.Errorf("open arrow reader: %w", err)
	}
	defer r.Close()

	total := 0
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return 0, fmt.Errorf("read record %d: %w", i, err)
		}
		total += int(rec.NumRows())
	}
	return total, nil
}
