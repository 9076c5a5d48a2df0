package task

import (
	"context"
	"fmt"
	"log"
	"sort"

	"tabletask/internal/table"
)

// Runner applies one Operation to every row of a table, strictly in input
// order, and builds the output table. Whatever the operation does, the
// output has exactly as many rows as the input:
//
//   - a row with a previous result is copied unmodified (skipped),
//   - a row the operation skips via ErrSkipRow is copied unmodified,
//   - a row failing with a recoverable error is copied unmodified and the
//     loop continues,
//   - on a fatal error the failing row and every row after it are copied
//     unmodified and the loop stops; the partial output is still returned.
//
// Rows are processed one at a time, a single Apply in flight. Bounding the
// latency of a slow Apply is the operation's job, not the runner's.
type Runner struct {
	op                  Operation
	skipFailingRows     bool
	skipPreviousResults bool
	observers           []Observer
}

// Option configures a Runner.
type Option func(*Runner)

// SkipFailingRows controls whether recoverable row errors are tolerated.
// It defaults to true; with false, the first recoverable error is promoted
// to a fatal one (the output is still complete).
func SkipFailingRows(v bool) Option {
	return func(r *Runner) { r.skipFailingRows = v }
}

// SkipPreviousResults controls whether rows with a previous result are
// skipped. It defaults to true; with false every row is re-applied.
func SkipPreviousResults(v bool) Option {
	return func(r *Runner) { r.skipPreviousResults = v }
}

// WithObservers registers observers notified of every row outcome.
func WithObservers(obs ...Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, obs...) }
}

// NewRunner builds a Runner for the given operation.
func NewRunner(op Operation, opts ...Option) *Runner {
	r := &Runner{
		op:                  op,
		skipFailingRows:     true,
		skipPreviousResults: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes every row of in and returns the output table and run
// statistics. A non-nil error means the run was halted by a fatal failure;
// the returned table is complete regardless and safe to save.
//
// The context is only checked between rows: cancellation counts as a fatal
// outcome, a running Apply is never interrupted.
func (r *Runner) Run(ctx context.Context, in *table.Table) (*table.Table, *Stats, error) {
	out := table.New(in.Columns()...)
	stats := &Stats{}
	total := in.Len()

	var fatal error
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			fatal = err
		} else {
			fatal = r.processRow(out, in.Row(i), i, total, stats)
		}
		if fatal != nil {
			// Keep the failing row and everything after it unmodified so
			// the output row count always equals the input row count.
			for j := i; j < total; j++ {
				out.Append(in.Row(j).Clone())
			}
			r.observe(i, total, OutcomeAborted, fatal)
			break
		}
	}

	out.Normalize()
	for _, obs := range r.observers {
		obs.RunDone(*stats)
	}
	return out, stats, fatal
}

// processRow drives the per-row state machine. It appends exactly one row to
// out and returns nil, or appends nothing and returns the fatal error.
func (r *Runner) processRow(out *table.Table, row table.Row, i, total int, stats *Stats) error {
	if r.skipPreviousResults && hasPreviousResult(r.op, row) {
		out.Append(row.Clone())
		r.record(stats, i, total, OutcomeSkippedPrevious, nil)
		return nil
	}

	result, err := r.op.Apply(row)
	switch {
	case err == nil:
		merged := row.Clone()
		for _, name := range sortedKeys(result) {
			merged[name] = result[name]
			out.AddColumn(name)
		}
		out.Append(merged)
		r.record(stats, i, total, OutcomeApplied, nil)

	case isSkip(err):
		out.Append(row.Clone())
		r.record(stats, i, total, OutcomeSkippedRequest, nil)

	case recoverable(err) && r.skipFailingRows:
		log.Printf("Error processing row %d: %v", i, err)
		out.Append(row.Clone())
		r.record(stats, i, total, OutcomeFailed, err)

	default:
		return fmt.Errorf("row %d: %w", i, err)
	}
	return nil
}

func (r *Runner) record(stats *Stats, i, total int, o Outcome, err error) {
	stats.record(o, err)
	r.observe(i, total, o, err)
}

func (r *Runner) observe(i, total int, o Outcome, err error) {
	for _, obs := range r.observers {
		obs.RowDone(i, total, o, err)
	}
}

// sortedKeys gives result columns a stable introduction order within a
// single Apply result.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
