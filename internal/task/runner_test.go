package task

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"tabletask/internal/table"
)

// applyFunc is a minimal Operation without the PreviousResulter capability.
type applyFunc func(row table.Row) (map[string]string, error)

func (f applyFunc) Apply(row table.Row) (map[string]string, error) { return f(row) }

// resumableOp counts Apply calls and treats a non-empty target column as a
// previous result.
type resumableOp struct {
	target string
	apply  applyFunc
	calls  int
}

func (o *resumableOp) Apply(row table.Row) (map[string]string, error) {
	o.calls++
	return o.apply(row)
}

func (o *resumableOp) HasPreviousResult(row table.Row) bool {
	return row[o.target] != ""
}

func inputTable(values ...string) *table.Table {
	t := table.New("legacy_id")
	for _, v := range values {
		t.Append(table.Row{"legacy_id": v})
	}
	return t
}

func TestRunnerRowCountInvariant(t *testing.T) {
	tests := []struct {
		name    string
		apply   applyFunc
		wantErr bool
	}{
		{
			name: "all succeed",
			apply: func(row table.Row) (map[string]string, error) {
				return map[string]string{"new_id": "n"}, nil
			},
		},
		{
			name: "all fail recoverably",
			apply: func(row table.Row) (map[string]string, error) {
				return nil, Rowf("lookup failed")
			},
		},
		{
			name: "all skip",
			apply: func(row table.Row) (map[string]string, error) {
				return nil, ErrSkipRow
			},
		},
		{
			name: "fatal on first row",
			apply: func(row table.Row) (map[string]string, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := inputTable("a", "b", "c", "d")
			out, _, err := NewRunner(tt.apply).Run(context.Background(), in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if out.Len() != in.Len() {
				t.Errorf("output rows = %d, input rows = %d", out.Len(), in.Len())
			}
		})
	}
}

func TestRunnerMergesAndBackfillsColumns(t *testing.T) {
	// Only the third row produces new_id. All other rows must still end up
	// with the column, holding an empty value.
	op := applyFunc(func(row table.Row) (map[string]string, error) {
		if row["legacy_id"] == "c" {
			return map[string]string{"new_id": "C-1"}, nil
		}
		return map[string]string{}, nil
	})

	in := inputTable("a", "b", "c", "d", "e")
	out, stats, err := NewRunner(op).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if stats.Completed != 5 {
		t.Errorf("completed = %d, want 5", stats.Completed)
	}

	wantFields := []string{"legacy_id", "new_id"}
	if !reflect.DeepEqual(out.Fieldnames(), wantFields) {
		t.Errorf("fieldnames = %v, want %v", out.Fieldnames(), wantFields)
	}
	for i := 0; i < out.Len(); i++ {
		v, ok := out.Row(i)["new_id"]
		if !ok {
			t.Fatalf("row %d: new_id column absent after back-fill", i)
		}
		want := ""
		if i == 2 {
			want = "C-1"
		}
		if v != want {
			t.Errorf("row %d new_id = %q, want %q", i, v, want)
		}
	}
}

func TestRunnerMissingColumnIsRecoverable(t *testing.T) {
	// The operation reads a column that does not exist, and even wraps the
	// error before returning it. The row must be preserved unmodified and
	// the next row must still be processed.
	op := applyFunc(func(row table.Row) (map[string]string, error) {
		if row["legacy_id"] == "b" {
			_, err := row.Value("no_such_column")
			return nil, fmt.Errorf("reading input: %w", err)
		}
		return map[string]string{"new_id": "ok-" + row["legacy_id"]}, nil
	})

	in := inputTable("a", "b", "c")
	out, stats, err := NewRunner(op).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() returned fatal error for a missing column: %v", err)
	}
	if stats.Failed != 1 || stats.Completed != 2 {
		t.Errorf("stats = %+v, want 1 failed, 2 completed", stats)
	}
	if len(stats.Errors) != 1 {
		t.Fatalf("recorded errors = %d, want 1", len(stats.Errors))
	}
	if out.Row(1)["new_id"] != "" {
		t.Errorf("failed row was modified: %v", out.Row(1))
	}
	if out.Row(2)["new_id"] != "ok-c" {
		t.Errorf("row after failure not processed: %v", out.Row(2))
	}
}

func TestRunnerFatalHaltPreservesRemainingRows(t *testing.T) {
	// Ten rows, unclassified error on the fifth: rows 1-4 carry results,
	// rows 5-10 are unmodified input, in the original order.
	values := []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9", "r10"}
	op := applyFunc(func(row table.Row) (map[string]string, error) {
		if row["legacy_id"] == "r5" {
			return nil, errors.New("horrible error")
		}
		return map[string]string{"new_id": row["legacy_id"] + "-done"}, nil
	})

	in := inputTable(values...)
	out, stats, err := NewRunner(op).Run(context.Background(), in)
	if err == nil {
		t.Fatal("Run() returned nil error, want fatal")
	}
	if out.Len() != 10 {
		t.Fatalf("output rows = %d, want 10", out.Len())
	}
	for i, v := range values {
		row := out.Row(i)
		if row["legacy_id"] != v {
			t.Errorf("row %d order broken: legacy_id = %q, want %q", i, row["legacy_id"], v)
		}
		want := ""
		if i < 4 {
			want = v + "-done"
		}
		if row["new_id"] != want {
			t.Errorf("row %d new_id = %q, want %q", i, row["new_id"], want)
		}
	}
	if stats.Completed != 4 {
		t.Errorf("completed = %d, want 4", stats.Completed)
	}
}

func TestRunnerExplicitSkip(t *testing.T) {
	op := applyFunc(func(row table.Row) (map[string]string, error) {
		if row["legacy_id"] == "b" {
			return nil, fmt.Errorf("nothing to do here: %w", ErrSkipRow)
		}
		return map[string]string{"new_id": "x"}, nil
	})

	in := inputTable("a", "b", "c")
	out, stats, err := NewRunner(op).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if stats.SkippedRequest != 1 {
		t.Errorf("skipped by request = %d, want 1", stats.SkippedRequest)
	}
	if stats.Failed != 0 {
		t.Errorf("skip counted as failure: failed = %d", stats.Failed)
	}
	if out.Row(1)["new_id"] != "" {
		t.Errorf("skipped row was modified: %v", out.Row(1))
	}
}

func TestRunnerSkipsPreviousResults(t *testing.T) {
	op := &resumableOp{
		target: "new_id",
		apply: func(row table.Row) (map[string]string, error) {
			return map[string]string{"new_id": "fresh"}, nil
		},
	}

	in := table.New("legacy_id", "new_id")
	in.Append(table.Row{"legacy_id": "a", "new_id": "done-earlier"})
	in.Append(table.Row{"legacy_id": "b", "new_id": ""})

	out, stats, err := NewRunner(op).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if op.calls != 1 {
		t.Errorf("Apply called %d times, want 1", op.calls)
	}
	if stats.SkippedPrevious != 1 || stats.Completed != 1 {
		t.Errorf("stats = %+v, want 1 skipped-previous, 1 completed", stats)
	}
	// Idempotent resume: the already-done row keeps its earlier value.
	if out.Row(0)["new_id"] != "done-earlier" {
		t.Errorf("previous result overwritten: %v", out.Row(0))
	}
	if out.Row(1)["new_id"] != "fresh" {
		t.Errorf("pending row not processed: %v", out.Row(1))
	}
}

func TestRunnerOptions(t *testing.T) {
	t.Run("SkipFailingRows(false) promotes recoverable to fatal", func(t *testing.T) {
		op := applyFunc(func(row table.Row) (map[string]string, error) {
			return nil, Rowf("flaky lookup")
		})
		in := inputTable("a", "b")
		out, _, err := NewRunner(op, SkipFailingRows(false)).Run(context.Background(), in)
		if err == nil {
			t.Fatal("Run() returned nil error, want fatal")
		}
		if out.Len() != 2 {
			t.Errorf("output rows = %d, want 2", out.Len())
		}
	})

	t.Run("SkipPreviousResults(false) re-applies every row", func(t *testing.T) {
		op := &resumableOp{
			target: "new_id",
			apply: func(row table.Row) (map[string]string, error) {
				return map[string]string{"new_id": "fresh"}, nil
			},
		}
		in := table.New("legacy_id", "new_id")
		in.Append(table.Row{"legacy_id": "a", "new_id": "done-earlier"})

		out, _, err := NewRunner(op, SkipPreviousResults(false)).Run(context.Background(), in)
		if err != nil {
			t.Fatalf("Run() failed: %v", err)
		}
		if op.calls != 1 {
			t.Errorf("Apply called %d times, want 1", op.calls)
		}
		if out.Row(0)["new_id"] != "fresh" {
			t.Errorf("row not re-applied: %v", out.Row(0))
		}
	})
}

func TestRunnerCancelledContext(t *testing.T) {
	op := applyFunc(func(row table.Row) (map[string]string, error) {
		return map[string]string{"new_id": "x"}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := inputTable("a", "b", "c")
	out, _, err := NewRunner(op).Run(ctx, in)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if out.Len() != in.Len() {
		t.Errorf("output rows = %d, want %d", out.Len(), in.Len())
	}
	for i := 0; i < out.Len(); i++ {
		if out.Row(i)["new_id"] != "" {
			t.Errorf("row %d processed after cancellation: %v", i, out.Row(i))
		}
	}
}

// recordingObserver captures every notification for assertions.
type recordingObserver struct {
	outcomes []Outcome
	done     bool
	stats    Stats
}

func (o *recordingObserver) RowDone(index, total int, outcome Outcome, err error) {
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) RunDone(stats Stats) {
	o.done = true
	o.stats = stats
}

func TestRunnerNotifiesObservers(t *testing.T) {
	op := applyFunc(func(row table.Row) (map[string]string, error) {
		switch row["legacy_id"] {
		case "fail":
			return nil, Rowf("lookup failed")
		case "skip":
			return nil, ErrSkipRow
		default:
			return map[string]string{"new_id": "x"}, nil
		}
	})

	obs := &recordingObserver{}
	in := inputTable("ok", "fail", "skip")
	_, stats, err := NewRunner(op, WithObservers(obs)).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	want := []Outcome{OutcomeApplied, OutcomeFailed, OutcomeSkippedRequest}
	if !reflect.DeepEqual(obs.outcomes, want) {
		t.Errorf("observed outcomes = %v, want %v", obs.outcomes, want)
	}
	if !obs.done {
		t.Error("RunDone was not called")
	}
	if obs.stats.Total() != stats.Total() {
		t.Errorf("RunDone stats total = %d, want %d", obs.stats.Total(), stats.Total())
	}
}
