package task

import (
	"context"
	"fmt"

	"tabletask/internal/table"
)

// Source provides the input table for a task run.
type Source interface {
	LoadTable(ctx context.Context) (*table.Table, error)
}

// Sink persists the output table of a task run.
type Sink interface {
	SaveTable(ctx context.Context, t *table.Table) error
}

// FileSource loads the input table from a local CSV file.
type FileSource string

func (s FileSource) LoadTable(_ context.Context) (*table.Table, error) {
	return table.Load(string(s))
}

// FileSink saves the output table to a local CSV file.
type FileSink string

func (s FileSink) SaveTable(_ context.Context, t *table.Table) error {
	return t.Save(string(s))
}

// Task binds a source, an operation and a sink into one resumable unit of
// work: load, run the operation over every row, save. The save happens even
// when the run is halted by a fatal error, so a partially-completed output
// file is always there to resume from.
type Task struct {
	source Source
	sink   Sink
	runner *Runner
}

// NewTask builds a Task running op over the table from source, writing the
// result to sink.
func NewTask(source Source, sink Sink, op Operation, opts ...Option) *Task {
	return &Task{
		source: source,
		sink:   sink,
		runner: NewRunner(op, opts...),
	}
}

// Run executes the task. The returned error is nil for a clean run, the
// fatal run error otherwise; in both cases the output has been saved with
// one output row per input row. Only a load or save failure leaves no
// usable output behind.
func (t *Task) Run(ctx context.Context) (*Stats, error) {
	in, err := t.source.LoadTable(ctx)
	if err != nil {
		return nil, err
	}

	out, stats, runErr := t.runner.Run(ctx, in)
	if saveErr := t.sink.SaveTable(ctx, out); saveErr != nil {
		if runErr != nil {
			return stats, fmt.Errorf("run failed (%v), and saving output also failed: %w", runErr, saveErr)
		}
		return stats, fmt.Errorf("saving output: %w", saveErr)
	}
	return stats, runErr
}
