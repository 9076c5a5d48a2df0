// Package task contains the row-processing engine: the Operation contract
// implemented by user code, and the Runner that applies an operation to every
// row of a table while guaranteeing that the output keeps every input row,
// whatever happens along the way.
package task

import (
	"errors"
	"fmt"

	"tabletask/internal/table"
)

// ErrSkipRow is returned (bare or wrapped) from Operation.Apply to skip the
// current row voluntarily. The row is copied to the output unmodified and
// the skip is not counted as a failure.
var ErrSkipRow = errors.New("row skipped by operation")

// RowError marks a failure as row-level recoverable: the runner logs it,
// keeps the row unmodified in the output and moves on to the next row.
// Any error from Apply that is neither a RowError, a
// *table.MissingColumnError nor ErrSkipRow is fatal and halts the run.
type RowError struct {
	Err error
}

func (e *RowError) Error() string { return e.Err.Error() }

func (e *RowError) Unwrap() error { return e.Err }

// Rowf builds a recoverable RowError the way fmt.Errorf builds an error.
func Rowf(format string, args ...any) error {
	return &RowError{Err: fmt.Errorf(format, args...)}
}

// Operation is a unit of work applied to one row of a table.
//
// Apply computes zero or more new column values for the row, reading current
// values through row.Value so that a missing column surfaces as a
// *table.MissingColumnError and is handled as recoverable. The returned map
// holds new or overwritten columns; returning an empty map is valid and
// means the row produced no result.
//
// Operations never remove values from a row, only add or overwrite them.
type Operation interface {
	Apply(row table.Row) (map[string]string, error)
}

// PreviousResulter is an optional capability of an Operation: detecting that
// a row already carries this operation's result from an earlier run, so the
// runner can skip it without calling Apply. Operations that do not implement
// it are never skipped on resume.
type PreviousResulter interface {
	HasPreviousResult(row table.Row) bool
}

func hasPreviousResult(op Operation, row table.Row) bool {
	pr, ok := op.(PreviousResulter)
	return ok && pr.HasPreviousResult(row)
}

func isSkip(err error) bool {
	return errors.Is(err, ErrSkipRow)
}

// recoverable reports whether err stays inside the per-row boundary.
// Missing-column access is always recoverable, no matter how deeply the
// operation wrapped it.
func recoverable(err error) bool {
	var re *RowError
	if errors.As(err, &re) {
		return true
	}
	var mce *table.MissingColumnError
	return errors.As(err, &mce)
}
