package task

import "fmt"

// Outcome classifies what happened to a single row.
type Outcome int

const (
	// OutcomeApplied means Apply returned a result that was merged into the row.
	OutcomeApplied Outcome = iota
	// OutcomeSkippedPrevious means the row already held a previous result.
	OutcomeSkippedPrevious
	// OutcomeSkippedRequest means the operation returned ErrSkipRow.
	OutcomeSkippedRequest
	// OutcomeFailed means Apply failed with a recoverable row-level error.
	OutcomeFailed
	// OutcomeAborted means a fatal error halted the run at this row.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkippedPrevious:
		return "skipped-previous"
	case OutcomeSkippedRequest:
		return "skipped-request"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Stats accumulates per-row outcomes over a run.
type Stats struct {
	Completed       int
	SkippedPrevious int
	SkippedRequest  int
	Failed          int
	// Errors holds each recoverable row error, in row order.
	Errors []error
}

func (s *Stats) record(o Outcome, err error) {
	switch o {
	case OutcomeApplied:
		s.Completed++
	case OutcomeSkippedPrevious:
		s.SkippedPrevious++
	case OutcomeSkippedRequest:
		s.SkippedRequest++
	case OutcomeFailed:
		s.Failed++
		s.Errors = append(s.Errors, err)
	}
}

// Total is the number of rows that reached an outcome other than abort.
func (s *Stats) Total() int {
	return s.Completed + s.SkippedPrevious + s.SkippedRequest + s.Failed
}

func (s *Stats) String() string {
	return fmt.Sprintf("%d rows total, %d completed, %d skipped, %d failed",
		s.Total(), s.Completed, s.SkippedPrevious+s.SkippedRequest, s.Failed)
}
