package task

import "log"

// Observer passively watches a run. Observers never influence outcomes;
// the runner's guarantees hold with or without them.
type Observer interface {
	// RowDone is called after each row reaches an outcome. For OutcomeFailed
	// err is the recoverable row error; for OutcomeAborted it is the fatal
	// error; otherwise err is nil.
	RowDone(index, total int, outcome Outcome, err error)

	// RunDone is called once, after the output table is complete.
	RunDone(stats Stats)
}

// LogObserver prints human-readable progress via the standard logger.
type LogObserver struct {
	// Every is the row interval between progress lines. Zero means every row.
	Every int
}

func (o *LogObserver) RowDone(index, total int, outcome Outcome, err error) {
	every := o.Every
	if every <= 0 {
		every = 1
	}
	if (index+1)%every == 0 || index+1 == total {
		log.Printf("row %d of %d: %s", index+1, total, outcome)
	}
}

func (o *LogObserver) RunDone(stats Stats) {
	log.Println(stats.String())
}
