package batch

import (
	"fmt"
	"time"

	"github.com/poiesic/insight/core"
)

// Status is the final state of one batch.
type Status int

const (
	// StatusSucceeded means the batch was embedded and, if a Committer is
	// configured, committed.
	StatusSucceeded Status = iota

	// StatusFailed means the provider or the committer rejected the batch.
	StatusFailed

	// StatusCancelled means the batch was not attempted, was interrupted, or
	// was discarded because the run was aborted or its context was cancelled.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome describes what happened to one batch.
type Outcome struct {
	Index    int
	Size     int
	Status   Status
	Attempts int
	Duration time.Duration
	Err      error
}

// Result is the assembled output of an embedding run.
type Result struct {
	// Entries holds the records of succeeded batches with their vectors,
	// in input order.
	Entries []core.Entry

	// Batches holds one outcome per input batch, indexed by batch index.
	Batches []Outcome

	// Failed lists failed batches in index order.
	Failed []*core.BatchError

	// Records is the number of input records.
	Records int
}

// Summary reports partial success in one line.
func (r *Result) Summary() string {
	cancelled := 0
	for _, o := range r.Batches {
		if o.Status == StatusCancelled {
			cancelled++
		}
	}
	s := fmt.Sprintf("embedded %d of %d records in %d batches, %d skipped",
		len(r.Entries), r.Records, len(r.Batches), len(r.Failed))
	if cancelled > 0 {
		s += fmt.Sprintf(", %d cancelled", cancelled)
	}
	return s
}

// Complete reports whether every batch succeeded.
func (r *Result) Complete() bool {
	for _, o := range r.Batches {
		if o.Status != StatusSucceeded {
			return false
		}
	}
	return true
}
