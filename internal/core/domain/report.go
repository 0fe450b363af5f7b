package domain

import "time"

// SourceState is the terminal per-cycle state of one source.
type SourceState string

const (
	// StateCommitted means every batch for the source was accepted (or
	// its rejects fell under the discard policy) and the checkpoint
	// advanced.
	StateCommitted SourceState = "committed"

	// StatePartialFailure means at least one batch failed entirely, or
	// the checkpoint could not be written; the checkpoint did not
	// advance and the next cycle retries the same range.
	StatePartialFailure SourceState = "partial-failure"

	// StateSkipped means the source was not processed this cycle
	// (fetch failure, cancellation, or a still-running previous cycle).
	StateSkipped SourceState = "skipped"
)

// DeliveryReport accounts for one source's delivery outcome in a cycle.
type DeliveryReport struct {
	// Accepted is the number of documents confirmed by the destination.
	Accepted int

	// Rejected is the number of documents the destination permanently
	// rejected. Counted and discarded per the discard policy.
	Rejected int

	// Unsent is the number of documents dropped after an earlier batch
	// from the same source failed; they are re-fetched next cycle.
	Unsent int

	// FailedBatches is the number of batches that failed after
	// exhausting retries.
	FailedBatches int

	// LastError is the failure reason of the most recent failed batch.
	LastError string
}

// Failed reports whether any batch failed entirely.
func (r DeliveryReport) Failed() bool {
	return r.FailedBatches > 0
}

// SourceReport is the per-source outcome of one harvest cycle.
type SourceReport struct {
	Source    Source
	State     SourceState
	Records   int
	Discarded int
	Delivery  DeliveryReport

	// Cursor is the checkpoint cursor after the cycle. Unchanged from
	// the cycle's starting cursor unless the source committed.
	Cursor int64

	// Truncated mirrors the adapter's truncation flag for the cycle.
	Truncated bool

	// Err carries the failure behind a Skipped or PartialFailure state.
	Err error
}

// CycleReport aggregates the per-source outcomes of one harvest cycle.
// It is assembled only after every source reaches a terminal state.
type CycleReport struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	Sources   []SourceReport
}

// Committed counts sources that committed their checkpoint this cycle.
func (c *CycleReport) Committed() int { return c.countState(StateCommitted) }

// Failed counts sources that ended in partial failure.
func (c *CycleReport) Failed() int { return c.countState(StatePartialFailure) }

// Skipped counts sources that were skipped.
func (c *CycleReport) Skipped() int { return c.countState(StateSkipped) }

func (c *CycleReport) countState(s SourceState) int {
	n := 0
	for i := range c.Sources {
		if c.Sources[i].State == s {
			n++
		}
	}
	return n
}

// Records sums the records processed across all sources.
func (c *CycleReport) Records() int {
	n := 0
	for i := range c.Sources {
		n += c.Sources[i].Records
	}
	return n
}
