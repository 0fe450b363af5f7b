package driven

import (
	"context"
	"errors"

	"github.com/gridops/condor-spider/internal/core/domain"
)

// HistorySource performs bounded, time-limited incremental pulls from
// one remote history source. One instance owns one source.
type HistorySource interface {
	// Source returns the descriptor this adapter was built for.
	Source() domain.Source

	// Fetch streams records strictly at or after cursor (epoch seconds)
	// in source order, at most maxRecords of them. On success the error
	// channel carries a FetchComplete sentinel with the new cursor and
	// truncation flag before both channels close. Each call is a fresh,
	// finite, non-restartable pull.
	Fetch(ctx context.Context, cursor int64, maxRecords int) (<-chan *domain.ClassAd, <-chan error)
}

// SourceFactory builds a HistorySource for a source descriptor.
type SourceFactory interface {
	Create(source domain.Source) (HistorySource, error)
}

// FetchComplete is sent on the error channel when a fetch finishes
// successfully. It carries the cursor the source may resume from.
type FetchComplete struct {
	// NewCursor is the highest completion boundary among the records
	// actually returned; never beyond them, and never below the cursor
	// the fetch started from.
	NewCursor int64

	// Truncated is true when the fetch stopped at the record cap before
	// exhausting the source's history.
	Truncated bool
}

// Error implements the error interface so the sentinel can travel on
// the error channel.
func (FetchComplete) Error() string {
	return "fetch complete"
}

// IsFetchComplete checks whether an error is the successful-completion
// sentinel.
func IsFetchComplete(err error) (*FetchComplete, bool) {
	var fc *FetchComplete
	if errors.As(err, &fc) {
		return fc, true
	}
	return nil, false
}
