package driven

import (
	"context"

	"github.com/gridops/condor-spider/internal/core/domain"
)

// HistoryRequest describes one remote history query.
type HistoryRequest struct {
	// Kind selects the daemon type being queried.
	Kind domain.SourceKind

	// Host is the daemon address.
	Host string

	// Pool is the collector address, when the daemon is not in the
	// default pool.
	Pool string

	// Constraint is the history constraint expression, e.g.
	// "EnteredCurrentStatus >= 1700000000".
	Constraint string

	// Limit caps the number of ads the remote is asked for. Zero means
	// no cap.
	Limit int
}

// HistoryClient is the opaque wire-protocol capability for querying a
// daemon's history. The actual query protocol is an external
// collaborator; implementations stream ads as they arrive and close
// both channels when done. A terminal failure arrives on the error
// channel.
type HistoryClient interface {
	QueryHistory(ctx context.Context, req HistoryRequest) (<-chan *domain.ClassAd, <-chan error)
}
