package driven

import (
	"context"

	"github.com/gridops/condor-spider/internal/core/domain"
)

// BulkReject is one per-document rejection from a bulk write.
type BulkReject struct {
	// DocID is the rejected document's key.
	DocID string

	// Status is the destination's status code for the item.
	Status int

	// Reason is the destination's failure reason, when given.
	Reason string
}

// BulkOutcome is the per-document accounting of one bulk write that the
// destination processed.
type BulkOutcome struct {
	Accepted int
	Rejected []BulkReject
}

// BulkWriter delivers a batch of documents to the destination store in
// one call. The write must be idempotent: documents are indexed under
// their stable IDs, so re-sending an already-accepted document must not
// duplicate it.
//
// A non-nil error means the whole call failed and nothing is known
// about individual documents; transient failures are reported as
// domain.ErrDestinationUnavailable or domain.ErrDestinationTimeout so
// the uploader can retry them.
type BulkWriter interface {
	Write(ctx context.Context, index string, docs []domain.Document) (*BulkOutcome, error)
}
