package driven

import (
	"context"

	"github.com/gridops/condor-spider/internal/core/domain"
)

// CheckpointStore persists per-source harvest progress. Saves must be
// atomic with respect to concurrent loads: a crash mid-write must never
// leave a partially written checkpoint that Load returns as valid.
type CheckpointStore interface {
	// Load retrieves the checkpoint for a source.
	// Returns nil and no error when no checkpoint exists.
	Load(ctx context.Context, sourceID string) (*domain.Checkpoint, error)

	// Save stores or replaces the checkpoint for a source.
	Save(ctx context.Context, cp domain.Checkpoint) error

	// Delete removes the checkpoint for a source. Deleting a
	// nonexistent checkpoint is not an error.
	Delete(ctx context.Context, sourceID string) error
}
