// Package driving defines the interfaces the core offers to its
// callers (CLI commands and the scheduler loop).
package driving

import (
	"context"

	"github.com/gridops/condor-spider/internal/core/domain"
)

// Harvester runs harvest cycles over the configured sources.
type Harvester interface {
	// HarvestAll runs one full cycle: every configured source is
	// fetched, normalised, delivered and committed independently over a
	// bounded worker pool. The cycle always completes; per-source
	// failures are reported in the CycleReport, never raised.
	HarvestAll(ctx context.Context) (*domain.CycleReport, error)

	// Harvest runs one cycle for a single named source.
	Harvest(ctx context.Context, sourceName string) (*domain.SourceReport, error)
}
