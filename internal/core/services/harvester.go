package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
	"github.com/gridops/condor-spider/internal/core/ports/driving"
	"github.com/gridops/condor-spider/internal/logger"
	"github.com/gridops/condor-spider/internal/normalise"
)

// Ensure Harvester implements the driving interface.
var _ driving.Harvester = (*Harvester)(nil)

// HarvesterConfig tunes one harvest cycle.
type HarvesterConfig struct {
	// Workers bounds how many sources are processed concurrently.
	Workers int

	// Lookback is how far into history a source with no checkpoint
	// starts from.
	Lookback time.Duration

	// ScheddMaxRecords and StartdMaxRecords cap one cycle's pull per
	// source kind. Zero means unlimited.
	ScheddMaxRecords int
	StartdMaxRecords int

	// ReadOnly runs fetch and normalise but skips delivery and
	// checkpoint advance.
	ReadOnly bool

	// DryRun runs the full pipeline but discards at the delivery step
	// and does not advance checkpoints.
	DryRun bool
}

const (
	defaultWorkers  = 8
	defaultLookback = 12 * time.Hour
)

// Harvester coordinates harvest cycles: it fans sources over a bounded
// worker pool, streams each source's records through the normaliser
// into an upload session, and advances the source's checkpoint only
// after delivery is confirmed. Sources fail independently; a cycle
// always completes.
type Harvester struct {
	sources     []domain.Source
	factory     driven.SourceFactory
	checkpoints driven.CheckpointStore
	normaliser  *normalise.Normaliser
	uploader    *Uploader
	cfg         HarvesterConfig

	// inflight guards per-source serialisation: a new cycle must not
	// touch a source whose previous cycle has not resolved.
	mu       sync.Mutex
	inflight map[string]bool
}

// NewHarvester wires a Harvester. Zero config values get defaults.
func NewHarvester(
	sources []domain.Source,
	factory driven.SourceFactory,
	checkpoints driven.CheckpointStore,
	normaliser *normalise.Normaliser,
	uploader *Uploader,
	cfg HarvesterConfig,
) *Harvester {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	return &Harvester{
		sources:     sources,
		factory:     factory,
		checkpoints: checkpoints,
		normaliser:  normaliser,
		uploader:    uploader,
		cfg:         cfg,
		inflight:    make(map[string]bool),
	}
}

// HarvestAll runs one cycle over every configured source.
func (h *Harvester) HarvestAll(ctx context.Context) (*domain.CycleReport, error) {
	report := &domain.CycleReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger.Info("cycle %s: harvesting %d sources with %d workers", report.ID, len(h.sources), h.cfg.Workers)

	jobs := make(chan domain.Source)
	results := make(chan domain.SourceReport)

	var wg sync.WaitGroup
	for i := 0; i < h.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				results <- h.harvestSource(ctx, src)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, src := range h.sources {
			select {
			case jobs <- src:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for sr := range results {
		report.Sources = append(report.Sources, sr)
	}
	report.EndedAt = time.Now()

	// Sources never handed to a worker (cancellation mid-dispatch)
	// still need a terminal state.
	h.fillCancelled(ctx, report)

	logger.Info("cycle %s: %d committed, %d failed, %d skipped, %d records in %s",
		report.ID, report.Committed(), report.Failed(), report.Skipped(),
		report.Records(), report.EndedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

// Harvest runs one cycle for a single named source.
func (h *Harvester) Harvest(ctx context.Context, sourceName string) (*domain.SourceReport, error) {
	for _, src := range h.sources {
		if src.Name == sourceName {
			sr := h.harvestSource(ctx, src)
			return &sr, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSource, sourceName)
}

func (h *Harvester) fillCancelled(ctx context.Context, report *domain.CycleReport) {
	if ctx.Err() == nil {
		return
	}
	seen := make(map[string]bool, len(report.Sources))
	for i := range report.Sources {
		seen[report.Sources[i].Source.Name] = true
	}
	for _, src := range h.sources {
		if !seen[src.Name] {
			report.Sources = append(report.Sources, domain.SourceReport{
				Source: src,
				State:  domain.StateSkipped,
				Err:    ctx.Err(),
			})
		}
	}
}

// harvestSource runs one source's full pipeline to a terminal state:
// fetch, normalise, deliver, commit. The checkpoint advances only when
// every batch was confirmed (or its rejects fell under the discard
// policy) and the new checkpoint was durably saved.
func (h *Harvester) harvestSource(ctx context.Context, src domain.Source) domain.SourceReport {
	sr := domain.SourceReport{Source: src, State: domain.StateSkipped}

	h.mu.Lock()
	if h.inflight[src.Name] {
		h.mu.Unlock()
		sr.Err = domain.ErrHarvestInProgress
		logger.Warn("source %s: previous cycle still running, skipping", src.Name)
		return sr
	}
	h.inflight[src.Name] = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.inflight, src.Name)
		h.mu.Unlock()
	}()

	cp, err := h.checkpoints.Load(ctx, src.Name)
	if err != nil {
		sr.Err = fmt.Errorf("load checkpoint: %w", err)
		logger.Warn("source %s: %v", src.Name, sr.Err)
		return sr
	}
	cursor := time.Now().Add(-h.cfg.Lookback).Unix()
	if cp != nil {
		cursor = cp.Cursor
	}
	sr.Cursor = cursor

	adapter, err := h.factory.Create(src)
	if err != nil {
		sr.Err = fmt.Errorf("create source adapter: %w", err)
		logger.Warn("source %s: %v", src.Name, sr.Err)
		return sr
	}

	maxRecords := h.cfg.ScheddMaxRecords
	if src.Kind == domain.KindStartd {
		maxRecords = h.cfg.StartdMaxRecords
	}

	logger.Debug("source %s: fetching history since %d (max %d)", src.Name, cursor, maxRecords)
	records, errs := adapter.Fetch(ctx, cursor, maxRecords)

	session := h.uploader.NewSession(src.Name)
	var complete *driven.FetchComplete
	var fetchErr error

	for records != nil || errs != nil {
		select {
		case <-ctx.Done():
			sr.Err = ctx.Err()
			return sr

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if fc, done := driven.IsFetchComplete(err); done {
				complete = fc
				continue
			}
			if err != nil {
				fetchErr = err
			}

		case ad, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			sr.Records++
			doc, nerr := h.normaliser.Normalise(ad, src.Kind)
			if nerr != nil {
				sr.Discarded++
				logger.Debug("source %s: %v", src.Name, nerr)
				continue
			}
			if !h.cfg.ReadOnly {
				session.Add(ctx, *doc)
			}
		}
	}

	if fetchErr != nil {
		// Adapter failure: nothing already delivered is lost, but the
		// range is not complete, so the checkpoint stays put.
		sr.Err = fetchErr
		logger.Warn("source %s: fetch failed after %d records: %v", src.Name, sr.Records, fetchErr)
		return sr
	}
	if complete == nil {
		sr.Err = fmt.Errorf("%w: fetch ended without completion", domain.ErrSourceProtocol)
		logger.Warn("source %s: %v", src.Name, sr.Err)
		return sr
	}
	sr.Truncated = complete.Truncated

	if !h.cfg.ReadOnly {
		session.Flush(ctx)
	}
	sr.Delivery = session.Report()

	if sr.Delivery.Failed() {
		sr.State = domain.StatePartialFailure
		sr.Err = fmt.Errorf("%d batches failed: %s", sr.Delivery.FailedBatches, sr.Delivery.LastError)
		logger.Warn("source %s: delivery incomplete, checkpoint stays at %d", src.Name, cursor)
		return sr
	}

	if h.cfg.ReadOnly || h.cfg.DryRun {
		// Pipeline ran but progress is deliberately not recorded.
		sr.State = domain.StateCommitted
		return sr
	}
	if ctx.Err() != nil {
		sr.Err = ctx.Err()
		return sr
	}

	newCP := domain.Checkpoint{
		SourceID:  src.Name,
		Cursor:    complete.NewCursor,
		Records:   sr.Records,
		Truncated: complete.Truncated,
		UpdatedAt: time.Now(),
	}
	if err := h.checkpoints.Save(ctx, newCP); err != nil {
		sr.State = domain.StatePartialFailure
		sr.Err = fmt.Errorf("%w: %v", domain.ErrCheckpointWrite, err)
		logger.Warn("source %s: %v", src.Name, sr.Err)
		return sr
	}

	sr.State = domain.StateCommitted
	sr.Cursor = newCP.Cursor
	logger.Info("source %s: committed %d records (accepted %d, rejected %d), cursor %d, truncated=%v",
		src.Name, sr.Records, sr.Delivery.Accepted, sr.Delivery.Rejected, sr.Cursor, sr.Truncated)
	return sr
}
