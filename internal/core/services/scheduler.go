package services

import (
	"context"
	"sync"
	"time"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driving"
	"github.com/gridops/condor-spider/internal/logger"
)

// Scheduler drives repeated harvest cycles at a fixed interval. It is
// thin timer logic: all failure handling lives inside the cycle.
type Scheduler struct {
	interval  time.Duration
	harvester driving.Harvester

	mu      sync.Mutex
	running bool
	cycling bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	lastMu sync.RWMutex
	last   *domain.CycleReport
}

// NewScheduler creates a scheduler that runs a cycle every interval.
func NewScheduler(interval time.Duration, harvester driving.Harvester) *Scheduler {
	return &Scheduler{
		interval:  interval,
		harvester: harvester,
	}
}

// Start begins the scheduler loop and blocks until Stop is called or
// the context is cancelled. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Stop shuts the loop down and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// LastReport returns the most recent completed cycle's report, or nil
// before the first cycle finishes.
func (s *Scheduler) LastReport() *domain.CycleReport {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	return s.last
}

// runCycle launches one cycle in the background. A tick that arrives
// while the previous cycle is still running is dropped; per-source
// checkpoint serialisation does not rely on this, it only avoids
// pointless overlap.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.mu.Lock()
	if s.cycling {
		s.mu.Unlock()
		logger.Warn("scheduler: previous cycle still running, skipping tick")
		return
	}
	s.cycling = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.cycling = false
			s.mu.Unlock()
		}()

		report, err := s.harvester.HarvestAll(ctx)
		if err != nil {
			logger.Warn("scheduler: cycle failed: %v", err)
			return
		}

		s.lastMu.Lock()
		s.last = report
		s.lastMu.Unlock()
	}()
}
