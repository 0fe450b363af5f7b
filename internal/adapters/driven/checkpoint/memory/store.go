// Package memory implements an in-memory CheckpointStore for tests.
package memory

import (
	"context"
	"sync"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
)

// Ensure Store implements the port.
var _ driven.CheckpointStore = (*Store)(nil)

// Store keeps checkpoints in a map. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]domain.Checkpoint

	// SaveErr, when set, is returned by every Save. Lets tests inject
	// checkpoint write failures.
	SaveErr error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{checkpoints: make(map[string]domain.Checkpoint)}
}

// Load returns the checkpoint for sourceID, or nil when absent.
func (s *Store) Load(_ context.Context, sourceID string) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[sourceID]
	if !ok {
		return nil, nil
	}
	out := cp
	return &out, nil
}

// Save stores or replaces the checkpoint.
func (s *Store) Save(_ context.Context, cp domain.Checkpoint) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.SourceID] = cp
	return nil
}

// Delete removes the checkpoint for sourceID.
func (s *Store) Delete(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, sourceID)
	return nil
}
