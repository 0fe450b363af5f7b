// Package file implements checkpoint persistence as a single JSON
// file mapping source name to checkpoint. Saves go through a temp
// file and an atomic rename, so a crash mid-write never leaves a
// partially written file behind.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
)

// Ensure Store implements the port.
var _ driven.CheckpointStore = (*Store)(nil)

type record struct {
	Cursor    int64     `json:"cursor"`
	Records   int       `json:"records"`
	Truncated bool      `json:"truncated"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a file-backed CheckpointStore.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a Store persisting to path, creating the parent
// directory if needed.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "checkpoint.json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}
	return &Store{path: path}, nil
}

// Load returns the checkpoint for sourceID, or nil when none exists.
// A corrupt checkpoint file surfaces as an error rather than a silent
// restart from scratch.
func (s *Store) Load(_ context.Context, sourceID string) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}
	rec, ok := all[sourceID]
	if !ok {
		return nil, nil
	}
	return &domain.Checkpoint{
		SourceID:  sourceID,
		Cursor:    rec.Cursor,
		Records:   rec.Records,
		Truncated: rec.Truncated,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Save stores or replaces the checkpoint for cp.SourceID.
func (s *Store) Save(_ context.Context, cp domain.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	all[cp.SourceID] = record{
		Cursor:    cp.Cursor,
		Records:   cp.Records,
		Truncated: cp.Truncated,
		UpdatedAt: cp.UpdatedAt,
	}
	return s.write(all)
}

// Delete removes the checkpoint for sourceID.
func (s *Store) Delete(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := all[sourceID]; !ok {
		return nil
	}
	delete(all, sourceID)
	return s.write(all)
}

func (s *Store) read() (map[string]record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]record), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	all := make(map[string]record)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse checkpoint file %s: %w", s.path, err)
	}
	return all, nil
}

// write lands the whole map via temp file + rename so readers never
// observe a torn write.
func (s *Store) write(all map[string]record) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoints: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp checkpoint file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp checkpoint file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace checkpoint file: %w", err)
	}
	return nil
}
