// Package sqlite implements checkpoint persistence on SQLite. Each
// save is one upsert inside SQLite's own transactional guarantees, so
// a crash mid-write never surfaces a torn checkpoint.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/gridops/condor-spider/internal/core/domain"
	"github.com/gridops/condor-spider/internal/core/ports/driven"
)

// Ensure Store implements the port.
var _ driven.CheckpointStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	source_id  TEXT PRIMARY KEY,
	cursor     INTEGER NOT NULL,
	records    INTEGER NOT NULL DEFAULT 0,
	truncated  INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
)`

// Store is a SQLite-backed CheckpointStore.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the checkpoint database at path.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	// WAL keeps concurrent source workers from blocking each other.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the checkpoint for sourceID, or nil when none exists.
func (s *Store) Load(ctx context.Context, sourceID string) (*domain.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT cursor, records, truncated, updated_at
		FROM checkpoints WHERE source_id = ?
	`, sourceID)

	var cp domain.Checkpoint
	var truncated int
	var updatedAt int64
	err := row.Scan(&cp.Cursor, &cp.Records, &truncated, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", sourceID, err)
	}

	cp.SourceID = sourceID
	cp.Truncated = truncated != 0
	cp.UpdatedAt = time.Unix(updatedAt, 0)
	return &cp, nil
}

// Save upserts the checkpoint for cp.SourceID.
func (s *Store) Save(ctx context.Context, cp domain.Checkpoint) error {
	truncated := 0
	if cp.Truncated {
		truncated = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (source_id, cursor, records, truncated, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			cursor = excluded.cursor,
			records = excluded.records,
			truncated = excluded.truncated,
			updated_at = excluded.updated_at
	`, cp.SourceID, cp.Cursor, cp.Records, truncated, cp.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.SourceID, err)
	}
	return nil
}

// Delete removes the checkpoint for sourceID.
func (s *Store) Delete(ctx context.Context, sourceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", sourceID, err)
	}
	return nil
}
