// Package store implements the embedded relational event store:
// episodes, steps, tool calls, runs, results, quarantine, and the
// three content-addressed caches (response, embedding, judge). It owns
// all persisted data and serializes writes through a single mutex; one
// process owns one database.
package store

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go embedded SQL engine, registers driver "sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a sqlx.DB over modernc.org/sqlite with a single-writer
// mutex.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex

	allowLatestEpisodeFallback bool
}

// Open opens the store at path, which may be a file path or the literal
// ":memory:" for an in-process, non-persistent database.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store at %q: %w", path, err)
	}
	// modernc.org/sqlite has no separate connection pool semantics that
	// benefit from concurrency; a single connection keeps writer
	// serialization simple and matches the single-writer-mutex model.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

// InitSchema runs the embedded DDL script. Idempotent: safe to call on
// every process start against an existing database.
func (s *Store) InitSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AllowLatestEpisodeFallback gates the latest-episode-by-test-id lookup
// used when a (run_id, test_id) pair has no recorded episode. Disabled by
// default: relying on an episode from an older run is easy to do by
// accident, so callers opt in.
func (s *Store) AllowLatestEpisodeFallback(allow bool) {
	s.allowLatestEpisodeFallback = allow
}

func (s *Store) logFallbackUsed(testID, runID string) {
	slog.Info("assay.trace.fallback_used", "test_id", testID, "run_id", runID)
}
