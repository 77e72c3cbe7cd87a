package store

import (
	"context"
	"fmt"
	"time"
)

// CreateRun inserts a new run row in status "running".
func (s *Store) CreateRun(ctx context.Context, id, suite, configJSON string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, suite, started_at, status, config_json) VALUES (?, ?, ?, 'running', ?)`,
		id, suite, startedAt, configJSON)
	if err != nil {
		return fmt.Errorf("create run %q: %w", id, err)
	}
	return nil
}

// SetRunStatus transitions a run to a terminal status.
func (s *Store) SetRunStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set run %q status to %q: %w", id, status, err)
	}
	return nil
}

// PutResult persists a Result row, append-only per (run_id, test_id).
func (s *Store) PutResult(ctx context.Context, r ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results (id, run_id, test_id, outcome, score, duration_ms, attempts_json, output_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.TestID, r.Outcome, r.Score, r.DurationMS, r.AttemptsJSON, r.OutputJSON, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("put result %q for run %q test %q: %w", r.ID, r.RunID, r.TestID, err)
	}
	return nil
}

// ResultsForRun returns every Result row recorded for a run.
func (s *Store) ResultsForRun(ctx context.Context, runID string) ([]ResultRow, error) {
	var rows []ResultRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM results WHERE run_id = ? ORDER BY created_at ASC`, runID); err != nil {
		return nil, fmt.Errorf("load results for run %q: %w", runID, err)
	}
	return rows, nil
}

// PutQuarantine upserts a quarantine entry for (suite, test_id).
func (s *Store) PutQuarantine(ctx context.Context, q QuarantineRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quarantine (suite, test_id, reason, added_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(suite, test_id) DO UPDATE SET reason = excluded.reason, added_at = excluded.added_at`,
		q.Suite, q.TestID, q.Reason, q.AddedAt)
	if err != nil {
		return fmt.Errorf("put quarantine entry for suite %q test %q: %w", q.Suite, q.TestID, err)
	}
	return nil
}

// QuarantinedTests returns the set of test_ids quarantined for a suite.
func (s *Store) QuarantinedTests(ctx context.Context, suite string) (map[string]bool, error) {
	var rows []QuarantineRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM quarantine WHERE suite = ?`, suite); err != nil {
		return nil, fmt.Errorf("load quarantine for suite %q: %w", suite, err)
	}
	out := make(map[string]bool, len(rows))
	for _, r := range rows {
		out[r.TestID] = true
	}
	return out, nil
}
