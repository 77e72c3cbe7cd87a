package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// QueryBaselineWindow returns every Result row belonging to the last_n
// most recent runs of suite, ordered oldest-run-first; internal/baseline
// aggregates this into rolling-window stats.
func (s *Store) QueryBaselineWindow(ctx context.Context, suite string, lastN int) ([]ResultRow, error) {
	var runIDs []string
	err := s.db.SelectContext(ctx, &runIDs, `
		SELECT id FROM runs WHERE suite = ? ORDER BY started_at DESC LIMIT ?`, suite, lastN)
	if err != nil {
		return nil, fmt.Errorf("list recent runs for suite %q: %w", suite, err)
	}
	if len(runIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM results WHERE run_id IN (?) ORDER BY created_at ASC`, runIDs)
	if err != nil {
		return nil, fmt.Errorf("build baseline window query for suite %q: %w", suite, err)
	}
	query = s.db.Rebind(query)

	var rows []ResultRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query baseline window for suite %q: %w", suite, err)
	}
	return rows, nil
}
