package store

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"

	"github.com/assay-dev/assay/internal/reason"
	"github.com/assay-dev/assay/internal/trace"
)

// InsertBatch persists a sequence of trace events atomically: either the
// whole batch commits or none of it does. runID/testID, when non-empty,
// are stamped onto any EpisodeStart rows in the batch so GetEpisodeGraph
// can look episodes up by (run_id, test_id) later.
func (s *Store) InsertBatch(ctx context.Context, events []trace.Event, runID, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert_batch tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, ev := range events {
		if err := insertEvent(ctx, tx.Tx, ev, runID, testID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert_batch tx: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx *stdsql.Tx, ev trace.Event, runID, testID string) error {
	switch ev.Kind {
	case trace.KindEpisodeStart:
		return insertEpisodeStart(ctx, tx, ev.EpisodeStart, runID, testID)
	case trace.KindStep:
		return insertStep(ctx, tx, ev.Step)
	case trace.KindToolCall:
		return insertToolCall(ctx, tx, ev.ToolCall)
	case trace.KindEpisodeEnd:
		return insertEpisodeEnd(ctx, tx, ev.EpisodeEnd)
	default:
		return reason.New(reason.TraceParse, fmt.Sprintf("unknown event kind %q", ev.Kind))
	}
}

func insertEpisodeStart(ctx context.Context, tx *stdsql.Tx, e *trace.EpisodeStart, runID, testID string) error {
	if e == nil {
		return reason.New(reason.TraceParse, "episode_start event missing its payload")
	}
	input, err := json.Marshal(e.Input)
	if err != nil {
		return fmt.Errorf("marshal episode input: %w", err)
	}
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("marshal episode meta: %w", err)
	}
	var runArg, testArg any
	if runID != "" {
		runArg = runID
	}
	if testID != "" {
		testArg = testID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO episodes (episode_id, run_id, test_id, input_json, meta_json, start_ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.EpisodeID, runArg, testArg, string(input), string(meta), e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert episode_start %q: %w", e.EpisodeID, err)
	}
	return nil
}

func insertStep(ctx context.Context, tx *stdsql.Tx, st *trace.Step) error {
	if st == nil {
		return reason.New(reason.TraceParse, "step event missing its payload")
	}
	meta, err := json.Marshal(st.Meta)
	if err != nil {
		return fmt.Errorf("marshal step meta: %w", err)
	}
	truncations, err := json.Marshal(st.Truncations)
	if err != nil {
		return fmt.Errorf("marshal step truncations: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO steps (episode_id, step_id, idx, ts, kind, name, content, content_sha256, meta_json, truncations_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.EpisodeID, st.StepID, st.Idx, st.Timestamp, st.Kind, nullIfEmpty(st.Name), nullIfEmpty(st.Content), nullIfEmpty(st.ContentSHA256), string(meta), string(truncations))
	if err != nil {
		return fmt.Errorf("insert step (%s,%s): %w", st.EpisodeID, st.StepID, err)
	}
	return nil
}

func insertToolCall(ctx context.Context, tx *stdsql.Tx, tc *trace.ToolCall) error {
	if tc == nil {
		return reason.New(reason.TraceParse, "tool_call event missing its payload")
	}
	args, err := json.Marshal(tc.Args)
	if err != nil {
		return fmt.Errorf("marshal tool_call args: %w", err)
	}
	var resultJSON *string
	if tc.Result != nil {
		b, err := json.Marshal(tc.Result)
		if err != nil {
			return fmt.Errorf("marshal tool_call result: %w", err)
		}
		s := string(b)
		resultJSON = &s
	}
	truncations, err := json.Marshal(tc.Truncations)
	if err != nil {
		return fmt.Errorf("marshal tool_call truncations: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO tool_calls (episode_id, step_id, call_index, ts, tool_name, args_json, args_sha256, result_json, result_sha256, error, truncations_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.EpisodeID, tc.StepID, tc.CallIndex, tc.Timestamp, tc.ToolName, string(args), nullIfEmpty(tc.ArgsSHA256), resultJSON, nullIfEmpty(tc.ResultSHA256), nullIfEmpty(tc.Error), string(truncations))
	if err != nil {
		return fmt.Errorf("insert tool_call (%s,%s,%d): %w", tc.EpisodeID, tc.StepID, tc.CallIndex, err)
	}
	return nil
}

func insertEpisodeEnd(ctx context.Context, tx *stdsql.Tx, e *trace.EpisodeEnd) error {
	if e == nil {
		return reason.New(reason.TraceParse, "episode_end event missing its payload")
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE episodes SET end_ts = ?, outcome = ?, final_output = ? WHERE episode_id = ?`,
		e.Timestamp, nullIfEmpty(e.Outcome), nullIfEmpty(e.FinalOutput), e.EpisodeID)
	if err != nil {
		return fmt.Errorf("update episode_end %q: %w", e.EpisodeID, err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetEpisodeGraph returns the episode, its steps, and its tool calls for
// the given (run_id, test_id) pair.
func (s *Store) GetEpisodeGraph(ctx context.Context, runID, testID string) (*EpisodeGraph, error) {
	var ep EpisodeRow
	err := s.db.GetContext(ctx, &ep, `SELECT * FROM episodes WHERE run_id = ? AND test_id = ?`, runID, testID)
	if err != nil {
		return nil, reason.New(reason.TraceEpisodeMissing, fmt.Sprintf("no episode for run %q test %q: %v", runID, testID, err))
	}
	return s.loadGraph(ctx, ep)
}

// GetLatestEpisodeGraphByTestID is the "latest episode by test_id"
// fallback. It is load-bearing for a "record once, verify later"
// workflow, so it is gated behind AllowLatestEpisodeFallback and logs
// when it fires.
func (s *Store) GetLatestEpisodeGraphByTestID(ctx context.Context, testID string) (*EpisodeGraph, error) {
	if !s.allowLatestEpisodeFallback {
		return nil, reason.New(reason.TraceEpisodeMissing, fmt.Sprintf("no episode found for test %q and latest-episode fallback is disabled", testID))
	}
	var ep EpisodeRow
	err := s.db.GetContext(ctx, &ep, `
		SELECT * FROM episodes WHERE test_id = ? ORDER BY start_ts DESC LIMIT 1`, testID)
	if err != nil {
		return nil, reason.New(reason.TraceEpisodeMissing, fmt.Sprintf("no episode found for test %q: %v", testID, err))
	}
	s.logFallbackUsed(testID, derefOrEmpty(ep.RunID))
	return s.loadGraph(ctx, ep)
}

func (s *Store) loadGraph(ctx context.Context, ep EpisodeRow) (*EpisodeGraph, error) {
	var steps []StepRow
	if err := s.db.SelectContext(ctx, &steps, `SELECT * FROM steps WHERE episode_id = ? ORDER BY idx ASC`, ep.EpisodeID); err != nil {
		return nil, fmt.Errorf("load steps for episode %q: %w", ep.EpisodeID, err)
	}
	var calls []ToolCallRow
	if err := s.db.SelectContext(ctx, &calls, `SELECT * FROM tool_calls WHERE episode_id = ? ORDER BY step_id ASC, call_index ASC`, ep.EpisodeID); err != nil {
		return nil, fmt.Errorf("load tool calls for episode %q: %w", ep.EpisodeID, err)
	}
	return &EpisodeGraph{Episode: ep, Steps: steps, ToolCalls: calls}, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
