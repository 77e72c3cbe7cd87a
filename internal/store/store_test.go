package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/internal/trace"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertBatchRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	events := []trace.Event{
		{Kind: trace.KindEpisodeStart, EpisodeStart: &trace.EpisodeStart{EpisodeID: "ep1", Timestamp: now, Input: map[string]any{"prompt": "hi"}}},
		{Kind: trace.KindStep, Step: &trace.Step{EpisodeID: "ep1", StepID: "s1", Idx: 0, Timestamp: now.Add(time.Second), Kind: "llm_completion", Content: "hello"}},
		{Kind: trace.KindToolCall, ToolCall: &trace.ToolCall{EpisodeID: "ep1", StepID: "s1", CallIndex: 0, Timestamp: now.Add(2 * time.Second), ToolName: "weather_tool", Args: map[string]any{"city": "NYC"}}},
		{Kind: trace.KindEpisodeEnd, EpisodeEnd: &trace.EpisodeEnd{EpisodeID: "ep1", Timestamp: now.Add(3 * time.Second), Outcome: "pass"}},
	}

	require.NoError(t, s.InsertBatch(ctx, events, "run1", "test1"))

	graph, err := s.GetEpisodeGraph(ctx, "run1", "test1")
	require.NoError(t, err)
	require.Equal(t, "ep1", graph.Episode.EpisodeID)
	require.Len(t, graph.Steps, 1)
	require.Len(t, graph.ToolCalls, 1)
	require.NotNil(t, graph.Episode.Outcome)
	require.Equal(t, "pass", *graph.Episode.Outcome)
}

func TestGetLatestEpisodeGraphByTestIDRequiresOptIn(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.InsertBatch(ctx, []trace.Event{
		{Kind: trace.KindEpisodeStart, EpisodeStart: &trace.EpisodeStart{EpisodeID: "ep1", Timestamp: now, Input: map[string]any{}}},
	}, "run1", "test1"))

	_, err := s.GetLatestEpisodeGraphByTestID(ctx, "test1")
	require.Error(t, err, "fallback must be disabled by default")

	s.AllowLatestEpisodeFallback(true)
	graph, err := s.GetLatestEpisodeGraphByTestID(ctx, "test1")
	require.NoError(t, err)
	require.Equal(t, "ep1", graph.Episode.EpisodeID)
}

func TestResponseCacheLastWriterWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.PutResponse(ctx, "key1", `{"text":"v1"}`, now))
	require.NoError(t, s.PutResponse(ctx, "key1", `{"text":"v2"}`, now.Add(time.Second)))

	row, ok, err := s.GetResponse(ctx, "key1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"text":"v2"}`, row.ResponseJSON)
}

func TestResponseCacheMiss(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.GetResponse(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEmbeddingBlobLengthValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.PutEmbedding(ctx, "emb|m|abc", "m", 2, []byte{1, 2, 3, 4, 5, 6, 7, 8}, now))
	row, ok, err := s.GetEmbedding(ctx, "emb|m|abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, row.Vec, 8)
}

func TestResultsAndQuarantine(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.CreateRun(ctx, "run1", "suite-a", "{}", now))
	require.NoError(t, s.PutResult(ctx, ResultRow{
		ID: "res1", RunID: "run1", TestID: "t1", Outcome: "pass", Score: 1, CreatedAt: now,
		AttemptsJSON: "[]", OutputJSON: "{}",
	}))
	require.NoError(t, s.SetRunStatus(ctx, "run1", "passed"))

	results, err := s.ResultsForRun(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, s.PutQuarantine(ctx, QuarantineRow{Suite: "suite-a", TestID: "t1", Reason: "flaky", AddedAt: now}))
	quarantined, err := s.QuarantinedTests(ctx, "suite-a")
	require.NoError(t, err)
	require.True(t, quarantined["t1"])
}

func TestQueryBaselineWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	for i, runID := range []string{"run1", "run2", "run3"} {
		require.NoError(t, s.CreateRun(ctx, runID, "suite-a", "{}", now.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, s.PutResult(ctx, ResultRow{
			ID: runID + "-res", RunID: runID, TestID: "t1", Outcome: "pass", Score: 1,
			CreatedAt: now.Add(time.Duration(i) * time.Minute), AttemptsJSON: "[]", OutputJSON: "{}",
		}))
	}

	rows, err := s.QueryBaselineWindow(ctx, "suite-a", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2, "only the 2 most recent runs are in the window")
}
