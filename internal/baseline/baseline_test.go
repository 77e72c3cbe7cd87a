package baseline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/internal/store"
)

func TestValidateSuiteMismatch(t *testing.T) {
	f := &File{SchemaVersion: 1, Suite: "a"}
	err := f.Validate("b", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baseline suite mismatch")
	assert.Contains(t, err.Error(), "expected 'b'")
}

func TestValidateSchemaVersionMismatch(t *testing.T) {
	f := &File{SchemaVersion: 2, Suite: "a"}
	err := f.Validate("a", "")
	require.Error(t, err)
}

func TestValidateOK(t *testing.T) {
	f := &File{SchemaVersion: 1, Suite: "a", ConfigFingerprint: "fp1"}
	require.NoError(t, f.Validate("a", "fp1"))
}

func TestPercentile90(t *testing.T) {
	assert.Equal(t, 0.0, Percentile90(nil))
	// nearest-rank p90 of 10 sorted values [1..10] is rank ceil(0.9*10) = 9 -> 9.
	vals := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, 9.0, Percentile90(vals))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReportFromDBAggregatesOutcomesAndSimilarity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0).UTC()

	require.NoError(t, s.CreateRun(ctx, "run1", "suite-a", "{}", now))
	require.NoError(t, s.PutResult(ctx, store.ResultRow{
		ID: "r1", RunID: "run1", TestID: "t1", Outcome: "pass", Score: 1, CreatedAt: now,
		AttemptsJSON: "[]",
		OutputJSON:   `{"metrics":{"semantic_similarity_to":{"score":0.9,"passed":true}}}`,
	}))
	require.NoError(t, s.PutResult(ctx, store.ResultRow{
		ID: "r2", RunID: "run1", TestID: "t1", Outcome: "fail", Score: 0, CreatedAt: now.Add(time.Second),
		AttemptsJSON: "[]",
		OutputJSON:   `{"metrics":{"must_contain":{"score":0,"passed":false,"details":{"reason":"missing value"}}}}`,
	}))

	report, err := ReportFromDB(ctx, s, "suite-a", 1)
	require.NoError(t, err)

	tr := report.Tests["t1"]
	require.NotNil(t, tr)
	assert.Equal(t, 2, tr.Attempts)
	assert.InDelta(t, 0.5, tr.PassRate, 1e-9)
	require.NotNil(t, tr.P90Similarity)
	assert.InDelta(t, 0.9, *tr.P90Similarity, 1e-9)
	require.Len(t, tr.TopReasons, 1)
	assert.Equal(t, "missing value", tr.TopReasons[0].Reason)
}

func TestDecideSuiteVerdictMinFloor(t *testing.T) {
	current := &Report{Tests: map[string]*TestReport{
		"t1": {TestID: "t1", PassRate: 0.5},
	}}
	cfg := ThresholdConfig{Mode: ModeMinFloor, MinFloorPct: 0.8}

	v := DecideSuiteVerdict(current, nil, cfg, false, nil)
	assert.False(t, v.Passed)
}

func TestDecideSuiteVerdictMaxDrop(t *testing.T) {
	current := &Report{Tests: map[string]*TestReport{
		"t1": {TestID: "t1", PassRate: 0.5},
	}}
	baseline := &File{Entries: []Entry{{TestID: "t1", PassRate: 0.95}}}
	cfg := ThresholdConfig{Mode: ModeMaxDrop, MaxDropPct: 0.1}

	v := DecideSuiteVerdict(current, baseline, cfg, false, nil)
	assert.False(t, v.Passed)
}

func TestDecideSuiteVerdictQuarantineExcludesFromGating(t *testing.T) {
	current := &Report{Tests: map[string]*TestReport{
		"t1": {TestID: "t1", PassRate: 0.0},
	}}
	cfg := ThresholdConfig{Mode: ModeMinFloor, MinFloorPct: 0.8}

	v := DecideSuiteVerdict(current, nil, cfg, false, map[string]bool{"t1": true})
	assert.True(t, v.Passed, "a quarantined test cannot by itself fail the run")
}

func TestDecideSuiteVerdictBlockOnWarn(t *testing.T) {
	current := &Report{Tests: map[string]*TestReport{}}
	cfg := ThresholdConfig{BlockOnWarn: true}

	v := DecideSuiteVerdict(current, nil, cfg, true, nil)
	assert.False(t, v.Passed)
}
