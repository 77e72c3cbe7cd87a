package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/internal/metrics"
	"github.com/assay-dev/assay/internal/store"
)

// stubProvider returns a fixed Response for every TestCase; it never
// records a trace, so TraceHash is always empty.
type stubProvider struct {
	name  string
	resp  metrics.Response
	calls int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(_ context.Context, _ TestCase) (metrics.Response, error) {
	p.calls++
	return p.resp, nil
}

func (p *stubProvider) TraceHash() string { return "" }

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunSingleTestPass(t *testing.T) {
	st := openTestStore(t)
	provider := &stubProvider{name: "stub", resp: metrics.Response{Text: "the answer is 42"}}
	registry := metrics.NewRegistry(nil, nil)
	e := New(st, provider, registry, Config{Suite: "suite-a", Model: "test-model", EngineVersion: "v1"})

	tests := []TestCase{
		{ID: "t1", Prompt: "what is the answer?", Expected: metrics.Expected{Type: metrics.MustContain, Values: []string{"42"}}},
	}

	summary, err := e.Run(context.Background(), "run1", tests)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)

	r := summary.Results[0]
	assert.Equal(t, "t1", r.TestID)
	assert.Equal(t, Pass, r.Outcome)
	assert.Equal(t, 1.0, r.Score)
	assert.Equal(t, 1, provider.calls)

	rows, err := st.ResultsForRun(context.Background(), "run1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "pass", rows[0].Outcome)
}

func TestRunSingleTestFail(t *testing.T) {
	st := openTestStore(t)
	provider := &stubProvider{name: "stub", resp: metrics.Response{Text: "no idea"}}
	registry := metrics.NewRegistry(nil, nil)
	e := New(st, provider, registry, Config{Suite: "suite-a", Model: "test-model", EngineVersion: "v1"})

	tests := []TestCase{
		{ID: "t1", Prompt: "what is the answer?", Expected: metrics.Expected{Type: metrics.MustContain, Values: []string{"42"}}},
	}

	summary, err := e.Run(context.Background(), "run1", tests)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, Fail, summary.Results[0].Outcome)
	assert.Equal(t, 0.0, summary.Results[0].Score)
}

func TestRunCachesProviderCallsByFingerprint(t *testing.T) {
	st := openTestStore(t)
	provider := &stubProvider{name: "stub", resp: metrics.Response{Text: "42"}}
	registry := metrics.NewRegistry(nil, nil)
	e := New(st, provider, registry, Config{Suite: "suite-a", Model: "test-model", EngineVersion: "v1"})

	tc := TestCase{ID: "t1", Prompt: "p", Expected: metrics.Expected{Type: metrics.MustContain, Values: []string{"42"}}}

	_, err := e.Run(context.Background(), "run1", []TestCase{tc})
	require.NoError(t, err)
	_, err = e.Run(context.Background(), "run2", []TestCase{tc})
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls, "identical fingerprint should hit the response cache on the second run")
}

func TestRunMultipleTestsBoundedParallelism(t *testing.T) {
	st := openTestStore(t)
	provider := &stubProvider{name: "stub", resp: metrics.Response{Text: "42"}}
	registry := metrics.NewRegistry(nil, nil)
	e := New(st, provider, registry, Config{Suite: "suite-a", Model: "test-model", EngineVersion: "v1", Parallel: 2})

	var tests []TestCase
	for i := 0; i < 5; i++ {
		tests = append(tests, TestCase{
			ID:       "t" + string(rune('a'+i)),
			Prompt:   "p",
			Expected: metrics.Expected{Type: metrics.MustContain, Values: []string{"42"}},
		})
	}

	summary, err := e.Run(context.Background(), "run1", tests)
	require.NoError(t, err)
	assert.Len(t, summary.Results, 5)
	for _, r := range summary.Results {
		assert.Equal(t, Pass, r.Outcome)
	}
}

func TestRunProviderErrorMarksRunErrored(t *testing.T) {
	st := openTestStore(t)
	provider := &failingProvider{}
	registry := metrics.NewRegistry(nil, nil)
	e := New(st, provider, registry, Config{Suite: "suite-a", Model: "test-model", EngineVersion: "v1"})

	tests := []TestCase{{ID: "t1", Prompt: "p", Expected: metrics.Expected{Type: metrics.MustContain, Values: []string{"42"}}}}

	summary, err := e.Run(context.Background(), "run1", tests)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, Error, summary.Results[0].Outcome)
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }
func (failingProvider) Complete(_ context.Context, _ TestCase) (metrics.Response, error) {
	return metrics.Response{}, assertErr{}
}
func (failingProvider) TraceHash() string { return "" }

type assertErr struct{}

func (assertErr) Error() string { return "provider unavailable" }
