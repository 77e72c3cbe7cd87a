// Package engine implements the per-test orchestration: fingerprint ->
// cache consult -> provider call -> concurrent metric fan-out -> outcome
// derivation -> persisted Result, aggregated into a per-suite run. It
// performs no policy decisions itself; those are internal/policy's pure
// verdict functions, reused unchanged by internal/streamserver.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/assay-dev/assay/internal/canon"
	"github.com/assay-dev/assay/internal/fingerprint"
	"github.com/assay-dev/assay/internal/metrics"
	"github.com/assay-dev/assay/internal/store"
)

// Outcome is the per-test result classification.
type Outcome string

const (
	Pass  Outcome = "pass"
	Fail  Outcome = "fail"
	Flaky Outcome = "flaky"
	Warn  Outcome = "warn"
	Error Outcome = "error"
)

// Config tunes the engine's concurrency and versioning.
type Config struct {
	Suite         string
	Model         string
	Parallel      int // bounded worker pool size over the test-case list; default 1
	MaxAttempts   int // retry/attempt budget for Flaky detection; default 1
	EngineVersion string
	PolicyHash    string // optional; folded into the fingerprint when set
}

func (c Config) withDefaults() Config {
	if c.Parallel <= 0 {
		c.Parallel = 1
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	return c
}

// Engine runs a Run's test cases against a Provider and a metrics
// Registry, persisting Results to a Store.
type Engine struct {
	store    *store.Store
	provider Provider
	registry *metrics.Registry
	cfg      Config
}

// New builds an Engine. provider and registry are narrow external
// collaborators; store owns all persisted data.
func New(st *store.Store, provider Provider, registry *metrics.Registry, cfg Config) *Engine {
	return &Engine{store: st, provider: provider, registry: registry, cfg: cfg.withDefaults()}
}

// Attempt records one scoring attempt of a test case, serialized
// verbatim into Result.AttemptsJSON.
type Attempt struct {
	Outcome Outcome                         `json:"outcome"`
	Metrics map[string]metrics.MetricResult `json:"metrics"`
	Cached  bool                            `json:"cached"`
	Error   string                          `json:"error,omitempty"`
}

// ResultSummary is what Run returns for one test case, mirroring the
// persisted Result row.
type ResultSummary struct {
	TestID     string
	Outcome    Outcome
	Score      float64
	DurationMS int64
	Attempts   []Attempt
}

// RunSummary aggregates every ResultSummary for one Run.
type RunSummary struct {
	RunID   string
	Suite   string
	Results []ResultSummary
}

// Run executes every test case in tests against the engine's Provider,
// scoring each with every registered Metric, and persists one Result row
// per test case. Test cases are processed by a bounded
// worker pool (Config.Parallel); within a test case, metrics run
// concurrently and are joined before the Result is written.
func (e *Engine) Run(ctx context.Context, runID string, tests []TestCase) (*RunSummary, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	now := time.Now()
	if err := e.store.CreateRun(ctx, runID, e.cfg.Suite, "{}", now); err != nil {
		return nil, fmt.Errorf("create run %q: %w", runID, err)
	}

	results := make([]ResultSummary, len(tests))
	errs := make([]error, len(tests))

	tokens := make(chan struct{}, e.cfg.Parallel)
	done := make(chan struct{}, len(tests))

	for i, tc := range tests {
		i, tc := i, tc
		tokens <- struct{}{}
		go func() {
			defer func() { <-tokens; done <- struct{}{} }()
			res, err := e.runOne(ctx, runID, tc)
			if err != nil {
				res = ResultSummary{TestID: tc.ID, Outcome: Error}
			}
			results[i] = res
			errs[i] = err
		}()
	}
	for range tests {
		<-done
	}

	status := "passed"
	for i, err := range errs {
		if err != nil {
			slog.Error("assay.engine.test_errored", "run_id", runID, "test_id", tests[i].ID, "error", err)
			status = "errored"
		} else if results[i].Outcome == Fail {
			if status != "errored" {
				status = "failed"
			}
		}
	}
	if err := e.store.SetRunStatus(ctx, runID, status); err != nil {
		return nil, fmt.Errorf("set run %q status: %w", runID, err)
	}

	return &RunSummary{RunID: runID, Suite: e.cfg.Suite, Results: results}, nil
}

// runOne scores one test case end to end.
func (e *Engine) runOne(ctx context.Context, runID string, tc TestCase) (ResultSummary, error) {
	start := time.Now()

	// Step 1: canonicalize Expected and compute its hash; compute fingerprint.
	expectedCanonical, err := canon.JSON(tc.Expected)
	if err != nil {
		return ResultSummary{}, fmt.Errorf("canonicalize expected for test %q: %w", tc.ID, err)
	}
	fp := fingerprint.Compute(fingerprint.Context{
		Suite:             e.cfg.Suite,
		Model:             e.cfg.Model,
		TestID:            tc.ID,
		Prompt:            tc.Prompt,
		ContextLines:      tc.ContextLines,
		ExpectedCanonical: expectedCanonical,
		PolicyHash:        e.cfg.PolicyHash,
		MetricVersions:    toFingerprintVersions(e.registry.Versions()),
		EngineVersion:     e.cfg.EngineVersion,
	})

	traceHash := e.provider.TraceHash()
	cacheKey := fingerprint.CacheKey(e.cfg.Model, tc.Prompt, fp.Hex, traceHash)

	// Steps 2-5, repeated up to the attempt budget. Only a failing,
	// uncached attempt is retried: a cached response is deterministic, so
	// re-scoring it cannot flip the outcome.
	var attempts []Attempt
	var metricResults map[string]metrics.MetricResult
	var outcome Outcome
	var score float64
	for len(attempts) < e.cfg.MaxAttempts {
		resp, cached, err := e.obtainResponse(ctx, tc, cacheKey, len(attempts) == 0)
		if err != nil {
			return ResultSummary{}, err
		}

		// Step 4: run every registered metric concurrently; collect results.
		metricResults, err = e.runMetrics(ctx, tc, resp)
		if err != nil {
			return ResultSummary{}, err
		}

		// Step 5: derive outcome.
		outcome, score = deriveOutcome(metricResults)
		attempts = append(attempts, Attempt{Outcome: outcome, Metrics: metricResults, Cached: cached})
		if outcome != Fail || cached {
			break
		}
	}
	if sawBothPassAndFail(attempts) {
		outcome = Flaky
	}

	// Step 6: persist a Result row atomically with its attempts.
	attemptsJSON, err := json.Marshal(attempts)
	if err != nil {
		return ResultSummary{}, fmt.Errorf("marshal attempts for test %q: %w", tc.ID, err)
	}
	outputJSON, err := json.Marshal(struct {
		Metrics map[string]metrics.MetricResult `json:"metrics"`
	}{Metrics: metricResults})
	if err != nil {
		return ResultSummary{}, fmt.Errorf("marshal output for test %q: %w", tc.ID, err)
	}

	duration := time.Since(start)
	row := store.ResultRow{
		ID:           uuid.NewString(),
		RunID:        runID,
		TestID:       tc.ID,
		Outcome:      string(outcome),
		Score:        score,
		DurationMS:   duration.Milliseconds(),
		AttemptsJSON: string(attemptsJSON),
		OutputJSON:   string(outputJSON),
		CreatedAt:    time.Now(),
	}
	if err := e.store.PutResult(ctx, row); err != nil {
		return ResultSummary{}, fmt.Errorf("put result for test %q: %w", tc.ID, err)
	}

	return ResultSummary{
		TestID:     tc.ID,
		Outcome:    outcome,
		Score:      score,
		DurationMS: duration.Milliseconds(),
		Attempts:   attempts,
	}, nil
}

// obtainResponse consults the response cache (first attempt only) and
// falls back to the provider, storing the fresh response under cacheKey
// (last-writer-wins). Retries always re-ask the provider: the point of a
// retry is a fresh sample.
func (e *Engine) obtainResponse(ctx context.Context, tc TestCase, cacheKey string, useCache bool) (metrics.Response, bool, error) {
	var resp metrics.Response
	if useCache {
		if row, ok, err := e.store.GetResponse(ctx, cacheKey); err != nil {
			return resp, false, fmt.Errorf("get response cache for test %q: %w", tc.ID, err)
		} else if ok {
			if err := json.Unmarshal([]byte(row.ResponseJSON), &resp); err != nil {
				return resp, false, fmt.Errorf("decode cached response for test %q: %w", tc.ID, err)
			}
			resp.Cached = true
			return resp, true, nil
		}
	}

	resp, err := e.provider.Complete(ctx, tc)
	if err != nil {
		return resp, false, fmt.Errorf("provider.Complete for test %q: %w", tc.ID, err)
	}
	resp.Cached = false
	payload, err := json.Marshal(resp)
	if err != nil {
		return resp, false, fmt.Errorf("marshal response for test %q: %w", tc.ID, err)
	}
	if err := e.store.PutResponse(ctx, cacheKey, string(payload), time.Now()); err != nil {
		return resp, false, fmt.Errorf("put response cache for test %q: %w", tc.ID, err)
	}
	return resp, false, nil
}

// sawBothPassAndFail reports whether the attempt sequence mixed passing
// and failing outcomes, which classifies the test as Flaky.
func sawBothPassAndFail(attempts []Attempt) bool {
	var sawPass, sawFail bool
	for _, a := range attempts {
		switch a.Outcome {
		case Pass, Warn:
			sawPass = true
		case Fail:
			sawFail = true
		}
	}
	return sawPass && sawFail
}

func toFingerprintVersions(pairs []metrics.MetricVersionPair) []fingerprint.MetricVersion {
	out := make([]fingerprint.MetricVersion, len(pairs))
	for i, p := range pairs {
		out[i] = fingerprint.MetricVersion{Name: p.Name, Version: p.Version}
	}
	return out
}

// deriveOutcome classifies one attempt: Pass if every metric
// passes; Warn if an unstable metric is present but all pass; Fail
// otherwise. Flaky is derived across attempts by runOne (see
// sawBothPassAndFail); deriveOutcome itself never returns Flaky.
func deriveOutcome(results map[string]metrics.MetricResult) (Outcome, float64) {
	if len(results) == 0 {
		return Pass, 1
	}

	allPassed := true
	anyUnstable := false
	var total float64
	for _, r := range results {
		total += r.Score
		if !r.Passed {
			allPassed = false
		}
		if r.Unstable {
			anyUnstable = true
		}
	}
	avg := total / float64(len(results))

	if !allPassed {
		return Fail, avg
	}
	if anyUnstable {
		return Warn, avg
	}
	return Pass, avg
}
