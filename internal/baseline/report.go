package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/assay-dev/assay/internal/store"
)

// Report is what ReportFromDB produces: per-test attempts, outcome
// rates, p90 `semantic_similarity_to` score, and the top issue reasons
// with counts. Rendering to Markdown/JSON/SARIF is a formatting layer
// and stays out of core; this struct is its stable input.
type Report struct {
	Suite string                 `json:"suite"`
	Tests map[string]*TestReport `json:"tests"`
}

// TestReport is the per-test_id slice of Report.
type TestReport struct {
	TestID        string             `json:"test_id"`
	Attempts      int                `json:"attempts"`
	OutcomeCounts map[string]int     `json:"outcome_counts"`
	OutcomeRates  map[string]float64 `json:"outcome_rates"`
	PassRate      float64            `json:"pass_rate"`
	P90Similarity *float64           `json:"p90_similarity,omitempty"`
	TopReasons    []ReasonCount      `json:"top_reasons,omitempty"`
}

// resultOutput is the shape internal/engine writes into
// store.ResultRow.OutputJSON: one MetricResult per registered metric
// name, keyed the same way fingerprint.Context.MetricVersions is.
type resultOutput struct {
	Metrics map[string]struct {
		Score   float64        `json:"score"`
		Passed  bool           `json:"passed"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"metrics"`
}

// ReportFromDB aggregates results over the last_n runs per test_id.
func ReportFromDB(ctx context.Context, st *store.Store, suite string, lastN int) (*Report, error) {
	rows, err := st.QueryBaselineWindow(ctx, suite, lastN)
	if err != nil {
		return nil, fmt.Errorf("query baseline window for suite %q: %w", suite, err)
	}

	byTest := map[string][]store.ResultRow{}
	for _, r := range rows {
		byTest[r.TestID] = append(byTest[r.TestID], r)
	}

	report := &Report{Suite: suite, Tests: map[string]*TestReport{}}
	for testID, testRows := range byTest {
		report.Tests[testID] = aggregateTest(testID, testRows)
	}
	return report, nil
}

func aggregateTest(testID string, rows []store.ResultRow) *TestReport {
	counts := map[string]int{}
	var similarities []float64
	reasonCounts := map[string]int{}

	for _, r := range rows {
		counts[r.Outcome]++

		var out resultOutput
		if err := json.Unmarshal([]byte(r.OutputJSON), &out); err != nil {
			continue // malformed output_json does not abort aggregation
		}
		for name, mr := range out.Metrics {
			if name == "semantic_similarity_to" {
				similarities = append(similarities, mr.Score)
			}
			if !mr.Passed {
				if reasonStr, ok := mr.Details["reason"].(string); ok && reasonStr != "" {
					reasonCounts[reasonStr]++
				} else if reasonCode, ok := mr.Details["reason_code"].(string); ok && reasonCode != "" {
					reasonCounts[reasonCode]++
				}
			}
		}
	}

	attempts := len(rows)
	rates := make(map[string]float64, len(counts))
	for outcome, n := range counts {
		rates[outcome] = float64(n) / float64(attempts)
	}

	tr := &TestReport{
		TestID:        testID,
		Attempts:      attempts,
		OutcomeCounts: counts,
		OutcomeRates:  rates,
		PassRate:      rates["pass"],
	}
	if len(similarities) > 0 {
		p90 := Percentile90(similarities)
		tr.P90Similarity = &p90
	}
	tr.TopReasons = topReasons(reasonCounts)
	return tr
}

func topReasons(counts map[string]int) []ReasonCount {
	out := make([]ReasonCount, 0, len(counts))
	for reason, n := range counts {
		out = append(out, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}
