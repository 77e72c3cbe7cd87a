package engine

import "github.com/assay-dev/assay/internal/metrics"

// TestCase is one declared test from the suite config: a prompt/context
// pair plus the Expected assertion it is scored against.
type TestCase struct {
	ID           string
	Prompt       string
	ContextLines []string
	Expected     metrics.Expected
	Tags         []string
	Metadata     map[string]any
}

// ToMetricsTestCase narrows TestCase to the slice internal/metrics needs.
func (tc TestCase) ToMetricsTestCase() metrics.TestCase {
	return metrics.TestCase{ID: tc.ID, Prompt: tc.Prompt, ContextLines: tc.ContextLines, Tags: tc.Tags}
}
