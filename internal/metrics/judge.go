package metrics

import (
	"context"
	"fmt"

	"github.com/assay-dev/assay/internal/reason"
)

// JudgeInput is everything a JudgeProvider needs to score one test case;
// the rubric prompt template itself (criteria: accuracy, completeness,
// relevance, clarity, reasoning, each scored 1-5, plus free-text
// comments) is assembled by the concrete provider, not core.
type JudgeInput struct {
	Prompt   string
	Context  []string
	Response string
	Rubric   string // "faithfulness" | "relevance"
}

// JudgeVerdict is what a JudgeProvider returns for one JudgeInput.
type JudgeVerdict struct {
	Score    float64
	Passed   bool
	Comments string
	Criteria map[string]float64
}

// JudgeProvider is the narrow external collaborator both judge metrics
// delegate to; core only owns the interface, never a concrete HTTP judge
// client. judgeMetric calls the provider on every evaluation: it does not
// read or write the store's judge_cache table, and no cache key is derived
// for judge calls.
type JudgeProvider interface {
	Score(ctx context.Context, rubricID string, input JudgeInput) (JudgeVerdict, error)
}

// judgeMetric implements judge/faithfulness and judge/relevance, both
// delegating to one JudgeProvider distinguished by rubric.
type judgeMetric struct {
	provider JudgeProvider
	rubric   string
}

func (m judgeMetric) Name() string { return "judge/" + m.rubric }

func (m judgeMetric) Evaluate(ctx context.Context, tc TestCase, expected Expected, resp Response) (MetricResult, error) {
	if expected.Type != JudgeCriteria || expected.Rubric != m.rubric {
		return neutral(), nil
	}
	if m.provider == nil {
		return MetricResult{}, reason.New(reason.ConfigValidate, fmt.Sprintf("judge/%s requires a JudgeProvider but none is configured", m.rubric))
	}

	verdict, err := m.provider.Score(ctx, expected.RubricVersion, JudgeInput{
		Prompt:   tc.Prompt,
		Context:  tc.ContextLines,
		Response: resp.Text,
		Rubric:   m.rubric,
	})
	if err != nil {
		return MetricResult{}, reason.New(reason.ProviderUnavailable, fmt.Sprintf("judge/%s: %v", m.rubric, err))
	}

	return MetricResult{
		Score:  verdict.Score,
		Passed: verdict.Passed,
		Details: map[string]any{
			"comments": verdict.Comments,
			"criteria": verdict.Criteria,
		},
	}, nil
}
