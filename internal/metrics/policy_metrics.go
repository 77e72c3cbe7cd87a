package metrics

import (
	"context"

	"github.com/assay-dev/assay/internal/policy"
)

// argsValidMetric, sequenceValidMetric, and toolBlocklistMetric adapt
// the three pure policy-engine verdict functions into the Metric
// capability, so agent-trace assertions are scored the same way
// textual/judge metrics are: by dispatching on Expected.Type.

type argsValidMetric struct{}

func (argsValidMetric) Name() string { return "args_valid" }

func (argsValidMetric) Evaluate(_ context.Context, _ TestCase, expected Expected, resp Response) (MetricResult, error) {
	if expected.Type != ArgsValid {
		return neutral(), nil
	}
	if expected.ArgsPolicy == nil {
		return neutral(), nil
	}

	allPassed := true
	var verdicts []map[string]any
	for _, call := range resp.ToolCalls {
		v := policy.EvaluateToolArgs(*expected.ArgsPolicy, call.ToolName, call.Args)
		verdicts = append(verdicts, map[string]any{
			"tool":        call.ToolName,
			"status":      v.Status,
			"reason_code": v.ReasonCode,
			"reason":      v.Reason,
		})
		if v.Status == policy.Blocked {
			allPassed = false
		}
	}

	score := 0.0
	if allPassed {
		score = 1.0
	}
	return MetricResult{Score: score, Passed: allPassed, Details: map[string]any{"verdicts": verdicts}}, nil
}

type sequenceValidMetric struct{}

func (sequenceValidMetric) Name() string { return "sequence_valid" }

func (sequenceValidMetric) Evaluate(_ context.Context, _ TestCase, expected Expected, resp Response) (MetricResult, error) {
	if expected.Type != SequenceValid {
		return neutral(), nil
	}
	if expected.SequencePolicy == nil {
		return neutral(), nil
	}

	observed := make([]string, len(resp.ToolCalls))
	for i, call := range resp.ToolCalls {
		observed[i] = call.ToolName
	}

	v := policy.EvaluateSequence(*expected.SequencePolicy, observed)
	score := 0.0
	if v.Status == policy.Allowed {
		score = 1.0
	}
	return MetricResult{
		Score:  score,
		Passed: v.Status == policy.Allowed,
		Details: map[string]any{
			"status":      v.Status,
			"reason_code": v.ReasonCode,
			"reason":      v.Reason,
			"rule_id":     v.RuleID,
			"observed":    observed,
		},
	}, nil
}

type toolBlocklistMetric struct{}

func (toolBlocklistMetric) Name() string { return "tool_blocklist" }

func (toolBlocklistMetric) Evaluate(_ context.Context, _ TestCase, expected Expected, resp Response) (MetricResult, error) {
	if expected.Type != ToolBlocklist {
		return neutral(), nil
	}

	observed := make([]string, len(resp.ToolCalls))
	for i, call := range resp.ToolCalls {
		observed[i] = call.ToolName
	}

	v := policy.EvaluateToolBlocklist(expected.Blocklist, observed)
	score := 0.0
	if v.Status == policy.Allowed {
		score = 1.0
	}
	return MetricResult{
		Score:  score,
		Passed: v.Status == policy.Allowed,
		Details: map[string]any{
			"status":      v.Status,
			"reason_code": v.ReasonCode,
			"reason":      v.Reason,
			"rule_id":     v.RuleID,
		},
	}, nil
}
