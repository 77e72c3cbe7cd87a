package metrics

import (
	"context"
	"strings"
)

// mustContainMetric implements both must_contain (negate=false) and
// must_not_contain (negate=true) over response.text.
type mustContainMetric struct {
	negate bool
}

func (m mustContainMetric) Name() string {
	if m.negate {
		return "must_not_contain"
	}
	return "must_contain"
}

func (m mustContainMetric) Evaluate(_ context.Context, _ TestCase, expected Expected, resp Response) (MetricResult, error) {
	wantType := MustContain
	if m.negate {
		wantType = MustNotContain
	}
	if expected.Type != wantType {
		return neutral(), nil
	}

	var missing, found []string
	for _, v := range expected.Values {
		present := strings.Contains(resp.Text, v)
		if present {
			found = append(found, v)
		} else {
			missing = append(missing, v)
		}
	}

	details := map[string]any{}
	var passed bool
	if m.negate {
		passed = len(found) == 0
		details["forbidden_found"] = found
	} else {
		passed = len(missing) == 0
		details["missing"] = missing
	}

	score := 0.0
	if passed {
		score = 1.0
	}
	return MetricResult{Score: score, Passed: passed, Details: details}, nil
}
