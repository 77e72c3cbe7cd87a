package metrics

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/assay-dev/assay/internal/reason"
)

// regexMetric implements both regex_match (negate=false) and
// regex_not_match (negate=true). Flags is a subset of {i, m, s}; unknown
// flags are silently ignored. Invalid patterns are configuration errors,
// not MetricResults.
type regexMetric struct {
	negate bool
}

func (m regexMetric) Name() string {
	if m.negate {
		return "regex_not_match"
	}
	return "regex_match"
}

func (m regexMetric) Evaluate(_ context.Context, _ TestCase, expected Expected, resp Response) (MetricResult, error) {
	wantType := RegexMatch
	if m.negate {
		wantType = RegexNotMatch
	}
	if expected.Type != wantType {
		return neutral(), nil
	}

	pattern := translateFlags(expected.Pattern, expected.Flags)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return MetricResult{}, reason.New(reason.ConfigValidate, fmt.Sprintf("invalid regex %q: %v", expected.Pattern, err))
	}

	matched := re.MatchString(resp.Text)
	passed := matched
	if m.negate {
		passed = !matched
	}

	score := 0.0
	if passed {
		score = 1.0
	}
	return MetricResult{
		Score:  score,
		Passed: passed,
		Details: map[string]any{
			"pattern": expected.Pattern,
			"matched": matched,
		},
	}, nil
}

// translateFlags maps the {i, m, s} flag subset onto Go's RE2 inline flag
// syntax (?flags); unknown flag runes are dropped rather than rejected.
func translateFlags(pattern, flags string) string {
	var sb strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			sb.WriteRune(f)
		}
	}
	if sb.Len() == 0 {
		return pattern
	}
	return "(?" + sb.String() + ")" + pattern
}
