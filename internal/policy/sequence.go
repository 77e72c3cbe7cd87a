package policy

import "github.com/assay-dev/assay/internal/reason"

// MatchKind selects how a SequenceRule is checked against an observed
// tool-call sequence.
type MatchKind string

const (
	MatchExact       MatchKind = "exact"
	MatchSubsequence MatchKind = "subsequence"
	MatchContiguous  MatchKind = "contiguous"
	MatchForbidPair  MatchKind = "forbid_pair"
)

// SequenceRule is one rule in a Rules-shaped SequencePolicy.
type SequenceRule struct {
	ID       string
	Kind     MatchKind
	Sequence []string  // used by Exact, Subsequence, Contiguous
	Pair     [2]string // used by ForbidPair
}

// Policy is the v1.1 combined sequence policy: a plain required sequence
// plus a rule list.
type Policy struct {
	Sequence []string
	Rules    []SequenceRule
}

// SequenceKind discriminates the three shapes a sequence policy can take.
type SequenceKind string

const (
	SeqLegacy SequenceKind = "legacy"
	SeqRules  SequenceKind = "rules"
	SeqV1_1   SequenceKind = "v1_1"
)

// SequencePolicy is the tagged union Legacy([]string) |
// Rules([]SequenceRule) | V1_1(Policy). Exactly one of Legacy/Rules/V11
// is meaningful, selected by Kind.
type SequencePolicy struct {
	Kind   SequenceKind
	Legacy []string
	Rules  []SequenceRule
	V11    Policy
}

// EvaluateSequence is the sequence-valid verdict function.
// Rules are checked in declaration order; the first rule that is
// violated wins and evaluation stops there (first-match-wins).
func EvaluateSequence(p SequencePolicy, observed []string) Verdict {
	switch p.Kind {
	case SeqLegacy:
		return evaluateLegacy(p.Legacy, observed, "")

	case SeqRules:
		return evaluateRules(p.Rules, observed)

	case SeqV1_1:
		if v := evaluateLegacy(p.V11.Sequence, observed, "sequence"); v.Status == Blocked {
			return v
		}
		return evaluateRules(p.V11.Rules, observed)

	default:
		return allowed("no sequence policy configured")
	}
}

func evaluateLegacy(want, observed []string, ruleID string) Verdict {
	if len(want) == 0 {
		return allowed("no required sequence configured")
	}
	if isSubsequence(observed, want) {
		return allowed("observed sequence contains the required subsequence")
	}
	return blocked(reason.SeqViolation, "observed tool-call sequence does not contain the required subsequence", ruleID)
}

func evaluateRules(rules []SequenceRule, observed []string) Verdict {
	for _, r := range rules {
		if v, violated := evaluateRule(r, observed); violated {
			return v
		}
	}
	return allowed("observed sequence satisfies all rules")
}

func evaluateRule(r SequenceRule, observed []string) (Verdict, bool) {
	switch r.Kind {
	case MatchExact:
		if !isExact(observed, r.Sequence) {
			return blocked(reason.SeqViolation, "observed sequence does not exactly match rule \""+r.ID+"\"", r.ID), true
		}
	case MatchSubsequence:
		if !isSubsequence(observed, r.Sequence) {
			return blocked(reason.SeqViolation, "observed sequence does not contain rule \""+r.ID+"\" as a subsequence", r.ID), true
		}
	case MatchContiguous:
		if !isContiguous(observed, r.Sequence) {
			return blocked(reason.SeqViolation, "observed sequence does not contain rule \""+r.ID+"\" contiguously", r.ID), true
		}
	case MatchForbidPair:
		if containsBoth(observed, r.Pair[0], r.Pair[1]) {
			return blocked(reason.SeqViolation, "observed sequence calls forbidden pair (\""+r.Pair[0]+"\", \""+r.Pair[1]+"\") from rule \""+r.ID+"\"", r.ID), true
		}
	}
	return Verdict{}, false
}

// isSubsequence reports whether want appears in observed in order, not
// necessarily contiguously.
func isSubsequence(observed, want []string) bool {
	i := 0
	for _, tool := range observed {
		if i == len(want) {
			break
		}
		if tool == want[i] {
			i++
		}
	}
	return i == len(want)
}

// isContiguous reports whether want appears as a contiguous run within
// observed.
func isContiguous(observed, want []string) bool {
	if len(want) == 0 {
		return true
	}
	if len(want) > len(observed) {
		return false
	}
	for start := 0; start+len(want) <= len(observed); start++ {
		match := true
		for j, tool := range want {
			if observed[start+j] != tool {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func isExact(observed, want []string) bool {
	if len(observed) != len(want) {
		return false
	}
	for i := range want {
		if observed[i] != want[i] {
			return false
		}
	}
	return true
}

func containsBoth(observed []string, a, b string) bool {
	var sawA, sawB bool
	for _, tool := range observed {
		if tool == a {
			sawA = true
		}
		if tool == b {
			sawB = true
		}
	}
	return sawA && sawB
}
