package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/assay-dev/assay/internal/reason"
)

func TestEvaluateSequenceLegacySubsequence(t *testing.T) {
	p := SequencePolicy{Kind: SeqLegacy, Legacy: []string{"search", "fetch"}}

	assert.Equal(t, Allowed, EvaluateSequence(p, []string{"search", "noop", "fetch"}).Status)

	blocked := EvaluateSequence(p, []string{"fetch", "search"})
	assert.Equal(t, Blocked, blocked.Status)
	assert.Equal(t, reason.SeqViolation, blocked.ReasonCode)
}

func TestEvaluateSequenceRulesFirstMatchWins(t *testing.T) {
	p := SequencePolicy{Kind: SeqRules, Rules: []SequenceRule{
		{ID: "r1", Kind: MatchForbidPair, Pair: [2]string{"delete", "undo"}},
		{ID: "r2", Kind: MatchContiguous, Sequence: []string{"a", "b"}},
	}}

	v := EvaluateSequence(p, []string{"delete", "other", "undo"})
	assert.Equal(t, Blocked, v.Status)
	assert.Equal(t, "r1", v.RuleID)
}

func TestEvaluateSequenceRulesContiguous(t *testing.T) {
	p := SequencePolicy{Kind: SeqRules, Rules: []SequenceRule{
		{ID: "r1", Kind: MatchContiguous, Sequence: []string{"a", "b"}},
	}}

	assert.Equal(t, Allowed, EvaluateSequence(p, []string{"x", "a", "b", "y"}).Status)
	assert.Equal(t, Blocked, EvaluateSequence(p, []string{"a", "x", "b"}).Status)
}

func TestEvaluateSequenceRulesExact(t *testing.T) {
	p := SequencePolicy{Kind: SeqRules, Rules: []SequenceRule{
		{ID: "r1", Kind: MatchExact, Sequence: []string{"a", "b"}},
	}}

	assert.Equal(t, Allowed, EvaluateSequence(p, []string{"a", "b"}).Status)
	assert.Equal(t, Blocked, EvaluateSequence(p, []string{"a", "b", "c"}).Status)
}

func TestEvaluateSequenceV11CombinesLegacyAndRules(t *testing.T) {
	p := SequencePolicy{Kind: SeqV1_1, V11: Policy{
		Sequence: []string{"search"},
		Rules:    []SequenceRule{{ID: "no-delete-undo", Kind: MatchForbidPair, Pair: [2]string{"delete", "undo"}}},
	}}

	assert.Equal(t, Allowed, EvaluateSequence(p, []string{"search", "fetch"}).Status)

	blockedByLegacy := EvaluateSequence(p, []string{"fetch"})
	assert.Equal(t, Blocked, blockedByLegacy.Status)

	blockedByRule := EvaluateSequence(p, []string{"search", "delete", "undo"})
	assert.Equal(t, Blocked, blockedByRule.Status)
	assert.Equal(t, "no-delete-undo", blockedByRule.RuleID)
}

func TestEvaluateSequenceNoPolicyConfiguredAllowsEverything(t *testing.T) {
	v := EvaluateSequence(SequencePolicy{}, []string{"anything"})
	assert.Equal(t, Allowed, v.Status)
}
