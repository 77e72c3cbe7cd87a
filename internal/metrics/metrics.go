// Package metrics implements the pluggable metric set: textual
// containment, regex, JSON-schema conformance, semantic similarity,
// judge rubrics, and the agent-trace/policy metrics that
// delegate to internal/policy. Every Metric is polymorphic over the
// narrow capability {Name, Evaluate}; no inheritance, no shared base.
package metrics

import (
	"context"

	"github.com/assay-dev/assay/internal/policy"
)

// ExpectedType discriminates which variant of Expected a test case
// declares, matching the suite config's `expected.type` tag.
type ExpectedType string

const (
	MustContain          ExpectedType = "must_contain"
	MustNotContain       ExpectedType = "must_not_contain"
	RegexMatch           ExpectedType = "regex_match"
	RegexNotMatch        ExpectedType = "regex_not_match"
	JSONSchema           ExpectedType = "json_schema"
	SemanticSimilarityTo ExpectedType = "semantic_similarity_to"
	JudgeCriteria        ExpectedType = "judge_criteria"
	ArgsValid            ExpectedType = "args_valid"
	SequenceValid        ExpectedType = "sequence_valid"
	ToolBlocklist        ExpectedType = "tool_blocklist"
)

// Expected is the tagged union of every assertion a test case can declare.
// Exactly the fields relevant to Type are populated; the rest are zero.
type Expected struct {
	Type ExpectedType

	// must_contain / must_not_contain
	Values []string

	// regex_match / regex_not_match
	Pattern string
	Flags   string // subset of {i, m, s}; unknown flags are ignored

	// json_schema
	SchemaInline map[string]any
	SchemaFile   string

	// semantic_similarity_to
	Reference string
	MinScore  float64 // default 0.8 when zero

	// judge_criteria: selects judge/faithfulness or judge/relevance by Rubric
	Rubric        string // "faithfulness" | "relevance"
	RubricVersion string

	// args_valid / sequence_valid / tool_blocklist
	ArgsPolicy     *policy.ToolPolicy
	SequencePolicy *policy.SequencePolicy
	Blocklist      []string
}

// ObservedToolCall is the minimal tool-call shape the agent-trace metrics
// need from a Response: name and the arguments actually passed.
type ObservedToolCall struct {
	ToolName string
	Args     map[string]any
}

// Response is the provider output a metric is scored against.
type Response struct {
	Text       string
	ToolCalls  []ObservedToolCall
	Cached     bool
	ProviderFP string
}

// TestCase is the narrow slice of a declared test a Metric needs.
type TestCase struct {
	ID           string
	Prompt       string
	ContextLines []string
	Tags         []string
}

// MetricResult is the value every Metric.Evaluate call returns.
type MetricResult struct {
	Score    float64        `json:"score"`
	Passed   bool           `json:"passed"`
	Unstable bool           `json:"unstable"`
	Details  map[string]any `json:"details,omitempty"`
}

func neutral() MetricResult {
	return MetricResult{Score: 1, Passed: true, Details: map[string]any{"skipped": "expected variant not concerned"}}
}

// Metric is the capability every built-in and user-registered metric
// implements: a stable identifier and a pure-ish evaluate function. A
// metric whose concern does not match the test's Expected.Type returns a
// neutral pass so unrelated metrics never interfere with aggregation.
type Metric interface {
	Name() string
	Evaluate(ctx context.Context, tc TestCase, expected Expected, resp Response) (MetricResult, error)
}

// Registry holds the built-in metrics plus any caller-registered ones,
// each tagged with the version folded into the fingerprint.
type Registry struct {
	entries []entry
}

type entry struct {
	metric  Metric
	version string
}

// NewRegistry returns a Registry with every built-in metric registered.
// embedder and judge may be nil; the corresponding metrics then fail
// closed with a configuration error if ever invoked.
func NewRegistry(embedder Embedder, judge JudgeProvider) *Registry {
	r := &Registry{}
	r.Register("1", mustContainMetric{negate: false})
	r.Register("1", mustContainMetric{negate: true})
	r.Register("1", regexMetric{negate: false})
	r.Register("1", regexMetric{negate: true})
	r.Register("1", jsonSchemaMetric{})
	r.Register("1", semanticSimilarityMetric{embedder: embedder})
	r.Register("1", judgeMetric{provider: judge, rubric: "faithfulness"})
	r.Register("1", judgeMetric{provider: judge, rubric: "relevance"})
	r.Register("1", argsValidMetric{})
	r.Register("1", sequenceValidMetric{})
	r.Register("1", toolBlocklistMetric{})
	return r
}

// Register adds m to the registry under the given version.
func (r *Registry) Register(version string, m Metric) {
	r.entries = append(r.entries, entry{metric: m, version: version})
}

// All returns every registered metric.
func (r *Registry) All() []Metric {
	out := make([]Metric, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.metric
	}
	return out
}

// Versions returns the {name, version} pairs every registered metric
// contributes to a fingerprint.Context.MetricVersions.
func (r *Registry) Versions() []MetricVersionPair {
	out := make([]MetricVersionPair, len(r.entries))
	for i, e := range r.entries {
		out[i] = MetricVersionPair{Name: e.metric.Name(), Version: e.version}
	}
	return out
}

// MetricVersionPair names a registered metric and its version, shaped to
// convert 1:1 into fingerprint.MetricVersion without this package
// importing internal/fingerprint (kept one-directional: fingerprint is a
// leaf package).
type MetricVersionPair struct {
	Name    string
	Version string
}
