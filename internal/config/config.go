// Package config loads and validates the YAML suite configuration the
// batch evaluator runs from: suite identity, model, engine settings,
// thresholds, and the declared test cases with their expected assertions.
package config

import (
	"fmt"

	"github.com/assay-dev/assay/internal/engine"
	"github.com/assay-dev/assay/internal/metrics"
)

// Supported configVersion values. Version 0 is the legacy, pre-versioned
// file shape; version 1 is current. Anything else is rejected at load.
const (
	VersionLegacy  = 0
	VersionCurrent = 1
)

// SuiteConfig represents the complete suite YAML file structure.
type SuiteConfig struct {
	ConfigVersion *int       `yaml:"configVersion"`
	Suite         string     `yaml:"suite"`
	Model         string     `yaml:"model"`
	Settings      Settings   `yaml:"settings"`
	Thresholds    Thresholds `yaml:"thresholds"`
	Tests         []Test     `yaml:"tests"`

	// Version is the resolved config version after load: the declared
	// configVersion, 0 when the field is absent, or 0 when the legacy
	// override is in force.
	Version int `yaml:"-"`
}

// Settings groups engine tuning knobs from YAML.
type Settings struct {
	Parallel       int    `yaml:"parallel,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
	Cache          *bool  `yaml:"cache,omitempty"`
	Seed           *int64 `yaml:"seed,omitempty"`
	RedactPrompts  bool   `yaml:"redact_prompts,omitempty"`
}

// Thresholds holds suite gating settings from YAML.
type Thresholds struct {
	MinScore    *float64 `yaml:"min_score,omitempty"`
	BlockOnWarn bool     `yaml:"block_on_warn,omitempty"`
}

// Test is one declared test case.
type Test struct {
	ID       string         `yaml:"id"`
	Input    TestInput      `yaml:"input"`
	Expected Expected       `yaml:"expected"`
	Tags     []string       `yaml:"tags,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// TestInput is the prompt/context pair a test drives the provider with.
type TestInput struct {
	Prompt  string   `yaml:"prompt"`
	Context []string `yaml:"context,omitempty"`
}

// Expected is the YAML shape of a test's assertion, tagged by Type.
// Only the fields relevant to the declared type are read.
type Expected struct {
	Type string `yaml:"type"`

	// must_contain / must_not_contain
	Value  string   `yaml:"value,omitempty"`
	Values []string `yaml:"values,omitempty"`

	// regex_match / regex_not_match
	Pattern string `yaml:"pattern,omitempty"`
	Flags   string `yaml:"flags,omitempty"`

	// json_schema
	Schema     map[string]any `yaml:"schema,omitempty"`
	SchemaFile string         `yaml:"schema_file,omitempty"`

	// semantic_similarity_to
	Reference string  `yaml:"reference,omitempty"`
	MinScore  float64 `yaml:"min_score,omitempty"`

	// judge_criteria
	Rubric        string `yaml:"rubric,omitempty"`
	RubricVersion string `yaml:"rubric_version,omitempty"`
}

var knownExpectedTypes = map[string]metrics.ExpectedType{
	"must_contain":           metrics.MustContain,
	"must_not_contain":       metrics.MustNotContain,
	"regex_match":            metrics.RegexMatch,
	"regex_not_match":        metrics.RegexNotMatch,
	"json_schema":            metrics.JSONSchema,
	"semantic_similarity_to": metrics.SemanticSimilarityTo,
	"judge_criteria":         metrics.JudgeCriteria,
}

func (c *SuiteConfig) validate() error {
	if c.Suite == "" {
		return NewValidationError("suite", "(top-level)", "suite", ErrMissingRequiredField)
	}
	seen := make(map[string]bool, len(c.Tests))
	for i, t := range c.Tests {
		if t.ID == "" {
			return NewValidationError("test", fmt.Sprintf("#%d", i), "id", ErrMissingRequiredField)
		}
		if seen[t.ID] {
			return NewValidationError("test", t.ID, "id", fmt.Errorf("%w: duplicate test id", ErrInvalidValue))
		}
		seen[t.ID] = true
		if t.Input.Prompt == "" {
			return NewValidationError("test", t.ID, "input.prompt", ErrMissingRequiredField)
		}
		if _, ok := knownExpectedTypes[t.Expected.Type]; !ok {
			return NewValidationError("test", t.ID, "expected.type",
				fmt.Errorf("%w: unknown expected type %q", ErrInvalidValue, t.Expected.Type))
		}
	}
	return nil
}

// TestCases converts the declared tests into the engine's test-case form.
func (c *SuiteConfig) TestCases() []engine.TestCase {
	out := make([]engine.TestCase, len(c.Tests))
	for i, t := range c.Tests {
		out[i] = engine.TestCase{
			ID:           t.ID,
			Prompt:       t.Input.Prompt,
			ContextLines: t.Input.Context,
			Expected:     t.Expected.toMetrics(),
			Tags:         t.Tags,
			Metadata:     t.Metadata,
		}
	}
	return out
}

func (e Expected) toMetrics() metrics.Expected {
	values := e.Values
	if len(values) == 0 && e.Value != "" {
		values = []string{e.Value}
	}
	return metrics.Expected{
		Type:          knownExpectedTypes[e.Type],
		Values:        values,
		Pattern:       e.Pattern,
		Flags:         e.Flags,
		SchemaInline:  e.Schema,
		SchemaFile:    e.SchemaFile,
		Reference:     e.Reference,
		MinScore:      e.MinScore,
		Rubric:        e.Rubric,
		RubricVersion: e.RubricVersion,
	}
}
