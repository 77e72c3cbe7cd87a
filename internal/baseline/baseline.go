// Package baseline implements the rolling-window report aggregation and
// the baseline/threshold gating that turns per-test scores into a
// pass/fail suite verdict.
package baseline

import (
	"fmt"
	"sort"
	"time"
)

// File is the on-disk baseline document: `{schema_version:1,
// suite, assay_version, created_at, config_fingerprint, git_info?,
// entries:[...]}`.
type File struct {
	SchemaVersion     int               `json:"schema_version" yaml:"schema_version"`
	Suite             string            `json:"suite" yaml:"suite"`
	AssayVersion      string            `json:"assay_version" yaml:"assay_version"`
	CreatedAt         time.Time         `json:"created_at" yaml:"created_at"`
	ConfigFingerprint string            `json:"config_fingerprint" yaml:"config_fingerprint"`
	GitInfo           map[string]string `json:"git_info,omitempty" yaml:"git_info,omitempty"`
	Entries           []Entry           `json:"entries" yaml:"entries"`
}

// Entry holds the rolling stats for one (suite, test_id) pair, plus a
// ConfigFingerprint projection so callers can validate without a second
// file read.
type Entry struct {
	TestID            string             `json:"test_id" yaml:"test_id"`
	ConfigFingerprint string             `json:"config_fingerprint" yaml:"config_fingerprint"`
	Attempts          int                `json:"attempts" yaml:"attempts"`
	OutcomeRates      map[string]float64 `json:"outcome_rates" yaml:"outcome_rates"`
	PassRate          float64            `json:"pass_rate" yaml:"pass_rate"`
	P90Similarity     *float64           `json:"p90_similarity,omitempty" yaml:"p90_similarity,omitempty"`
	TopReasons        []ReasonCount      `json:"top_reasons,omitempty" yaml:"top_reasons,omitempty"`
}

// ReasonCount pairs a reason code/message with its observed count.
type ReasonCount struct {
	Reason string `json:"reason" yaml:"reason"`
	Count  int    `json:"count" yaml:"count"`
}

const supportedSchemaVersion = 1

// Validate checks baseline identity before use: `baseline.suite == requested_suite` and
// `schema_version == 1`; mismatches fail loudly.
func (f *File) Validate(expectedSuite, expectedConfigFingerprint string) error {
	if f.SchemaVersion != supportedSchemaVersion {
		return fmt.Errorf("baseline schema_version mismatch: expected %d, got %d", supportedSchemaVersion, f.SchemaVersion)
	}
	if f.Suite != expectedSuite {
		return fmt.Errorf("baseline suite mismatch: expected '%s', got '%s'", expectedSuite, f.Suite)
	}
	if expectedConfigFingerprint != "" && f.ConfigFingerprint != expectedConfigFingerprint {
		return fmt.Errorf("baseline config_fingerprint mismatch: expected '%s', got '%s'", expectedConfigFingerprint, f.ConfigFingerprint)
	}
	return nil
}

// EntryByTestID returns the entry for testID, or nil if the baseline has
// no history for it (a brand-new test has no regression to compare against).
func (f *File) EntryByTestID(testID string) *Entry {
	for i := range f.Entries {
		if f.Entries[i].TestID == testID {
			return &f.Entries[i]
		}
	}
	return nil
}

// Percentile90 returns the nearest-rank 90th percentile of values. Values
// need not be pre-sorted. Returns 0 for an empty slice.
func Percentile90(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	// Nearest rank is ceil(0.9*n), 1-based; integer arithmetic keeps it exact.
	rank := (9*len(sorted)+9)/10 - 1
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
