// Package fingerprint computes the deterministic execution-context digest
// and the response cache key derived from it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// MetricVersion names a registered metric and the version of its logic,
// so that a change to a metric's implementation invalidates cached results
// that were scored under the old logic.
type MetricVersion struct {
	Name    string
	Version string
}

// Context carries every input that participates in the fingerprint digest.
// Two Contexts that differ in any rendered line produce different digests.
type Context struct {
	Suite             string
	Model             string
	TestID            string
	Prompt            string
	ContextLines      []string // joined with "\n"; nil and an empty slice both render as "context="
	ExpectedCanonical string   // canonical JSON of the Expected variant
	PolicyHash        string   // optional; empty means omitted from the digest
	MetricVersions    []MetricVersion
	EngineVersion     string
}

// Fingerprint is the result of Compute: the hex digest plus the ordered
// labeled lines that produced it, useful for debugging mismatches.
type Fingerprint struct {
	Hex        string
	Components []string
}

// Sha256Hex returns the lowercase hex SHA-256 digest of s.
func Sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Compute returns a stable fingerprint for ctx. For fixed inputs the
// returned hex is bit-identical across runs, machines, and processes;
// changing any single field changes the digest.
func Compute(ctx Context) Fingerprint {
	lines := make([]string, 0, 8)

	lines = append(lines, "suite="+ctx.Suite)
	lines = append(lines, "model="+ctx.Model)
	lines = append(lines, "test_id="+ctx.TestID)
	lines = append(lines, "prompt="+ctx.Prompt)

	if ctx.ContextLines != nil {
		lines = append(lines, "context="+strings.Join(ctx.ContextLines, "\n"))
	} else {
		lines = append(lines, "context=")
	}

	lines = append(lines, "expected="+ctx.ExpectedCanonical)

	if ctx.PolicyHash != "" {
		lines = append(lines, "policy_hash="+ctx.PolicyHash)
	}

	mv := make([]MetricVersion, len(ctx.MetricVersions))
	copy(mv, ctx.MetricVersions)
	sort.Slice(mv, func(i, j int) bool { return mv[i].Name < mv[j].Name })
	parts := make([]string, len(mv))
	for i, m := range mv {
		parts[i] = m.Name + ":" + m.Version
	}
	lines = append(lines, "metrics="+strings.Join(parts, ","))

	lines = append(lines, "engine_version="+ctx.EngineVersion)

	raw := strings.Join(lines, "\n")
	return Fingerprint{
		Hex:        Sha256Hex(raw),
		Components: lines,
	}
}

// CacheKey returns the response cache key for model+prompt+fingerprint,
// optionally extended with a trace-content digest (traceHash) so that two
// replay providers with equal prompts but different recorded content
// produce different keys. An empty traceHash is treated as "not present".
func CacheKey(model, prompt, fingerprintHex, traceHash string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte("\n"))
	h.Write([]byte(prompt))
	h.Write([]byte("\n"))
	h.Write([]byte(fingerprintHex))
	if traceHash != "" {
		h.Write([]byte("\n"))
		h.Write([]byte(traceHash))
	}
	return hex.EncodeToString(h.Sum(nil))
}
