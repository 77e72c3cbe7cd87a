// Package policy implements the three pure verdict functions of the
// policy engine: args-valid, sequence-valid, and tool-blocklist. Every
// function here is deterministic and does no I/O, logging, or time
// reads, so the same engine can be driven from the batch evaluator and
// the streaming server with provably identical results.
package policy

import "github.com/assay-dev/assay/internal/reason"

// Status is the outcome of a verdict function.
type Status string

const (
	Allowed Status = "allowed"
	Blocked Status = "blocked"
	Warn    Status = "warn"
)

// Verdict is the value object every verdict function returns.
type Verdict struct {
	Status     Status      `json:"status"`
	ReasonCode reason.Code `json:"reason_code,omitempty"`
	Reason     string      `json:"reason"`
	RuleID     string      `json:"rule_id,omitempty"`
}

func allowed(msg string) Verdict {
	return Verdict{Status: Allowed, Reason: msg}
}

func blocked(code reason.Code, msg, ruleID string) Verdict {
	return Verdict{Status: Blocked, ReasonCode: code, Reason: msg, RuleID: ruleID}
}

// ToolPolicy maps a tool name to its declared JSON-Schema for arguments.
// OpenWorld, when true, allows tools absent from the map instead of
// blocking them with E_TOOL_UNKNOWN.
type ToolPolicy struct {
	Schemas   map[string]CompiledSchema
	OpenWorld bool
}

// CompiledSchema is the narrow capability args-valid needs from a
// compiled JSON-Schema validator, so internal/policy never imports the
// validator library directly; internal/metrics wires the concrete
// implementation (santhosh-tekuri/jsonschema/v5) in.
type CompiledSchema interface {
	Validate(args map[string]any) error
}
