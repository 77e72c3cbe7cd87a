package streamserver

import (
	"encoding/json"
	"fmt"

	"github.com/assay-dev/assay/internal/metrics"
	"github.com/assay-dev/assay/internal/policy"
	"github.com/assay-dev/assay/internal/reason"
)

// policyFile is the on-disk JSON shape a policy_path resolves to: the
// three verdict functions' configuration in one document, so one file
// can back args-valid, sequence-valid, and tool-blocklist checks for the
// same tool surface.
type policyFile struct {
	Tools     map[string]toolSchemaEntry `json:"tools,omitempty"`
	OpenWorld bool                       `json:"open_world,omitempty"`
	Sequence  *sequencePolicyEntry       `json:"sequence,omitempty"`
	Blocklist []string                   `json:"blocklist,omitempty"`
}

type toolSchemaEntry struct {
	Schema map[string]any `json:"schema"`
}

// sequencePolicyEntry mirrors policy.SequencePolicy's tagged union in its
// JSON-file form, keyed by "kind" ∈ {legacy, rules, v1_1}.
type sequencePolicyEntry struct {
	Kind   string                `json:"kind"`
	Legacy []string              `json:"legacy,omitempty"`
	Rules  []policy.SequenceRule `json:"rules,omitempty"`
	V11    *policy.Policy        `json:"v1_1,omitempty"`
}

// compiledPolicy is the in-memory form produced by compiling a
// policyFile: whichever of the three verdict functions' inputs the file
// declares.
type compiledPolicy struct {
	argsPolicy     *policy.ToolPolicy
	sequencePolicy *policy.SequencePolicy
	blocklist      []string
}

// compilePolicy parses and compiles raw policy-file content.
func compilePolicy(raw []byte) (*compiledPolicy, error) {
	var pf policyFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return nil, reason.New(reason.PolicyRead, fmt.Sprintf("parse policy file: %v", err))
	}

	cp := &compiledPolicy{blocklist: pf.Blocklist}

	if len(pf.Tools) > 0 {
		schemas := make(map[string]policy.CompiledSchema, len(pf.Tools))
		for name, entry := range pf.Tools {
			compiled, err := metrics.CompileToolSchema(entry.Schema)
			if err != nil {
				return nil, reason.New(reason.PolicyRead, fmt.Sprintf("compile schema for tool %q: %v", name, err))
			}
			schemas[name] = compiled
		}
		cp.argsPolicy = &policy.ToolPolicy{Schemas: schemas, OpenWorld: pf.OpenWorld}
	}

	if pf.Sequence != nil {
		sp, err := compileSequencePolicy(*pf.Sequence)
		if err != nil {
			return nil, err
		}
		cp.sequencePolicy = sp
	}

	return cp, nil
}

func compileSequencePolicy(e sequencePolicyEntry) (*policy.SequencePolicy, error) {
	switch policy.SequenceKind(e.Kind) {
	case policy.SeqLegacy:
		return &policy.SequencePolicy{Kind: policy.SeqLegacy, Legacy: e.Legacy}, nil
	case policy.SeqRules:
		return &policy.SequencePolicy{Kind: policy.SeqRules, Rules: e.Rules}, nil
	case policy.SeqV1_1:
		if e.V11 == nil {
			return nil, reason.New(reason.PolicyRead, "sequence policy kind \"v1_1\" requires a v1_1 body")
		}
		return &policy.SequencePolicy{Kind: policy.SeqV1_1, V11: *e.V11}, nil
	default:
		return nil, reason.New(reason.PolicyRead, fmt.Sprintf("unknown sequence policy kind %q", e.Kind))
	}
}
