package policy

import "github.com/assay-dev/assay/internal/reason"

// EvaluateToolArgs is the args-valid verdict function.
// Status is Allowed iff tool is declared in policy and args validate
// against its schema. A schema compilation error is the caller's
// responsibility to surface as a configuration error before this
// function is ever called; CompiledSchema.Validate only reports
// validation failures, never compilation failures.
func EvaluateToolArgs(p ToolPolicy, tool string, args map[string]any) Verdict {
	schema, ok := p.Schemas[tool]
	if !ok {
		if p.OpenWorld {
			return allowed("tool not declared in policy; open-world mode allows it")
		}
		return blocked(reason.ToolUnknown, "tool \""+tool+"\" is not declared in policy", "")
	}

	if err := schema.Validate(args); err != nil {
		return blocked(reason.ArgSchema, err.Error(), tool)
	}
	return allowed("args satisfy the declared schema")
}
