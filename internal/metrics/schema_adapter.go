package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/assay-dev/assay/internal/policy"
)

// compiledSchema adapts *jsonschema.Schema to policy.CompiledSchema, so
// internal/policy never imports the validator library directly; this is
// the one place the two are wired together.
type compiledSchema struct {
	schema *jsonschema.Schema
}

func (c compiledSchema) Validate(args map[string]any) error {
	return c.schema.Validate(args)
}

// CompileToolSchema compiles an inline JSON-Schema (as decoded from YAML
// or JSON config) into the policy.CompiledSchema capability args-valid
// needs, using the same jsonschema/v5 compiler as the json_schema metric.
func CompileToolSchema(schema map[string]any) (policy.CompiledSchema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal tool schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	const resource = "tool.json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add tool schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile tool schema: %w", err)
	}
	return compiledSchema{schema: compiled}, nil
}
