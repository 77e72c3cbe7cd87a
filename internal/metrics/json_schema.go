package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/assay-dev/assay/internal/reason"
)

// jsonSchemaMetric compiles the inline schema or the referenced schema
// file and validates the response text as JSON. A response that is not
// JSON is a failing MetricResult, not an error; a schema that fails to
// compile is a configuration error.
type jsonSchemaMetric struct{}

func (jsonSchemaMetric) Name() string { return "json_schema" }

func (jsonSchemaMetric) Evaluate(_ context.Context, _ TestCase, expected Expected, resp Response) (MetricResult, error) {
	if expected.Type != JSONSchema {
		return neutral(), nil
	}

	schema, err := loadSchema(expected)
	if err != nil {
		return MetricResult{}, err
	}

	compiled, err := compileSchema(schema)
	if err != nil {
		return MetricResult{}, reason.New(reason.ConfigValidate, fmt.Sprintf("json_schema compile failed: %v", err))
	}

	var instance any
	if err := json.Unmarshal([]byte(resp.Text), &instance); err != nil {
		return MetricResult{
			Score:   0,
			Passed:  false,
			Details: map[string]any{"error": "response is not valid JSON"},
		}, nil
	}

	if err := compiled.Validate(instance); err != nil {
		return MetricResult{
			Score:  0,
			Passed: false,
			Details: map[string]any{
				"validation_error": err.Error(),
			},
		}, nil
	}

	return MetricResult{Score: 1, Passed: true}, nil
}

func loadSchema(expected Expected) (map[string]any, error) {
	if expected.SchemaFile != "" {
		data, err := os.ReadFile(expected.SchemaFile)
		if err != nil {
			return nil, reason.New(reason.ConfigValidate, fmt.Sprintf("failed to read schema_file %q: %v", expected.SchemaFile, err))
		}
		var schema map[string]any
		if err := json.Unmarshal(data, &schema); err != nil {
			return nil, reason.New(reason.ConfigValidate, fmt.Sprintf("invalid JSON in schema_file %q: %v", expected.SchemaFile, err))
		}
		return schema, nil
	}
	if len(expected.SchemaInline) == 0 {
		return nil, reason.New(reason.ConfigValidate, "missing json_schema or schema_file")
	}
	return expected.SchemaInline, nil
}

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	const resource = "inline.json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(resource)
}
