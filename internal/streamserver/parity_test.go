package streamserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/internal/metrics"
	"github.com/assay-dev/assay/internal/policy"
)

// TestParityBatchAndStreamingAgree drives the same weather_tool fixture
// through internal/policy directly, as the batch engine would, and
// through the streaming server, and asserts the two paths
// produce a structurally equal Verdict from identical inputs.
func TestParityBatchAndStreamingAgree(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"city": map[string]any{"type": "string"}, "country": map[string]any{"type": "string"}},
		"required":   []any{"city"},
	}
	compiled, err := metrics.CompileToolSchema(schema)
	require.NoError(t, err)
	toolPolicy := policy.ToolPolicy{Schemas: map[string]policy.CompiledSchema{"weather_tool": compiled}}

	cases := []struct {
		name string
		args map[string]any
	}{
		{"allowed", map[string]any{"city": "Amsterdam", "country": "NL"}},
		{"blocked_missing_city", map[string]any{"country": "NL"}},
	}

	root := t.TempDir()
	writePolicyFile(t, root, "weather.json", weatherPolicy)
	srv, err := New(Config{PolicyRoot: root})
	require.NoError(t, err)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			batchVerdict := policy.EvaluateToolArgs(toolPolicy, "weather_tool", tc.args)

			resp := srv.Handle(context.Background(), Request{
				PolicyPath: "weather.json",
				ToolName:   "weather_tool",
				Args:       tc.args,
			})
			require.NotNil(t, resp.Verdict)

			assert.Equal(t, batchVerdict.Status, resp.Verdict.Status)
			assert.Equal(t, batchVerdict.ReasonCode, resp.Verdict.ReasonCode)
			assert.Equal(t, batchVerdict, *resp.Verdict)
		})
	}
}
