package streamserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assay-dev/assay/internal/policy"
	"github.com/assay-dev/assay/internal/reason"
)

const weatherPolicy = `{
  "tools": {
    "weather_tool": {
      "schema": {
        "type": "object",
        "properties": {"city": {"type": "string"}, "country": {"type": "string"}},
        "required": ["city"]
      }
    }
  }
}`

func writePolicyFile(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
}

func TestHandleAllowsValidArgs(t *testing.T) {
	root := t.TempDir()
	writePolicyFile(t, root, "weather.json", weatherPolicy)
	srv, err := New(Config{PolicyRoot: root})
	require.NoError(t, err)

	resp := srv.Handle(context.Background(), Request{
		PolicyPath: "weather.json",
		ToolName:   "weather_tool",
		Args:       map[string]any{"city": "Amsterdam", "country": "NL"},
	})

	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Verdict)
	assert.Equal(t, policy.Allowed, resp.Verdict.Status)
}

func TestHandleBlocksMissingRequiredArg(t *testing.T) {
	root := t.TempDir()
	writePolicyFile(t, root, "weather.json", weatherPolicy)
	srv, err := New(Config{PolicyRoot: root})
	require.NoError(t, err)

	resp := srv.Handle(context.Background(), Request{
		PolicyPath: "weather.json",
		ToolName:   "weather_tool",
		Args:       map[string]any{"country": "NL"},
	})

	require.NotNil(t, resp.Verdict)
	assert.Equal(t, policy.Blocked, resp.Verdict.Status)
	assert.Equal(t, reason.ArgSchema, resp.Verdict.ReasonCode)
}

func TestHandleReusesCompiledPolicyFromCache(t *testing.T) {
	root := t.TempDir()
	writePolicyFile(t, root, "weather.json", weatherPolicy)
	srv, err := New(Config{PolicyRoot: root})
	require.NoError(t, err)

	req := Request{PolicyPath: "weather.json", ToolName: "weather_tool", Args: map[string]any{"city": "x"}}
	_ = srv.Handle(context.Background(), req)
	assert.Equal(t, 1, srv.cache.lru.Len())
	_ = srv.Handle(context.Background(), req)
	assert.Equal(t, 1, srv.cache.lru.Len(), "second call with identical content should reuse the cached compiled policy")
}

func TestHandlePathEscapeIsHardBlocked(t *testing.T) {
	root := t.TempDir()
	srv, err := New(Config{PolicyRoot: root})
	require.NoError(t, err)

	resp := srv.Handle(context.Background(), Request{PolicyPath: "../outside.json", ToolName: "t"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, reason.PermissionDenied, resp.Error.Code)
}

func TestHandleMissingPolicyFileFailsSafeToAllowed(t *testing.T) {
	root := t.TempDir()
	srv, err := New(Config{PolicyRoot: root})
	require.NoError(t, err)

	resp := srv.Handle(context.Background(), Request{PolicyPath: "missing.json", ToolName: "t"})
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Verdict)
	assert.Equal(t, policy.Allowed, resp.Verdict.Status)
}

func TestHandleToolBlocklist(t *testing.T) {
	root := t.TempDir()
	writePolicyFile(t, root, "block.json", `{"blocklist": ["rm_rf"]}`)
	srv, err := New(Config{PolicyRoot: root})
	require.NoError(t, err)

	resp := srv.Handle(context.Background(), Request{
		PolicyPath:       "block.json",
		ObservedSequence: []string{"list_files", "rm_rf"},
	})

	require.NotNil(t, resp.Verdict)
	assert.Equal(t, policy.Blocked, resp.Verdict.Status)
	assert.Equal(t, reason.ToolBlocked, resp.Verdict.ReasonCode)
}

func TestServeLineDelimitedProtocol(t *testing.T) {
	root := t.TempDir()
	writePolicyFile(t, root, "weather.json", weatherPolicy)
	srv, err := New(Config{PolicyRoot: root})
	require.NoError(t, err)

	reqLine, err := json.Marshal(Request{PolicyPath: "weather.json", ToolName: "weather_tool", Args: map[string]any{"city": "Amsterdam"}})
	require.NoError(t, err)

	var out bytes.Buffer
	in := strings.NewReader(string(reqLine) + "\n")
	require.NoError(t, srv.Serve(context.Background(), in, &out))

	scanner := bufio.NewScanner(&out)
	require.True(t, scanner.Scan())
	var resp Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	require.NotNil(t, resp.Verdict)
	assert.Equal(t, policy.Allowed, resp.Verdict.Status)
}

func TestServeOversizedLineYieldsErrorAndKeepsServing(t *testing.T) {
	root := t.TempDir()
	writePolicyFile(t, root, "weather.json", weatherPolicy)
	srv, err := New(Config{PolicyRoot: root, MaxMessageBytes: 256})
	require.NoError(t, err)

	reqLine, err := json.Marshal(Request{PolicyPath: "weather.json", ToolName: "weather_tool", Args: map[string]any{"city": "Amsterdam"}})
	require.NoError(t, err)

	// Oversized first line (well past the 256-byte limit and the reader's
	// internal buffer), then a valid request on the next line.
	oversized := strings.Repeat("x", 256*1024)
	var out bytes.Buffer
	in := strings.NewReader(oversized + "\n" + string(reqLine) + "\n")
	require.NoError(t, srv.Serve(context.Background(), in, &out))

	scanner := bufio.NewScanner(&out)

	require.True(t, scanner.Scan())
	var first Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &first))
	require.NotNil(t, first.Error)
	assert.Equal(t, reason.LimitExceeded, first.Error.Code)

	require.True(t, scanner.Scan(), "server must keep serving after an over-limit request")
	var second Response
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &second))
	require.NotNil(t, second.Verdict)
	assert.Equal(t, policy.Allowed, second.Verdict.Status)
}

func TestServeMalformedLineYieldsErrorResponseNotCrash(t *testing.T) {
	srv, err := New(Config{PolicyRoot: t.TempDir()})
	require.NoError(t, err)

	var out bytes.Buffer
	in := strings.NewReader("not json\n")
	require.NoError(t, srv.Serve(context.Background(), in, &out))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, reason.InvalidRequest, resp.Error.Code)
}
