package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// rpcMessage is the superset of a JSON-RPC request and response line as
// emitted by an MCP transcript.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

func (m rpcMessage) isRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

func (m rpcMessage) isResponse() bool {
	return m.Method == "" && len(m.ID) > 0 && (len(m.Result) > 0 || len(m.Error) > 0)
}

func (m rpcMessage) idKey() string {
	return strings.TrimSpace(string(m.ID))
}

// UpgradeMCPTranscript correlates request/response JSON-RPC line pairs from
// an MCP session transcript by id and produces one ToolCall event per
// matched pair. Requests that never see a matching response become Step
// events with kind "method" instead. episodeID is stamped onto every
// produced event, since raw JSON-RPC traffic carries no episode concept of
// its own.
func UpgradeMCPTranscript(r io.Reader, episodeID string) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	type pending struct {
		msg  rpcMessage
		line int
	}
	requests := make(map[string]pending)
	order := make([]string, 0)

	var events []Event
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg rpcMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return events, newParseError(lineNo, err)
		}

		switch {
		case msg.isRequest():
			key := msg.idKey()
			requests[key] = pending{msg: msg, line: lineNo}
			order = append(order, key)

		case msg.isResponse():
			key := msg.idKey()
			req, ok := requests[key]
			if !ok {
				// Response with no matching request: surface as its own
				// step so it is not silently dropped.
				events = append(events, Event{
					Kind:       KindStep,
					SourceLine: lineNo,
					Step: &Step{
						EpisodeID: episodeID,
						StepID:    fmt.Sprintf("mcp-orphan-%s", key),
						Kind:      "method",
						Content:   string(msg.Result) + string(msg.Error),
					},
				})
				continue
			}
			delete(requests, key)

			args := rawToMap(req.msg.Params)
			toolName, _ := args["name"].(string)
			callArgs, _ := args["arguments"].(map[string]any)

			var result map[string]any
			var errMsg string
			if len(msg.Error) > 0 {
				errObj := rawToMap(msg.Error)
				if m, ok := errObj["message"].(string); ok {
					errMsg = m
				} else {
					errMsg = string(msg.Error)
				}
			} else {
				result = rawToMap(msg.Result)
			}

			events = append(events, Event{
				Kind:       KindToolCall,
				SourceLine: req.line,
				ToolCall: &ToolCall{
					EpisodeID: episodeID,
					StepID:    fmt.Sprintf("mcp-%s", key),
					ToolName:  toolName,
					Args:      callArgs,
					Result:    result,
					Error:     errMsg,
				},
			})

		default:
			return events, newParseError(lineNo, fmt.Errorf("line is neither a JSON-RPC request nor a response"))
		}
	}

	if err := scanner.Err(); err != nil {
		return events, newParseError(lineNo+1, err)
	}

	// Requests that never received a response surface as method steps,
	// ordered by the line they were issued on.
	for _, key := range order {
		req, ok := requests[key]
		if !ok {
			continue
		}
		params := rawToMap(req.msg.Params)
		events = append(events, Event{
			Kind:       KindStep,
			SourceLine: req.line,
			Step: &Step{
				EpisodeID: episodeID,
				StepID:    fmt.Sprintf("mcp-%s", key),
				Kind:      "method",
				Name:      req.msg.Method,
				Meta:      params,
			},
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].SourceLine < events[j].SourceLine
	})

	return events, nil
}

// rawToMap decodes raw as a JSON object; non-object values (arrays,
// scalars, null) are wrapped under a "value" key so callers always get a
// map to work with.
func rawToMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	if v == nil {
		return nil
	}
	return map[string]any{"value": v}
}
