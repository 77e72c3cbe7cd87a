// Package streamserver implements the streaming policy server: a
// line-delimited request/response protocol around the same pure policy
// engine the batch evaluator uses, with an on-disk policy-root jail and
// a content-addressed compiled-policy cache.
//
// Handle is the pure, fully-tested decision function; Serve is the thin
// transport glue around it.
package streamserver

import (
	"github.com/assay-dev/assay/internal/policy"
	"github.com/assay-dev/assay/internal/reason"
)

// Request is one line of the streaming protocol's input.
type Request struct {
	PolicyPath       string         `json:"policy_path"`
	ToolName         string         `json:"tool_name"`
	Args             map[string]any `json:"args,omitempty"`
	ObservedSequence []string       `json:"observed_sequence,omitempty"`
}

// ErrorBody is the typed error shape carried in a Response when a
// request cannot be decided.
type ErrorBody struct {
	Code    reason.Code `json:"code"`
	Message string      `json:"message"`
}

// Response is one line of the streaming protocol's output. Exactly one
// of Verdict/Error is populated.
type Response struct {
	Verdict *policy.Verdict `json:"verdict,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

func errorResponse(err error) Response {
	if re, ok := err.(*reason.Error); ok {
		return Response{Error: &ErrorBody{Code: re.Code, Message: re.Msg}}
	}
	return Response{Error: &ErrorBody{Code: reason.InvalidRequest, Message: err.Error()}}
}
