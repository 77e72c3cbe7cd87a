// Package trace implements the trace event model: a tagged union of
// {EpisodeStart, Step, ToolCall, EpisodeEnd} plus a V1-legacy record,
// and an upgrader that turns any mix of the two into a canonical V2
// event sequence.
package trace

import "time"

// Kind discriminates which variant of Event is populated.
type Kind string

// Event kinds.
const (
	KindEpisodeStart Kind = "episode_start"
	KindStep         Kind = "step"
	KindToolCall     Kind = "tool_call"
	KindEpisodeEnd   Kind = "episode_end"
)

// Event is a tagged union over the four V2 variants. Exactly one of the
// pointer fields is non-nil, selected by Kind.
type Event struct {
	Kind Kind `json:"event"`

	// SourceLine is the 1-based line number the event was parsed from, used
	// as the ordering fallback when the event itself carries no timestamp.
	// Zero means a real timestamp was present.
	SourceLine int `json:"source_line,omitempty"`

	EpisodeStart *EpisodeStart `json:"episode_start,omitempty"`
	Step         *Step         `json:"step,omitempty"`
	ToolCall     *ToolCall     `json:"tool_call,omitempty"`
	EpisodeEnd   *EpisodeEnd   `json:"episode_end,omitempty"`
}

// EpisodeStart opens an episode.
type EpisodeStart struct {
	EpisodeID string         `json:"episode_id"`
	Timestamp time.Time      `json:"timestamp"`
	Input     map[string]any `json:"input"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Step is one reasoning/invocation unit within an episode, ordered by Idx.
type Step struct {
	EpisodeID     string         `json:"episode_id"`
	StepID        string         `json:"step_id"`
	Idx           int            `json:"idx"`
	Timestamp     time.Time      `json:"timestamp"`
	Kind          string         `json:"kind"`
	Name          string         `json:"name,omitempty"`
	Content       string         `json:"content,omitempty"`
	ContentSHA256 string         `json:"content_sha256,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	Truncations   []string       `json:"truncations,omitempty"`
}

// ToolCall is one invocation of a named tool, correlated to a Step by
// (EpisodeID, StepID); CallIndex disambiguates multiple calls on one step.
type ToolCall struct {
	EpisodeID     string         `json:"episode_id"`
	StepID        string         `json:"step_id"`
	Timestamp     time.Time      `json:"timestamp"`
	CallIndex     int            `json:"call_index"`
	ToolName      string         `json:"tool_name"`
	Args          map[string]any `json:"args"`
	ArgsSHA256    string         `json:"args_sha256,omitempty"`
	Result        map[string]any `json:"result,omitempty"`
	ResultSHA256  string         `json:"result_sha256,omitempty"`
	Error         string         `json:"error,omitempty"`
	Truncations   []string       `json:"truncations,omitempty"`
}

// EpisodeEnd closes an episode; at most one per episode.
type EpisodeEnd struct {
	EpisodeID   string    `json:"episode_id"`
	Timestamp   time.Time `json:"timestamp"`
	Outcome     string    `json:"outcome,omitempty"`
	FinalOutput string    `json:"final_output,omitempty"`
}

// V1Record is the flat single-line legacy trace record.
type V1Record struct {
	SchemaVersion int            `json:"schema_version"`
	Type          string         `json:"type"`
	RequestID     string         `json:"request_id"`
	Prompt        string         `json:"prompt"`
	Response      string         `json:"response"`
	Model         string         `json:"model,omitempty"`
	Provider      string         `json:"provider,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// V1TypeTag is the sentinel value of V1Record.Type.
const V1TypeTag = "assay.trace"

// IsV1 reports whether raw decodes as a V1Record (schema_version=1,
// type="assay.trace").
func IsV1(schemaVersion int, typ string) bool {
	return schemaVersion == 1 && typ == V1TypeTag
}
