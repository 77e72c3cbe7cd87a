package store

import "time"

// EpisodeRow mirrors the episodes table. Produced and consumed by value;
// no ORM entity graph.
type EpisodeRow struct {
	EpisodeID   string    `db:"episode_id"`
	RunID       *string   `db:"run_id"`
	TestID      *string   `db:"test_id"`
	InputJSON   string    `db:"input_json"`
	MetaJSON    string    `db:"meta_json"`
	StartTS     time.Time `db:"start_ts"`
	EndTS       *time.Time `db:"end_ts"`
	Outcome     *string   `db:"outcome"`
	FinalOutput *string   `db:"final_output"`
}

// StepRow mirrors the steps table.
type StepRow struct {
	EpisodeID       string    `db:"episode_id"`
	StepID          string    `db:"step_id"`
	Idx             int       `db:"idx"`
	TS              time.Time `db:"ts"`
	Kind            string    `db:"kind"`
	Name            *string   `db:"name"`
	Content         *string   `db:"content"`
	ContentSHA256   *string   `db:"content_sha256"`
	MetaJSON        string    `db:"meta_json"`
	TruncationsJSON string    `db:"truncations_json"`
}

// ToolCallRow mirrors the tool_calls table.
type ToolCallRow struct {
	EpisodeID       string    `db:"episode_id"`
	StepID          string    `db:"step_id"`
	CallIndex       int       `db:"call_index"`
	TS              time.Time `db:"ts"`
	ToolName        string    `db:"tool_name"`
	ArgsJSON        string    `db:"args_json"`
	ArgsSHA256      *string   `db:"args_sha256"`
	ResultJSON      *string   `db:"result_json"`
	ResultSHA256    *string   `db:"result_sha256"`
	Error           *string   `db:"error"`
	TruncationsJSON string    `db:"truncations_json"`
}

// EpisodeGraph is the materialized, immutable view returned by
// GetEpisodeGraph / GetLatestEpisodeGraphByTestID. The store is the
// arena; (episode_id, step_id, call_index) are the indices. Graphs are
// materialized on demand and treated as immutable values.
type EpisodeGraph struct {
	Episode   EpisodeRow
	Steps     []StepRow
	ToolCalls []ToolCallRow
}

// RunRow mirrors the runs table.
type RunRow struct {
	ID         string    `db:"id"`
	Suite      string    `db:"suite"`
	StartedAt  time.Time `db:"started_at"`
	Status     string    `db:"status"`
	ConfigJSON string    `db:"config_json"`
}

// ResultRow mirrors the results table.
type ResultRow struct {
	ID           string    `db:"id"`
	RunID        string    `db:"run_id"`
	TestID       string    `db:"test_id"`
	Outcome      string    `db:"outcome"`
	Score        float64   `db:"score"`
	DurationMS   int64     `db:"duration_ms"`
	AttemptsJSON string    `db:"attempts_json"`
	OutputJSON   string    `db:"output_json"`
	CreatedAt    time.Time `db:"created_at"`
}

// QuarantineRow mirrors the quarantine table.
type QuarantineRow struct {
	Suite   string    `db:"suite"`
	TestID  string    `db:"test_id"`
	Reason  string    `db:"reason"`
	AddedAt time.Time `db:"added_at"`
}

// CacheRow mirrors the response cache table.
type CacheRow struct {
	Key          string    `db:"key"`
	ResponseJSON string    `db:"response_json"`
	CreatedAt    time.Time `db:"created_at"`
}

// EmbeddingRow mirrors the embeddings table. Vec is the little-endian
// f32 BLOB encoding (internal/metrics.EncodeEmbedding).
type EmbeddingRow struct {
	Key       string    `db:"key"`
	Model     string    `db:"model"`
	Dims      int       `db:"dims"`
	Vec       []byte    `db:"vec"`
	CreatedAt time.Time `db:"created_at"`
}

// JudgeCacheRow mirrors the judge_cache table.
type JudgeCacheRow struct {
	Key           string    `db:"key"`
	Provider      string    `db:"provider"`
	Model         string    `db:"model"`
	RubricID      string    `db:"rubric_id"`
	RubricVersion string    `db:"rubric_version"`
	CreatedAt     time.Time `db:"created_at"`
	PayloadJSON   string    `db:"payload_json"`
}
