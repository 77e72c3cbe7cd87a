package engine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/assay-dev/assay/internal/canon"
	"github.com/assay-dev/assay/internal/fingerprint"
	"github.com/assay-dev/assay/internal/metrics"
	"github.com/assay-dev/assay/internal/reason"
	"github.com/assay-dev/assay/internal/trace"
)

// TraceProvider replays a recorded trace instead of driving a live model:
// each test case is answered from the episode whose episode_id equals the
// test id. Its TraceHash is a digest over the canonical source content, so
// two traces with equal prompts but different recorded responses surface
// different cache keys.
type TraceProvider struct {
	hash     string
	episodes map[string]*replayEpisode
}

type replayEpisode struct {
	text      string
	toolCalls []metrics.ObservedToolCall
}

// NewTraceProvider parses a JSONL trace (any mix of V1 records and V2
// events) and indexes its episodes for replay.
func NewTraceProvider(source []byte) (*TraceProvider, error) {
	events, err := trace.Collect(trace.Upgrade(bytes.NewReader(source)))
	if err != nil {
		return nil, fmt.Errorf("parse replay trace: %w", err)
	}

	canonical, err := canon.JSON(events)
	if err != nil {
		return nil, fmt.Errorf("canonicalize replay trace: %w", err)
	}

	p := &TraceProvider{
		hash:     fingerprint.Sha256Hex(canonical),
		episodes: make(map[string]*replayEpisode),
	}
	for _, ev := range events {
		switch ev.Kind {
		case trace.KindEpisodeStart:
			p.episode(ev.EpisodeStart.EpisodeID)
		case trace.KindStep:
			if ev.Step.Content != "" {
				p.episode(ev.Step.EpisodeID).text = ev.Step.Content
			}
		case trace.KindToolCall:
			ep := p.episode(ev.ToolCall.EpisodeID)
			ep.toolCalls = append(ep.toolCalls, metrics.ObservedToolCall{
				ToolName: ev.ToolCall.ToolName,
				Args:     ev.ToolCall.Args,
			})
		case trace.KindEpisodeEnd:
			if ev.EpisodeEnd.FinalOutput != "" {
				p.episode(ev.EpisodeEnd.EpisodeID).text = ev.EpisodeEnd.FinalOutput
			}
		}
	}
	return p, nil
}

func (p *TraceProvider) episode(id string) *replayEpisode {
	ep, ok := p.episodes[id]
	if !ok {
		ep = &replayEpisode{}
		p.episodes[id] = ep
	}
	return ep
}

func (p *TraceProvider) Name() string { return "trace-replay" }

// TraceHash is the digest over the canonical JSON of the parsed trace
// events.
func (p *TraceProvider) TraceHash() string { return p.hash }

// Complete answers tc from the recorded episode with episode_id == tc.ID.
// A test id with no recorded episode fails with E_TRACE_EPISODE_MISSING.
func (p *TraceProvider) Complete(_ context.Context, tc TestCase) (metrics.Response, error) {
	ep, ok := p.episodes[tc.ID]
	if !ok {
		return metrics.Response{}, reason.New(reason.TraceEpisodeMissing,
			fmt.Sprintf("no recorded episode for test %q", tc.ID))
	}
	return metrics.Response{
		Text:       ep.text,
		ToolCalls:  ep.toolCalls,
		ProviderFP: p.hash,
	}, nil
}
