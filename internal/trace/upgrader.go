package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"
)

// ParseError reports a malformed trace line. Events already yielded by
// Upgrade before the error remain valid; the upgrader is single-pass and
// is restartable only by re-reading the source from the beginning.
type ParseError struct {
	Code string // always E_TRACE_PARSE
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: line %d: %v", e.Code, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(line int, err error) *ParseError {
	return &ParseError{Code: "E_TRACE_PARSE", Line: line, Err: err}
}

// synthClock hands out strictly increasing synthetic timestamps so that,
// for a synthesized EpisodeStart/Step/EpisodeEnd triple,
// start.ts < step.ts < end.ts, and ordering is preserved across the whole
// stream.
type synthClock struct {
	next time.Time
}

func newSynthClock() *synthClock {
	return &synthClock{next: time.Unix(0, 0).UTC()}
}

func (c *synthClock) tick() time.Time {
	t := c.next
	c.next = c.next.Add(time.Millisecond)
	return t
}

type linePeek struct {
	SchemaVersion int    `json:"schema_version"`
	Type          string `json:"type"`
	Event         string `json:"event"`
}

// Upgrade reads a JSONL trace (one JSON value per line, a mix of V1
// records and native V2 events) and yields a canonical V2 event sequence.
// Each V1 record expands to exactly three events, in order: EpisodeStart,
// Step, EpisodeEnd. Native V2 events pass through unchanged except that
// SourceLine is stamped when no timestamp was present in the input. A V2
// line may nest the variant's fields under its kind key
// ({"event":"step","step":{...}}) or carry them flat beside "event"
// ({"event":"step","episode_id":...}); both decode to the same Event.
//
// On a malformed line, Upgrade yields a single (zero Event, *ParseError)
// pair and stops; everything yielded before that point remains valid.
func Upgrade(r io.Reader) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		clock := newSynthClock()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var pk linePeek
			if err := json.Unmarshal([]byte(line), &pk); err != nil {
				yield(Event{}, newParseError(lineNo, err))
				return
			}

			if IsV1(pk.SchemaVersion, pk.Type) {
				var rec V1Record
				if err := json.Unmarshal([]byte(line), &rec); err != nil {
					yield(Event{}, newParseError(lineNo, err))
					return
				}
				for _, ev := range expandV1(rec, clock) {
					if !yield(ev, nil) {
						return
					}
				}
				continue
			}

			if pk.Event == "" {
				yield(Event{}, newParseError(lineNo, fmt.Errorf("line is neither a V1 record nor a tagged V2 event")))
				return
			}

			var ev Event
			if err := json.Unmarshal([]byte(line), &ev); err != nil {
				yield(Event{}, newParseError(lineNo, err))
				return
			}
			payloads := map[Kind]any{KindEpisodeStart: &ev.EpisodeStart, KindStep: &ev.Step, KindToolCall: &ev.ToolCall, KindEpisodeEnd: &ev.EpisodeEnd}
			if payload, ok := payloads[ev.Kind]; ok {
				if err := json.Unmarshal([]byte(line), payload); err != nil {
					yield(Event{}, newParseError(lineNo, err))
					return
				}
			}
			if eventTimestamp(ev).IsZero() {
				ev.SourceLine = lineNo
			}
			if !yield(ev, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(Event{}, newParseError(lineNo+1, err))
		}
	}
}

// expandV1 turns one V1Record into its canonical three-event expansion.
func expandV1(rec V1Record, clock *synthClock) []Event {
	startTS := clock.tick()
	stepTS := clock.tick()
	endTS := clock.tick()

	start := Event{
		Kind: KindEpisodeStart,
		EpisodeStart: &EpisodeStart{
			EpisodeID: rec.RequestID,
			Timestamp: startTS,
			Input:     map[string]any{"prompt": rec.Prompt},
			Meta:      rec.Meta,
		},
	}

	step := Event{
		Kind: KindStep,
		Step: &Step{
			EpisodeID: rec.RequestID,
			StepID:    "s1",
			Idx:       0,
			Timestamp: stepTS,
			Kind:      "llm_completion",
			Content:   rec.Response,
		},
	}

	end := Event{
		Kind: KindEpisodeEnd,
		EpisodeEnd: &EpisodeEnd{
			EpisodeID: rec.RequestID,
			Timestamp: endTS,
			Outcome:   "pass",
		},
	}

	return []Event{start, step, end}
}

func eventTimestamp(ev Event) time.Time {
	switch ev.Kind {
	case KindEpisodeStart:
		if ev.EpisodeStart != nil {
			return ev.EpisodeStart.Timestamp
		}
	case KindStep:
		if ev.Step != nil {
			return ev.Step.Timestamp
		}
	case KindToolCall:
		if ev.ToolCall != nil {
			return ev.ToolCall.Timestamp
		}
	case KindEpisodeEnd:
		if ev.EpisodeEnd != nil {
			return ev.EpisodeEnd.Timestamp
		}
	}
	return time.Time{}
}

// Collect drains an Upgrade sequence into a slice, returning the first
// error encountered (if any) alongside every event yielded before it.
func Collect(seq iter.Seq2[Event, error]) ([]Event, error) {
	var events []Event
	var firstErr error
	seq(func(ev Event, err error) bool {
		if err != nil {
			firstErr = err
			return false
		}
		events = append(events, ev)
		return true
	})
	return events, firstErr
}
