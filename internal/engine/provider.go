package engine

import (
	"context"

	"github.com/assay-dev/assay/internal/metrics"
)

// Provider is the narrow capability both a live LLM client and a
// trace-replay client expose to the engine. Exactly one concrete
// implementation is wired per run; both are external collaborators, not
// part of the core contract.
type Provider interface {
	// Name identifies the provider for logging and Result.OutputJSON.
	Name() string

	// Complete returns the Response for tc. It is the only suspension
	// point besides Store writes.
	Complete(ctx context.Context, tc TestCase) (metrics.Response, error)

	// TraceHash is the provider's declared fingerprint folded into the
	// cache key: for a trace-replay provider, a digest over its canonical
	// source content; empty for a live LLM provider. Must be cheap to
	// compute; the engine calls it before deciding whether to call
	// Complete at all.
	TraceHash() string
}
