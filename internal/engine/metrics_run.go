package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/assay-dev/assay/internal/metrics"
)

// runMetrics scores resp against every registered metric concurrently
// and joins before returning. A metric whose Evaluate returns an error
// fails the whole test case rather than being silently dropped; a metric
// error is distinct from a metric verdict. Metrics whose
// concern does not match the test's Expected.Type return a neutral pass
// (internal/metrics) and are left out of the result: only the metric(s)
// actually relevant to the test case drive its outcome and score.
func (e *Engine) runMetrics(ctx context.Context, tc TestCase, resp metrics.Response) (map[string]metrics.MetricResult, error) {
	all := e.registry.All()
	mtc := tc.ToMetricsTestCase()

	var mu sync.Mutex
	out := make(map[string]metrics.MetricResult, len(all))

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range all {
		m := m
		g.Go(func() error {
			res, err := m.Evaluate(gctx, mtc, tc.Expected, resp)
			if err != nil {
				return fmt.Errorf("metric %q: %w", m.Name(), err)
			}
			if isNeutral(res) {
				return nil
			}
			mu.Lock()
			out[m.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// isNeutral reports whether res is the neutral pass a Metric returns when
// its concern does not match the test's declared Expected.Type.
func isNeutral(res metrics.MetricResult) bool {
	if res.Details == nil {
		return false
	}
	_, ok := res.Details["skipped"]
	return ok
}
