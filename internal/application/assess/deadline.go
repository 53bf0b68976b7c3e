package assess

import (
	"context"
	"errors"
	"time"

	"github.com/claimsight/assess-gateway/internal/domain/assessment"
)

// runStage races fn against a per-stage deadline. Expiry yields a distinct
// timeout error variant (never inferred from error text), cancellation of
// the parent context propagates as-is. fn receives the scoped context so
// ctx-aware providers stop work early; a provider that ignores it is still
// abandoned when the deadline fires.
func runStage(ctx context.Context, stage string, timeout time.Duration, fn func(context.Context) (any, error)) (any, error) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   any
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(sctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, assessment.Timeout(stage)
		}
		return r.v, r.err
	case <-sctx.Done():
		if err := ctx.Err(); err != nil {
			// Parent context ended first: caller cancelled, not a stage timeout.
			return nil, err
		}
		return nil, assessment.Timeout(stage)
	}
}
