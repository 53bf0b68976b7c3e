// Package batch collapses concurrent identical in-flight requests so N
// simultaneous callers asking for the same image or query share one
// upstream AI call. The de-duplication is in-process only; it does not span
// instances.
package batch

import (
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Batcher wraps a singleflight group and tracks how many callers were
// collapsed onto an already in-flight call. Once a call settles (success or
// failure) its key is cleared, so the next caller starts fresh.
type Batcher struct {
	group      singleflight.Group
	calls      atomic.Uint64
	executions atomic.Uint64
}

func New() *Batcher {
	return &Batcher{}
}

// Do runs fn for key, or joins the in-flight call for the same key. All
// joined callers receive the same result and error.
func (b *Batcher) Do(key string, fn func() (any, error)) (any, error) {
	b.calls.Add(1)
	v, err, _ := b.group.Do(key, func() (any, error) {
		b.executions.Add(1)
		return fn()
	})
	return v, err
}

// Collapsed reports how many calls were served by joining an in-flight one
// instead of running their own. Diagnostic only.
func (b *Batcher) Collapsed() uint64 {
	return b.calls.Load() - b.executions.Load()
}
