// Package fetch tags remote reads with per-resource request ids so that only
// the newest request for a resource may deliver a result.
package fetch

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Do when a newer request for the same resource
// was issued before this one completed. Its result must be discarded.
var ErrSuperseded = errors.New("fetch: superseded by a newer request")

type inflight struct {
	id     uint64
	cancel context.CancelFunc
}

// Tracker hands out monotonically increasing request ids per resource.
type Tracker struct {
	mu      sync.Mutex
	seq     uint64
	current map[string]inflight
}

func NewTracker() *Tracker {
	return &Tracker{current: map[string]inflight{}}
}

// begin registers a new request for resource, cancelling the previous one.
func (t *Tracker) begin(ctx context.Context, resource string) (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.current[resource]; ok {
		prev.cancel()
	}
	t.seq++
	child, cancel := context.WithCancel(ctx)
	t.current[resource] = inflight{id: t.seq, cancel: cancel}
	return child, t.seq
}

// finish reports whether id is still the latest request for resource and
// releases its context either way.
func (t *Tracker) finish(resource string, id uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.current[resource]
	if !ok || cur.id != id {
		return false
	}
	cur.cancel()
	delete(t.current, resource)
	return true
}

// Latest returns the id of the in-flight request for resource, or 0.
func (t *Tracker) Latest(resource string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[resource].id
}

// Do runs fn as the newest request for resource. An older in-flight request
// for the same resource is cancelled; if fn's request is itself overtaken,
// Do returns ErrSuperseded and the zero value regardless of fn's result.
func Do[T any](ctx context.Context, t *Tracker, resource string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	reqCtx, id := t.begin(ctx, resource)
	v, err := fn(reqCtx)
	if !t.finish(resource, id) {
		return zero, ErrSuperseded
	}
	if err != nil {
		return zero, err
	}
	return v, nil
}
