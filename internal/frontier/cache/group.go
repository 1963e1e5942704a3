package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group is the in-flight registry. Concurrent Do calls for one fingerprint
// share a single producer invocation and observe the same value and error.
type Group struct {
	flights singleflight.Group

	mu       sync.Mutex
	inflight map[string]uint64
	seq      uint64
}

// NewGroup creates an empty registry.
func NewGroup() *Group {
	return &Group{inflight: make(map[string]uint64)}
}

// Do runs producer once per fingerprint across overlapping callers. The
// producer gets a context detached from the first caller's cancellation; it
// is expected to bound itself. The registration is gone before any caller
// sees the result. shared reports whether the result went to more than one
// caller. A caller whose ctx ends stops waiting without affecting others.
func (g *Group) Do(ctx context.Context, fingerprint string, producer func(ctx context.Context) (any, error)) (v any, err error, shared bool) {
	detached := context.WithoutCancel(ctx)

	ch := g.flights.DoChan(fingerprint, func() (any, error) {
		id := g.register(fingerprint)
		defer g.unregister(fingerprint, id)
		return producer(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		return nil, ctx.Err(), false
	}
}

// InFlight reports whether a producer for fingerprint is running.
func (g *Group) InFlight(fingerprint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[fingerprint]
	return ok
}

// Len reports the number of running producers.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

// Clear forgets every registration. Running producers still deliver to the
// callers already joined; later callers start a fresh producer.
func (g *Group) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for fp := range g.inflight {
		g.flights.Forget(fp)
	}
	clear(g.inflight)
}

func (g *Group) register(fingerprint string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	g.inflight[fingerprint] = g.seq
	return g.seq
}

// unregister only removes the entry it created, so a producer that outlives
// Clear cannot drop a newer registration for the same fingerprint.
func (g *Group) unregister(fingerprint string, id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[fingerprint] == id {
		delete(g.inflight, fingerprint)
	}
}
