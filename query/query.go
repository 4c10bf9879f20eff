// Package query turns a cache key plus a fetch function into a
// stale-while-revalidate handle: the mirror answers immediately, the remote
// source answers eventually, and subscribers see both in that order.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/unkn0wn-root/swrcache"
)

type State int

const (
	Idle       State = iota // disabled: no key yet (e.g. user id unknown)
	InstantHit              // mirror had a value
	Empty                   // mirror had nothing
	Fetching                // revalidation in flight; Value may be the stale one
	Settled                 // fresh value from the remote source
	Failed                  // last revalidation failed; Value is whatever was shown before
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InstantHit:
		return "instant_hit"
	case Empty:
		return "empty"
	case Fetching:
		return "fetching"
	case Settled:
		return "settled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is what a consumer renders.
type Snapshot[V any] struct {
	Value    V
	HasValue bool
	Fresh    bool // Value came from the remote source during this handle's life
	State    State
	Err      error
}

// Spec describes one query.
type Spec[V any] struct {
	Key      string
	Fetch    swrcache.FetchFunc[V]
	Expiry   time.Duration // applied to the cache write; <= 0 never expires
	Disabled bool
}

// Handle is a live query. Safe for concurrent use.
type Handle[V any] struct {
	m    *swrcache.Manager
	spec Spec[V]

	// pubMu serializes state changes together with their delivery, so every
	// subscriber sees snapshots in the order they happened.
	pubMu sync.Mutex
	mu    sync.Mutex
	snap  Snapshot[V]
	subs  map[int]func(Snapshot[V])
	next  int

	done     chan struct{}
	doneOnce sync.Once
}

// Use seeds a handle from the mirror and, unless disabled, starts revalidating
// in the background with ctx.
func Use[V any](ctx context.Context, m *swrcache.Manager, spec Spec[V]) *Handle[V] {
	h := &Handle[V]{
		m:    m,
		spec: spec,
		subs: make(map[int]func(Snapshot[V])),
		done: make(chan struct{}),
	}
	if spec.Disabled || spec.Key == "" || spec.Fetch == nil {
		h.snap.State = Idle
		h.markDone()
		return h
	}

	if v, ok := swrcache.GetMemoryCacheSync[V](m, spec.Key); ok {
		h.snap = Snapshot[V]{Value: v, HasValue: true, State: InstantHit}
	} else {
		h.snap.State = Empty
	}

	go func() {
		defer h.markDone()
		_, _ = h.Refetch(ctx)
	}()
	return h
}

// Key returns the cache key the handle reads and writes.
func (h *Handle[V]) Key() string { return h.spec.Key }

// Current returns the latest snapshot without blocking on I/O.
func (h *Handle[V]) Current() Snapshot[V] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Done is closed once the initial revalidation finished (immediately for
// disabled handles).
func (h *Handle[V]) Done() <-chan struct{} { return h.done }

// Subscribe calls fn with the current snapshot and then with every change.
// fn runs on the goroutine that caused the change; it must not block and must
// not call Refetch synchronously.
func (h *Handle[V]) Subscribe(fn func(Snapshot[V])) (unsubscribe func()) {
	h.pubMu.Lock()
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	snap := h.snap
	h.mu.Unlock()
	fn(snap)
	h.pubMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Refetch fetches from the remote source, writes the result through the
// cache and publishes it. Fetch errors are published and returned; cached
// data is left untouched and nothing is retried.
func (h *Handle[V]) Refetch(ctx context.Context) (V, error) {
	var zero V
	if h.spec.Disabled || h.spec.Key == "" || h.spec.Fetch == nil {
		return zero, swrcache.ErrDisabled
	}

	h.update(func(s *Snapshot[V]) {
		s.State = Fetching
		s.Err = nil
	})

	ticket := h.m.BeginWrite(ctx, h.spec.Key)
	v, err := h.spec.Fetch(ctx)
	if err != nil {
		h.m.ReportRevalidateFailure(h.spec.Key, err)
		h.update(func(s *Snapshot[V]) {
			s.State = Failed
			s.Err = err
		})
		return zero, err
	}

	written := h.m.CacheDataFenced(ctx, h.spec.Key, v, ticket, swrcache.WithExpiry(h.spec.Expiry))
	h.update(func(s *Snapshot[V]) {
		s.State = Settled
		s.Err = nil
		if written || !h.m.Enabled() {
			s.Value, s.HasValue, s.Fresh = v, true, true
			return
		}
		// a newer result already landed; show that one
		if cur, ok := swrcache.GetMemoryCacheSync[V](h.m, h.spec.Key); ok {
			s.Value, s.HasValue, s.Fresh = cur, true, true
		}
	})
	return v, nil
}

func (h *Handle[V]) update(mutate func(*Snapshot[V])) {
	h.pubMu.Lock()
	defer h.pubMu.Unlock()

	h.mu.Lock()
	mutate(&h.snap)
	snap := h.snap
	subs := make([]func(Snapshot[V]), 0, len(h.subs))
	for i := 0; i < h.next; i++ {
		if fn, ok := h.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (h *Handle[V]) markDone() {
	h.doneOnce.Do(func() { close(h.done) })
}
