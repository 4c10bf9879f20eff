// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ExpiredEvery:    10, // sample logs: ~every 10th expiry
//	    RevalidateEvery: 1,
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	m, _ := swrcache.New(swrcache.Options{
//	    Store: store,
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/swrcache"
)

// Hooks forwards events to inner on worker goroutines. When the queue is
// full events are dropped and counted.
type Hooks struct {
	inner   swrcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Uint64
}

var _ swrcache.Hooks = (*Hooks)(nil)

func New(inner swrcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent afterwards
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.closed.Store(true)
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if h.closed.Load() {
		h.dropped.Add(1)
		return
	}
	defer func() {
		// lost the race with Close
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) StorageFailure(op, k string, err error) {
	h.try(func() { h.inner.StorageFailure(op, k, err) })
}
func (h *Hooks) DecodeFailure(k string, err error)     { h.try(func() { h.inner.DecodeFailure(k, err) }) }
func (h *Hooks) ExpiredOnRead(k string)                { h.try(func() { h.inner.ExpiredOnRead(k) }) }
func (h *Hooks) RevalidateFailure(k string, err error) { h.try(func() { h.inner.RevalidateFailure(k, err) }) }
func (h *Hooks) WriteFenced(k string, t uint64)        { h.try(func() { h.inner.WriteFenced(k, t) }) }
func (h *Hooks) Preloaded(req, n int)                  { h.try(func() { h.inner.Preloaded(req, n) }) }
