package fence

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	Issued    uint64
	Committed uint64
	UpdatedAt time.Time
}

// Local keeps tickets in-process.
// Optional cleanup loop to prune long-inactive keys.
type Local struct {
	mu      sync.Mutex
	entries map[string]localEntry
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

var _ Fence = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{entries: make(map[string]localEntry)}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Issue(_ context.Context, key string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.entries[key]
	e.Issued++
	e.UpdatedAt = now
	s.entries[key] = e
	s.mu.Unlock()
	return e.Issued, nil
}

func (s *Local) Commit(_ context.Context, key string, ticket uint64) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entries[key]
	if ticket <= e.Committed {
		return false, nil
	}
	e.Committed = ticket
	if ticket > e.Issued {
		// entry was pruned while the fetch was in flight
		e.Issued = ticket
	}
	e.UpdatedAt = now
	s.entries[key] = e
	return true, nil
}

// Cleanup drops keys idle for longer than retention. A pruned key restarts at
// ticket 0, so retention must comfortably exceed the slowest fetch.
func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for k, e := range s.entries {
		if e.UpdatedAt.Before(cutoff) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.wg.Wait()
		}
	})
	return nil
}
