// Package ristretto is a bounded in-memory store. Entries may be evicted at any
// time once MaxCost is reached, which the cache treats as an ordinary miss.
// When Config.Pairing is set, evicting one half of a value/expiry pair drops
// the other half too.
package ristretto

import (
	"context"
	"errors"

	rc "github.com/dgraph-io/ristretto"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/unkn0wn-root/swrcache/store"
)

type Store struct {
	c *rc.Cache
	// ristretto cannot enumerate its contents; remember what we wrote and
	// prune lazily on ListKeys.
	keys    *xsync.MapOf[string, struct{}]
	orphans *store.Orphans
}

var _ store.Store = (*Store)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64 // bytes of payload
	BufferItems int64
	Metrics     bool
	Pairing     store.Pairing
}

// entry keeps the string key next to the payload; eviction callbacks only
// see ristretto's key hash.
type entry struct {
	key string
	val []byte
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto store: invalid config")
	}
	s := &Store{
		keys:    xsync.NewMapOf[string, struct{}](),
		orphans: store.NewOrphans(cfg.Pairing),
	}
	dropped := func(it *rc.Item) {
		if e, ok := it.Value.(entry); ok {
			s.orphans.Evicted(e.key)
		}
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters:        cfg.NumCounters,
		MaxCost:            cfg.MaxCost,
		BufferItems:        cfg.BufferItems,
		Metrics:            cfg.Metrics,
		IgnoreInternalCost: true,
		OnEvict:            dropped,
		OnReject:           dropped,
	})
	if err != nil {
		return nil, err
	}
	s.c = c
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.orphans.Take(key) {
		s.c.Del(key)
		s.keys.Delete(key)
		return nil, false, nil
	}
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	e, isEntry := v.(entry)
	if !isEntry {
		// self-heal: drop unexpected entry shape
		s.c.Del(key)
		s.keys.Delete(key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	s.orphans.Forget(key)
	if !s.c.Set(key, entry{key: key, val: value}, int64(len(key)+len(value))+1) {
		return store.ErrRejected
	}
	// make the write visible to the next Get
	s.c.Wait()
	// admission is decided asynchronously; a refused write only shows up here
	if _, ok := s.c.Get(key); !ok {
		return store.ErrRejected
	}
	s.keys.Store(key, struct{}{})
	return nil
}

func (s *Store) RemoveMany(_ context.Context, keys []string) error {
	for _, k := range keys {
		s.orphans.Forget(k)
		s.c.Del(k)
		s.keys.Delete(k)
	}
	return nil
}

func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	var out []string
	s.keys.Range(func(k string, _ struct{}) bool {
		if _, ok := s.c.Get(k); ok && !s.orphans.Has(k) {
			out = append(out, k)
		} else {
			s.keys.Delete(k)
		}
		return true
	})
	return out, nil
}

func (s *Store) Close(_ context.Context) error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Metrics exposes ristretto's counters (nil unless Config.Metrics).
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }
