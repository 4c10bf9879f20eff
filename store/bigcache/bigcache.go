// Package bigcache is a volatile, GC-friendly store for large payloads
// (long feeds). Entries disappear on restart and after LifeWindow. When
// Config.Pairing is set, a value and its expiry marker leave together.
package bigcache

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/swrcache/store"
)

type Store struct {
	c       *bc.BigCache
	orphans *store.Orphans
}

var _ store.Store = (*Store)(nil)

type Config struct {
	LifeWindow         time.Duration // 0 => 24h
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
	Shards             int // power of two; 0 => bigcache default
	Pairing            store.Pairing
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	conf.Verbose = false

	s := &Store{orphans: store.NewOrphans(cfg.Pairing)}
	// runs under the shard lock; only mark, never call back into the cache
	conf.OnRemoveWithReason = func(key string, _ []byte, _ bc.RemoveReason) {
		s.orphans.Evicted(key)
	}
	conf = conf.OnRemoveFilterSet(bc.Expired, bc.NoSpace)

	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	s.c = c
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.orphans.Take(key) {
		if err := s.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
			return nil, false, err
		}
		return nil, false, nil
	}
	b, err := s.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.orphans.Forget(key)
	return s.c.Set(key, value)
}

func (s *Store) RemoveMany(_ context.Context, keys []string) error {
	var errs []error
	for _, k := range keys {
		s.orphans.Forget(k)
		if err := s.c.Delete(k); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	var keys []string
	it := s.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			// entry evicted between SetNext and Value
			continue
		}
		if s.orphans.Has(info.Key()) {
			continue
		}
		keys = append(keys, info.Key())
	}
	return keys, nil
}

func (s *Store) Close(_ context.Context) error {
	return s.c.Close()
}
