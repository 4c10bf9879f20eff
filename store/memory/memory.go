// Package memory is a process-local store. Contents do not survive a restart;
// it is the default store and the one tests run against.
package memory

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/unkn0wn-root/swrcache/store"
)

var ErrClosed = errors.New("memory store: closed")

type Store struct {
	m      *xsync.MapOf[string, []byte]
	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{m: xsync.NewMapOf[string, []byte]()}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}
	v, ok := s.m.Load(key)
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.m.Store(key, clone(value))
	return nil
}

func (s *Store) RemoveMany(_ context.Context, keys []string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	for _, k := range keys {
		s.m.Delete(k)
	}
	return nil
}

func (s *Store) ListKeys(_ context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	keys := make([]string, 0, s.m.Size())
	s.m.Range(func(k string, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	return keys, nil
}

// Len reports the number of stored keys.
func (s *Store) Len() int { return s.m.Size() }

func (s *Store) Close(_ context.Context) error {
	s.closed.Store(true)
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
