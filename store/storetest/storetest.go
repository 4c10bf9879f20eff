// Package storetest holds the behavioural suite every store adapter must pass.
package storetest

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/swrcache/store"
)

// Run exercises the store.Store contract against adapters built by newStore.
// Each subtest gets a fresh store; Run closes it afterwards.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	fresh := func(t *testing.T) store.Store {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	}

	t.Run("MissReturnsNotOK", func(t *testing.T) {
		s := fresh(t)
		v, ok, err := s.Get(context.Background(), "absent")
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, v)
	})

	t.Run("SetGetRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		s := fresh(t)
		payload := []byte(`{"name":"Ama"}`)
		require.NoError(t, s.Set(ctx, "akora_cache_profile-42", payload))

		got, ok, err := s.Get(ctx, "akora_cache_profile-42")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, payload, got)
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		ctx := context.Background()
		s := fresh(t)
		require.NoError(t, s.Set(ctx, "k", []byte("one")))
		require.NoError(t, s.Set(ctx, "k", []byte("two")))

		got, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "two", string(got))
	})

	t.Run("RemoveManyIgnoresAbsent", func(t *testing.T) {
		ctx := context.Background()
		s := fresh(t)
		require.NoError(t, s.Set(ctx, "a", []byte("1")))
		require.NoError(t, s.Set(ctx, "b", []byte("2")))
		require.NoError(t, s.RemoveMany(ctx, []string{"a", "never-set"}))
		require.NoError(t, s.RemoveMany(ctx, nil))

		_, ok, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.False(t, ok)
		_, ok, err = s.Get(ctx, "b")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("ListKeys", func(t *testing.T) {
		ctx := context.Background()
		s := fresh(t)
		want := []string{"akora_cache_x", "akora_expiry_x", "settings"}
		for _, k := range want {
			require.NoError(t, s.Set(ctx, k, []byte("v")))
		}
		got, err := s.ListKeys(ctx)
		require.NoError(t, err)
		sort.Strings(got)
		require.Equal(t, want, got)
	})
}
