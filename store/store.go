// Package store defines the durable key/value abstraction underneath swrcache.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// bytes previously passed to Set for a key. Values are already serialized by
// the cache (JSON by default); adapters never interpret them.
//
// The keyspaces "akora_cache_" and "akora_expiry_" (or whatever prefixes the
// cache is configured with) are owned by swrcache. ClearAllCache deletes every
// key carrying those prefixes and nothing else, so other application state may
// share the same store.
package store

import (
	"context"
	"errors"
)

// ErrRejected is returned by bounded stores that refused a write under pressure.
var ErrRejected = errors.New("store: write rejected")

// Store is a minimal durable key/value store. Must be safe for concurrent use.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// RemoveMany deletes keys (best-effort). Absent keys are not an error.
	RemoveMany(ctx context.Context, keys []string) error

	// ListKeys returns every key currently held by the store.
	ListKeys(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
