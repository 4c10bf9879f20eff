// Package fence orders concurrent revalidations of the same cache key.
//
// Every fetch takes a ticket before it starts (Issue). When its result lands it
// asks to Commit the ticket; a commit succeeds only if no newer ticket has
// committed already, so a slow request can never overwrite the result of a
// faster one that started after it.
package fence

import (
	"context"
	"time"
)

// Fence abstracts where tickets live.
// Use Local for in-process fencing, or Redis when several processes share one store.
type Fence interface {
	// Issue returns a new ticket for key, strictly greater than any issued before.
	Issue(ctx context.Context, key string) (uint64, error)
	// Commit records ticket as landed and reports whether it is newer than
	// every ticket committed before for key.
	Commit(ctx context.Context, key string, ticket uint64) (bool, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
