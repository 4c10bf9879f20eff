package swrcache

import (
	"errors"
	"fmt"
)

// ErrDisabled is returned by operations that need the cache while it is disabled.
var ErrDisabled = errors.New("swrcache: disabled")

// StorageError describes a failed store call. The cache never returns it to
// callers; it reaches Logger and Hooks.StorageFailure only.
type StorageError struct {
	Op  string // get | set | remove | list
	Key string // storage key; empty for list
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("swrcache: store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("swrcache: store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
