package swrcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A store call failed and was swallowed. op ∈ {"get", "set", "remove", "list"}.
	StorageFailure(op, storageKey string, err error)

	// An entry could not be encoded on write or decoded on read.
	DecodeFailure(key string, err error)

	// A read found an expired (or unreadable) expiry marker and cleared the entry.
	ExpiredOnRead(key string)

	// A revalidation fetch failed; the cached value was left untouched.
	RevalidateFailure(key string, err error)

	// A revalidation result was dropped because a newer one already landed.
	WriteFenced(key string, ticket uint64)

	// PreloadCacheToMemory finished.
	Preloaded(requested, loaded int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StorageFailure(string, string, error) {}
func (NopHooks) DecodeFailure(string, error)          {}
func (NopHooks) ExpiredOnRead(string)                 {}
func (NopHooks) RevalidateFailure(string, error)      {}
func (NopHooks) WriteFenced(string, uint64)           {}
func (NopHooks) Preloaded(int, int)                   {}
