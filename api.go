package swrcache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	c "github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/fence"
	"github.com/unkn0wn-root/swrcache/store"
	"github.com/unkn0wn-root/swrcache/store/memory"
)

const (
	DefaultKeyPrefix    = "akora_cache_"
	DefaultExpiryPrefix = "akora_expiry_"

	defaultFetchExpiry        = 5 * time.Minute
	defaultPreloadConcurrency = 8
)

// FetchFunc loads the canonical value for a key from the remote source.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Options tune the Manager. Every field is optional.
type Options struct {
	Store store.Store // nil => in-process memory store (nothing survives restart)
	Codec c.Codec     // nil => codec.JSON

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// Persisted key prefixes. Changing them orphans existing entries.
	KeyPrefix    string // "" => "akora_cache_"
	ExpiryPrefix string // "" => "akora_expiry_"

	FetchExpiry        time.Duration    // GetCachedOrFetch default; 0 => 5m
	PreloadConcurrency int              // 0 => 8
	Fence              fence.Fence      // nil => last write wins
	Now                func() time.Time // nil => time.Now; tests inject a clock
	Disabled           bool             // default false (enabled)
}

// New builds an isolated Manager. Most programs build one at startup and
// register it with SetDefault.
func New(opts Options) (*Manager, error) {
	m := &Manager{
		store:       opts.Store,
		codec:       opts.Codec,
		fence:       opts.Fence,
		enabled:     !opts.Disabled,
		mirror:      newMirror(),
		now:         opts.Now,
		valuePrefix: coalesce(opts.KeyPrefix, DefaultKeyPrefix),
		expPrefix:   coalesce(opts.ExpiryPrefix, DefaultExpiryPrefix),
	}
	// one prefix inside the other would make markers look like values
	if strings.HasPrefix(m.valuePrefix, m.expPrefix) || strings.HasPrefix(m.expPrefix, m.valuePrefix) {
		return nil, errors.New("swrcache: key prefix and expiry prefix must not overlap")
	}
	if opts.FetchExpiry < 0 {
		return nil, errors.New("swrcache: fetch expiry must not be negative")
	}

	if m.store == nil {
		m.store = memory.New()
	}
	if m.codec == nil {
		m.codec = c.JSON{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	m.fetchExpiry = coalesce(opts.FetchExpiry, defaultFetchExpiry)
	m.preloadConcurrency = coalesce(opts.PreloadConcurrency, defaultPreloadConcurrency)
	if m.preloadConcurrency < 0 {
		m.preloadConcurrency = defaultPreloadConcurrency
	}
	return m, nil
}

var defaultManager atomic.Pointer[Manager]

// Default returns the process-wide Manager. If none was registered with
// SetDefault, an in-memory one is created on first use.
func Default() *Manager {
	if m := defaultManager.Load(); m != nil {
		return m
	}
	m, _ := New(Options{}) // default options cannot fail
	if defaultManager.CompareAndSwap(nil, m) {
		return m
	}
	return defaultManager.Load()
}

// SetDefault registers m as the process-wide Manager returned by Default.
func SetDefault(m *Manager) { defaultManager.Store(m) }

// WriteOption configures a single CacheData call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	expiry    time.Duration
	expirySet bool
}

// WithExpiry makes the entry expire d after the write. d <= 0 means the entry
// never expires by time.
func WithExpiry(d time.Duration) WriteOption {
	return func(o *writeOptions) {
		o.expiry = d
		o.expirySet = true
	}
}

// WithExpiryMinutes is WithExpiry in whole minutes.
func WithExpiryMinutes(n int) WriteOption {
	return WithExpiry(time.Duration(n) * time.Minute)
}

func applyWriteOptions(opts []WriteOption) writeOptions {
	var o writeOptions
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
