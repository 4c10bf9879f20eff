package swrcache

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/fence"
	"github.com/unkn0wn-root/swrcache/store"
)

// Manager owns the store, the mirror and the expiry rules. It is safe for
// concurrent use; one instance normally lives for the whole process.
type Manager struct {
	store       store.Store
	codec       c.Codec
	fence       fence.Fence
	mirror      *mirror
	log         Logger
	hooks       Hooks
	now         func() time.Time
	enabled     bool
	valuePrefix string
	expPrefix   string

	fetchExpiry        time.Duration
	preloadConcurrency int

	flight singleflight.Group
}

func (m *Manager) Enabled() bool { return m.enabled }

// Close releases the fence and the store.
func (m *Manager) Close(ctx context.Context) error {
	if m.fence != nil {
		_ = m.fence.Close(ctx) // best effort
	}
	return m.store.Close(ctx)
}

// CacheData serializes data and writes it under key, with an expiry marker
// when WithExpiry is given. On success the mirror is updated too.
// Failures are logged and swallowed.
func (m *Manager) CacheData(ctx context.Context, key string, data any, opts ...WriteOption) {
	if !m.enabled {
		return
	}
	o := applyWriteOptions(opts)
	payload, err := m.codec.Encode(data)
	if err != nil {
		m.hooks.DecodeFailure(key, err)
		m.log.Warn("cache encode failed", errFields(key, err))
		return
	}

	// the marker goes first: a reader that sees the old, expired marker
	// between the two writes must not clear the new value
	vk, ek := m.valueKey(key), m.expiryKey(key)
	if o.expiry > 0 {
		expiresAt := m.now().Add(o.expiry).UnixMilli()
		if err := m.store.Set(ctx, ek, []byte(strconv.FormatInt(expiresAt, 10))); err != nil {
			m.storageFailure("set", ek, err)
			// the value being replaced is stale; do not leave it readable
			if err := m.store.RemoveMany(ctx, []string{vk}); err != nil {
				m.storageFailure("remove", vk, err)
			}
			return
		}
	} else if err := m.store.RemoveMany(ctx, []string{ek}); err != nil {
		// drop a marker left by an earlier write with expiry
		m.storageFailure("remove", ek, err)
	}

	if err := m.store.Set(ctx, vk, payload); err != nil {
		m.storageFailure("set", vk, err)
		// the new marker must not extend the old value's life
		if err := m.store.RemoveMany(ctx, []string{vk, ek}); err != nil {
			m.storageFailure("remove", vk, err)
		}
		return
	}

	m.mirror.set(key, payload)
}

// GetCachedData returns the live value stored under key. Expired entries are
// deleted and reported as a miss; so are unreadable ones.
func GetCachedData[V any](ctx context.Context, m *Manager, key string) (V, bool) {
	var zero V
	raw, ok := m.getCachedRaw(ctx, key)
	if !ok {
		return zero, false
	}
	var v V
	if err := m.codec.Decode(raw, &v); err != nil {
		m.hooks.DecodeFailure(key, err)
		m.log.Debug("cache decode failed; treating as miss", errFields(key, err))
		return zero, false
	}
	return v, true
}

// ClearCache removes the value and its expiry marker. Clearing an absent key
// is a no-op.
func (m *Manager) ClearCache(ctx context.Context, key string) {
	if !m.enabled {
		return
	}
	keys := []string{m.valueKey(key), m.expiryKey(key)}
	if err := m.store.RemoveMany(ctx, keys); err != nil {
		m.storageFailure("remove", keys[0], err)
	}
}

// ClearAllCache removes every cache-owned key (value and expiry prefixes) and
// leaves other keys in the store alone. It returns how many keys were removed.
func (m *Manager) ClearAllCache(ctx context.Context) int {
	return m.ClearMatching(ctx, "")
}

// ClearMatching is ClearAllCache restricted to cache keys starting with
// keyPrefix, e.g. "discover-feed-42-" for every discover category of one user.
func (m *Manager) ClearMatching(ctx context.Context, keyPrefix string) int {
	if !m.enabled {
		return 0
	}
	all, err := m.store.ListKeys(ctx)
	if err != nil {
		m.storageFailure("list", "", err)
		return 0
	}
	vp, ep := m.valuePrefix+keyPrefix, m.expPrefix+keyPrefix
	var doomed []string
	for _, k := range all {
		if strings.HasPrefix(k, vp) || strings.HasPrefix(k, ep) {
			doomed = append(doomed, k)
		}
	}
	if len(doomed) == 0 {
		return 0
	}
	if err := m.store.RemoveMany(ctx, doomed); err != nil {
		m.storageFailure("remove", "", err)
		return 0
	}
	m.log.Debug("cleared cache keys", Fields{"prefix": keyPrefix, "removed": len(doomed)})
	return len(doomed)
}

// Keys lists the cache keys (prefix stripped) that have a stored value,
// sorted. Expiry markers are not consulted.
func (m *Manager) Keys(ctx context.Context) ([]string, error) {
	if !m.enabled {
		return nil, ErrDisabled
	}
	all, err := m.store.ListKeys(ctx)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	var out []string
	for _, k := range all {
		if key, ok := strings.CutPrefix(k, m.valuePrefix); ok {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out, nil
}

// GetCachedOrFetch returns the live cached value, or calls fetch, caches its
// result (5 minute expiry unless opts say otherwise) and returns it.
// Concurrent misses on one key share a single fetch; each caller stops
// waiting when its own ctx is done. If the caller that started the shared
// fetch gives up, the others run theirs. Fetch errors are returned as-is and
// nothing is cached.
func GetCachedOrFetch[V any](ctx context.Context, m *Manager, key string, fetch FetchFunc[V], opts ...WriteOption) (V, error) {
	var zero V
	if !m.enabled {
		return fetch(ctx)
	}
	if v, ok := GetCachedData[V](ctx, m, key); ok {
		return v, nil
	}

	if !applyWriteOptions(opts).expirySet {
		opts = append([]WriteOption{WithExpiry(m.fetchExpiry)}, opts...)
	}
	for {
		var mine bool
		ch := m.flight.DoChan(key, func() (any, error) {
			mine = true
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			// the write lands even if the caller stopped waiting
			m.CacheData(context.WithoutCancel(ctx), key, v, opts...)
			return v, nil
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res = <-ch:
		}
		if res.Err != nil {
			if !mine && ctx.Err() == nil && isContextErr(res.Err) {
				// the flight died with another caller's context; ours is live
				continue
			}
			return zero, res.Err
		}
		if v, ok := res.Val.(V); ok {
			return v, nil
		}
		// the shared flight was started by a caller asking for another type
		return convert[V](m.codec, res.Val)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// PreloadCacheToMemory copies the live entries for keys from the store into
// the mirror so later GetMemoryCacheSync calls answer without I/O. Keys
// already written this process are left alone. Returns how many keys loaded.
func (m *Manager) PreloadCacheToMemory(ctx context.Context, keys []string) int {
	if !m.enabled || len(keys) == 0 {
		return 0
	}
	var loaded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.preloadConcurrency)
	for _, k := range keys {
		k := k
		g.Go(func() error {
			raw, ok := m.getCachedRaw(gctx, k)
			if !ok {
				return nil
			}
			if m.mirror.seed(k, raw) {
				loaded.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait() // workers never fail

	n := int(loaded.Load())
	m.hooks.Preloaded(len(keys), n)
	m.log.Debug("preloaded cache into memory", Fields{"requested": len(keys), "loaded": n})
	return n
}

// BeginWrite takes a fence ticket for key. Call it before fetching and pass
// the ticket to CacheDataFenced. Without a configured Fence it returns 0.
func (m *Manager) BeginWrite(ctx context.Context, key string) uint64 {
	if m.fence == nil || !m.enabled {
		return 0
	}
	t, err := m.fence.Issue(ctx, key)
	if err != nil {
		m.log.Warn("fence issue failed; write will not be fenced", errFields(key, err))
		return 0
	}
	return t
}

// CacheDataFenced is CacheData guarded by a ticket from BeginWrite: the write
// is dropped (and false returned) if a newer ticket already committed.
// Ticket 0 or a fence failure falls back to last-write-wins.
func (m *Manager) CacheDataFenced(ctx context.Context, key string, data any, ticket uint64, opts ...WriteOption) bool {
	if !m.enabled {
		return false
	}
	if m.fence != nil && ticket != 0 {
		ok, err := m.fence.Commit(ctx, key, ticket)
		switch {
		case err != nil:
			m.log.Warn("fence commit failed; writing anyway", errFields(key, err))
		case !ok:
			m.hooks.WriteFenced(key, ticket)
			m.log.Debug("write skipped (newer result already landed)", Fields{"key": key, "ticket": ticket})
			return false
		}
	}
	m.CacheData(ctx, key, data, opts...)
	return true
}

// ReportRevalidateFailure records a failed background fetch for key.
func (m *Manager) ReportRevalidateFailure(key string, err error) {
	m.hooks.RevalidateFailure(key, err)
	m.log.Warn("revalidate failed; keeping cached value", errFields(key, err))
}

// getCachedRaw checks the expiry marker first and clears the entry when it
// has passed. Store errors count as a miss.
func (m *Manager) getCachedRaw(ctx context.Context, key string) ([]byte, bool) {
	if !m.enabled {
		return nil, false
	}
	ek := m.expiryKey(key)
	marker, ok, err := m.store.Get(ctx, ek)
	if err != nil {
		m.storageFailure("get", ek, err)
		return nil, false
	}
	if ok {
		expiresAt, perr := parseExpiry(marker)
		if perr != nil || !m.now().Before(expiresAt) {
			m.hooks.ExpiredOnRead(key)
			m.ClearCache(ctx, key)
			return nil, false
		}
	}

	vk := m.valueKey(key)
	raw, ok, err := m.store.Get(ctx, vk)
	if err != nil {
		m.storageFailure("get", vk, err)
		return nil, false
	}
	return raw, ok
}

func (m *Manager) storageFailure(op, storageKey string, err error) {
	m.hooks.StorageFailure(op, storageKey, err)
	m.log.Warn("cache store failure", Fields{"err": (&StorageError{Op: op, Key: storageKey, Err: err}).Error()})
}

func (m *Manager) valueKey(key string) string  { return m.valuePrefix + key }
func (m *Manager) expiryKey(key string) string { return m.expPrefix + key }

var errBadExpiry = errors.New("swrcache: malformed expiry marker")

func parseExpiry(b []byte) (time.Time, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return time.Time{}, errBadExpiry
	}
	return time.UnixMilli(ms), nil
}
