package swrcache

import (
	"github.com/puzpuzpuz/xsync/v3"

	c "github.com/unkn0wn-root/swrcache/codec"
)

// mirror is the process-lifetime, zero-I/O copy of cached values. It keeps
// the encoded form only, so every reader decodes its own copy and nothing a
// caller does to a returned value reaches the mirror. Entries are only ever
// overwritten, never evicted.
type mirror struct {
	m *xsync.MapOf[string, []byte]
}

func newMirror() *mirror {
	return &mirror{m: xsync.NewMapOf[string, []byte]()}
}

func (mr *mirror) set(key string, raw []byte) { mr.m.Store(key, raw) }

// seed stores raw bytes unless the key was already written this process.
func (mr *mirror) seed(key string, raw []byte) bool {
	_, loaded := mr.m.LoadOrStore(key, raw)
	return !loaded
}

func (mr *mirror) len() int { return mr.m.Size() }

// SetMemoryCacheSync overwrites the mirror entry for key. CacheData already
// does this; call it directly only to seed values that bypass the store.
// Values the codec cannot encode are not stored.
func (m *Manager) SetMemoryCacheSync(key string, value any) {
	raw, err := m.codec.Encode(value)
	if err != nil {
		m.hooks.DecodeFailure(key, err)
		m.log.Warn("mirror encode failed", errFields(key, err))
		return
	}
	m.mirror.set(key, raw)
}

// MirrorLen reports how many keys the mirror holds.
func (m *Manager) MirrorLen() int { return m.mirror.len() }

// GetMemoryCacheSync returns the mirror value for key without touching the
// store. It never blocks on I/O and is safe to call from render paths. The
// value is decoded through the Manager's codec on each call and belongs to
// the caller.
func GetMemoryCacheSync[V any](m *Manager, key string) (V, bool) {
	var zero V
	raw, ok := m.mirror.m.Load(key)
	if !ok {
		return zero, false
	}
	var v V
	if err := m.codec.Decode(raw, &v); err != nil {
		m.hooks.DecodeFailure(key, err)
		return zero, false
	}
	return v, true
}

// convert re-shapes val into V via an encode/decode round trip.
func convert[V any](codec c.Codec, val any) (V, error) {
	var v V
	b, err := codec.Encode(val)
	if err != nil {
		return v, err
	}
	err = codec.Decode(b, &v)
	return v, err
}
