package store

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// Pairing names the two keyspaces the cache writes in lockstep: a value under
// ValuePrefix+key and its expiry marker under ExpiryPrefix+key. Stores that
// evict on their own use it to drop both halves together, since a value whose
// marker was evicted would otherwise read as never expiring.
type Pairing struct {
	ValuePrefix  string
	ExpiryPrefix string
}

// Companion returns the other half of key's pair.
func (p Pairing) Companion(key string) (string, bool) {
	if p.ValuePrefix == "" || p.ExpiryPrefix == "" {
		return "", false
	}
	if rest, ok := strings.CutPrefix(key, p.ExpiryPrefix); ok {
		return p.ValuePrefix + rest, true
	}
	if rest, ok := strings.CutPrefix(key, p.ValuePrefix); ok {
		return p.ExpiryPrefix + rest, true
	}
	return "", false
}

// Orphans tracks keys whose companion was evicted. Eviction callbacks run
// inside the backing cache's own locks, so they only mark the survivor here;
// the store drops it on its next Get.
type Orphans struct {
	pair Pairing
	m    *xsync.MapOf[string, struct{}]
}

func NewOrphans(p Pairing) *Orphans {
	return &Orphans{pair: p, m: xsync.NewMapOf[string, struct{}]()}
}

// Evicted records that key left the store without being asked to.
func (o *Orphans) Evicted(key string) {
	if c, ok := o.pair.Companion(key); ok {
		o.m.Store(c, struct{}{})
	}
}

// Forget clears any mark on key; call it before writing or removing key.
func (o *Orphans) Forget(key string) { o.m.Delete(key) }

// Take reports whether key is orphaned and clears the mark.
func (o *Orphans) Take(key string) bool {
	_, ok := o.m.LoadAndDelete(key)
	return ok
}

// Has reports whether key is orphaned without clearing the mark.
func (o *Orphans) Has(key string) bool {
	_, ok := o.m.Load(key)
	return ok
}
