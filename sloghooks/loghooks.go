// Package sloghooks reports swrcache events through log/slog. Keys are
// redacted because domain keys embed user ids.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/swrcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ExpiredEvery    uint64
	RevalidateEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	expiredCtr    atomic.Uint64
	revalidateCtr atomic.Uint64
}

var _ swrcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StorageFailure(op, storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("swrcache.storage_failure",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) DecodeFailure(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("swrcache.decode_failure",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ExpiredOnRead(key string) {
	if h.l == nil || !sample(h.opts.ExpiredEvery, &h.expiredCtr) {
		return
	}
	h.l.Debug("swrcache.expired_on_read", "key", h.redact(key))
}

func (h *Hooks) RevalidateFailure(key string, err error) {
	if h.l == nil || !sample(h.opts.RevalidateEvery, &h.revalidateCtr) {
		return
	}
	h.l.Info("swrcache.revalidate_failure",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) WriteFenced(key string, ticket uint64) {
	if h.l == nil {
		return
	}
	h.l.Debug("swrcache.write_fenced",
		"key", h.redact(key),
		"ticket", ticket)
}

func (h *Hooks) Preloaded(requested, loaded int) {
	if h.l == nil {
		return
	}
	h.l.Info("swrcache.preloaded",
		"requested", requested,
		"loaded", loaded)
}
