// Package prom counts swrcache events with Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/swrcache"
)

type Options struct {
	Namespace string // "" => "swrcache"
	// Domain maps a cache key to a low-cardinality label such as
	// "home-posts". nil labels everything "all".
	Domain func(key string) string
}

// Hooks implements swrcache.Hooks. Register it once per registry.
type Hooks struct {
	domain func(string) string

	storageFailures    *prometheus.CounterVec
	decodeFailures     *prometheus.CounterVec
	expiredOnRead      *prometheus.CounterVec
	revalidateFailures *prometheus.CounterVec
	writesFenced       *prometheus.CounterVec
	preloadRequested   prometheus.Counter
	preloadLoaded      prometheus.Counter
}

var _ swrcache.Hooks = (*Hooks)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, opts Options) (*Hooks, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = "swrcache"
	}
	dom := opts.Domain
	if dom == nil {
		dom = func(string) string { return "all" }
	}
	h := &Hooks{
		domain: dom,
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "storage_failures_total",
			Help:      "Store calls that failed and were swallowed.",
		}, []string{"op"}),
		decodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "decode_failures_total",
			Help:      "Entries that could not be encoded or decoded.",
		}, []string{"domain"}),
		expiredOnRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "expired_on_read_total",
			Help:      "Reads that found an expired entry and cleared it.",
		}, []string{"domain"}),
		revalidateFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "revalidate_failures_total",
			Help:      "Background fetches that failed.",
		}, []string{"domain"}),
		writesFenced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "writes_fenced_total",
			Help:      "Fetch results dropped because a newer one already landed.",
		}, []string{"domain"}),
		preloadRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "preload_requested_keys_total",
			Help:      "Keys asked for by preload passes.",
		}),
		preloadLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "preload_loaded_keys_total",
			Help:      "Keys copied into the in-memory mirror by preload passes.",
		}),
	}
	for _, c := range []prometheus.Collector{
		h.storageFailures, h.decodeFailures, h.expiredOnRead,
		h.revalidateFailures, h.writesFenced, h.preloadRequested, h.preloadLoaded,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) StorageFailure(op, _ string, _ error) {
	h.storageFailures.WithLabelValues(op).Inc()
}

func (h *Hooks) DecodeFailure(key string, _ error) {
	h.decodeFailures.WithLabelValues(h.domain(key)).Inc()
}

func (h *Hooks) ExpiredOnRead(key string) {
	h.expiredOnRead.WithLabelValues(h.domain(key)).Inc()
}

func (h *Hooks) RevalidateFailure(key string, _ error) {
	h.revalidateFailures.WithLabelValues(h.domain(key)).Inc()
}

func (h *Hooks) WriteFenced(key string, _ uint64) {
	h.writesFenced.WithLabelValues(h.domain(key)).Inc()
}

func (h *Hooks) Preloaded(requested, loaded int) {
	h.preloadRequested.Add(float64(requested))
	h.preloadLoaded.Add(float64(loaded))
}
