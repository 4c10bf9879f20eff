// Package bootstrap turns a config.Config into a running cache: logger,
// store, codec, fence, hooks, Manager and, when a remote is configured, the
// community client.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/community"
	"github.com/unkn0wn-root/swrcache/config"
	"github.com/unkn0wn-root/swrcache/fence"
	"github.com/unkn0wn-root/swrcache/hooks/prom"
	zaplog "github.com/unkn0wn-root/swrcache/log/zap"
	"github.com/unkn0wn-root/swrcache/remote/supabase"
	"github.com/unkn0wn-root/swrcache/store"
	bigcachestore "github.com/unkn0wn-root/swrcache/store/bigcache"
	boltstore "github.com/unkn0wn-root/swrcache/store/bolt"
	"github.com/unkn0wn-root/swrcache/store/memory"
	redisstore "github.com/unkn0wn-root/swrcache/store/redis"
	ristrettostore "github.com/unkn0wn-root/swrcache/store/ristretto"
	sqlitestore "github.com/unkn0wn-root/swrcache/store/sqlite"
)

// App owns everything built from one config.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Manager *swrcache.Manager
	Client  *community.Client // nil without remote.url
	Backend *supabase.Backend // nil without remote.url

	redis goredis.UniversalClient
}

type Options struct {
	// Registerer receives the cache metrics when metrics are enabled;
	// nil => prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Logger overrides the zap logger built from cfg.Logging.
	Logger *zap.Logger
}

// New builds an App. On error everything opened so far is closed again.
func New(ctx context.Context, cfg *config.Config, opts Options) (app *App, err error) {
	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
			app = nil
		}
	}()

	app.Logger = opts.Logger
	if app.Logger == nil {
		if app.Logger, err = NewLogger(cfg.Logging); err != nil {
			return app, err
		}
	}
	log := zaplog.New(app.Logger)

	if cfg.Store.Driver == "redis" || cfg.Fence.Mode == "redis" {
		app.redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err = app.redis.Ping(ctx).Err(); err != nil {
			return app, fmt.Errorf("bootstrap: redis ping: %w", err)
		}
	}

	pair := store.Pairing{ValuePrefix: cfg.Cache.KeyPrefix, ExpiryPrefix: cfg.Cache.ExpiryPrefix}
	st, err := OpenStore(ctx, cfg.Store, pair, app.redis)
	if err != nil {
		return app, err
	}
	cd, err := NewCodec(cfg.Cache)
	if err != nil {
		_ = st.Close(ctx)
		return app, err
	}

	var hooks swrcache.Hooks
	if cfg.Metrics.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		h, herr := prom.New(reg, prom.Options{Namespace: cfg.Metrics.Namespace, Domain: DomainLabel})
		if herr != nil {
			_ = st.Close(ctx)
			return app, fmt.Errorf("bootstrap: metrics: %w", herr)
		}
		hooks = h
	}

	app.Manager, err = swrcache.New(swrcache.Options{
		Store:              st,
		Codec:              cd,
		Logger:             log,
		Hooks:              hooks,
		KeyPrefix:          cfg.Cache.KeyPrefix,
		ExpiryPrefix:       cfg.Cache.ExpiryPrefix,
		FetchExpiry:        cfg.Cache.FetchExpiry,
		PreloadConcurrency: cfg.Cache.PreloadConcurrency,
		Fence:              newFence(cfg.Fence, app.redis),
		Disabled:           cfg.Cache.Disabled,
	})
	if err != nil {
		_ = st.Close(ctx)
		return app, err
	}

	if cfg.Remote.URL != "" {
		b := cfg.Remote.Breaker
		app.Backend, err = supabase.New(supabase.Config{
			URL:      cfg.Remote.URL,
			Key:      cfg.Remote.Key,
			Schema:   cfg.Remote.Schema,
			PageSize: cfg.Remote.PageSize,
			Breaker: supabase.BreakerConfig{
				MaxRequests:      b.MaxRequests,
				Interval:         b.Interval,
				Timeout:          b.Timeout,
				FailureThreshold: b.FailureThreshold,
				MinRequests:      b.MinRequests,
			},
			Logger: log,
		})
		if err != nil {
			return app, err
		}
		app.Client = community.New(app.Manager, app.Backend, community.Options{
			Expiry: cfg.DomainExpiry(),
			Logger: log,
		})
	}

	app.Logger.Info("cache ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("codec", cfg.Cache.Codec),
		zap.String("fence", cfg.Fence.Mode),
		zap.Bool("enabled", app.Manager.Enabled()),
		zap.Bool("remote", app.Client != nil))
	return app, nil
}

// Close shuts down the manager (fence and store) and the shared redis client.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Manager != nil {
		errs = append(errs, a.Manager.Close(ctx))
	}
	if a.redis != nil {
		// a redis fence closes the client on its own
		if err := a.redis.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync() // stderr sync fails on some platforms
	}
	return errors.Join(errs...)
}

// NewLogger builds a zap logger: JSON production encoding, or the
// development console encoder when format is "console".
func NewLogger(cfg config.Logging) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: log level: %w", err)
	}
	zc.Level = lvl
	return zc.Build()
}

// OpenStore opens the configured store. rdb must be non-nil for the redis
// driver; the store does not take ownership of it. pair is used by the
// evicting drivers (bigcache, ristretto) to drop a value with its marker.
func OpenStore(ctx context.Context, cfg config.Store, pair store.Pairing, rdb goredis.UniversalClient) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "bolt":
		return boltstore.Open(boltstore.Config{Path: cfg.Path, Bucket: cfg.Bucket})
	case "sqlite":
		return sqlitestore.Open(ctx, sqlitestore.Config{DSN: cfg.DSN})
	case "redis":
		return redisstore.New(redisstore.Config{Client: rdb, Namespace: cfg.Redis.Namespace})
	case "bigcache":
		b := cfg.BigCache
		return bigcachestore.New(ctx, bigcachestore.Config{
			LifeWindow:         b.LifeWindow,
			CleanWindow:        b.CleanWindow,
			MaxEntriesInWindow: b.MaxEntriesInWindow,
			MaxEntrySize:       b.MaxEntrySize,
			HardMaxCacheSizeMB: b.HardMaxCacheSizeMB,
			Shards:             b.Shards,
			Pairing:            pair,
		})
	case "ristretto":
		r := cfg.Ristretto
		return ristrettostore.New(ristrettostore.Config{
			NumCounters: r.NumCounters,
			MaxCost:     r.MaxCost,
			BufferItems: r.BufferItems,
			Metrics:     r.Metrics,
			Pairing:     pair,
		})
	default:
		return nil, fmt.Errorf("bootstrap: unknown store driver %q", cfg.Driver)
	}
}

// NewCodec returns the value codec, size-limited when max_decode_bytes is set.
func NewCodec(cfg config.Cache) (codec.Codec, error) {
	var c codec.Codec
	switch cfg.Codec {
	case "", "json":
		c = codec.JSON{}
	case "cbor":
		cb, err := codec.NewCBOR(false)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: cbor: %w", err)
		}
		c = cb
	case "msgpack":
		c = codec.Msgpack{}
	case "protobuf":
		c = codec.Protobuf{}
	default:
		return nil, fmt.Errorf("bootstrap: unknown codec %q", cfg.Codec)
	}
	if cfg.MaxDecodeBytes > 0 {
		c = codec.Limit{Inner: c, MaxDecode: cfg.MaxDecodeBytes}
	}
	return c, nil
}

func newFence(cfg config.Fence, rdb goredis.UniversalClient) fence.Fence {
	switch cfg.Mode {
	case "local":
		return fence.NewLocal(cfg.CleanupInterval, cfg.Retention)
	case "redis":
		return fence.NewRedis(rdb, cfg.Namespace, cfg.TTL)
	default:
		return nil
	}
}

// DomainLabel maps a cache key to its community domain for metric labels.
func DomainLabel(key string) string {
	for _, d := range community.Domains {
		if len(key) > len(d) && key[:len(d)] == string(d) && key[len(d)] == '-' {
			return string(d)
		}
	}
	return "other"
}
