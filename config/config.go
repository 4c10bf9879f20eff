// Package config loads the application-side settings for a cache deployment:
// which store backs it, key prefixes, fencing, per-domain expiry, logging and
// the remote backend. Files are YAML; SWRCACHE_* environment variables win.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/community"
)

type Config struct {
	Store   Store                    `yaml:"store"`
	Cache   Cache                    `yaml:"cache"`
	Fence   Fence                    `yaml:"fence"`
	Expiry  map[string]time.Duration `yaml:"expiry"` // domain -> expiry; negative = never expires
	Remote  Remote                   `yaml:"remote"`
	Logging Logging                  `yaml:"logging"`
	Metrics Metrics                  `yaml:"metrics"`
}

type Store struct {
	Driver    string    `yaml:"driver" validate:"required,oneof=memory bolt sqlite redis bigcache ristretto"`
	Path      string    `yaml:"path" validate:"required_if=Driver bolt"`
	Bucket    string    `yaml:"bucket"`
	DSN       string    `yaml:"dsn" validate:"required_if=Driver sqlite"`
	Redis     Redis     `yaml:"redis"`
	BigCache  BigCache  `yaml:"bigcache"`
	Ristretto Ristretto `yaml:"ristretto"`
}

type Redis struct {
	Addr      string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db" validate:"gte=0,lte=15"`
	Namespace string `yaml:"namespace"`
}

type BigCache struct {
	LifeWindow         time.Duration `yaml:"life_window"`
	CleanWindow        time.Duration `yaml:"clean_window"`
	MaxEntriesInWindow int           `yaml:"max_entries_in_window" validate:"gte=0"`
	MaxEntrySize       int           `yaml:"max_entry_size" validate:"gte=0"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb" validate:"gte=0"`
	Shards             int           `yaml:"shards" validate:"gte=0"`
}

type Ristretto struct {
	NumCounters int64 `yaml:"num_counters" validate:"gt=0"`
	MaxCost     int64 `yaml:"max_cost" validate:"gt=0"`
	BufferItems int64 `yaml:"buffer_items" validate:"gt=0"`
	Metrics     bool  `yaml:"metrics"`
}

type Cache struct {
	KeyPrefix          string        `yaml:"key_prefix" validate:"required"`
	ExpiryPrefix       string        `yaml:"expiry_prefix" validate:"required,nefield=KeyPrefix"`
	Codec              string        `yaml:"codec" validate:"oneof=json cbor msgpack protobuf"`
	MaxDecodeBytes     int           `yaml:"max_decode_bytes" validate:"gte=0"`
	FetchExpiry        time.Duration `yaml:"fetch_expiry"`
	PreloadConcurrency int           `yaml:"preload_concurrency" validate:"gte=0,lte=256"`
	Disabled           bool          `yaml:"disabled"`
}

type Fence struct {
	Mode            string        `yaml:"mode" validate:"oneof=off local redis"`
	Namespace       string        `yaml:"namespace"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Retention       time.Duration `yaml:"retention"`
}

type Remote struct {
	URL      string  `yaml:"url" validate:"omitempty,url"`
	Key      string  `yaml:"key" validate:"required_with=URL"`
	Schema   string  `yaml:"schema"`
	PageSize int     `yaml:"page_size" validate:"gte=0,lte=1000"`
	Breaker  Breaker `yaml:"breaker"`
}

type Breaker struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests"`
}

type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default returns a configuration that runs without any file: an in-process
// memory store, JSON values and the persisted key prefixes.
func Default() *Config {
	return &Config{
		Store: Store{
			Driver: "memory",
			Bucket: "swrcache",
			Ristretto: Ristretto{
				NumCounters: 100_000,
				MaxCost:     64 << 20,
				BufferItems: 64,
			},
		},
		Cache: Cache{
			KeyPrefix:          swrcache.DefaultKeyPrefix,
			ExpiryPrefix:       swrcache.DefaultExpiryPrefix,
			Codec:              "json",
			FetchExpiry:        5 * time.Minute,
			PreloadConcurrency: 8,
		},
		Fence: Fence{
			Mode:            "off",
			Namespace:       "swrcache",
			CleanupInterval: 10 * time.Minute,
			Retention:       time.Hour,
		},
		Remote: Remote{PageSize: 50},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Metrics: Metrics{Namespace: "swrcache"},
	}
}

// Load reads path (skipped when empty), applies the process environment and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse is Load for an already open document, without environment overrides.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the cross-section rules the struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if (c.Store.Driver == "redis" || c.Fence.Mode == "redis") && c.Store.Redis.Addr == "" {
		return errors.New("config: invalid: store.redis.addr is required for redis store or fence")
	}
	if kp, ep := c.Cache.KeyPrefix, c.Cache.ExpiryPrefix; strings.HasPrefix(kp, ep) || strings.HasPrefix(ep, kp) {
		return errors.New("config: invalid: cache.key_prefix and cache.expiry_prefix must not overlap")
	}
	if c.Cache.FetchExpiry < 0 {
		return errors.New("config: invalid: cache.fetch_expiry must not be negative")
	}
	for name := range c.Expiry {
		if !knownDomain(name) {
			return fmt.Errorf("config: invalid: unknown expiry domain %q", name)
		}
	}
	return nil
}

// DomainExpiry converts the expiry section for community.Options.
func (c *Config) DomainExpiry() map[community.Domain]time.Duration {
	out := make(map[community.Domain]time.Duration, len(c.Expiry))
	for name, d := range c.Expiry {
		out[community.Domain(name)] = d
	}
	return out
}

func knownDomain(name string) bool {
	for _, d := range community.Domains {
		if string(d) == name {
			return true
		}
	}
	return false
}
