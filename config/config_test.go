package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/swrcache/community"
)

const sample = `
store:
  driver: bolt
  path: /var/lib/app/cache.db
cache:
  codec: cbor
  preload_concurrency: 4
fence:
  mode: local
expiry:
  profile: 1h
  home-config: -1s
remote:
  url: https://example.supabase.co
  key: anon
  breaker:
    failure_threshold: 0.5
logging:
  level: debug
`

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseMergesOverDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "swrcache", cfg.Store.Bucket, "default kept")
	assert.Equal(t, "cbor", cfg.Cache.Codec)
	assert.Equal(t, "akora_cache_", cfg.Cache.KeyPrefix)
	assert.Equal(t, 4, cfg.Cache.PreloadConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.Cache.FetchExpiry)
	assert.Equal(t, "local", cfg.Fence.Mode)
	assert.Equal(t, 0.5, cfg.Remote.Breaker.FailureThreshold)

	exp := cfg.DomainExpiry()
	assert.Equal(t, time.Hour, exp[community.Profile])
	assert.Equal(t, -time.Second, exp[community.HomeConfig])
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := Parse(strings.NewReader("store:\n  drvier: bolt\n"))
	require.Error(t, err)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Store.Driver = "etcd" }, "Driver"},
		{"bolt without path", func(c *Config) { c.Store.Driver = "bolt" }, "Path"},
		{"sqlite without dsn", func(c *Config) { c.Store.Driver = "sqlite" }, "DSN"},
		{"redis without addr", func(c *Config) { c.Store.Driver = "redis" }, "redis.addr"},
		{"redis fence without addr", func(c *Config) { c.Fence.Mode = "redis" }, "redis.addr"},
		{"equal prefixes", func(c *Config) { c.Cache.ExpiryPrefix = c.Cache.KeyPrefix }, "ExpiryPrefix"},
		{"overlapping prefixes", func(c *Config) { c.Cache.KeyPrefix = "akora_" }, "overlap"},
		{"bad codec", func(c *Config) { c.Cache.Codec = "xml" }, "Codec"},
		{"negative fetch expiry", func(c *Config) { c.Cache.FetchExpiry = -time.Second }, "fetch_expiry"},
		{"unknown domain", func(c *Config) { c.Expiry = map[string]time.Duration{"feed": time.Minute} }, "feed"},
		{"remote url without key", func(c *Config) { c.Remote.URL = "https://x.supabase.co" }, "Key"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestProtobufCodecAccepted(t *testing.T) {
	cfg := Default()
	cfg.Cache.Codec = "protobuf"
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"SWRCACHE_STORE_DRIVER":         "redis",
		"SWRCACHE_REDIS_ADDR":           "localhost:6379",
		"SWRCACHE_REDIS_DB":             "2",
		"SWRCACHE_DISABLED":             "true",
		"SWRCACHE_EXPIRY_HOME_POSTS":    "3m",
		"SWRCACHE_EXPIRY_DISCOVER_FEED": "",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.True(t, cfg.Cache.Disabled)
	assert.Equal(t, 3*time.Minute, cfg.Expiry["home-posts"])
	_, ok := cfg.Expiry["discover-feed"]
	assert.False(t, ok)
}

func TestApplyEnvMalformed(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"SWRCACHE_REDIS_DB":       "two",
		"SWRCACHE_EXPIRY_PROFILE": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SWRCACHE_REDIS_DB")
	assert.Contains(t, err.Error(), "SWRCACHE_EXPIRY_PROFILE")
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	t.Setenv("SWRCACHE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Logging.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
