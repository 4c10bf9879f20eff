package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/swrcache/community"
)

const envPrefix = "SWRCACHE_"

// ApplyEnv overlays SWRCACHE_* variables read through lookup. Per-domain
// expiry uses SWRCACHE_EXPIRY_<DOMAIN>, e.g. SWRCACHE_EXPIRY_HOME_POSTS=3m.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	num := func(name string, dst *int) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, envPrefix+name)
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, envPrefix+name)
				return
			}
			*dst = d
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(envPrefix + name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, envPrefix+name)
				return
			}
			*dst = b
		}
	}

	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_PATH", &c.Store.Path)
	str("STORE_DSN", &c.Store.DSN)
	str("REDIS_ADDR", &c.Store.Redis.Addr)
	str("REDIS_PASSWORD", &c.Store.Redis.Password)
	num("REDIS_DB", &c.Store.Redis.DB)
	str("REDIS_NAMESPACE", &c.Store.Redis.Namespace)

	str("KEY_PREFIX", &c.Cache.KeyPrefix)
	str("EXPIRY_PREFIX", &c.Cache.ExpiryPrefix)
	str("CODEC", &c.Cache.Codec)
	dur("FETCH_EXPIRY", &c.Cache.FetchExpiry)
	num("PRELOAD_CONCURRENCY", &c.Cache.PreloadConcurrency)
	flag("DISABLED", &c.Cache.Disabled)

	str("FENCE_MODE", &c.Fence.Mode)

	str("REMOTE_URL", &c.Remote.URL)
	str("REMOTE_KEY", &c.Remote.Key)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	flag("METRICS_ENABLED", &c.Metrics.Enabled)

	for _, d := range community.Domains {
		name := "EXPIRY_" + strings.ToUpper(strings.ReplaceAll(string(d), "-", "_"))
		var v time.Duration
		dur(name, &v)
		if v == 0 {
			continue
		}
		if c.Expiry == nil {
			c.Expiry = make(map[string]time.Duration)
		}
		c.Expiry[string(d)] = v
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: malformed environment: %s", strings.Join(errs, ", "))
	}
	return nil
}
