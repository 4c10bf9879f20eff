package fence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// commitScript sets KEYS[1] to ARGV[1] iff ARGV[1] is greater than the stored
// value. ARGV[2] is an optional TTL in milliseconds.
var commitScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local t = tonumber(ARGV[1])
if t <= cur then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// Redis shares tickets across processes and survives restarts.
// Optionally, a TTL can be applied to ticket keys to prevent unbounded growth.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ Fence = (*Redis)(nil)

// NewRedis creates a Redis-backed fence. If ttl <= 0, keys do not expire.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) issuedKey(k string) string    { return "fence:" + s.ns + ":" + k + ":issued" }
func (s *Redis) committedKey(k string) string { return "fence:" + s.ns + ":" + k + ":committed" }

// Issue atomically increments the ticket counter and (optionally) refreshes TTL.
func (s *Redis) Issue(ctx context.Context, key string) (uint64, error) {
	k := s.issuedKey(key)
	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}

	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.PExpire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

func (s *Redis) Commit(ctx context.Context, key string, ticket uint64) (bool, error) {
	n, err := commitScript.Run(ctx, s.rdb, []string{s.committedKey(key)}, ticket, s.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis fence commit: %w", err)
	}
	return n == 1, nil
}

// Cleanup is not applicable for Redis (Redis handles expiry if TTL is set).
func (s *Redis) Cleanup(time.Duration) {}

// Close closes the underlying Redis client.
func (s *Redis) Close(context.Context) error { return s.rdb.Close() }
