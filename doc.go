// Package swrcache is a two-tier client cache for stale-while-revalidate reads.
// Durable entries carry an optional expiry and are never returned once expired;
// an in-process mirror answers reads without waiting on storage.
//
// Components:
//   - Store: durable key/value adapter (bbolt, SQLite, Redis, in-memory...).
//   - Codec: (de)serializes values <-> []byte. JSON by default.
//   - Mirror: process-lifetime map of the last value written per key, seeded by
//     PreloadCacheToMemory and overwritten by every CacheData.
//   - Fence: optional per-key tickets that drop out-of-order revalidation writes.
//
// Keys:
//
//	akora_cache_<key>   - serialized value
//	akora_expiry_<key>  - expiry marker (Unix milliseconds, decimal text)
//
// Read path:
//
//	v, ok := swrcache.GetMemoryCacheSync[Feed](m, key)   // instant, may be stale
//	fresh, err := fetch(ctx)                              // canonical source
//	m.CacheData(ctx, key, fresh, swrcache.WithExpiry(2*time.Minute))
//
// Storage failures never escape the cache: they are logged, reported to Hooks
// and treated as a miss or a skipped write. Only fetch errors reach callers.
package swrcache
