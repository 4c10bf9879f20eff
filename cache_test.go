package swrcache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/fence"
	"github.com/unkn0wn-root/swrcache/store"
)

type fakeStore struct {
	mu sync.Mutex
	m  map[string][]byte

	failGet, failSet, failRemove, failList bool
	failSetPrefix                          string // only Set calls on keys with this prefix fail
	removeCalls                            int
	afterSet                               func(key string)
}

var _ store.Store = (*fakeStore)(nil)

var errBoom = errors.New("boom")

func newFakeStore() *fakeStore { return &fakeStore{m: make(map[string][]byte)} }

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, false, errBoom
	}
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet || (s.failSetPrefix != "" && strings.HasPrefix(key, s.failSetPrefix)) {
		return errBoom
	}
	s.m[key] = append([]byte(nil), value...)
	if fn := s.afterSet; fn != nil {
		s.afterSet = nil
		s.mu.Unlock()
		fn(key)
		s.mu.Lock()
	}
	return nil
}

func (s *fakeStore) RemoveMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCalls++
	if s.failRemove {
		return errBoom
	}
	for _, k := range keys {
		delete(s.m, k)
	}
	return nil
}

func (s *fakeStore) ListKeys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList {
		return nil, errBoom
	}
	out := make([]string, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	return out, nil
}

func (s *fakeStore) Close(context.Context) error { return nil }

func (s *fakeStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	return ok
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recHooks struct {
	NopHooks
	mu       sync.Mutex
	storage  []string
	decode   []string
	expired  []string
	fenced   []string
	preloads [][2]int
}

func (h *recHooks) StorageFailure(op, key string, _ error) {
	h.mu.Lock()
	h.storage = append(h.storage, op+":"+key)
	h.mu.Unlock()
}
func (h *recHooks) DecodeFailure(key string, _ error) {
	h.mu.Lock()
	h.decode = append(h.decode, key)
	h.mu.Unlock()
}
func (h *recHooks) ExpiredOnRead(key string) {
	h.mu.Lock()
	h.expired = append(h.expired, key)
	h.mu.Unlock()
}
func (h *recHooks) WriteFenced(key string, _ uint64) {
	h.mu.Lock()
	h.fenced = append(h.fenced, key)
	h.mu.Unlock()
}
func (h *recHooks) Preloaded(requested, loaded int) {
	h.mu.Lock()
	h.preloads = append(h.preloads, [2]int{requested, loaded})
	h.mu.Unlock()
}

type profile struct {
	Name string `json:"name"`
}

func newTestManager(t *testing.T, st store.Store, clk *clock, optsOpt func(*Options)) *Manager {
	t.Helper()
	opts := Options{Store: st, Now: clk.Now}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

// ==============================
// Expiry
// ==============================

func TestExpiryScenario(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "profile-42", profile{Name: "Ama"}, WithExpiryMinutes(30))

	clk.Advance(10 * time.Minute)
	if got, ok := GetCachedData[profile](ctx, m, "profile-42"); !ok || got.Name != "Ama" {
		t.Fatalf("t+10m: ok=%v got=%+v", ok, got)
	}

	clk.Advance(21 * time.Minute)
	if _, ok := GetCachedData[profile](ctx, m, "profile-42"); ok {
		t.Fatalf("t+31m: expected miss")
	}
	if st.has("akora_cache_profile-42") || st.has("akora_expiry_profile-42") {
		t.Fatalf("expired entry left residue: %v", st.m)
	}
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "k", "v", WithExpiry(time.Minute))
	clk.Advance(time.Minute - time.Millisecond)
	if _, ok := GetCachedData[string](ctx, m, "k"); !ok {
		t.Fatal("expected hit just before expiry")
	}
	clk.Advance(time.Millisecond)
	if _, ok := GetCachedData[string](ctx, m, "k"); ok {
		t.Fatal("now == expiresAt must be a miss")
	}
}

func TestNoExpiryIsPermanent(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "home-config-1", map[string]any{"banner": "hi"})
	clk.Advance(24 * 365 * time.Hour)

	got, ok := GetCachedData[map[string]any](ctx, m, "home-config-1")
	if !ok || got["banner"] != "hi" {
		t.Fatalf("ok=%v got=%v", ok, got)
	}
	if st.has("akora_expiry_home-config-1") {
		t.Fatal("no expiry marker expected")
	}
}

func TestRewriteWithoutExpiryDropsOldMarker(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "k", 1, WithExpiry(time.Minute))
	m.CacheData(ctx, "k", 2)
	clk.Advance(time.Hour)

	if got, ok := GetCachedData[int](ctx, m, "k"); !ok || got != 2 {
		t.Fatalf("ok=%v got=%v", ok, got)
	}
}

func TestMalformedMarkerIsAMiss(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	h := &recHooks{}
	m := newTestManager(t, st, clk, func(o *Options) { o.Hooks = h })

	st.m["akora_cache_k"] = []byte(`"v"`)
	st.m["akora_expiry_k"] = []byte("not-a-number")

	if _, ok := GetCachedData[string](ctx, m, "k"); ok {
		t.Fatal("expected miss")
	}
	if st.has("akora_cache_k") || len(h.expired) != 1 {
		t.Fatalf("entry not cleared: store=%v expired=%v", st.m, h.expired)
	}
}

// ==============================
// Errors are swallowed
// ==============================

func TestCorruptValueIsAMiss(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	h := &recHooks{}
	m := newTestManager(t, st, clk, func(o *Options) { o.Hooks = h })

	st.m["akora_cache_feed"] = []byte("{not json")
	if _, ok := GetCachedData[[]string](ctx, m, "feed"); ok {
		t.Fatal("expected miss on corrupt JSON")
	}
	if len(h.decode) != 1 {
		t.Fatalf("decode hook not called: %v", h.decode)
	}
}

func TestStorageFailuresDegradeToNoCache(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	h := &recHooks{}
	m := newTestManager(t, st, clk, func(o *Options) { o.Hooks = h })

	st.failSet = true
	m.CacheData(ctx, "k", "v", WithExpiry(time.Minute))
	if _, ok := GetMemoryCacheSync[string](m, "k"); ok {
		t.Fatal("mirror must not be updated when the write failed")
	}

	st.failSet, st.failGet = false, true
	if _, ok := GetCachedData[string](ctx, m, "k"); ok {
		t.Fatal("expected miss on read failure")
	}

	st.failGet, st.failList = false, true
	if n := m.ClearAllCache(ctx); n != 0 {
		t.Fatalf("ClearAllCache with list failure removed %d", n)
	}
	if len(h.storage) != 3 {
		t.Fatalf("expected 3 storage failures, got %v", h.storage)
	}
}

func TestExpiryWriteFailureRemovesValue(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	st.failSetPrefix = DefaultExpiryPrefix
	m.CacheData(ctx, "k", "v", WithExpiry(time.Minute))

	if st.has("akora_cache_k") {
		t.Fatal("value without expiry marker must not persist")
	}
}

func TestValueWriteFailureRemovesNewMarker(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "k", "old", WithExpiry(time.Minute))
	st.failSetPrefix = DefaultKeyPrefix
	m.CacheData(ctx, "k", "new", WithExpiry(time.Hour))
	st.failSetPrefix = ""

	if st.has("akora_expiry_k") || st.has("akora_cache_k") {
		t.Fatalf("half-written entry left behind: %v", st.m)
	}
}

func TestReaderBetweenWritesKeepsNewValue(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "k", "old", WithExpiry(time.Minute))
	clk.Advance(time.Hour)

	// a reader runs right after the first store write of the rewrite
	st.mu.Lock()
	st.afterSet = func(string) { _, _ = GetCachedData[string](ctx, m, "k") }
	st.mu.Unlock()
	m.CacheData(ctx, "k", "new", WithExpiry(time.Minute))

	got, ok := GetCachedData[string](ctx, m, "k")
	if !ok || got != "new" {
		t.Fatalf("ok=%v got=%q store=%v", ok, got, st.m)
	}
}

// ==============================
// Clear
// ==============================

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "k", "v", WithExpiry(time.Minute))
	m.ClearCache(ctx, "k")
	m.ClearCache(ctx, "k")
	m.ClearCache(ctx, "never-set")

	if len(st.m) != 0 {
		t.Fatalf("store not empty: %v", st.m)
	}
}

func TestClearAllCacheOnlyTouchesCacheKeys(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	st.m["session_token"] = []byte("abc")
	st.m["onboarding_seen"] = []byte("true")
	m.CacheData(ctx, "home-posts-1", []string{"p1"}, WithExpiry(2*time.Minute))
	m.CacheData(ctx, "profile-1", profile{Name: "Kofi"})

	if n := m.ClearAllCache(ctx); n != 3 {
		t.Fatalf("removed %d keys, want 3", n)
	}
	keys, _ := st.ListKeys(ctx)
	sort.Strings(keys)
	if strings.Join(keys, ",") != "onboarding_seen,session_token" {
		t.Fatalf("unexpected survivors: %v", keys)
	}
}

func TestClearMatching(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "discover-feed-7-all", 1, WithExpiry(time.Minute))
	m.CacheData(ctx, "discover-feed-7-jobs", 2, WithExpiry(time.Minute))
	m.CacheData(ctx, "discover-feed-8-all", 3, WithExpiry(time.Minute))

	if n := m.ClearMatching(ctx, "discover-feed-7-"); n != 4 {
		t.Fatalf("removed %d, want 4", n)
	}
	if _, ok := GetCachedData[int](ctx, m, "discover-feed-8-all"); !ok {
		t.Fatal("other user's entry removed")
	}
}

func TestKeysListsValuesOnly(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	st.m["session_token"] = []byte("abc")
	m.CacheData(ctx, "profile-1", 1, WithExpiry(time.Minute))
	m.CacheData(ctx, "home-posts-1", 2)

	keys, err := m.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys, ",") != "home-posts-1,profile-1" {
		t.Fatalf("keys=%v", keys)
	}
}

// ==============================
// Cache-aside
// ==============================

func TestGetCachedOrFetchFetchesOnce(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	var calls atomic.Int32
	fetch := func(context.Context) (profile, error) {
		calls.Add(1)
		return profile{Name: "Esi"}, nil
	}
	for i := 0; i < 2; i++ {
		got, err := GetCachedOrFetch(ctx, m, "profile-9", fetch)
		if err != nil || got.Name != "Esi" {
			t.Fatalf("call %d: got=%+v err=%v", i, got, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch called %d times", calls.Load())
	}

	// default expiry is five minutes
	clk.Advance(5 * time.Minute)
	if _, err := GetCachedOrFetch(ctx, m, "profile-9", fetch); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected refetch after default expiry, calls=%d", calls.Load())
	}
}

func TestGetCachedOrFetchSharesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = GetCachedOrFetch(ctx, m, "k", fetch)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, r := range results {
		if r != 7 {
			t.Fatalf("result %d = %d", i, r)
		}
	}
	if calls.Load() > 2 {
		t.Fatalf("fetch called %d times for concurrent misses", calls.Load())
	}
}

func TestGetCachedOrFetchOutlivesOtherCallersCancel(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	started := make(chan struct{})
	actx, cancel := context.WithCancel(ctx)
	aErr := make(chan error, 1)
	go func() {
		_, err := GetCachedOrFetch(actx, m, "k", func(c context.Context) (int, error) {
			close(started)
			<-c.Done()
			return 0, c.Err()
		})
		aErr <- err
	}()
	<-started

	bRes := make(chan int, 1)
	bErr := make(chan error, 1)
	go func() {
		v, err := GetCachedOrFetch(ctx, m, "k", func(context.Context) (int, error) { return 7, nil })
		bRes <- v
		bErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-aErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller err=%v", err)
	}
	if err := <-bErr; err != nil {
		t.Fatalf("live caller err=%v", err)
	}
	if v := <-bRes; v != 7 {
		t.Fatalf("live caller got %d", v)
	}
	if got, ok := GetCachedData[int](ctx, m, "k"); !ok || got != 7 {
		t.Fatalf("cached ok=%v got=%d", ok, got)
	}
}

func TestGetCachedOrFetchStopsWaitingOnOwnCancel(t *testing.T) {
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	release := make(chan struct{})
	defer close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := GetCachedOrFetch(ctx, m, "slow", func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
}

func TestGetCachedOrFetchPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	_, err := GetCachedOrFetch(ctx, m, "cold", func(context.Context) (string, error) {
		return "", errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err=%v", err)
	}
	if len(st.m) != 0 {
		t.Fatalf("failed fetch left entries: %v", st.m)
	}
	if _, ok := GetMemoryCacheSync[string](m, "cold"); ok {
		t.Fatal("failed fetch touched mirror")
	}
}

// ==============================
// Mirror
// ==============================

func TestCacheDataUpdatesMirror(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeStore(), newClock(), nil)

	if _, ok := GetMemoryCacheSync[profile](m, "profile-1"); ok {
		t.Fatal("mirror should start empty")
	}
	m.CacheData(ctx, "profile-1", profile{Name: "Ama"}, WithExpiry(time.Minute))
	got, ok := GetMemoryCacheSync[profile](m, "profile-1")
	if !ok || got.Name != "Ama" {
		t.Fatalf("ok=%v got=%+v", ok, got)
	}

	// different Go type than written goes through the codec
	asMap, ok := GetMemoryCacheSync[map[string]any](m, "profile-1")
	if !ok || asMap["name"] != "Ama" {
		t.Fatalf("ok=%v got=%v", ok, asMap)
	}
}

func TestMirrorValuesBelongToCaller(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeStore(), newClock(), nil)

	posts := []string{"a", "b"}
	m.CacheData(ctx, "home-posts-1", posts)
	posts[0] = "changed by writer"

	got, _ := GetMemoryCacheSync[[]string](m, "home-posts-1")
	got[1] = "changed by reader"

	again, ok := GetMemoryCacheSync[[]string](m, "home-posts-1")
	if !ok || again[0] != "a" || again[1] != "b" {
		t.Fatalf("mirror entry was patched in place: %v", again)
	}
}

func TestMirrorSurvivesClearAndExpiry(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	m := newTestManager(t, st, clk, nil)

	m.CacheData(ctx, "k", "v", WithExpiry(time.Minute))
	clk.Advance(time.Hour)
	_, _ = GetCachedData[string](ctx, m, "k")
	m.ClearAllCache(ctx)

	if got, ok := GetMemoryCacheSync[string](m, "k"); !ok || got != "v" {
		t.Fatalf("mirror entry should persist for the process lifetime: ok=%v got=%q", ok, got)
	}
}

func TestPreloadRespectsExpiryAndExistingEntries(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	h := &recHooks{}

	// a previous process wrote these
	prev := newTestManager(t, st, clk, nil)
	prev.CacheData(ctx, "home-posts-1", []string{"old"}, WithExpiry(2*time.Minute))
	prev.CacheData(ctx, "profile-1", profile{Name: "Ama"}, WithExpiry(30*time.Minute))
	prev.CacheData(ctx, "conversations-1", []string{"c1"}, WithExpiry(10*time.Minute))
	clk.Advance(5 * time.Minute)

	m := newTestManager(t, st, clk, func(o *Options) { o.Hooks = h; o.PreloadConcurrency = 2 })
	m.SetMemoryCacheSync("conversations-1", []string{"newer"})

	n := m.PreloadCacheToMemory(ctx, []string{"home-posts-1", "profile-1", "conversations-1", "missing"})
	if n != 1 {
		t.Fatalf("loaded %d, want 1", n)
	}
	if _, ok := GetMemoryCacheSync[[]string](m, "home-posts-1"); ok {
		t.Fatal("expired entry preloaded")
	}
	if st.has("akora_cache_home-posts-1") {
		t.Fatal("expired entry not deleted during preload")
	}
	if p, ok := GetMemoryCacheSync[profile](m, "profile-1"); !ok || p.Name != "Ama" {
		t.Fatalf("profile not preloaded: ok=%v p=%+v", ok, p)
	}
	if c, _ := GetMemoryCacheSync[[]string](m, "conversations-1"); len(c) != 1 || c[0] != "newer" {
		t.Fatalf("preload clobbered a fresher mirror entry: %v", c)
	}
	if len(h.preloads) != 1 || h.preloads[0] != [2]int{4, 1} {
		t.Fatalf("preload hook: %v", h.preloads)
	}
}

func TestProtobufValuesRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	pb := func(o *Options) { o.Codec = codec.Protobuf{} }

	m := newTestManager(t, st, clk, pb)
	m.CacheData(ctx, "profile-1", wrapperspb.String("hi"), WithExpiry(time.Minute))

	got, ok := GetCachedData[*wrapperspb.StringValue](ctx, m, "profile-1")
	if !ok || got.GetValue() != "hi" {
		t.Fatalf("store read ok=%v got=%v", ok, got)
	}

	fresh := newTestManager(t, st, clk, pb)
	if n := fresh.PreloadCacheToMemory(ctx, []string{"profile-1"}); n != 1 {
		t.Fatalf("preloaded %d", n)
	}
	mv, ok := GetMemoryCacheSync[*wrapperspb.StringValue](fresh, "profile-1")
	if !ok || mv.GetValue() != "hi" {
		t.Fatalf("mirror read ok=%v got=%v", ok, mv)
	}
}

// ==============================
// Fencing
// ==============================

func TestFencedWritesDropOutOfOrderResults(t *testing.T) {
	ctx := context.Background()
	st, clk := newFakeStore(), newClock()
	h := &recHooks{}
	f := fence.NewLocal(0, 0)
	m := newTestManager(t, st, clk, func(o *Options) { o.Fence = f; o.Hooks = h })
	defer m.Close(ctx)

	slow := m.BeginWrite(ctx, "home-posts-1")
	fast := m.BeginWrite(ctx, "home-posts-1")

	if !m.CacheDataFenced(ctx, "home-posts-1", "fresh", fast, WithExpiry(time.Minute)) {
		t.Fatal("fast write rejected")
	}
	if m.CacheDataFenced(ctx, "home-posts-1", "stale", slow, WithExpiry(time.Minute)) {
		t.Fatal("slow write accepted")
	}
	if got, _ := GetCachedData[string](ctx, m, "home-posts-1"); got != "fresh" {
		t.Fatalf("got %q", got)
	}
	if len(h.fenced) != 1 {
		t.Fatalf("fenced hook: %v", h.fenced)
	}
}

func TestWithoutFenceLastWriteWins(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, newFakeStore(), newClock(), nil)

	slow := m.BeginWrite(ctx, "k")
	fast := m.BeginWrite(ctx, "k")
	m.CacheDataFenced(ctx, "k", "fresh", fast)
	m.CacheDataFenced(ctx, "k", "stale", slow)

	if got, _ := GetCachedData[string](ctx, m, "k"); got != "stale" {
		t.Fatalf("got %q", got)
	}
}

// ==============================
// Construction
// ==============================

func TestDisabledManager(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	m := newTestManager(t, st, newClock(), func(o *Options) { o.Disabled = true })

	m.CacheData(ctx, "k", "v")
	if len(st.m) != 0 {
		t.Fatal("disabled manager wrote to store")
	}
	var calls int
	for i := 0; i < 2; i++ {
		_, _ = GetCachedOrFetch(ctx, m, "k", func(context.Context) (string, error) {
			calls++
			return "v", nil
		})
	}
	if calls != 2 {
		t.Fatalf("disabled manager should always fetch, calls=%d", calls)
	}
}

func TestNewRejectsOverlappingPrefixes(t *testing.T) {
	for _, p := range [][2]string{
		{"x_", "x_"},
		{"akora_", "akora_expiry_"},
		{"akora_cache_", "akora_"},
	} {
		if _, err := New(Options{KeyPrefix: p[0], ExpiryPrefix: p[1]}); err == nil {
			t.Fatalf("prefixes %q/%q: expected error", p[0], p[1])
		}
	}
	if _, err := New(Options{KeyPrefix: "app_val_", ExpiryPrefix: "app_exp_"}); err != nil {
		t.Fatalf("disjoint prefixes rejected: %v", err)
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	a := Default()
	if a != Default() {
		t.Fatal("Default returned different managers")
	}
	own, _ := New(Options{})
	SetDefault(own)
	defer SetDefault(a)
	if Default() != own {
		t.Fatal("SetDefault ignored")
	}
}
