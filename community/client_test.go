package community

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/store/memory"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    map[string]int
	posts    []Post
	profile  ProfileData
	category string
	err      error
}

func (f *fakeBackend) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	return f.err
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) HomePosts(context.Context, string) ([]Post, error) {
	return f.posts, f.hit("home")
}
func (f *fakeBackend) HomeConfig(context.Context, string) (HomeConfigData, error) {
	return HomeConfigData{FeaturedSections: []string{"events"}}, f.hit("config")
}
func (f *fakeBackend) Conversations(context.Context, string) ([]Conversation, error) {
	return nil, f.hit("conversations")
}
func (f *fakeBackend) Profile(context.Context, string) (ProfileData, error) {
	return f.profile, f.hit("profile")
}
func (f *fakeBackend) UserPosts(_ context.Context, author string) ([]Post, error) {
	return []Post{{ID: "p-" + author, UserID: author}}, f.hit("user-posts")
}
func (f *fakeBackend) SavedPosts(context.Context, string) ([]SavedPost, error) {
	return nil, f.hit("saved")
}
func (f *fakeBackend) GroupChats(context.Context, string) ([]GroupChat, error) {
	return nil, f.hit("groups")
}
func (f *fakeBackend) DiscoverFeed(_ context.Context, _ string, category string) ([]DiscoverItem, error) {
	f.mu.Lock()
	f.category = category
	f.mu.Unlock()
	return []DiscoverItem{{ID: "d1", Category: category}}, f.hit("discover")
}

func newClient(t *testing.T, b Backend) (*Client, *memory.Store) {
	t.Helper()
	st := memory.New()
	m, err := swrcache.New(swrcache.Options{Store: st})
	require.NoError(t, err)
	return New(m, b, Options{}), st
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("query did not settle")
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "home-posts-42", Key(HomePosts, "42"))
	assert.Equal(t, "discover-feed-42-all", Key(DiscoverFeed, "42", AllCategories))
	assert.Equal(t, "user-posts-42-7", Key(UserPosts, "42", "", "7"))
	assert.Equal(t, "", Key(Profile, ""))
	assert.NotEqual(t, Key(Profile, "42"), Key(UserPosts, "42"))
	assert.NotEqual(t, Key(Profile, "4"), Key(Profile, "42"))
}

func TestProfileSettlesAndCaches(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{profile: ProfileData{ID: "42", FullName: "Ama Mensah"}}
	c, st := newClient(t, b)

	h := c.Profile(ctx, "42")
	wait(t, h.Done())
	s := h.Current()
	require.NoError(t, s.Err)
	assert.Equal(t, "Ama Mensah", s.Value.FullName)

	_, ok, err := st.Get(ctx, swrcache.DefaultKeyPrefix+"profile-42")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = st.Get(ctx, swrcache.DefaultExpiryPrefix+"profile-42")
	require.NoError(t, err)
	assert.True(t, ok, "profile is written with an expiry")

	// second mount sees the mirror value immediately
	h2 := c.Profile(ctx, "42")
	first := h2.Current()
	assert.True(t, first.HasValue)
	assert.Equal(t, "42", first.Value.ID)
	wait(t, h2.Done())
}

func TestUnknownUserIsIdle(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newClient(t, b)
	h := c.HomePosts(context.Background(), "")
	wait(t, h.Done())
	assert.Equal(t, "idle", h.Current().State.String())
	assert.Zero(t, b.count("home"))
}

func TestDiscoverFeedDefaultsToAll(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	c, _ := newClient(t, b)

	h := c.DiscoverFeed(ctx, "42", "")
	wait(t, h.Done())
	assert.Equal(t, "discover-feed-42-all", h.Key())
	assert.Equal(t, AllCategories, b.category)

	h = c.DiscoverFeed(ctx, "42", "events")
	wait(t, h.Done())
	assert.Equal(t, "discover-feed-42-events", h.Key())
}

func TestUserPostsKeyedByViewer(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, &fakeBackend{})

	own := c.UserPosts(ctx, "42", "")
	other := c.UserPosts(ctx, "42", "7")
	wait(t, own.Done())
	wait(t, other.Done())
	assert.Equal(t, "user-posts-42", own.Key())
	assert.Equal(t, "user-posts-42-7", other.Key())
	assert.Equal(t, "p-7", other.Current().Value[0].ID)
}

func TestFailureKeepsPreviousValue(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{posts: []Post{{ID: "p1"}}}
	c, _ := newClient(t, b)
	h := c.HomePosts(ctx, "42")
	wait(t, h.Done())

	b.mu.Lock()
	b.err = errors.New("offline")
	b.mu.Unlock()

	h = c.HomePosts(ctx, "42")
	wait(t, h.Done())
	s := h.Current()
	require.Error(t, s.Err)
	require.True(t, s.HasValue)
	assert.Equal(t, "p1", s.Value[0].ID)
}

func TestPreloadWarmsMirror(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	m1, err := swrcache.New(swrcache.Options{Store: st})
	require.NoError(t, err)
	m1.CacheData(ctx, Key(Profile, "42"), ProfileData{ID: "42"}, swrcache.WithExpiry(time.Hour))
	m1.CacheData(ctx, Key(DiscoverFeed, "42", AllCategories), []DiscoverItem{{ID: "d"}})

	// a new process over the same store
	m2, err := swrcache.New(swrcache.Options{Store: st})
	require.NoError(t, err)
	c := New(m2, &fakeBackend{}, Options{})
	assert.Equal(t, 2, c.Preload(ctx, "42"))

	p, ok := swrcache.GetMemoryCacheSync[ProfileData](m2, "profile-42")
	require.True(t, ok)
	assert.Equal(t, "42", p.ID)
	assert.Len(t, PreloadKeys("42"), len(Domains))
	assert.Nil(t, PreloadKeys(""))
}

func TestInvalidateUserLeavesOtherUsers(t *testing.T) {
	ctx := context.Background()
	c, st := newClient(t, &fakeBackend{})
	m := c.Manager()

	for _, k := range []string{
		Key(HomePosts, "4"), Key(DiscoverFeed, "4", "events"), Key(UserPosts, "4", "7"),
		Key(HomePosts, "42"), Key(DiscoverFeed, "42", "all"),
	} {
		m.CacheData(ctx, k, "x", swrcache.WithExpiry(time.Hour))
	}

	c.InvalidateUser(ctx, "4")
	keys, err := st.ListKeys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		swrcache.DefaultKeyPrefix + "home-posts-42", swrcache.DefaultExpiryPrefix + "home-posts-42",
		swrcache.DefaultKeyPrefix + "discover-feed-42-all", swrcache.DefaultExpiryPrefix + "discover-feed-42-all",
	}, keys)
}

func TestHandleChange(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t, &fakeBackend{})
	m := c.Manager()
	m.CacheData(ctx, Key(SavedPosts, "42"), "x")
	m.CacheData(ctx, Key(Profile, "42"), "y")

	ds := c.HandleChange(ctx, Change{Table: "saved_posts", UserID: "42"})
	assert.Equal(t, []Domain{SavedPosts}, ds)
	_, ok := swrcache.GetCachedData[string](ctx, m, Key(SavedPosts, "42"))
	assert.False(t, ok)
	_, ok = swrcache.GetCachedData[string](ctx, m, Key(Profile, "42"))
	assert.True(t, ok)

	assert.Nil(t, c.HandleChange(ctx, Change{Table: "audit_log", UserID: "42"}))
	assert.Nil(t, c.HandleChange(ctx, Change{Table: "posts"}))
}

func TestExpiryOverrides(t *testing.T) {
	m, err := swrcache.New(swrcache.Options{})
	require.NoError(t, err)
	c := New(m, &fakeBackend{}, Options{Expiry: map[Domain]time.Duration{
		Profile:    time.Hour,
		HomeConfig: -1,
	}})
	assert.Equal(t, time.Hour, c.Expiry(Profile))
	assert.Zero(t, c.Expiry(HomeConfig))
	assert.Equal(t, 2*time.Minute, c.Expiry(HomePosts))
}
