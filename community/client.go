// Package community exposes one stale-while-revalidate query per data domain
// of the alumni-community app, all keyed through Key and cached by a shared
// swrcache.Manager.
package community

import (
	"context"
	"time"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/query"
)

// DefaultExpiry is used for any domain missing from Options.Expiry.
var DefaultExpiry = map[Domain]time.Duration{
	HomePosts:     2 * time.Minute,
	HomeConfig:    10 * time.Minute,
	Conversations: 2 * time.Minute,
	Profile:       30 * time.Minute,
	UserPosts:     5 * time.Minute,
	SavedPosts:    5 * time.Minute,
	GroupChats:    5 * time.Minute,
	DiscoverFeed:  2 * time.Minute,
}

type Options struct {
	// Expiry overrides DefaultExpiry per domain. A negative value stores
	// entries without expiry.
	Expiry map[Domain]time.Duration
	Logger swrcache.Logger // if nil, NopLogger is used
}

// Client binds a Backend to a Manager.
type Client struct {
	m       *swrcache.Manager
	backend Backend
	expiry  map[Domain]time.Duration
	log     swrcache.Logger
}

func New(m *swrcache.Manager, backend Backend, opts Options) *Client {
	exp := make(map[Domain]time.Duration, len(DefaultExpiry))
	for d, v := range DefaultExpiry {
		exp[d] = v
	}
	for d, v := range opts.Expiry {
		if v != 0 {
			exp[d] = v
		}
	}
	log := opts.Logger
	if log == nil {
		log = swrcache.NopLogger{}
	}
	return &Client{m: m, backend: backend, expiry: exp, log: log}
}

// Manager returns the cache the client writes through.
func (c *Client) Manager() *swrcache.Manager { return c.m }

// Expiry reports the expiry applied to writes for d.
func (c *Client) Expiry(d Domain) time.Duration {
	if v := c.expiry[d]; v > 0 {
		return v
	}
	return 0
}

func use[V any](ctx context.Context, c *Client, d Domain, userID string, fetch swrcache.FetchFunc[V], qualifier ...string) *query.Handle[V] {
	key := Key(d, userID, qualifier...)
	return query.Use(ctx, c.m, query.Spec[V]{
		Key:      key,
		Fetch:    fetch,
		Expiry:   c.Expiry(d),
		Disabled: key == "",
	})
}

func (c *Client) HomePosts(ctx context.Context, userID string) *query.Handle[[]Post] {
	return use(ctx, c, HomePosts, userID, func(ctx context.Context) ([]Post, error) {
		return c.backend.HomePosts(ctx, userID)
	})
}

func (c *Client) HomeConfig(ctx context.Context, userID string) *query.Handle[HomeConfigData] {
	return use(ctx, c, HomeConfig, userID, func(ctx context.Context) (HomeConfigData, error) {
		return c.backend.HomeConfig(ctx, userID)
	})
}

func (c *Client) Conversations(ctx context.Context, userID string) *query.Handle[[]Conversation] {
	return use(ctx, c, Conversations, userID, func(ctx context.Context) ([]Conversation, error) {
		return c.backend.Conversations(ctx, userID)
	})
}

func (c *Client) Profile(ctx context.Context, userID string) *query.Handle[ProfileData] {
	return use(ctx, c, Profile, userID, func(ctx context.Context) (ProfileData, error) {
		return c.backend.Profile(ctx, userID)
	})
}

// UserPosts lists posts written by author, cached on behalf of viewer. When
// author is empty the viewer's own posts are shown.
func (c *Client) UserPosts(ctx context.Context, viewer, author string) *query.Handle[[]Post] {
	if author == "" {
		author = viewer
	}
	var q []string
	if author != viewer {
		q = append(q, author)
	}
	return use(ctx, c, UserPosts, viewer, func(ctx context.Context) ([]Post, error) {
		return c.backend.UserPosts(ctx, author)
	}, q...)
}

func (c *Client) SavedPosts(ctx context.Context, userID string) *query.Handle[[]SavedPost] {
	return use(ctx, c, SavedPosts, userID, func(ctx context.Context) ([]SavedPost, error) {
		return c.backend.SavedPosts(ctx, userID)
	})
}

func (c *Client) GroupChats(ctx context.Context, userID string) *query.Handle[[]GroupChat] {
	return use(ctx, c, GroupChats, userID, func(ctx context.Context) ([]GroupChat, error) {
		return c.backend.GroupChats(ctx, userID)
	})
}

// DiscoverFeed caches one feed per category; "" means AllCategories.
func (c *Client) DiscoverFeed(ctx context.Context, userID, category string) *query.Handle[[]DiscoverItem] {
	if category == "" {
		category = AllCategories
	}
	return use(ctx, c, DiscoverFeed, userID, func(ctx context.Context) ([]DiscoverItem, error) {
		return c.backend.DiscoverFeed(ctx, userID, category)
	}, category)
}

// PreloadKeys returns the keys warmed right after login: every domain's
// default view for userID.
func PreloadKeys(userID string) []string {
	if userID == "" {
		return nil
	}
	keys := make([]string, 0, len(Domains))
	for _, d := range Domains {
		if d == DiscoverFeed {
			keys = append(keys, Key(d, userID, AllCategories))
			continue
		}
		keys = append(keys, Key(d, userID))
	}
	return keys
}

// Preload copies userID's persisted entries into the mirror so the first
// render of every screen has data. Returns how many keys were loaded.
func (c *Client) Preload(ctx context.Context, userID string) int {
	n := c.m.PreloadCacheToMemory(ctx, PreloadKeys(userID))
	c.log.Info("community cache preloaded", swrcache.Fields{"user": userID, "loaded": n})
	return n
}

// Invalidate clears one domain entry. The mirror keeps serving the last value
// until the next fetch replaces it.
func (c *Client) Invalidate(ctx context.Context, d Domain, userID string, qualifier ...string) {
	if key := Key(d, userID, qualifier...); key != "" {
		c.m.ClearCache(ctx, key)
	}
}

// InvalidateDomain clears d for userID including every qualified variant
// (all discover categories, all viewed authors).
func (c *Client) InvalidateDomain(ctx context.Context, d Domain, userID string) {
	if userID == "" {
		return
	}
	c.m.ClearCache(ctx, Key(d, userID))
	if d == UserPosts || d == DiscoverFeed {
		c.m.ClearMatching(ctx, keyPrefix(d, userID))
	}
}

// InvalidateUser clears every domain for userID, e.g. on logout.
func (c *Client) InvalidateUser(ctx context.Context, userID string) {
	for _, d := range Domains {
		c.InvalidateDomain(ctx, d, userID)
	}
}
