// Package supabase implements community.Backend on a Supabase project's REST
// (PostgREST) endpoint. Every call goes through one circuit breaker so an
// unreachable backend fails fast and the cached values keep being served.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	postgrest "github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/community"
)

const (
	authorColumns = "author:profiles(id,full_name,username,avatar_url)"
	defaultPage   = 50
)

// BreakerConfig mirrors gobreaker.Settings with the trip rule expressed as a
// failure ratio.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

type Config struct {
	URL      string
	Key      string
	Schema   string // "" => public
	PageSize int    // rows per list query; 0 => 50
	Breaker  BreakerConfig
	Logger   swrcache.Logger
}

// Backend talks to the project with the anon or user key in Config.Key.
type Backend struct {
	client *supa.Client
	cb     *gobreaker.CircuitBreaker
	page   int
	log    swrcache.Logger
}

var _ community.Backend = (*Backend)(nil)

func New(cfg Config) (*Backend, error) {
	client, err := supa.NewClient(cfg.URL, cfg.Key, &supa.ClientOptions{Schema: cfg.Schema})
	if err != nil {
		return nil, fmt.Errorf("supabase: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = swrcache.NopLogger{}
	}
	bc := cfg.Breaker
	if bc == (BreakerConfig{}) {
		bc = DefaultBreakerConfig()
	}
	page := cfg.PageSize
	if page <= 0 {
		page = defaultPage
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "supabase",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", swrcache.Fields{"name": name, "from": from.String(), "to": to.String()})
		},
	})
	return &Backend{client: client, cb: cb, page: page, log: log}, nil
}

// State reports the breaker state ("closed", "half-open", "open").
func (b *Backend) State() string { return b.cb.State().String() }

// ErrUnavailable wraps calls rejected by the open breaker.
var ErrUnavailable = errors.New("supabase: backend unavailable")

// run executes q through the breaker. postgrest-go has no context support, so
// ctx is only checked before the request is sent.
func (b *Backend) run(ctx context.Context, table string, q func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) { return nil, q() })
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, table, err)
	default:
		return fmt.Errorf("supabase: query %s: %w", table, err)
	}
}

func (b *Backend) list(table, columns string) *postgrest.FilterBuilder {
	return b.client.From(table).Select(columns, "", false)
}

func newest() *postgrest.OrderOpts { return &postgrest.OrderOpts{Ascending: false} }

func (b *Backend) HomePosts(ctx context.Context, userID string) ([]community.Post, error) {
	var out []community.Post
	err := b.run(ctx, "posts", func() error {
		_, err := b.list("posts", "*,"+authorColumns).
			Order("created_at", newest()).
			Range(0, b.page-1, "").
			ExecuteTo(&out)
		return err
	})
	return out, err
}

func (b *Backend) HomeConfig(ctx context.Context, userID string) (community.HomeConfigData, error) {
	var out community.HomeConfigData
	err := b.run(ctx, "home_config", func() error {
		_, err := b.list("home_config", "featured_sections,banners,flags").
			Limit(1, "").
			Single().
			ExecuteTo(&out)
		return err
	})
	return out, err
}

func (b *Backend) Conversations(ctx context.Context, userID string) ([]community.Conversation, error) {
	var out []community.Conversation
	err := b.run(ctx, "conversation_summaries", func() error {
		_, err := b.list("conversation_summaries", "id,last_message,last_message_at,unread_count,participant:profiles(id,full_name,username,avatar_url)").
			Eq("user_id", userID).
			Order("last_message_at", newest()).
			Range(0, b.page-1, "").
			ExecuteTo(&out)
		return err
	})
	return out, err
}

func (b *Backend) Profile(ctx context.Context, userID string) (community.ProfileData, error) {
	var out community.ProfileData
	err := b.run(ctx, "profiles", func() error {
		_, err := b.list("profiles", "*").
			Eq("id", userID).
			Single().
			ExecuteTo(&out)
		return err
	})
	return out, err
}

func (b *Backend) UserPosts(ctx context.Context, authorID string) ([]community.Post, error) {
	var out []community.Post
	err := b.run(ctx, "posts", func() error {
		_, err := b.list("posts", "*,"+authorColumns).
			Eq("user_id", authorID).
			Order("created_at", newest()).
			Range(0, b.page-1, "").
			ExecuteTo(&out)
		return err
	})
	return out, err
}

func (b *Backend) SavedPosts(ctx context.Context, userID string) ([]community.SavedPost, error) {
	var out []community.SavedPost
	err := b.run(ctx, "saved_posts", func() error {
		_, err := b.list("saved_posts", "*,post:posts(*,"+authorColumns+")").
			Eq("user_id", userID).
			Order("created_at", newest()).
			Range(0, b.page-1, "").
			ExecuteTo(&out)
		return err
	})
	return out, err
}

func (b *Backend) GroupChats(ctx context.Context, userID string) ([]community.GroupChat, error) {
	var out []community.GroupChat
	err := b.run(ctx, "group_chat_summaries", func() error {
		_, err := b.list("group_chat_summaries", "*").
			Eq("member_id", userID).
			Order("last_message_at", newest()).
			ExecuteTo(&out)
		return err
	})
	return out, err
}

func (b *Backend) DiscoverFeed(ctx context.Context, userID, category string) ([]community.DiscoverItem, error) {
	var out []community.DiscoverItem
	err := b.run(ctx, "discover_items", func() error {
		q := b.list("discover_items", "*")
		if category != "" && category != community.AllCategories {
			q = q.Eq("category", category)
		}
		_, err := q.Order("created_at", newest()).
			Range(0, b.page-1, "").
			ExecuteTo(&out)
		return err
	})
	return out, err
}
