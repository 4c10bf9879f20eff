package community

import (
	"context"

	"github.com/unkn0wn-root/swrcache"
)

// Change is a row change reported by the backend's realtime channel.
type Change struct {
	Table  string
	UserID string // whose cached views are affected
}

var tableDomains = map[string][]Domain{
	"posts":                {HomePosts, UserPosts},
	"post_likes":           {HomePosts, SavedPosts},
	"comments":             {HomePosts, SavedPosts},
	"saved_posts":          {SavedPosts},
	"profiles":             {Profile},
	"follows":              {Profile, HomePosts},
	"home_config":          {HomeConfig},
	"messages":             {Conversations},
	"conversations":        {Conversations},
	"group_chats":          {GroupChats},
	"group_members":        {GroupChats},
	"group_messages":       {GroupChats},
	"events":               {DiscoverFeed},
	"marketplace_listings": {DiscoverFeed},
	"news":                 {DiscoverFeed},
}

// DomainsFor reports which domains a change to table touches.
func DomainsFor(table string) []Domain { return tableDomains[table] }

// HandleChange clears every domain the change touches for its user and
// returns them. Unknown tables are ignored.
func (c *Client) HandleChange(ctx context.Context, ch Change) []Domain {
	ds := DomainsFor(ch.Table)
	if len(ds) == 0 || ch.UserID == "" {
		return nil
	}
	for _, d := range ds {
		c.InvalidateDomain(ctx, d, ch.UserID)
	}
	c.log.Debug("invalidated on change", swrcache.Fields{"table": ch.Table, "user": ch.UserID, "domains": len(ds)})
	return ds
}
