package community

import "strings"

// Domain names a cached data set. The string is part of the persisted key,
// so existing values must never be renamed.
type Domain string

const (
	HomePosts     Domain = "home-posts"
	HomeConfig    Domain = "home-config"
	Conversations Domain = "conversations"
	Profile       Domain = "profile"
	UserPosts     Domain = "user-posts"
	SavedPosts    Domain = "saved-posts"
	GroupChats    Domain = "group-chats"
	DiscoverFeed  Domain = "discover-feed"
)

// AllCategories is the discover feed qualifier used when no category filter applies.
const AllCategories = "all"

// Domains lists every domain the client caches.
var Domains = []Domain{HomePosts, HomeConfig, Conversations, Profile, UserPosts, SavedPosts, GroupChats, DiscoverFeed}

// Key builds "<domain>-<userID>[-<qualifier>...]". Empty qualifiers are
// dropped. An empty userID yields "" so callers can disable the query until
// the user is known.
func Key(d Domain, userID string, qualifier ...string) string {
	if userID == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(d))
	b.WriteByte('-')
	b.WriteString(userID)
	for _, q := range qualifier {
		if q == "" {
			continue
		}
		b.WriteByte('-')
		b.WriteString(q)
	}
	return b.String()
}

// keyPrefix matches every key of d for userID regardless of qualifier.
func keyPrefix(d Domain, userID string) string {
	return string(d) + "-" + userID + "-"
}
