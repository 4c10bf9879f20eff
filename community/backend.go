package community

import "context"

// Backend is the remote data service. Every call returns canonical data for
// the given user; implementations own filtering, ordering and pagination.
type Backend interface {
	HomePosts(ctx context.Context, userID string) ([]Post, error)
	HomeConfig(ctx context.Context, userID string) (HomeConfigData, error)
	Conversations(ctx context.Context, userID string) ([]Conversation, error)
	Profile(ctx context.Context, userID string) (ProfileData, error)
	UserPosts(ctx context.Context, authorID string) ([]Post, error)
	SavedPosts(ctx context.Context, userID string) ([]SavedPost, error)
	GroupChats(ctx context.Context, userID string) ([]GroupChat, error)
	// DiscoverFeed returns items for category; "" or AllCategories means no filter.
	DiscoverFeed(ctx context.Context, userID, category string) ([]DiscoverItem, error)
}
