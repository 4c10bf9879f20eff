package community

import "time"

type Author struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Content       string    `json:"content"`
	MediaURLs     []string  `json:"media_urls,omitempty"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	CreatedAt     time.Time `json:"created_at"`
	Author        *Author   `json:"author,omitempty"`
}

type SavedPost struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
	Post      *Post     `json:"post,omitempty"`
}

type ProfileData struct {
	ID             string    `json:"id"`
	FullName       string    `json:"full_name"`
	Username       string    `json:"username,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	Class          string    `json:"class,omitempty"`
	YearGroup      string    `json:"year_group,omitempty"`
	House          string    `json:"house,omitempty"`
	IsAdmin        bool      `json:"is_admin"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HomeConfigData is the server-driven layout of the home screen.
type HomeConfigData struct {
	FeaturedSections []string       `json:"featured_sections"`
	Banners          []Banner       `json:"banners,omitempty"`
	Flags            map[string]any `json:"flags,omitempty"`
}

type Banner struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url,omitempty"`
}

type Conversation struct {
	ID            string    `json:"id"`
	Participant   *Author   `json:"participant,omitempty"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
}

type GroupChat struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	MemberCount   int       `json:"member_count"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// DiscoverItem is one card in the discover feed (event, listing, news...).
type DiscoverItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
