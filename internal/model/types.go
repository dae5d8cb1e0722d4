package model

import "time"

// Author is the subset of account fields joined onto a candidate post.
type Author struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	CreatedAt         time.Time `json:"created_at"`
	Verified          bool      `json:"verified"`
	Gold              bool      `json:"gold"`
	FollowerCount     int       `json:"follower_count"`
	FollowingCount    int       `json:"following_count"`
	PostCount         int       `json:"post_count"`
	BlockedByCount    int       `json:"blocked_by_count"`
	MutedByCount      int       `json:"muted_by_count"`
	SpamScore         float64   `json:"spam_score"`
	TimingScore       float64   `json:"timing_score"`
	SuperTweeter      bool      `json:"super_tweeter"`
	SuperTweeterBoost float64   `json:"super_tweeter_boost"`
	Shadowbanned      bool      `json:"shadowbanned"`
}

// Attachment is a media marker on a post.
type Attachment struct {
	Type     string `json:"type"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}

// Post is a candidate post eligible for ranking, or a history row for spam analysis.
type Post struct {
	ID                string       `json:"id"`
	AuthorID          string       `json:"author_id"`
	Content           string       `json:"content"`
	CreatedAt         time.Time    `json:"created_at"`
	LikeCount         int          `json:"like_count"`
	RetweetCount      int          `json:"retweet_count"`
	ReplyCount        int          `json:"reply_count"`
	QuoteCount        int          `json:"quote_count"`
	ReplyTo           string       `json:"reply_to,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	QuotedHasMedia    bool         `json:"quoted_has_media"`
	HasCommunityNote  bool         `json:"has_community_note"`
	SuperTweet        bool         `json:"super_tweet"`
	SuperTweetBoost   float64      `json:"super_tweet_boost"`
	ClusterSize       int          `json:"cluster_size"`
	AuthorTimingScore float64      `json:"author_timing_score"`
	PositionInFeed    int          `json:"position_in_feed"`
	Author            Author       `json:"author"`
}

// AuthorKey identifies the post's author for repeat counting. Empty when unknown.
func (p Post) AuthorKey() string {
	switch {
	case p.AuthorID != "":
		return p.AuthorID
	case p.Author.ID != "":
		return p.Author.ID
	default:
		return p.Author.Username
	}
}

// IsReply reports whether the post answers another post.
func (p Post) IsReply() bool { return p.ReplyTo != "" }

// SeenMap maps post id to the ISO8601 time the viewer last saw it.
// An empty value records a sighting with no timestamp.
type SeenMap map[string]string

// Profile holds the aggregate counters the spam analyzer reads for one user.
type Profile struct {
	UserID         string
	FollowerCount  int
	FollowingCount int
	PostCount      int
	CreatedAt      time.Time
	Shadowbanned   bool
	SpamScore      float64
}

// History is a user's recent activity, newest first.
type History struct {
	// Posts covers originals and replies together.
	Posts     []Post
	Originals []Post
	Replies   []Post
	Profile   Profile
}
