package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Feed filter types accepted by the feed endpoint
const (
	FilterPosts   = "posts"
	FilterReplies = "replies"
	FilterLiked   = "liked"
)

// FeedQuery holds the feed endpoint's query parameters. Liked narrows any
// filterType to the viewer's liked posts; filterType=liked alone spans
// roots and replies.
type FeedQuery struct {
	Limit      int    `query:"limit" validate:"min=0"`
	Order      string `query:"order" validate:"omitempty,oneof=asc desc"`
	Cursor     string `query:"cursor"`
	AuthorID   string `query:"author" validate:"omitempty,max=64"`
	FilterType string `query:"filterType" validate:"omitempty,oneof=posts replies liked"`
	Liked      bool   `query:"liked"`
}

// FeedItem is a post enriched with author, media and the viewer's like state
type FeedItem struct {
	ID           primitive.ObjectID  `json:"_id"`
	ParentPost   *primitive.ObjectID `json:"parentPost"`
	Text         string              `json:"text"`
	Author       SerializedAuthor    `json:"author"`
	LikesCount   int                 `json:"likesCount"`
	RepliesCount int                 `json:"repliesCount"`
	IsLiked      bool                `json:"isLiked"`
	IsEdited     bool                `json:"isEdited"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	Media        []MediaItem         `json:"media"`
}

// FeedResponse is one page of the feed. A nil NextCursor marks the end.
type FeedResponse struct {
	Items      []FeedItem `json:"items"`
	NextCursor *time.Time `json:"nextCursor"`
}

// ThreadNode is a post with its replies hydrated recursively
type ThreadNode struct {
	FeedItem
	Replies []*ThreadNode `json:"replies"`
}
