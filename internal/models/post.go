package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a post or a reply stored in MongoDB.
// A nil ParentPost marks a root post.
type Post struct {
	ID           primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	AuthorID     string              `json:"author" bson:"author"` // User ID from the Postgres user directory
	ParentPost   *primitive.ObjectID `json:"parentPost" bson:"parentPost"`
	Text         string              `json:"text" bson:"text"`
	LikesCount   int                 `json:"likesCount" bson:"likesCount"`
	RepliesCount int                 `json:"repliesCount" bson:"repliesCount"`
	IsEdited     bool                `json:"isEdited" bson:"isEdited"`
	CreatedAt    time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt" bson:"updatedAt"`
}

// IsRoot reports whether the post starts a thread.
func (p *Post) IsRoot() bool {
	return p.ParentPost == nil
}

// EngagementScore is the ranking key of the "top" ordering.
func (p *Post) EngagementScore() int {
	return p.LikesCount + p.RepliesCount
}

// CreatePostRequest defines the form fields for creating a new post.
// Media files travel as multipart "media" parts.
type CreatePostRequest struct {
	Text       string `form:"text" validate:"required"`
	ParentPost string `form:"parentPost" validate:"omitempty,mongodb"`
}

// UpdatePostRequest defines the request body for editing a post's text
type UpdatePostRequest struct {
	Text string `json:"text" validate:"required"`
}

// CreatePostResponse is returned after a post is created
type CreatePostResponse struct {
	Post  *Post       `json:"post"`
	Media []MediaItem `json:"media"`
}
