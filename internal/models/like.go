package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Like represents a like on a post. The likes collection carries a unique
// (user, post) index, so a pair has at most one document.
type Like struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"user" bson:"user"`
	PostID    primitive.ObjectID `json:"post" bson:"post"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// ToggleLikeResponse is returned by the like toggle endpoint
type ToggleLikeResponse struct {
	Message    string `json:"message"`
	Liked      bool   `json:"liked"`
	LikesCount int    `json:"likesCount"`
}
