package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaType distinguishes images from videos on the asset host
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaTypeFromContentType maps an upload's MIME type onto a MediaType.
// Anything that is not a video is treated as an image.
func MediaTypeFromContentType(contentType string) MediaType {
	if len(contentType) >= 6 && contentType[:6] == "video/" {
		return MediaVideo
	}
	return MediaImage
}

// Media is an asset attached to exactly one post
type Media struct {
	ID        primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	PostID    primitive.ObjectID `json:"post" bson:"post"`
	Type      MediaType          `json:"type" bson:"type"`
	URL       string             `json:"url" bson:"url"`           // direct URL returned by the asset host
	PublicID  string             `json:"publicId" bson:"publicId"` // storage identifier on the asset host
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// MediaItem is the public shape of a media attachment
type MediaItem struct {
	Type MediaType `json:"type"`
	URL  string    `json:"url"`
}
