package handlers

import (
	"context"

	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/services"
)

// FeedReader serves feed pages
type FeedReader interface {
	GetFeed(ctx context.Context, q models.FeedQuery, viewerID string) (*models.FeedResponse, error)
}

// ThreadReader serves reply trees
type ThreadReader interface {
	GetThread(ctx context.Context, postID, order, viewerID string) (*models.ThreadNode, error)
}

// LikeToggler flips like state
type LikeToggler interface {
	Toggle(ctx context.Context, userID, postID string) (*models.ToggleLikeResponse, error)
}

// PostWriter creates, edits and deletes posts
type PostWriter interface {
	Create(ctx context.Context, authorID string, in services.CreatePostInput) (*models.CreatePostResponse, error)
	Update(ctx context.Context, userID, postID, text string) (*models.Post, error)
	Delete(ctx context.Context, userID, postID string) error
}
