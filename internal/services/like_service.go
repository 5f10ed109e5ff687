package services

import (
	"context"

	"github.com/threadline/backend/internal/logging"
	"github.com/threadline/backend/internal/metrics"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LikeService flips like state
type LikeService struct {
	likes repositories.LikeRepository
	posts repositories.PostRepository
}

// NewLikeService creates a new LikeService
func NewLikeService(likes repositories.LikeRepository, posts repositories.PostRepository) *LikeService {
	return &LikeService{likes: likes, posts: posts}
}

// Toggle likes or unlikes postID for userID. A lost race against a
// concurrent toggle of the same pair is retried once before surfacing
// repositories.ErrLikeConflict.
func (s *LikeService) Toggle(ctx context.Context, userID, postID string) (*models.ToggleLikeResponse, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	id, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return nil, repositories.ErrInvalidID
	}

	liked, err := s.likes.Toggle(ctx, userID, id)
	if repositories.IsLikeConflict(err) {
		logging.Ctx(ctx).Debug().Str("post_id", postID).Msg("like toggle conflict, retrying")
		liked, err = s.likes.Toggle(ctx, userID, id)
	}
	if err != nil {
		if repositories.IsLikeConflict(err) {
			metrics.LikeToggles.WithLabelValues("conflict").Inc()
		} else {
			metrics.LikeToggles.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	// The stored counter is authoritative; other toggles may have landed
	// between our commit and now.
	count, err := s.posts.GetLikesCount(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &models.ToggleLikeResponse{Liked: liked, LikesCount: count}
	if liked {
		resp.Message = "Post liked"
		metrics.LikeToggles.WithLabelValues("liked").Inc()
	} else {
		resp.Message = "Post unliked"
		metrics.LikeToggles.WithLabelValues("unliked").Inc()
	}
	return resp, nil
}
