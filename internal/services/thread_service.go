package services

import (
	"context"

	"github.com/threadline/backend/internal/metrics"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/repositories"
	"github.com/threadline/backend/internal/serializers"
	"github.com/threadline/backend/internal/thread"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// ThreadService loads a post with all of its transitive replies
type ThreadService struct {
	posts      repositories.PostRepository
	likes      repositories.LikeRepository
	media      repositories.MediaRepository
	authors    *AuthorDirectory
	serializer *serializers.Serializer
}

// NewThreadService creates a new ThreadService
func NewThreadService(
	posts repositories.PostRepository,
	likes repositories.LikeRepository,
	mediaRepo repositories.MediaRepository,
	authors *AuthorDirectory,
	serializer *serializers.Serializer,
) *ThreadService {
	return &ThreadService{posts: posts, likes: likes, media: mediaRepo, authors: authors, serializer: serializer}
}

// GetThread builds the reply tree of postID ordered by order (asc, desc or top)
func (s *ThreadService) GetThread(ctx context.Context, postID, order, viewerID string) (*models.ThreadNode, error) {
	id, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return nil, repositories.ErrInvalidID
	}
	policy, err := thread.ParsePolicy(order)
	if err != nil {
		return nil, validationError("%s", err.Error())
	}

	root, descendants, err := s.posts.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}

	postIDs := make([]primitive.ObjectID, 0, len(descendants)+1)
	authorIDs := make([]string, 0, len(descendants)+1)
	postIDs = append(postIDs, root.ID)
	authorIDs = append(authorIDs, root.AuthorID)
	for i := range descendants {
		postIDs = append(postIDs, descendants[i].ID)
		authorIDs = append(authorIDs, descendants[i].AuthorID)
	}

	in := thread.Input{Root: root, Descendants: descendants, Policy: policy}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.MediaByPostID, err = s.media.FindByPostIDs(gctx, postIDs)
		return err
	})
	g.Go(func() (err error) {
		in.LikedPostIDs, err = s.likes.LikedPostIDs(gctx, viewerID, postIDs)
		return err
	})
	g.Go(func() (err error) {
		in.UsersByID, err = s.authors.Lookup(gctx, authorIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tree, err := thread.Build(in, s.serializer)
	if err != nil {
		return nil, err
	}
	metrics.ThreadNodes.Observe(float64(len(postIDs)))
	return tree, nil
}
