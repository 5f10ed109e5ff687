package services

import (
	"context"
	"time"

	"github.com/threadline/backend/internal/media"
	"github.com/threadline/backend/internal/metrics"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/repositories"
	"github.com/threadline/backend/internal/serializers"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// FeedConfig bounds page sizes
type FeedConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// FeedService assembles cursor-paginated feed pages
type FeedService struct {
	posts      repositories.PostRepository
	likes      repositories.LikeRepository
	media      repositories.MediaRepository
	authors    *AuthorDirectory
	serializer *serializers.Serializer
	cfg        FeedConfig
}

// NewFeedService creates a new FeedService
func NewFeedService(
	posts repositories.PostRepository,
	likes repositories.LikeRepository,
	mediaRepo repositories.MediaRepository,
	authors *AuthorDirectory,
	serializer *serializers.Serializer,
	cfg FeedConfig,
) *FeedService {
	return &FeedService{
		posts:      posts,
		likes:      likes,
		media:      mediaRepo,
		authors:    authors,
		serializer: serializer,
		cfg:        cfg,
	}
}

// GetFeed returns one page. The page query runs first; media, like state
// and authors are then fetched in one batch each, so the cost of a page
// does not grow with its size.
func (s *FeedService) GetFeed(ctx context.Context, q models.FeedQuery, viewerID string) (*models.FeedResponse, error) {
	filter, err := s.buildFilter(q, viewerID)
	if err != nil {
		return nil, err
	}

	posts, err := s.posts.FindFeed(ctx, filter, int64(s.clampLimit(q.Limit)))
	if err != nil {
		return nil, err
	}

	resp := &models.FeedResponse{Items: make([]models.FeedItem, 0, len(posts))}
	if len(posts) == 0 {
		metrics.FeedPageSize.Observe(0)
		return resp, nil
	}

	postIDs := make([]primitive.ObjectID, len(posts))
	authorIDs := make([]string, len(posts))
	for i := range posts {
		postIDs[i] = posts[i].ID
		authorIDs[i] = posts[i].AuthorID
	}

	var (
		mediaByPost map[primitive.ObjectID][]models.Media
		liked       map[primitive.ObjectID]bool
		authors     map[string]*models.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		mediaByPost, err = s.media.FindByPostIDs(gctx, postIDs)
		return err
	})
	g.Go(func() (err error) {
		liked, err = s.likes.LikedPostIDs(gctx, viewerID, postIDs)
		return err
	})
	g.Go(func() (err error) {
		authors, err = s.authors.Lookup(gctx, authorIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range posts {
		p := &posts[i]
		item, err := s.serializer.FeedItem(p, authors[p.AuthorID], mediaByPost[p.ID], liked[p.ID], media.VariantFeed)
		if err != nil {
			return nil, err
		}
		resp.Items = append(resp.Items, item)
	}

	last := resp.Items[len(resp.Items)-1].CreatedAt
	resp.NextCursor = &last
	metrics.FeedPageSize.Observe(float64(len(resp.Items)))
	return resp, nil
}

func (s *FeedService) clampLimit(limit int) int {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	return limit
}

func (s *FeedService) buildFilter(q models.FeedQuery, viewerID string) (repositories.FeedFilter, error) {
	filter := repositories.FeedFilter{AuthorID: q.AuthorID}

	switch q.Order {
	case "", "desc":
	case "asc":
		filter.Ascending = true
	default:
		return filter, validationError("order must be asc or desc")
	}

	if q.Cursor != "" {
		cursor, err := ParseCursor(q.Cursor)
		if err != nil {
			return filter, err
		}
		filter.Cursor = &cursor
	}

	liked := q.Liked
	switch q.FilterType {
	case "":
		filter.Scope = repositories.ScopeRoot
		if liked {
			filter.Scope = repositories.ScopeAny
		}
	case models.FilterPosts:
		filter.Scope = repositories.ScopeRoot
	case models.FilterReplies:
		filter.Scope = repositories.ScopeReplies
	case models.FilterLiked:
		filter.Scope = repositories.ScopeAny
		liked = true
	default:
		return filter, validationError("unknown filterType %q", q.FilterType)
	}

	if liked {
		if viewerID == "" {
			return filter, ErrUnauthorized
		}
		filter.LikedBy = viewerID
	}
	return filter, nil
}

// ParseCursor reads a nextCursor value as returned by the feed
func ParseCursor(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, validationError("invalid cursor %q", raw)
	}
	return t, nil
}
