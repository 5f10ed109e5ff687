package services

import (
	"bytes"
	"context"
	"errors"
	"html"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/threadline/backend/internal/logging"
	"github.com/threadline/backend/internal/media"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/repositories"
	"github.com/threadline/backend/internal/serializers"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const (
	minTextLength = 3
	maxTextLength = 1000

	sniffLength = 3072
)

// CreatePostInput is a new post or reply with its attachments
type CreatePostInput struct {
	Text       string
	ParentPost string
	Files      []media.UploadInput
}

// PostService implements the post lifecycle: create, edit and delete
type PostService struct {
	posts      repositories.PostRepository
	assets     media.AssetHost
	serializer *serializers.Serializer
	sanitizer  *bluemonday.Policy
	editWindow time.Duration
	now        func() time.Time
}

// NewPostService creates a new PostService. An editWindow of 0 disables edits.
func NewPostService(posts repositories.PostRepository, assets media.AssetHost, serializer *serializers.Serializer, editWindow time.Duration) *PostService {
	return &PostService{
		posts:      posts,
		assets:     assets,
		serializer: serializer,
		sanitizer:  bluemonday.StrictPolicy(),
		editWindow: editWindow,
		now:        time.Now,
	}
}

// Create stores a post, uploading its attachments first. If anything fails
// after an upload succeeded, the uploaded assets are deleted again.
func (s *PostService) Create(ctx context.Context, authorID string, in CreatePostInput) (*models.CreatePostResponse, error) {
	if authorID == "" {
		return nil, ErrUnauthorized
	}
	text, err := s.cleanText(in.Text)
	if err != nil {
		return nil, err
	}

	post := &models.Post{AuthorID: authorID, Text: text}
	if in.ParentPost != "" {
		parentID, err := primitive.ObjectIDFromHex(in.ParentPost)
		if err != nil {
			return nil, repositories.ErrInvalidID
		}
		if _, err := s.posts.GetPostByID(ctx, parentID); err != nil {
			if errors.Is(err, repositories.ErrPostNotFound) {
				return nil, repositories.ErrParentNotFound
			}
			return nil, err
		}
		post.ParentPost = &parentID
	}

	assets, err := s.uploadAll(ctx, in.Files)
	if err != nil {
		s.releaseAssets(ctx, assets)
		return nil, err
	}

	attachments := make([]models.Media, len(assets))
	for i, a := range assets {
		attachments[i] = models.Media{Type: a.Type, URL: a.URL, PublicID: a.PublicID}
	}
	if err := s.posts.CreatePostWithMedia(ctx, post, attachments); err != nil {
		s.releaseAssets(ctx, assets)
		return nil, err
	}

	logging.Ctx(ctx).Info().Str("post_id", post.ID.Hex()).Int("media", len(attachments)).Msg("post created")
	return &models.CreatePostResponse{
		Post:  post,
		Media: s.serializer.Media(attachments, media.VariantFeed),
	}, nil
}

// uploadAll uploads files concurrently, keeping their order. On failure it
// returns the assets that did get stored alongside the error.
func (s *PostService) uploadAll(ctx context.Context, files []media.UploadInput) ([]media.Asset, error) {
	if len(files) == 0 {
		return nil, nil
	}

	// each goroutine owns one slot
	results := make([]*media.Asset, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			f.Body, f.ContentType = classify(f.Body, f.ContentType)
			asset, err := s.assets.Upload(gctx, f)
			if err != nil {
				return err
			}
			results[i] = &asset
			return nil
		})
	}
	err := g.Wait()

	assets := make([]media.Asset, 0, len(files))
	for _, a := range results {
		if a != nil {
			assets = append(assets, *a)
		}
	}
	return assets, err
}

// classify sniffs the leading bytes of body for its content type, falling
// back to the declared type when the content is not recognized.
func classify(body io.Reader, declared string) (io.Reader, string) {
	if body == nil {
		return body, declared
	}
	head := make([]byte, sniffLength)
	n, _ := io.ReadFull(body, head)
	head = head[:n]

	detected := mimetype.Detect(head)
	contentType := declared
	if !detected.Is("application/octet-stream") && !detected.Is("text/plain") {
		contentType = detected.String()
	}
	return io.MultiReader(bytes.NewReader(head), body), contentType
}

// releaseAssets is best effort; failures are logged and swallowed.
func (s *PostService) releaseAssets(ctx context.Context, assets []media.Asset) {
	ctx = context.WithoutCancel(ctx)
	for _, a := range assets {
		if a.PublicID == "" {
			continue
		}
		if err := s.assets.Delete(ctx, a.PublicID, a.Type); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("public_id", a.PublicID).Msg("failed to delete uploaded asset")
		}
	}
}

// Update replaces a post's text. Only the author may edit, and only within
// the edit window.
func (s *PostService) Update(ctx context.Context, userID, postID, text string) (*models.Post, error) {
	id, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return nil, repositories.ErrInvalidID
	}
	cleaned, err := s.cleanText(text)
	if err != nil {
		return nil, err
	}

	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, ErrForbidden
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	if s.editWindow <= 0 || now.After(post.CreatedAt.Add(s.editWindow)) {
		return nil, ErrEditWindowClosed
	}

	return s.posts.UpdateText(ctx, id, cleaned, now)
}

// Delete removes a post with its whole reply subtree, then releases the
// assets of every removed attachment.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	id, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return repositories.ErrInvalidID
	}

	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return ErrForbidden
	}

	removed, err := s.posts.DeleteSubtree(ctx, id)
	if err != nil {
		return err
	}

	assets := make([]media.Asset, len(removed))
	for i, m := range removed {
		assets[i] = media.Asset{PublicID: m.PublicID, URL: m.URL, Type: m.Type}
	}
	s.releaseAssets(ctx, assets)

	logging.Ctx(ctx).Info().Str("post_id", postID).Int("media", len(removed)).Msg("post deleted")
	return nil
}

func (s *PostService) cleanText(raw string) (string, error) {
	text := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(raw)))
	n := utf8.RuneCountInString(text)
	if n < minTextLength || n > maxTextLength {
		return "", validationError("text must be between %d and %d characters", minTextLength, maxTextLength)
	}
	return text, nil
}
