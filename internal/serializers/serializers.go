// Package serializers projects stored records into their public JSON shapes.
package serializers

import (
	"fmt"

	"github.com/threadline/backend/internal/media"
	"github.com/threadline/backend/internal/models"
)

// IntegrityError reports a post whose author is missing from the user
// directory. It is a bug signal and maps to a server error.
type IntegrityError struct {
	PostID   string
	AuthorID string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("data integrity: author %q of post %s not found", e.AuthorID, e.PostID)
}

// Serializer carries the media resolver used for avatar and attachment URLs
type Serializer struct {
	resolver *media.Resolver
}

// New creates a Serializer
func New(resolver *media.Resolver) *Serializer {
	return &Serializer{resolver: resolver}
}

// Author projects user into the public author shape. A nil user is an
// IntegrityError naming postID and authorID.
func (s *Serializer) Author(user *models.User, postID, authorID string) (models.SerializedAuthor, error) {
	if user == nil {
		return models.SerializedAuthor{}, &IntegrityError{PostID: postID, AuthorID: authorID}
	}
	return models.SerializedAuthor{
		ID:        user.ID,
		UserName:  user.UserName,
		FullName:  user.FullName,
		AvatarURL: s.avatarURL(user),
	}, nil
}

func (s *Serializer) avatarURL(user *models.User) string {
	if user.AvatarPublicID != "" {
		return s.resolver.URL(models.MediaImage, user.AvatarPublicID, user.AvatarURL, media.VariantThumb)
	}
	return user.AvatarURL
}

// Media projects attachments into their public shape. The result is never nil.
func (s *Serializer) Media(items []models.Media, variant media.Variant) []models.MediaItem {
	out := make([]models.MediaItem, 0, len(items))
	for _, m := range items {
		out = append(out, models.MediaItem{
			Type: m.Type,
			URL:  s.resolver.URL(m.Type, m.PublicID, m.URL, variant),
		})
	}
	return out
}

// FeedItem combines a post with its author, attachments and the viewer's
// like state.
func (s *Serializer) FeedItem(post *models.Post, author *models.User, attachments []models.Media, liked bool, variant media.Variant) (models.FeedItem, error) {
	serialized, err := s.Author(author, post.ID.Hex(), post.AuthorID)
	if err != nil {
		return models.FeedItem{}, err
	}
	return models.FeedItem{
		ID:           post.ID,
		ParentPost:   post.ParentPost,
		Text:         post.Text,
		Author:       serialized,
		LikesCount:   post.LikesCount,
		RepliesCount: post.RepliesCount,
		IsLiked:      liked,
		IsEdited:     post.IsEdited,
		CreatedAt:    post.CreatedAt,
		UpdatedAt:    post.UpdatedAt,
		Media:        s.Media(attachments, variant),
	}, nil
}
