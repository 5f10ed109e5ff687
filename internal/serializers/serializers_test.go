package serializers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/media"
	"github.com/threadline/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newSerializer() *Serializer {
	return New(media.NewResolver("https://cdn.example.com"))
}

func TestAuthor(t *testing.T) {
	s := newSerializer()

	t.Run("resolves avatar from public id", func(t *testing.T) {
		user := &models.User{ID: "u1", UserName: "alice", FullName: "Alice A", AvatarPublicID: "avatars/alice", AvatarURL: "https://old.example.com/a.png"}
		got, err := s.Author(user, "p1", "u1")
		require.NoError(t, err)
		assert.Equal(t, models.SerializedAuthor{
			ID:        "u1",
			UserName:  "alice",
			FullName:  "Alice A",
			AvatarURL: "https://cdn.example.com/image/upload/w_200,c_fill,q_auto,f_auto/avatars/alice",
		}, got)
	})

	t.Run("falls back to stored url", func(t *testing.T) {
		got, err := s.Author(&models.User{ID: "u2", AvatarURL: "https://old.example.com/b.png"}, "p1", "u2")
		require.NoError(t, err)
		assert.Equal(t, "https://old.example.com/b.png", got.AvatarURL)
	})

	t.Run("empty avatar", func(t *testing.T) {
		got, err := s.Author(&models.User{ID: "u3"}, "p1", "u3")
		require.NoError(t, err)
		assert.Equal(t, "", got.AvatarURL)
	})

	t.Run("missing user is an integrity error", func(t *testing.T) {
		_, err := s.Author(nil, "p9", "ghost")
		var integrity *IntegrityError
		require.True(t, errors.As(err, &integrity))
		assert.Equal(t, "p9", integrity.PostID)
		assert.Equal(t, "ghost", integrity.AuthorID)
		assert.Contains(t, err.Error(), "ghost")
	})
}

func TestMedia(t *testing.T) {
	s := newSerializer()

	got := s.Media([]models.Media{
		{Type: models.MediaImage, PublicID: "posts/a.jpg"},
		{Type: models.MediaVideo, PublicID: "posts/b.mp4"},
	}, media.VariantFeed)

	assert.Equal(t, []models.MediaItem{
		{Type: models.MediaImage, URL: "https://cdn.example.com/image/upload/w_900,c_limit,q_auto,f_auto/posts/a.jpg"},
		{Type: models.MediaVideo, URL: "https://cdn.example.com/video/upload/posts/b.mp4"},
	}, got)

	empty := s.Media(nil, media.VariantFeed)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFeedItem(t *testing.T) {
	s := newSerializer()
	post := &models.Post{ID: primitive.NewObjectID(), AuthorID: "u1", Text: "hi", LikesCount: 3, RepliesCount: 1}

	item, err := s.FeedItem(post, &models.User{ID: "u1", UserName: "alice"}, nil, true, media.VariantFeed)
	require.NoError(t, err)
	assert.Equal(t, post.ID, item.ID)
	assert.Equal(t, "alice", item.Author.UserName)
	assert.True(t, item.IsLiked)
	assert.Equal(t, 3, item.LikesCount)
	assert.NotNil(t, item.Media)

	_, err = s.FeedItem(post, nil, nil, false, media.VariantFeed)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, post.ID.Hex(), integrity.PostID)
}
