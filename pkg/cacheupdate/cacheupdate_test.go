package cacheupdate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threadline/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func item(likes int, liked bool) models.FeedItem {
	return models.FeedItem{ID: primitive.NewObjectID(), LikesCount: likes, IsLiked: liked, Media: []models.MediaItem{}}
}

func TestLikeToggled(t *testing.T) {
	p := LikeToggled(item(3, false))
	require.NotNil(t, p.IsLiked)
	assert.True(t, *p.IsLiked)
	assert.Equal(t, 4, *p.LikesCount)
	assert.Nil(t, p.RepliesCount)

	p = LikeToggled(item(3, true))
	assert.False(t, *p.IsLiked)
	assert.Equal(t, 2, *p.LikesCount)

	p = LikeToggled(item(0, true))
	assert.Equal(t, 0, *p.LikesCount)
}

func TestApplyToFeed(t *testing.T) {
	a, b, c := item(1, false), item(5, true), item(0, false)
	cache := FeedCache{Pages: []models.FeedResponse{
		{Items: []models.FeedItem{a, b}},
		{Items: []models.FeedItem{c}},
	}}

	out := ApplyToFeed(cache, b.ID, LikeToggled(b))

	assert.False(t, out.Pages[0].Items[1].IsLiked)
	assert.Equal(t, 4, out.Pages[0].Items[1].LikesCount)
	assert.Equal(t, a, out.Pages[0].Items[0])

	// the input is untouched
	assert.True(t, cache.Pages[0].Items[1].IsLiked)
	assert.Equal(t, 5, cache.Pages[0].Items[1].LikesCount)
	// pages without the post are shared
	assert.Same(t, &cache.Pages[1].Items[0], &out.Pages[1].Items[0])
}

func TestApplyToFeedRollback(t *testing.T) {
	a := item(7, false)
	cache := FeedCache{Pages: []models.FeedResponse{{Items: []models.FeedItem{a}}}}

	optimistic := ApplyToFeed(cache, a.ID, LikeToggled(a))
	assert.Equal(t, 8, optimistic.Pages[0].Items[0].LikesCount)

	rolledBack := ApplyToFeed(optimistic, a.ID, Restore(a))
	assert.Equal(t, cache, rolledBack)

	// toggling twice is its own inverse
	twice := ApplyToFeed(optimistic, a.ID, LikeToggled(optimistic.Pages[0].Items[0]))
	assert.Equal(t, cache, twice)
}

func TestApplyToFeedNoop(t *testing.T) {
	a := item(1, false)
	cache := FeedCache{Pages: []models.FeedResponse{{Items: []models.FeedItem{a}}}}

	assert.Equal(t, cache, ApplyToFeed(cache, primitive.NewObjectID(), LikeToggled(a)))
	assert.Equal(t, cache, ApplyToFeed(cache, a.ID, PostPatch{}))
	assert.Equal(t, FeedCache{}, ApplyToFeed(FeedCache{}, a.ID, LikeToggled(a)))
}

func node(it models.FeedItem, replies ...*models.ThreadNode) *models.ThreadNode {
	if replies == nil {
		replies = []*models.ThreadNode{}
	}
	return &models.ThreadNode{FeedItem: it, Replies: replies}
}

func TestApplyToThreadDeep(t *testing.T) {
	deep := node(item(2, false))
	sibling := node(item(9, true))
	mid := node(item(0, false), deep)
	root := node(item(1, false), mid, sibling)

	out := ApplyToThread(root, deep.ID, LikeToggled(deep.FeedItem))

	got := out.Replies[0].Replies[0]
	assert.True(t, got.IsLiked)
	assert.Equal(t, 3, got.LikesCount)

	// original tree untouched; path copied, siblings shared
	assert.False(t, deep.IsLiked)
	assert.Equal(t, 2, deep.LikesCount)
	assert.NotSame(t, root, out)
	assert.NotSame(t, mid, out.Replies[0])
	assert.Same(t, sibling, out.Replies[1])
	assert.Same(t, mid.Replies[0], deep)
}

func TestApplyToThreadRootAndReplies(t *testing.T) {
	child := node(item(0, false))
	root := node(item(0, false), child)

	out := ApplyToThread(root, root.ID, ReplyAdded(root.FeedItem))
	assert.Equal(t, 1, out.RepliesCount)
	assert.Equal(t, 0, root.RepliesCount)
	assert.Same(t, child, out.Replies[0])

	assert.Same(t, root, ApplyToThread(root, primitive.NewObjectID(), ReplyAdded(root.FeedItem)))
	assert.Nil(t, ApplyToThread(nil, root.ID, ReplyAdded(root.FeedItem)))
}

func TestApplyToThreadLongChain(t *testing.T) {
	const depth = 20000
	root := node(item(0, false))
	leaf := root
	for i := 1; i < depth; i++ {
		next := node(item(0, false))
		leaf.Replies = []*models.ThreadNode{next}
		leaf = next
	}

	out := ApplyToThread(root, leaf.ID, LikeToggled(leaf.FeedItem))

	cur := out
	for i := 1; i < depth; i++ {
		require.Len(t, cur.Replies, 1)
		cur = cur.Replies[0]
	}
	assert.Equal(t, leaf.ID, cur.ID)
	assert.True(t, cur.IsLiked)
	assert.False(t, leaf.IsLiked)
	assert.NotSame(t, root, out)
}
