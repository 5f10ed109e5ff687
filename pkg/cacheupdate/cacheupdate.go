// Package cacheupdate holds typed, pure updaters for client-side caches of
// feed pages and thread trees. The same function serves an optimistic apply
// and its rollback: apply the inverse patch, or keep the untouched original,
// since inputs are never mutated.
package cacheupdate

import (
	"github.com/threadline/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedCache is every loaded page of one feed query
type FeedCache struct {
	Pages []models.FeedResponse
}

// PostPatch is a partial update of the mutable counters of a post. Nil
// fields are left alone.
type PostPatch struct {
	IsLiked      *bool
	LikesCount   *int
	RepliesCount *int
}

// Empty reports whether the patch changes nothing
func (p PostPatch) Empty() bool {
	return p.IsLiked == nil && p.LikesCount == nil && p.RepliesCount == nil
}

func (p PostPatch) apply(item models.FeedItem) models.FeedItem {
	if p.IsLiked != nil {
		item.IsLiked = *p.IsLiked
	}
	if p.LikesCount != nil {
		item.LikesCount = *p.LikesCount
	}
	if p.RepliesCount != nil {
		item.RepliesCount = *p.RepliesCount
	}
	return item
}

// LikeToggled is the patch a like toggle on item produces
func LikeToggled(item models.FeedItem) PostPatch {
	liked := !item.IsLiked
	count := item.LikesCount + 1
	if !liked {
		count = item.LikesCount - 1
	}
	if count < 0 {
		count = 0
	}
	return PostPatch{IsLiked: &liked, LikesCount: &count}
}

// ReplyAdded is the patch a new direct reply to item produces
func ReplyAdded(item models.FeedItem) PostPatch {
	count := item.RepliesCount + 1
	return PostPatch{RepliesCount: &count}
}

// Restore is the patch that puts the counters of item back. Apply it to
// roll back an optimistic update made from item.
func Restore(item models.FeedItem) PostPatch {
	liked, likes, replies := item.IsLiked, item.LikesCount, item.RepliesCount
	return PostPatch{IsLiked: &liked, LikesCount: &likes, RepliesCount: &replies}
}

// ApplyToFeed returns a copy of cache with patch applied to every item whose
// id is postID. Pages that do not hold the post are shared with the input.
func ApplyToFeed(cache FeedCache, postID primitive.ObjectID, patch PostPatch) FeedCache {
	if cache.Pages == nil || patch.Empty() {
		return cache
	}

	out := FeedCache{Pages: make([]models.FeedResponse, len(cache.Pages))}
	for i, page := range cache.Pages {
		out.Pages[i] = page
		idx := indexOf(page.Items, postID)
		if idx < 0 {
			continue
		}
		items := make([]models.FeedItem, len(page.Items))
		copy(items, page.Items)
		for j := idx; j < len(items); j++ {
			if items[j].ID == postID {
				items[j] = patch.apply(items[j])
			}
		}
		out.Pages[i].Items = items
	}
	return out
}

func indexOf(items []models.FeedItem, id primitive.ObjectID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// ApplyToThread returns a copy of the tree rooted at node with patch applied
// to the node whose id is postID, at any depth. Untouched subtrees are shared
// with the input; the path from the root to the patched node is copied.
func ApplyToThread(node *models.ThreadNode, postID primitive.ObjectID, patch PostPatch) *models.ThreadNode {
	if node == nil || patch.Empty() {
		return node
	}
	return applyToNode(node, postID, patch)
}

// frame is one visited node: its parent's frame index and its slot in the
// parent's Replies
type frame struct {
	node   *models.ThreadNode
	parent int
	slot   int
}

// applyToNode walks the tree with an explicit stack, then rebuilds changed
// nodes children-first so depth is bounded by memory, not the call stack.
func applyToNode(root *models.ThreadNode, postID primitive.ObjectID, patch PostPatch) *models.ThreadNode {
	var frames []frame
	stack := []frame{{node: root, parent: -1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		idx := len(frames)
		frames = append(frames, f)
		for i := len(f.node.Replies) - 1; i >= 0; i-- {
			if child := f.node.Replies[i]; child != nil {
				stack = append(stack, frame{node: child, parent: idx, slot: i})
			}
		}
	}

	// Frames are in pre-order, so every child sits after its parent.
	patched := make([]*models.ThreadNode, len(frames))
	replies := make([][]*models.ThreadNode, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		self := f.node.ID == postID
		if !self && replies[i] == nil {
			continue
		}

		cp := *f.node
		if self {
			cp.FeedItem = patch.apply(f.node.FeedItem)
		}
		if replies[i] != nil {
			cp.Replies = replies[i]
		}
		patched[i] = &cp

		if f.parent < 0 {
			continue
		}
		if replies[f.parent] == nil {
			siblings := frames[f.parent].node.Replies
			replies[f.parent] = make([]*models.ThreadNode, len(siblings))
			copy(replies[f.parent], siblings)
		}
		replies[f.parent][f.slot] = patched[i]
	}

	if patched[0] == nil {
		return root
	}
	return patched[0]
}
