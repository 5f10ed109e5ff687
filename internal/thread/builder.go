// Package thread rebuilds a reply tree from the flat descendant list of a
// root post.
package thread

import (
	"fmt"
	"sort"

	"github.com/threadline/backend/internal/media"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/serializers"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Policy orders siblings within one thread level
type Policy string

const (
	PolicyAsc  Policy = "asc"  // oldest first
	PolicyDesc Policy = "desc" // newest first
	PolicyTop  Policy = "top"  // likes+replies desc, then newest first
)

// ParsePolicy maps the order query parameter onto a Policy. Empty means asc.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "":
		return PolicyAsc, nil
	case PolicyAsc, PolicyDesc, PolicyTop:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown thread order %q", s)
}

// Input is everything Build needs; the lookup maps must cover every post in
// Root and Descendants.
type Input struct {
	Root          *models.Post
	Descendants   []models.Post
	UsersByID     map[string]*models.User
	MediaByPostID map[primitive.ObjectID][]models.Media
	LikedPostIDs  map[primitive.ObjectID]bool
	Policy        Policy
}

// Build assembles the hydrated tree rooted at in.Root. Every post appears
// exactly once; a post whose author is missing fails the whole build with
// a *serializers.IntegrityError.
func Build(in Input, s *serializers.Serializer) (*models.ThreadNode, error) {
	children := groupChildren(in.Descendants)
	for _, siblings := range children {
		sortSiblings(siblings, in.Policy)
	}

	root, err := hydrate(in, s, in.Root)
	if err != nil {
		return nil, err
	}

	type frame struct {
		post *models.Post
		node *models.ThreadNode
	}
	visited := map[primitive.ObjectID]bool{in.Root.ID: true}
	stack := []frame{{post: in.Root, node: root}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range children[top.post.ID] {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true

			node, err := hydrate(in, s, child)
			if err != nil {
				return nil, err
			}
			top.node.Replies = append(top.node.Replies, node)
			stack = append(stack, frame{post: child, node: node})
		}
	}
	return root, nil
}

func groupChildren(descendants []models.Post) map[primitive.ObjectID][]*models.Post {
	children := make(map[primitive.ObjectID][]*models.Post)
	for i := range descendants {
		p := &descendants[i]
		if p.ParentPost == nil {
			continue
		}
		children[*p.ParentPost] = append(children[*p.ParentPost], p)
	}
	return children
}

func sortSiblings(siblings []*models.Post, policy Policy) {
	sort.SliceStable(siblings, func(i, j int) bool {
		a, b := siblings[i], siblings[j]
		switch policy {
		case PolicyTop:
			if sa, sb := a.EngagementScore(), b.EngagementScore(); sa != sb {
				return sa > sb
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		case PolicyDesc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID.Hex() > b.ID.Hex()
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		}
		return a.ID.Hex() < b.ID.Hex()
	})
}

func hydrate(in Input, s *serializers.Serializer, post *models.Post) (*models.ThreadNode, error) {
	item, err := s.FeedItem(post, in.UsersByID[post.AuthorID], in.MediaByPostID[post.ID], in.LikedPostIDs[post.ID], media.VariantFull)
	if err != nil {
		return nil, err
	}
	return &models.ThreadNode{FeedItem: item, Replies: []*models.ThreadNode{}}, nil
}
