package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/threadline/backend/internal/media"
	"github.com/threadline/backend/internal/models"
	"github.com/threadline/backend/internal/repositories"
	"github.com/threadline/backend/internal/serializers"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type likeKey struct {
	user string
	post primitive.ObjectID
}

// fakeStore is an in-memory stand-in for the post, like and media
// repositories. Every method holds the same lock, which gives Toggle the
// same all-or-nothing behavior as the transactional implementation.
type fakeStore struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
	likes map[likeKey]bool
	media map[primitive.ObjectID][]models.Media
	clock time.Time

	conflictsLeft int
	createErr     error

	findFeedCalls int
	mediaCalls    int
	likedCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		posts: map[primitive.ObjectID]*models.Post{},
		likes: map[likeKey]bool{},
		media: map[primitive.ObjectID][]models.Media{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// addPost inserts a post directly, bypassing CreatePostWithMedia
func (f *fakeStore) addPost(author string, parent *models.Post, createdAt time.Time) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Post{ID: primitive.NewObjectID(), AuthorID: author, Text: "post", CreatedAt: createdAt, UpdatedAt: createdAt}
	if parent != nil {
		id := parent.ID
		p.ParentPost = &id
		f.posts[parent.ID].RepliesCount++
	}
	f.posts[p.ID] = p
	return p
}

func (f *fakeStore) likeCount(post primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.likes {
		if k.post == post {
			n++
		}
	}
	return n
}

func (f *fakeStore) GetPostByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) FindFeed(_ context.Context, filter repositories.FeedFilter, limit int64) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findFeedCalls++

	out := []models.Post{}
	for _, p := range f.posts {
		switch {
		case filter.Scope == repositories.ScopeRoot && p.ParentPost != nil,
			filter.Scope == repositories.ScopeReplies && p.ParentPost == nil,
			filter.AuthorID != "" && p.AuthorID != filter.AuthorID,
			filter.LikedBy != "" && !f.likes[likeKey{user: filter.LikedBy, post: p.ID}],
			filter.Cursor != nil && !filter.Ascending && !p.CreatedAt.Before(*filter.Cursor),
			filter.Cursor != nil && filter.Ascending && !p.CreatedAt.After(*filter.Cursor):
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Ascending {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) GetThread(_ context.Context, rootID primitive.ObjectID) (*models.Post, []models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	root, ok := f.posts[rootID]
	if !ok {
		return nil, nil, repositories.ErrPostNotFound
	}
	descendants := []models.Post{}
	frontier := []primitive.ObjectID{rootID}
	for len(frontier) > 0 {
		parent := frontier[0]
		frontier = frontier[1:]
		for _, p := range f.posts {
			if p.ParentPost != nil && *p.ParentPost == parent {
				descendants = append(descendants, *p)
				frontier = append(frontier, p.ID)
			}
		}
	}
	cp := *root
	return &cp, descendants, nil
}

func (f *fakeStore) CreatePostWithMedia(_ context.Context, post *models.Post, attachments []models.Media) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if post.ParentPost != nil {
		parent, ok := f.posts[*post.ParentPost]
		if !ok {
			return repositories.ErrParentNotFound
		}
		parent.RepliesCount++
	}
	post.ID = primitive.NewObjectID()
	f.clock = f.clock.Add(time.Second)
	post.CreatedAt, post.UpdatedAt = f.clock, f.clock
	cp := *post
	f.posts[post.ID] = &cp
	for _, m := range attachments {
		m.PostID = post.ID
		f.media[post.ID] = append(f.media[post.ID], m)
	}
	return nil
}

func (f *fakeStore) UpdateText(_ context.Context, id primitive.ObjectID, text string, editedAt time.Time) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, repositories.ErrPostNotFound
	}
	p.Text, p.IsEdited, p.UpdatedAt = text, true, editedAt
	cp := *p
	return &cp, nil
}

func (f *fakeStore) DeleteSubtree(ctx context.Context, id primitive.ObjectID) ([]models.Media, error) {
	root, descendants, err := f.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	removed := []models.Media{}
	for _, p := range append(descendants, *root) {
		removed = append(removed, f.media[p.ID]...)
		delete(f.media, p.ID)
		delete(f.posts, p.ID)
		for k := range f.likes {
			if k.post == p.ID {
				delete(f.likes, k)
			}
		}
	}
	if root.ParentPost != nil {
		if parent, ok := f.posts[*root.ParentPost]; ok {
			parent.RepliesCount--
		}
	}
	return removed, nil
}

func (f *fakeStore) GetLikesCount(_ context.Context, id primitive.ObjectID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return 0, repositories.ErrPostNotFound
	}
	return p.LikesCount, nil
}

func (f *fakeStore) Toggle(_ context.Context, userID string, postID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return false, repositories.ErrLikeConflict
	}
	p, ok := f.posts[postID]
	if !ok {
		return false, repositories.ErrPostNotFound
	}
	k := likeKey{user: userID, post: postID}
	if f.likes[k] {
		delete(f.likes, k)
		p.LikesCount--
		return false, nil
	}
	f.likes[k] = true
	p.LikesCount++
	return true, nil
}

func (f *fakeStore) LikedPostIDs(_ context.Context, userID string, postIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likedCalls++
	out := map[primitive.ObjectID]bool{}
	for _, id := range postIDs {
		if f.likes[likeKey{user: userID, post: id}] {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeStore) FindByPostIDs(_ context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID][]models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaCalls++
	out := map[primitive.ObjectID][]models.Media{}
	for _, id := range postIDs {
		if m, ok := f.media[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakeUsers struct {
	mu      sync.Mutex
	users   map[string]models.User
	batches int
}

func newFakeUsers(users ...models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.FirebaseUID == uid {
			return &u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUsers) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	out := []models.User{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeAssets struct {
	mu       sync.Mutex
	failOn   string // file name whose upload fails
	uploaded []media.Asset
	deleted  []string
}

func (f *fakeAssets) Upload(_ context.Context, in media.UploadInput) (media.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if in.FileName == f.failOn {
		return media.Asset{}, errors.New("asset host unavailable")
	}
	a := media.Asset{PublicID: "posts/" + in.FileName, URL: "http://minio/posts/" + in.FileName, Type: models.MediaTypeFromContentType(in.ContentType)}
	f.uploaded = append(f.uploaded, a)
	return a, nil
}

func (f *fakeAssets) Delete(_ context.Context, publicID string, _ models.MediaType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return nil
}

func testSerializer() *serializers.Serializer {
	return serializers.New(media.NewResolver("https://cdn.example.com"))
}
