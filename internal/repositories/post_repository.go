package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/threadline/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FeedScope restricts which tree positions a feed query returns
type FeedScope int

const (
	ScopeRoot    FeedScope = iota // parentPost is null
	ScopeReplies                  // parentPost is set
	ScopeAny
)

// FeedFilter describes one page query against the posts collection
type FeedFilter struct {
	Scope    FeedScope
	AuthorID string
	// LikedBy restricts the page to posts this user has liked
	LikedBy   string
	Cursor    *time.Time // exclusive createdAt bound
	Ascending bool
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	FindFeed(ctx context.Context, filter FeedFilter, limit int64) ([]models.Post, error)
	GetThread(ctx context.Context, rootID primitive.ObjectID) (*models.Post, []models.Post, error)
	CreatePostWithMedia(ctx context.Context, post *models.Post, media []models.Media) error
	UpdateText(ctx context.Context, id primitive.ObjectID, text string, editedAt time.Time) (*models.Post, error)
	DeleteSubtree(ctx context.Context, id primitive.ObjectID) ([]models.Media, error)
	GetLikesCount(ctx context.Context, id primitive.ObjectID) (int, error)
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	media      *mongo.Collection
	likes      *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{
		client:     db.Client(),
		collection: db.Collection("posts"),
		media:      db.Collection("media"),
		likes:      db.Collection("likes"),
	}
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var post models.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// FindFeed returns up to limit posts matching filter, ordered by createdAt
// with _id as the tie-breaker.
func (r *MongoPostRepository) FindFeed(ctx context.Context, filter FeedFilter, limit int64) ([]models.Post, error) {
	dir := -1
	if filter.Ascending {
		dir = 1
	}
	sortSpec := bson.D{{Key: "createdAt", Value: dir}, {Key: "_id", Value: dir}}

	var (
		cursor *mongo.Cursor
		err    error
	)
	if filter.LikedBy != "" {
		cursor, err = r.likes.Aggregate(ctx, likedFeedPipeline(r.collection.Name(), filter, sortSpec, limit))
	} else {
		findOptions := options.Find().SetLimit(limit).SetSort(sortSpec)
		cursor, err = r.collection.Find(ctx, feedQuery(filter), findOptions)
	}
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// likedFeedPipeline starts from the viewer's likes and joins their posts,
// so the page is filtered, sorted and limited server-side.
func likedFeedPipeline(posts string, filter FeedFilter, sortSpec bson.D, limit int64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user": filter.LikedBy}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         posts,
			"localField":   "post",
			"foreignField": "_id",
			"as":           "post",
		}}},
		{{Key: "$unwind", Value: "$post"}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$post"}}},
		{{Key: "$match", Value: feedQuery(filter)}},
		{{Key: "$sort", Value: sortSpec}},
		{{Key: "$limit", Value: limit}},
	}
}

func feedQuery(filter FeedFilter) bson.M {
	query := bson.M{}
	switch filter.Scope {
	case ScopeRoot:
		query["parentPost"] = nil
	case ScopeReplies:
		query["parentPost"] = bson.M{"$ne": nil}
	}
	if filter.AuthorID != "" {
		query["author"] = filter.AuthorID
	}
	if filter.Cursor != nil {
		op := "$lt"
		if filter.Ascending {
			op = "$gt"
		}
		query["createdAt"] = bson.M{op: *filter.Cursor}
	}
	return query
}

// GetThread loads the root post and every transitive reply in a single
// $graphLookup aggregation.
func (r *MongoPostRepository) GetThread(ctx context.Context, rootID primitive.ObjectID) (*models.Post, []models.Post, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": rootID}}},
		{{Key: "$graphLookup", Value: bson.M{
			"from":             r.collection.Name(),
			"startWith":        "$_id",
			"connectFromField": "_id",
			"connectToField":   "parentPost",
			"as":               "descendants",
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, nil, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		models.Post `bson:",inline"`
		Descendants []models.Post `bson:"descendants"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, nil, err
	}
	if len(results) == 0 {
		return nil, nil, ErrPostNotFound
	}

	root := results[0].Post
	descendants := results[0].Descendants
	if descendants == nil {
		descendants = []models.Post{}
	}
	return &root, descendants, nil
}

// CreatePostWithMedia inserts post and its media and bumps the parent's
// repliesCount, all in one transaction.
func (r *MongoPostRepository) CreatePostWithMedia(ctx context.Context, post *models.Post, media []models.Media) error {
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	post.CreatedAt = now
	post.UpdatedAt = now

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.collection.InsertOne(sc, post); err != nil {
			return nil, err
		}
		if !post.IsRoot() {
			res, err := r.collection.UpdateOne(sc,
				bson.M{"_id": *post.ParentPost},
				bson.M{"$inc": bson.M{"repliesCount": 1}})
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, ErrParentNotFound
			}
		}
		if len(media) == 0 {
			return nil, nil
		}
		docs := make([]interface{}, len(media))
		for i := range media {
			if media[i].ID.IsZero() {
				media[i].ID = primitive.NewObjectID()
			}
			media[i].PostID = post.ID
			media[i].CreatedAt = now
			docs[i] = media[i]
		}
		_, err := r.media.InsertMany(sc, docs)
		return nil, err
	})
	return err
}

// UpdateText replaces a post's text and marks it edited
func (r *MongoPostRepository) UpdateText(ctx context.Context, id primitive.ObjectID, text string, editedAt time.Time) (*models.Post, error) {
	update := bson.M{
		"$set": bson.M{
			"text":      text,
			"isEdited":  true,
			"updatedAt": editedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var post models.Post
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// DeleteSubtree removes a post, all of its descendants and their media
// and likes, and decrements the parent's repliesCount. It returns the
// removed media so their assets can be released.
//
// The subtree is read inside the transaction. A reply created concurrently
// under any subtree node bumps that node's repliesCount, so it conflicts
// with the delete and one side retries.
func (r *MongoPostRepository) DeleteSubtree(ctx context.Context, id primitive.ObjectID) ([]models.Media, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	removed, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		root, descendants, err := r.GetThread(sc, id)
		if err != nil {
			return nil, err
		}
		ids := make([]primitive.ObjectID, 0, len(descendants)+1)
		ids = append(ids, root.ID)
		for _, d := range descendants {
			ids = append(ids, d.ID)
		}

		cursor, err := r.media.Find(sc, bson.M{"post": bson.M{"$in": ids}})
		if err != nil {
			return nil, err
		}
		media := []models.Media{}
		if err := cursor.All(sc, &media); err != nil {
			return nil, err
		}

		if _, err := r.media.DeleteMany(sc, bson.M{"post": bson.M{"$in": ids}}); err != nil {
			return nil, err
		}
		if _, err := r.likes.DeleteMany(sc, bson.M{"post": bson.M{"$in": ids}}); err != nil {
			return nil, err
		}
		if _, err := r.collection.DeleteMany(sc, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
			return nil, err
		}
		if !root.IsRoot() {
			if _, err := r.collection.UpdateOne(sc,
				bson.M{"_id": *root.ParentPost},
				bson.M{"$inc": bson.M{"repliesCount": -1}}); err != nil {
				return nil, err
			}
		}
		return media, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete post subtree: %w", err)
	}
	return removed.([]models.Media), nil
}

// GetLikesCount reads the stored likesCount of a post
func (r *MongoPostRepository) GetLikesCount(ctx context.Context, id primitive.ObjectID) (int, error) {
	var doc struct {
		LikesCount int `bson:"likesCount"`
	}
	opts := options.FindOne().SetProjection(bson.M{"likesCount": 1})
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrPostNotFound
		}
		return 0, err
	}
	return doc.LikesCount, nil
}
