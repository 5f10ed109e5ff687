package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/threadline/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	Toggle(ctx context.Context, userID string, postID primitive.ObjectID) (bool, error)
	LikedPostIDs(ctx context.Context, userID string, postIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error)
}

// MongoLikeRepository implements LikeRepository for MongoDB
type MongoLikeRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	posts      *mongo.Collection
}

// NewMongoLikeRepository creates a new MongoLikeRepository
func NewMongoLikeRepository(db *mongo.Database) *MongoLikeRepository {
	return &MongoLikeRepository{
		client:     db.Client(),
		collection: db.Collection("likes"),
		posts:      db.Collection("posts"),
	}
}

// Toggle flips the (user, post) like and adjusts the post's likesCount in
// the same transaction. It returns the new liked state.
//
// Deleting first decides the direction atomically: a matched delete means
// the pair existed. A duplicate key on insert means a concurrent toggle won
// and is reported as ErrLikeConflict.
func (r *MongoLikeRepository) Toggle(ctx context.Context, userID string, postID primitive.ObjectID) (bool, error) {
	session, err := r.client.StartSession()
	if err != nil {
		return false, err
	}
	defer session.EndSession(ctx)

	liked, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		del, err := r.collection.DeleteOne(sc, bson.M{"user": userID, "post": postID})
		if err != nil {
			return nil, err
		}

		delta, liked := 1, true
		if del.DeletedCount > 0 {
			delta, liked = -1, false
		} else {
			like := models.Like{
				ID:        primitive.NewObjectID(),
				UserID:    userID,
				PostID:    postID,
				CreatedAt: time.Now().UTC(),
			}
			if _, err := r.collection.InsertOne(sc, like); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return nil, ErrLikeConflict
				}
				return nil, err
			}
		}

		res, err := r.posts.UpdateOne(sc, bson.M{"_id": postID}, bson.M{"$inc": bson.M{"likesCount": delta}})
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, ErrPostNotFound
		}
		return liked, nil
	})
	if err != nil {
		return false, err
	}
	return liked.(bool), nil
}

// LikedPostIDs reports which of postIDs userID has liked, in one query
func (r *MongoLikeRepository) LikedPostIDs(ctx context.Context, userID string, postIDs []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	liked := make(map[primitive.ObjectID]bool)
	if userID == "" || len(postIDs) == 0 {
		return liked, nil
	}

	opts := options.Find().SetProjection(bson.M{"post": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"user": userID, "post": bson.M{"$in": postIDs}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var likes []models.Like
	if err = cursor.All(ctx, &likes); err != nil {
		return nil, err
	}
	for _, l := range likes {
		liked[l.PostID] = true
	}
	return liked, nil
}

// IsLikeConflict reports whether err came from a lost toggle race
func IsLikeConflict(err error) bool {
	return errors.Is(err, ErrLikeConflict)
}
