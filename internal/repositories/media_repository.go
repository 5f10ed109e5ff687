package repositories

import (
	"context"

	"github.com/threadline/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MediaRepository defines the interface for media data operations
type MediaRepository interface {
	FindByPostIDs(ctx context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID][]models.Media, error)
}

// MongoMediaRepository implements MediaRepository for MongoDB
type MongoMediaRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaRepository creates a new MongoMediaRepository
func NewMongoMediaRepository(db *mongo.Database) *MongoMediaRepository {
	return &MongoMediaRepository{collection: db.Collection("media")}
}

// FindByPostIDs loads the media of many posts in one query, grouped by post
// in insertion order.
func (r *MongoMediaRepository) FindByPostIDs(ctx context.Context, postIDs []primitive.ObjectID) (map[primitive.ObjectID][]models.Media, error) {
	grouped := make(map[primitive.ObjectID][]models.Media)
	if len(postIDs) == 0 {
		return grouped, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"post": bson.M{"$in": postIDs}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var media []models.Media
	if err = cursor.All(ctx, &media); err != nil {
		return nil, err
	}
	for _, m := range media {
		grouped[m.PostID] = append(grouped[m.PostID], m)
	}
	return grouped, nil
}
