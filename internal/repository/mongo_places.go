package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pawtrip/backend/internal/models"
)

const placesCollection = "places"

// MongoPlaceRepository stores places in MongoDB, for deployments that share
// place data across instances
type MongoPlaceRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// ConnectMongo opens a client, verifies it with a ping and ensures the trending index
func ConnectMongo(ctx context.Context, uri, database string) (*MongoPlaceRepository, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	repo := &MongoPlaceRepository{
		client:     client,
		collection: client.Database(database).Collection(placesCollection),
	}

	_, err = repo.collection.Indexes().CreateOne(pingCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "rating", Value: -1}, {Key: "review_count", Value: -1}},
	})
	if err != nil {
		log.Printf("[mongo] failed to create trending index: %v", err)
	}

	log.Printf("[mongo] connected, places in %s.%s", database, placesCollection)
	return repo, nil
}

// Upsert replaces each place document by id in one unordered bulk write
func (r *MongoPlaceRepository) Upsert(ctx context.Context, places []models.Place) (int, error) {
	if len(places) == 0 {
		return 0, nil
	}
	writes := make([]mongo.WriteModel, 0, len(places))
	for i := range places {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": places[i].ID}).
			SetReplacement(places[i]).
			SetUpsert(true))
	}

	res, err := r.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("upsert places: %w", err)
	}
	return int(res.UpsertedCount + res.MatchedCount), nil
}

// Top ranks places server-side with an aggregation on rating * ln(1 + review_count)
func (r *MongoPlaceRepository) Top(ctx context.Context, limit int) ([]models.Place, error) {
	if limit <= 0 {
		limit = 20
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"rating": bson.M{"$gt": 0}, "review_count": bson.M{"$gt": 0}}}},
		{{Key: "$addFields", Value: bson.M{"score": bson.M{
			"$multiply": bson.A{"$rating", bson.M{"$ln": bson.M{"$add": bson.A{1, "$review_count"}}}},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "score", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("query trending places: %w", err)
	}
	defer cursor.Close(ctx)

	var places []models.Place
	if err := cursor.All(ctx, &places); err != nil {
		return nil, fmt.Errorf("decode trending places: %w", err)
	}
	return places, nil
}

// Count returns the number of stored places
func (r *MongoPlaceRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.D{})
}

// Close disconnects the client
func (r *MongoPlaceRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
