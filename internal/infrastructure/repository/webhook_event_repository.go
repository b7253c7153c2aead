package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"store-sync-engine/internal/infrastructure/repository/entity"
	"store-sync-engine/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWebhookEventRepository implements Deduper using MongoDB. Expired ids are
// removed by the TTL index on expiresAt.
type MongoWebhookEventRepository struct {
	collection *mongo.Collection
}

// NewMongoWebhookEventRepository creates a new MongoDB webhook event repository
func NewMongoWebhookEventRepository(db *mongo.Database) ports.Deduper {
	return &MongoWebhookEventRepository{
		collection: db.Collection(webhookEventsCollection),
	}
}

// Seen reports whether the event was already applied for the store
func (r *MongoWebhookEventRepository) Seen(ctx context.Context, storeID, eventID string) (bool, error) {
	// The TTL monitor runs about once a minute, so expiry is checked here as well
	filter := bson.M{"storeId": storeID, "eventId": eventID, "expiresAt": bson.M{"$gt": time.Now().UTC()}}
	var doc entity.MongoWebhookEventDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up webhook event: %w", err)
	}
	return true, nil
}

// Remember records the event id until ttl passes
func (r *MongoWebhookEventRepository) Remember(ctx context.Context, storeID, eventID string, ttl time.Duration) error {
	now := time.Now().UTC()
	filter := bson.M{"storeId": storeID, "eventId": eventID}
	update := bson.M{
		"$set":         bson.M{"expiresAt": now.Add(ttl)},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to log webhook event: %w", err)
	}
	return nil
}
