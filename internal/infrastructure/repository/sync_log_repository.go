package repository

import (
	"context"
	"errors"
	"fmt"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/repository/entity"
	"store-sync-engine/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSyncLogRepository implements SyncLogRepository using MongoDB
type MongoSyncLogRepository struct {
	collection *mongo.Collection
}

// NewMongoSyncLogRepository creates a new MongoDB sync log repository
func NewMongoSyncLogRepository(db *mongo.Database) ports.SyncLogRepository {
	return &MongoSyncLogRepository{
		collection: db.Collection(syncLogsCollection),
	}
}

// Create inserts a new run log
func (r *MongoSyncLogRepository) Create(ctx context.Context, log *domain.SyncLog) error {
	_, err := r.collection.InsertOne(ctx, entity.MongoSyncLogDocFromDomain(log))
	if err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

// Update replaces a run log that is not finalized yet. The finishedAt filter makes
// the check and the write one atomic operation.
func (r *MongoSyncLogRepository) Update(ctx context.Context, log *domain.SyncLog) error {
	filter := bson.M{"_id": log.ID, "finishedAt": nil}
	result, err := r.collection.ReplaceOne(ctx, filter, entity.MongoSyncLogDocFromDomain(log))
	if err != nil {
		return fmt.Errorf("failed to update sync log: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": log.ID})
	if err != nil {
		return fmt.Errorf("failed to update sync log: %w", err)
	}
	if n == 0 {
		return domain.ErrSyncLogNotFound
	}
	return domain.ErrSyncLogFinalized
}

// Get retrieves a run log by id
func (r *MongoSyncLogRepository) Get(ctx context.Context, id string) (*domain.SyncLog, error) {
	var doc entity.MongoSyncLogDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSyncLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync log: %w", err)
	}
	return doc.ToDomain(), nil
}

// Latest retrieves the most recently started run of a (store, domain, direction)
func (r *MongoSyncLogRepository) Latest(ctx context.Context, storeID string, d domain.SyncDomain, dir domain.Direction) (*domain.SyncLog, error) {
	var doc entity.MongoSyncLogDoc
	filter := bson.M{"storeId": storeID, "domain": string(d), "direction": string(dir)}
	opts := options.FindOne().SetSort(bson.D{{Key: "startedAt", Value: -1}})

	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest sync log: %w", err)
	}
	return doc.ToDomain(), nil
}
