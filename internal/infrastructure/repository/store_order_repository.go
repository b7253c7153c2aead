package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/repository/entity"
	"store-sync-engine/internal/ports"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStoreOrderRepository implements StoreOrderRepository using MongoDB
type MongoStoreOrderRepository struct {
	collection *mongo.Collection
}

// NewMongoStoreOrderRepository creates a new MongoDB store order repository
func NewMongoStoreOrderRepository(db *mongo.Database) ports.StoreOrderRepository {
	return &MongoStoreOrderRepository{
		collection: db.Collection(storeOrdersCollection),
	}
}

// Upsert creates or updates an order by (storeId, externalOrderId). The row was
// created when it carries the id generated for this call.
func (r *MongoStoreOrderRepository) Upsert(ctx context.Context, order *domain.StoreOrder) (bool, error) {
	newID := uuid.NewString()
	filter := bson.M{"storeId": order.StoreID, "externalOrderId": order.ExternalOrderID}
	update := entity.StoreOrderUpsert(order, newID, time.Now().UTC())
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc entity.MongoStoreOrderDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race with a concurrent upsert of the same order
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert store order: %w", err)
	}

	*order = *doc.ToDomain()
	return doc.ID == newID, nil
}

// Get retrieves an order by (storeId, externalOrderId)
func (r *MongoStoreOrderRepository) Get(ctx context.Context, storeID, externalOrderID string) (*domain.StoreOrder, error) {
	var doc entity.MongoStoreOrderDoc
	filter := bson.M{"storeId": storeID, "externalOrderId": externalOrderID}
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store order: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListPendingStatus retrieves orders with a local status change waiting to be pushed
func (r *MongoStoreOrderRepository) ListPendingStatus(ctx context.Context, storeID string) ([]*domain.StoreOrder, error) {
	filter := bson.M{"storeId": storeID, "pendingStatus": bson.M{"$nin": bson.A{nil, ""}}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.StoreOrder
	for cursor.Next(ctx) {
		var doc entity.MongoStoreOrderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode store order: %w", err)
		}
		orders = append(orders, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return orders, nil
}

// ClearPendingStatus applies a pushed status, unless the pending change was replaced meanwhile
func (r *MongoStoreOrderRepository) ClearPendingStatus(ctx context.Context, storeID, externalOrderID, status string) error {
	filter := bson.M{"storeId": storeID, "externalOrderId": externalOrderID, "pendingStatus": status}
	update := bson.M{
		"$set":   bson.M{"status": status, "updatedAt": time.Now().UTC()},
		"$unset": bson.M{"pendingStatus": ""},
	}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to clear pending status: %w", err)
	}
	return nil
}

// Count returns the number of mirrored orders of a store
func (r *MongoStoreOrderRepository) Count(ctx context.Context, storeID string) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"storeId": storeID})
	if err != nil {
		return 0, fmt.Errorf("failed to count store orders: %w", err)
	}
	return int(n), nil
}
