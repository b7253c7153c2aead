package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/repository/entity"
	"store-sync-engine/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	storesCollection        = "stores"
	integrationsCollection  = "store_integrations"
	syncLogsCollection      = "sync_logs"
	storeOrdersCollection   = "store_orders"
	productsCollection      = "products"
	productLinksCollection  = "product_links"
	customersCollection     = "customers"
	customerLinksCollection = "customer_links"
	webhookEventsCollection = "webhook_events"
	settingsCollection      = "settings"
)

// EnsureIndexes creates the unique and lookup indexes every repository relies on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		storesCollection: {
			{Keys: bson.D{{Key: "branchId", Value: 1}, {Key: "baseUrl", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "syncSettings.autoSync", Value: 1}}},
		},
		integrationsCollection: {
			{Keys: bson.D{{Key: "storeId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		syncLogsCollection: {
			{Keys: bson.D{{Key: "storeId", Value: 1}, {Key: "domain", Value: 1}, {Key: "direction", Value: 1}, {Key: "startedAt", Value: -1}}},
		},
		storeOrdersCollection: {
			{Keys: bson.D{{Key: "storeId", Value: 1}, {Key: "externalOrderId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "storeId", Value: 1}, {Key: "pendingStatus", Value: 1}}},
		},
		productsCollection: {
			{
				Keys: bson.D{{Key: "branchId", Value: 1}, {Key: "sku", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"sku": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "branchId", Value: 1}, {Key: "barcode", Value: 1}}},
		},
		productLinksCollection: {
			{Keys: bson.D{{Key: "storeId", Value: 1}, {Key: "externalId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "storeId", Value: 1}, {Key: "productId", Value: 1}}},
		},
		customersCollection: {
			{Keys: bson.D{{Key: "branchId", Value: 1}, {Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		customerLinksCollection: {
			{Keys: bson.D{{Key: "storeId", Value: 1}, {Key: "customerId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		webhookEventsCollection: {
			{Keys: bson.D{{Key: "storeId", Value: 1}, {Key: "eventId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", name, err)
		}
	}
	return nil
}

// MongoStoreRepository implements StoreRepository using MongoDB
type MongoStoreRepository struct {
	collection *mongo.Collection
}

// NewMongoStoreRepository creates a new MongoDB store repository
func NewMongoStoreRepository(db *mongo.Database) ports.StoreRepository {
	return &MongoStoreRepository{
		collection: db.Collection(storesCollection),
	}
}

// Save saves or updates a store
func (r *MongoStoreRepository) Save(ctx context.Context, store *domain.Store) error {
	now := time.Now().UTC()
	doc := entity.MongoStoreDocFromDomain(store)
	doc.UpdatedAt = now
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	set := bson.M{
		"name":         doc.Name,
		"platformType": doc.PlatformType,
		"baseUrl":      doc.BaseURL,
		"branchId":     doc.BranchID,
		"isActive":     doc.IsActive,
		"syncSettings": doc.SyncSettings,
		"updatedAt":    doc.UpdatedAt,
	}
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": store.ID}
	update := bson.M{"$set": set, "$setOnInsert": bson.M{"createdAt": createdAt}}

	_, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}
	store.UpdatedAt = now
	return nil
}

// Get retrieves a store by id
func (r *MongoStoreRepository) Get(ctx context.Context, storeID string) (*domain.Store, error) {
	var doc entity.MongoStoreDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": storeID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}

	return doc.ToDomain(), nil
}

// ListAutoSync retrieves every active store with auto sync switched on
func (r *MongoStoreRepository) ListAutoSync(ctx context.Context) ([]*domain.Store, error) {
	filter := bson.M{"isActive": true, "syncSettings.autoSync": true}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer cursor.Close(ctx)

	var stores []*domain.Store
	for cursor.Next(ctx) {
		var doc entity.MongoStoreDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode store: %w", err)
		}
		stores = append(stores, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return stores, nil
}

// MarkSynced records when a (domain, direction) run of the store finished
func (r *MongoStoreRepository) MarkSynced(ctx context.Context, storeID string, d domain.SyncDomain, dir domain.Direction, at time.Time) error {
	update := bson.M{"$set": bson.M{"lastSyncedAt." + domain.SyncKey(d, dir): at}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": storeID}, update)
	if err != nil {
		return fmt.Errorf("failed to mark store synced: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrStoreNotFound
	}
	return nil
}
