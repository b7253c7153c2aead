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

// MongoIntegrationRepository implements IntegrationRepository using MongoDB.
// Credentials are encrypted before they reach the collection.
type MongoIntegrationRepository struct {
	collection    *mongo.Collection
	encryptionSvc ports.EncryptionService
}

// NewMongoIntegrationRepository creates a new MongoDB integration repository
func NewMongoIntegrationRepository(db *mongo.Database, encryptionSvc ports.EncryptionService) ports.IntegrationRepository {
	return &MongoIntegrationRepository{
		collection:    db.Collection(integrationsCollection),
		encryptionSvc: encryptionSvc,
	}
}

// Save creates or replaces the credentials of a store
func (r *MongoIntegrationRepository) Save(ctx context.Context, integration *domain.StoreIntegration) error {
	doc, err := entity.MongoIntegrationDocFromDomain(integration, r.encryptionSvc)
	if err != nil {
		return fmt.Errorf("failed to seal integration: %w", err)
	}
	now := time.Now().UTC()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	update := bson.M{
		"$set": bson.M{
			"encryptedApiKey":        doc.EncryptedAPIKey,
			"encryptedApiSecret":     doc.EncryptedAPISecret,
			"encryptedAccessToken":   doc.EncryptedAccessToken,
			"encryptedWebhookSecret": doc.EncryptedWebhookSecret,
			"updatedAt":              now,
		},
		"$setOnInsert": bson.M{"createdAt": createdAt},
	}
	opts := options.Update().SetUpsert(true)
	_, err = r.collection.UpdateOne(ctx, bson.M{"storeId": integration.StoreID}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}

	return nil
}

// GetByStoreID retrieves and decrypts the credentials of a store
func (r *MongoIntegrationRepository) GetByStoreID(ctx context.Context, storeID string) (*domain.StoreIntegration, error) {
	var doc entity.MongoIntegrationDoc
	err := r.collection.FindOne(ctx, bson.M{"storeId": storeID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrIntegrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	integration, err := doc.ToDomain(r.encryptionSvc)
	if err != nil {
		return nil, fmt.Errorf("failed to open integration: %w", err)
	}
	return integration, nil
}
