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

// MongoCustomerRepository implements CustomerRepository using MongoDB
type MongoCustomerRepository struct {
	collection *mongo.Collection
}

// NewMongoCustomerRepository creates a new MongoDB customer repository
func NewMongoCustomerRepository(db *mongo.Database) ports.CustomerRepository {
	return &MongoCustomerRepository{
		collection: db.Collection(customersCollection),
	}
}

// UpsertByEmail creates or updates a customer by (branchId, email)
func (r *MongoCustomerRepository) UpsertByEmail(ctx context.Context, customer *domain.Customer) (*domain.Customer, bool, error) {
	newID := uuid.NewString()
	set := bson.M{
		"firstName": customer.FirstName,
		"lastName":  customer.LastName,
		"updatedAt": time.Now().UTC(),
	}
	if customer.Phone != "" {
		set["phone"] = customer.Phone
	}
	filter := bson.M{"branchId": customer.BranchID, "email": customer.Email}
	update := bson.M{"$set": set, "$setOnInsert": bson.M{"_id": newID}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc entity.MongoCustomerDoc
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert customer: %w", err)
	}
	return doc.ToDomain(), doc.ID == newID, nil
}

// ListByBranch retrieves every customer of a branch
func (r *MongoCustomerRepository) ListByBranch(ctx context.Context, branchID string) ([]*domain.Customer, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"branchId": branchID}, options.Find().SetSort(bson.D{{Key: "email", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer cursor.Close(ctx)

	var customers []*domain.Customer
	for cursor.Next(ctx) {
		var doc entity.MongoCustomerDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode customer: %w", err)
		}
		customers = append(customers, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return customers, nil
}

// MongoCustomerLinkRepository implements CustomerLinkRepository using MongoDB
type MongoCustomerLinkRepository struct {
	collection *mongo.Collection
}

// NewMongoCustomerLinkRepository creates a new MongoDB customer link repository
func NewMongoCustomerLinkRepository(db *mongo.Database) ports.CustomerLinkRepository {
	return &MongoCustomerLinkRepository{
		collection: db.Collection(customerLinksCollection),
	}
}

// Upsert saves the link by (storeId, customerId)
func (r *MongoCustomerLinkRepository) Upsert(ctx context.Context, link *domain.CustomerLink) error {
	filter := bson.M{"storeId": link.StoreID, "customerId": link.CustomerID}
	update := bson.M{"$set": bson.M{"externalId": link.ExternalID, "syncedAt": link.SyncedAt}}
	if _, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to save customer link: %w", err)
	}
	return nil
}

// GetByCustomerID retrieves the link of a local customer
func (r *MongoCustomerLinkRepository) GetByCustomerID(ctx context.Context, storeID, customerID string) (*domain.CustomerLink, error) {
	var doc entity.MongoCustomerLinkDoc
	err := r.collection.FindOne(ctx, bson.M{"storeId": storeID, "customerId": customerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer link: %w", err)
	}
	return doc.ToDomain(), nil
}
