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

// MongoProductRepository implements ProductRepository using MongoDB
type MongoProductRepository struct {
	collection *mongo.Collection
}

// NewMongoProductRepository creates a new MongoDB product repository
func NewMongoProductRepository(db *mongo.Database) ports.ProductRepository {
	return &MongoProductRepository{
		collection: db.Collection(productsCollection),
	}
}

// UpsertByKey matches the product by SKU, then barcode, within its branch
func (r *MongoProductRepository) UpsertByKey(ctx context.Context, product *domain.Product) (*domain.Product, bool, error) {
	p, created, err := r.upsertByKey(ctx, product)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent record inserted the same SKU first
		p, created, err = r.upsertByKey(ctx, product)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert product: %w", err)
	}
	return p, created, nil
}

func (r *MongoProductRepository) upsertByKey(ctx context.Context, product *domain.Product) (*domain.Product, bool, error) {
	existing, err := r.find(ctx, product.BranchID, product.SKU, product.Barcode)
	if err != nil {
		return nil, false, err
	}
	now := time.Now().UTC()

	if existing == nil {
		doc := entity.MongoProductDocFromDomain(product)
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		doc.UpdatedAt = now
		if _, err := r.collection.InsertOne(ctx, doc); err != nil {
			return nil, false, err
		}
		return doc.ToDomain(), true, nil
	}

	next := entity.MongoProductDocFromDomain(product)
	set := bson.M{
		"name":        next.Name,
		"description": next.Description,
		"price":       next.Price,
		"updatedAt":   now,
	}
	for field, v := range map[string]string{"sku": next.SKU, "barcode": next.Barcode, "module": next.Module, "category": next.Category} {
		if v != "" {
			set[field] = v
		}
	}

	var doc entity.MongoProductDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": existing.ID}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		return nil, false, err
	}
	return doc.ToDomain(), false, nil
}

func (r *MongoProductRepository) find(ctx context.Context, branchID, sku, barcode string) (*entity.MongoProductDoc, error) {
	var filters []bson.M
	if sku != "" {
		filters = append(filters, bson.M{"branchId": branchID, "sku": sku})
	}
	if barcode != "" {
		filters = append(filters, bson.M{"branchId": branchID, "barcode": barcode})
	}
	for _, filter := range filters {
		var doc entity.MongoProductDoc
		err := r.collection.FindOne(ctx, filter).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &doc, nil
	}
	return nil, nil
}

// ListByBranch retrieves every product of a branch
func (r *MongoProductRepository) ListByBranch(ctx context.Context, branchID string) ([]*domain.Product, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"branchId": branchID}, options.Find().SetSort(bson.D{{Key: "sku", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	for cursor.Next(ctx) {
		var doc entity.MongoProductDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return products, nil
}

// Get retrieves a product by id
func (r *MongoProductRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	var doc entity.MongoProductDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return doc.ToDomain(), nil
}

// MongoProductLinkRepository implements ProductLinkRepository using MongoDB
type MongoProductLinkRepository struct {
	collection *mongo.Collection
}

// NewMongoProductLinkRepository creates a new MongoDB product link repository
func NewMongoProductLinkRepository(db *mongo.Database) ports.ProductLinkRepository {
	return &MongoProductLinkRepository{
		collection: db.Collection(productLinksCollection),
	}
}

// Upsert saves the link by (storeId, externalId) and drops older links of the same product
func (r *MongoProductLinkRepository) Upsert(ctx context.Context, link *domain.ProductLink) error {
	stale := bson.M{"storeId": link.StoreID, "productId": link.ProductID, "externalId": bson.M{"$ne": link.ExternalID}}
	if _, err := r.collection.DeleteMany(ctx, stale); err != nil {
		return fmt.Errorf("failed to replace product link: %w", err)
	}

	set := bson.M{"productId": link.ProductID, "syncedAt": link.SyncedAt}
	if link.RemoteStock != nil {
		set["remoteStock"] = *link.RemoteStock
	}
	filter := bson.M{"storeId": link.StoreID, "externalId": link.ExternalID}
	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set}, opts); err != nil {
		return fmt.Errorf("failed to save product link: %w", err)
	}
	return nil
}

// GetByExternalID retrieves the link of a remote product
func (r *MongoProductLinkRepository) GetByExternalID(ctx context.Context, storeID, externalID string) (*domain.ProductLink, error) {
	return r.findOne(ctx, bson.M{"storeId": storeID, "externalId": externalID})
}

// GetByProductID retrieves the link of a local product
func (r *MongoProductLinkRepository) GetByProductID(ctx context.Context, storeID, productID string) (*domain.ProductLink, error) {
	return r.findOne(ctx, bson.M{"storeId": storeID, "productId": productID})
}

func (r *MongoProductLinkRepository) findOne(ctx context.Context, filter bson.M) (*domain.ProductLink, error) {
	var doc entity.MongoProductLinkDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product link: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListByStore retrieves every product link of a store
func (r *MongoProductLinkRepository) ListByStore(ctx context.Context, storeID string) ([]*domain.ProductLink, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"storeId": storeID}, options.Find().SetSort(bson.D{{Key: "externalId", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list product links: %w", err)
	}
	defer cursor.Close(ctx)

	var links []*domain.ProductLink
	for cursor.Next(ctx) {
		var doc entity.MongoProductLinkDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product link: %w", err)
		}
		links = append(links, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return links, nil
}

// Delete removes the link of a remote product
func (r *MongoProductLinkRepository) Delete(ctx context.Context, storeID, externalID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"storeId": storeID, "externalId": externalID})
	if err != nil {
		return fmt.Errorf("failed to delete product link: %w", err)
	}
	return nil
}

// Count returns the number of product links of a store
func (r *MongoProductLinkRepository) Count(ctx context.Context, storeID string) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"storeId": storeID})
	if err != nil {
		return 0, fmt.Errorf("failed to count product links: %w", err)
	}
	return int(n), nil
}
