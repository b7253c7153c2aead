package entity

import (
	"time"

	"store-sync-engine/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoProductDoc represents a local catalog product in MongoDB
type MongoProductDoc struct {
	ID          string               `bson:"_id"`
	BranchID    string               `bson:"branchId"`
	SKU         string               `bson:"sku,omitempty"`
	Barcode     string               `bson:"barcode,omitempty"`
	Name        string               `bson:"name"`
	Description string               `bson:"description,omitempty"`
	Price       primitive.Decimal128 `bson:"price"`
	Stock       int                  `bson:"stock"`
	Module      string               `bson:"module,omitempty"`
	Category    string               `bson:"category,omitempty"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoProductDoc) ToDomain() *domain.Product {
	return &domain.Product{
		ID:          d.ID,
		BranchID:    d.BranchID,
		SKU:         d.SKU,
		Barcode:     d.Barcode,
		Name:        d.Name,
		Description: d.Description,
		Price:       fromDecimal128(d.Price),
		Stock:       d.Stock,
		Module:      d.Module,
		Category:    d.Category,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoProductDocFromDomain converts a domain entity to a MongoDB document
func MongoProductDocFromDomain(p *domain.Product) *MongoProductDoc {
	return &MongoProductDoc{
		ID:          p.ID,
		BranchID:    p.BranchID,
		SKU:         p.SKU,
		Barcode:     p.Barcode,
		Name:        p.Name,
		Description: p.Description,
		Price:       toDecimal128(p.Price),
		Stock:       p.Stock,
		Module:      p.Module,
		Category:    p.Category,
		UpdatedAt:   p.UpdatedAt,
	}
}

// MongoProductLinkDoc associates a product with its id on one store
type MongoProductLinkDoc struct {
	StoreID     string    `bson:"storeId"`
	ProductID   string    `bson:"productId"`
	ExternalID  string    `bson:"externalId"`
	RemoteStock *int      `bson:"remoteStock,omitempty"`
	SyncedAt    time.Time `bson:"syncedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoProductLinkDoc) ToDomain() *domain.ProductLink {
	return &domain.ProductLink{
		StoreID:     d.StoreID,
		ProductID:   d.ProductID,
		ExternalID:  d.ExternalID,
		RemoteStock: d.RemoteStock,
		SyncedAt:    d.SyncedAt,
	}
}

// MongoCustomerDoc represents a local customer in MongoDB
type MongoCustomerDoc struct {
	ID        string    `bson:"_id"`
	BranchID  string    `bson:"branchId"`
	Email     string    `bson:"email"`
	FirstName string    `bson:"firstName"`
	LastName  string    `bson:"lastName"`
	Phone     string    `bson:"phone,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoCustomerDoc) ToDomain() *domain.Customer {
	return &domain.Customer{
		ID:        d.ID,
		BranchID:  d.BranchID,
		Email:     d.Email,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Phone:     d.Phone,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoCustomerLinkDoc associates a customer with its id on one store
type MongoCustomerLinkDoc struct {
	StoreID    string    `bson:"storeId"`
	CustomerID string    `bson:"customerId"`
	ExternalID string    `bson:"externalId"`
	SyncedAt   time.Time `bson:"syncedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoCustomerLinkDoc) ToDomain() *domain.CustomerLink {
	return &domain.CustomerLink{
		StoreID:    d.StoreID,
		CustomerID: d.CustomerID,
		ExternalID: d.ExternalID,
		SyncedAt:   d.SyncedAt,
	}
}

// MongoWebhookEventDoc records a processed webhook delivery until it expires
type MongoWebhookEventDoc struct {
	StoreID   string    `bson:"storeId"`
	EventID   string    `bson:"eventId"`
	CreatedAt time.Time `bson:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt"`
}
