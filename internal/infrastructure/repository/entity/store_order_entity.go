package entity

import (
	"time"

	"store-sync-engine/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoStoreOrderDoc represents a mirrored remote order in MongoDB
type MongoStoreOrderDoc struct {
	ID              string               `bson:"_id"`
	StoreID         string               `bson:"storeId"`
	ExternalOrderID string               `bson:"externalOrderId"`
	Number          string               `bson:"number,omitempty"`
	Payload         string               `bson:"payload"`
	Status          string               `bson:"status"`
	PendingStatus   string               `bson:"pendingStatus,omitempty"`
	Currency        string               `bson:"currency,omitempty"`
	Subtotal        primitive.Decimal128 `bson:"subtotal"`
	Tax             primitive.Decimal128 `bson:"tax"`
	Total           primitive.Decimal128 `bson:"total"`
	CustomerEmail   string               `bson:"customerEmail,omitempty"`
	BranchID        string               `bson:"branchId"`
	LinkedSaleID    *string              `bson:"linkedSaleId"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoStoreOrderDoc) ToDomain() *domain.StoreOrder {
	return &domain.StoreOrder{
		ID:              d.ID,
		StoreID:         d.StoreID,
		ExternalOrderID: d.ExternalOrderID,
		Number:          d.Number,
		Payload:         []byte(d.Payload),
		Status:          d.Status,
		PendingStatus:   d.PendingStatus,
		Currency:        d.Currency,
		Subtotal:        fromDecimal128(d.Subtotal),
		Tax:             fromDecimal128(d.Tax),
		Total:           fromDecimal128(d.Total),
		CustomerEmail:   d.CustomerEmail,
		BranchID:        d.BranchID,
		LinkedSaleID:    d.LinkedSaleID,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// StoreOrderUpsert builds the update document of an order upsert. Fields owned by
// the local side (linked sale, pending status, creation time) are only written
// when the row is inserted.
func StoreOrderUpsert(order *domain.StoreOrder, newID string, now time.Time) bson.M {
	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return bson.M{
		"$set": bson.M{
			"number":        order.Number,
			"payload":       string(order.Payload),
			"status":        order.Status,
			"currency":      order.Currency,
			"subtotal":      toDecimal128(order.Subtotal),
			"tax":           toDecimal128(order.Tax),
			"total":         toDecimal128(order.Total),
			"customerEmail": order.CustomerEmail,
			"branchId":      order.BranchID,
			"updatedAt":     now,
		},
		"$setOnInsert": bson.M{
			"_id":           newID,
			"linkedSaleId":  order.LinkedSaleID,
			"pendingStatus": order.PendingStatus,
			"createdAt":     createdAt,
		},
	}
}
