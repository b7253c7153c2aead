package entity

import (
	"time"

	"store-sync-engine/internal/domain"
)

// MongoStoreDoc represents a store connection in MongoDB
type MongoStoreDoc struct {
	ID           string               `bson:"_id"`
	Name         string               `bson:"name"`
	PlatformType string               `bson:"platformType"`
	BaseURL      string               `bson:"baseUrl"`
	BranchID     string               `bson:"branchId"`
	IsActive     bool                 `bson:"isActive"`
	SyncSettings MongoSyncSettingsDoc `bson:"syncSettings"`
	LastSyncedAt map[string]time.Time `bson:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

// MongoSyncSettingsDoc is the embedded sync settings document
type MongoSyncSettingsDoc struct {
	SyncProducts   bool     `bson:"syncProducts"`
	SyncInventory  bool     `bson:"syncInventory"`
	SyncOrders     bool     `bson:"syncOrders"`
	SyncCustomers  bool     `bson:"syncCustomers"`
	AutoSync       bool     `bson:"autoSync"`
	SyncInterval   int      `bson:"syncInterval"`
	SyncModules    []string `bson:"syncModules,omitempty"`
	SyncCategories []string `bson:"syncCategories,omitempty"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoStoreDoc) ToDomain() *domain.Store {
	return &domain.Store{
		ID:           d.ID,
		Name:         d.Name,
		PlatformType: domain.PlatformType(d.PlatformType),
		BaseURL:      d.BaseURL,
		BranchID:     d.BranchID,
		IsActive:     d.IsActive,
		SyncSettings: domain.SyncSettings{
			SyncProducts:   d.SyncSettings.SyncProducts,
			SyncInventory:  d.SyncSettings.SyncInventory,
			SyncOrders:     d.SyncSettings.SyncOrders,
			SyncCustomers:  d.SyncSettings.SyncCustomers,
			AutoSync:       d.SyncSettings.AutoSync,
			SyncInterval:   d.SyncSettings.SyncInterval,
			SyncModules:    d.SyncSettings.SyncModules,
			SyncCategories: d.SyncSettings.SyncCategories,
		},
		LastSyncedAt: d.LastSyncedAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// MongoStoreDocFromDomain converts a domain entity to a MongoDB document
func MongoStoreDocFromDomain(store *domain.Store) *MongoStoreDoc {
	s := store.SyncSettings
	return &MongoStoreDoc{
		ID:           store.ID,
		Name:         store.Name,
		PlatformType: string(store.PlatformType),
		BaseURL:      store.BaseURL,
		BranchID:     store.BranchID,
		IsActive:     store.IsActive,
		SyncSettings: MongoSyncSettingsDoc{
			SyncProducts:   s.SyncProducts,
			SyncInventory:  s.SyncInventory,
			SyncOrders:     s.SyncOrders,
			SyncCustomers:  s.SyncCustomers,
			AutoSync:       s.AutoSync,
			SyncInterval:   s.SyncInterval,
			SyncModules:    s.SyncModules,
			SyncCategories: s.SyncCategories,
		},
		LastSyncedAt: store.LastSyncedAt,
		CreatedAt:    store.CreatedAt,
		UpdatedAt:    store.UpdatedAt,
	}
}
