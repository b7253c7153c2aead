package ports

import (
	"context"
	"time"

	"store-sync-engine/internal/domain"
)

// StoreRepository defines the interface for store configuration persistence
type StoreRepository interface {
	Get(ctx context.Context, storeID string) (*domain.Store, error)
	Save(ctx context.Context, store *domain.Store) error
	ListAutoSync(ctx context.Context) ([]*domain.Store, error)
	// MarkSynced records the finish time of a (domain, direction) run
	MarkSynced(ctx context.Context, storeID string, d domain.SyncDomain, dir domain.Direction, at time.Time) error
}

// IntegrationRepository defines the interface for store credential persistence
type IntegrationRepository interface {
	GetByStoreID(ctx context.Context, storeID string) (*domain.StoreIntegration, error)
	Save(ctx context.Context, integration *domain.StoreIntegration) error
}

// SyncLogRepository persists run logs. Update refuses logs that are already
// finalized in storage.
type SyncLogRepository interface {
	Create(ctx context.Context, log *domain.SyncLog) error
	Update(ctx context.Context, log *domain.SyncLog) error
	Get(ctx context.Context, id string) (*domain.SyncLog, error)
	Latest(ctx context.Context, storeID string, d domain.SyncDomain, dir domain.Direction) (*domain.SyncLog, error)
}

// StoreOrderRepository persists the local order mirror keyed by (store, external id)
type StoreOrderRepository interface {
	// Upsert creates or updates by (StoreID, ExternalOrderID). LinkedSaleID and
	// CreatedAt of an existing row are preserved. Returns true when a row was created.
	Upsert(ctx context.Context, order *domain.StoreOrder) (bool, error)
	Get(ctx context.Context, storeID, externalOrderID string) (*domain.StoreOrder, error)
	ListPendingStatus(ctx context.Context, storeID string) ([]*domain.StoreOrder, error)
	ClearPendingStatus(ctx context.Context, storeID, externalOrderID, status string) error
	Count(ctx context.Context, storeID string) (int, error)
}

// ProductRepository is the local catalog collaborator
type ProductRepository interface {
	// UpsertByKey creates or updates a product matched by SKU, then barcode.
	// Stock is only written on create; local stock stays authoritative.
	// Returns the stored product and true when it was created.
	UpsertByKey(ctx context.Context, product *domain.Product) (*domain.Product, bool, error)
	ListByBranch(ctx context.Context, branchID string) ([]*domain.Product, error)
	Get(ctx context.Context, productID string) (*domain.Product, error)
}

// ProductLinkRepository stores the (store, external id) association of products
type ProductLinkRepository interface {
	Upsert(ctx context.Context, link *domain.ProductLink) error
	GetByExternalID(ctx context.Context, storeID, externalID string) (*domain.ProductLink, error)
	GetByProductID(ctx context.Context, storeID, productID string) (*domain.ProductLink, error)
	ListByStore(ctx context.Context, storeID string) ([]*domain.ProductLink, error)
	Delete(ctx context.Context, storeID, externalID string) error
	Count(ctx context.Context, storeID string) (int, error)
}

// CustomerRepository is the local customer collaborator
type CustomerRepository interface {
	UpsertByEmail(ctx context.Context, customer *domain.Customer) (*domain.Customer, bool, error)
	ListByBranch(ctx context.Context, branchID string) ([]*domain.Customer, error)
}

// CustomerLinkRepository stores the (store, external id) association of customers
type CustomerLinkRepository interface {
	Upsert(ctx context.Context, link *domain.CustomerLink) error
	GetByCustomerID(ctx context.Context, storeID, customerID string) (*domain.CustomerLink, error)
}
