package ports

import (
	"context"
	"iter"
	"net/http"

	"store-sync-engine/internal/domain"
)

// PlatformClient is the uniform capability set over a storefront platform.
// Implementations only translate protocol; remote 4xx/5xx responses come back as
// a failed domain.Outcome instead of an error so a batch can continue.
//
// The list methods return lazy page sequences. A sequence yields a non-nil error
// at most once, as its last element, when a page cannot be fetched or the page
// guard is hit.
type PlatformClient interface {
	Platform() domain.PlatformType
	TestConnection(ctx context.Context) domain.Outcome

	// Products
	Products(ctx context.Context) iter.Seq2[[]domain.RemoteProduct, error]
	GetProduct(ctx context.Context, externalID string) (*domain.RemoteProduct, domain.Outcome)
	CreateProduct(ctx context.Context, product domain.RemoteProduct) (*domain.RemoteProduct, domain.Outcome)
	UpdateProduct(ctx context.Context, externalID string, product domain.RemoteProduct) domain.Outcome
	DeleteProduct(ctx context.Context, externalID string) domain.Outcome

	// Inventory
	GetInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.StockItem, domain.Outcome)
	UpdateStock(ctx context.Context, externalID string, quantity int, mode domain.StockMode) domain.Outcome
	// BulkUpdateStock returns an outcome of kind unsupported when the platform has no
	// bulk endpoint; callers then fall back to UpdateStock per item.
	BulkUpdateStock(ctx context.Context, items []domain.StockItem) ([]domain.ItemOutcome, domain.Outcome)

	// Orders
	Orders(ctx context.Context, status string) iter.Seq2[[]domain.RemoteOrder, error]
	GetOrder(ctx context.Context, externalID string) (*domain.RemoteOrder, domain.Outcome)
	CreateOrder(ctx context.Context, order domain.RemoteOrder) (*domain.RemoteOrder, domain.Outcome)
	UpdateOrderStatus(ctx context.Context, externalID string, status string) domain.Outcome

	// Customers
	Customers(ctx context.Context) iter.Seq2[[]domain.RemoteCustomer, error]
	GetCustomer(ctx context.Context, externalID string) (*domain.RemoteCustomer, domain.Outcome)
	CreateCustomer(ctx context.Context, customer domain.RemoteCustomer) (*domain.RemoteCustomer, domain.Outcome)
	UpdateCustomer(ctx context.Context, externalID string, customer domain.RemoteCustomer) domain.Outcome

	// Webhooks
	RegisterWebhooks(ctx context.Context, events []string, callbackURL string) []domain.ItemOutcome
}

// PlatformFactory resolves the client for a store once, at store-load time
type PlatformFactory interface {
	ForStore(store *domain.Store, integration *domain.StoreIntegration) (PlatformClient, error)
}

// WebhookCodec authenticates and decodes inbound webhook deliveries of one platform
type WebhookCodec interface {
	Platform() domain.PlatformType
	// Verify checks the delivery signature in constant time. It returns
	// domain.ErrInvalidSignature on any mismatch without further detail.
	Verify(header http.Header, body []byte, secret domain.Secret) error
	// Decode extracts the event id, topic and referenced record
	Decode(header http.Header, body []byte) (*domain.WebhookEvent, error)
	// Topics lists the platform topics to subscribe to for the given domains
	Topics(domains []domain.SyncDomain) []string
}

// PingDetector is implemented by codecs whose platform sends unsigned
// delivery tests. A ping carries no record and is answered before Verify.
type PingDetector interface {
	IsPing(header http.Header, body []byte) bool
}
