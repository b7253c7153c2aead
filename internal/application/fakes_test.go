package application

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/lock"
	"store-sync-engine/internal/infrastructure/repository/memory"
	"store-sync-engine/internal/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fakeClient is a scriptable ports.PlatformClient
type fakeClient struct {
	mu    sync.Mutex
	calls map[string]int

	productPages  [][]domain.RemoteProduct
	orderPages    [][]domain.RemoteOrder
	customerPages [][]domain.RemoteCustomer
	pageErr       error // yielded after the last page when set
	onPage        func(page int)

	inventory    []domain.StockItem
	inventoryOut *domain.Outcome
	bulkOut      *domain.Outcome
	bulkResults  func(items []domain.StockItem) []domain.ItemOutcome
	itemOut      func(externalID string) domain.Outcome

	stockSet      map[string]int
	statuses      map[string]string
	nextID        int
	registered    []string
	callbackURL   string
	connectionOut domain.Outcome
}

var _ ports.PlatformClient = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		calls:         map[string]int{},
		stockSet:      map[string]int{},
		statuses:      map[string]string{},
		nextID:        1000,
		connectionOut: domain.Succeeded(200),
	}
}

func (c *fakeClient) count(op string) {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
}

func (c *fakeClient) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *fakeClient) outcome(id string) domain.Outcome {
	if c.itemOut != nil {
		return c.itemOut(id)
	}
	return domain.Succeeded(200)
}

func (c *fakeClient) newID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return fmt.Sprint(c.nextID)
}

func fakePages[T any](c *fakeClient, op string, pages [][]T) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		for i, page := range pages {
			if c.onPage != nil {
				c.onPage(i + 1)
			}
			c.count(op)
			if !yield(page, nil) {
				return
			}
		}
		if c.pageErr != nil {
			yield(nil, c.pageErr)
		}
	}
}

func (c *fakeClient) Platform() domain.PlatformType { return domain.PlatformLaravel }

func (c *fakeClient) TestConnection(context.Context) domain.Outcome { return c.connectionOut }

func (c *fakeClient) Products(context.Context) iter.Seq2[[]domain.RemoteProduct, error] {
	return fakePages(c, "list products", c.productPages)
}

func (c *fakeClient) GetProduct(context.Context, string) (*domain.RemoteProduct, domain.Outcome) {
	return nil, domain.Outcome{Kind: domain.KindNotFound, StatusCode: 404}
}

func (c *fakeClient) CreateProduct(_ context.Context, p domain.RemoteProduct) (*domain.RemoteProduct, domain.Outcome) {
	c.count("create product")
	out := c.outcome(p.SKU)
	if !out.OK {
		return nil, out
	}
	p.ExternalID = c.newID()
	return &p, out
}

func (c *fakeClient) UpdateProduct(_ context.Context, externalID string, _ domain.RemoteProduct) domain.Outcome {
	c.count("update product")
	return c.outcome(externalID)
}

func (c *fakeClient) DeleteProduct(context.Context, string) domain.Outcome { return domain.Succeeded(200) }

func (c *fakeClient) GetInventory(context.Context, domain.InventoryFilter) ([]domain.StockItem, domain.Outcome) {
	c.count("get inventory")
	if c.inventoryOut != nil {
		return nil, *c.inventoryOut
	}
	return c.inventory, domain.Succeeded(200)
}

func (c *fakeClient) UpdateStock(_ context.Context, externalID string, quantity int, _ domain.StockMode) domain.Outcome {
	c.count("update stock")
	out := c.outcome(externalID)
	if out.OK {
		c.mu.Lock()
		c.stockSet[externalID] = quantity
		c.mu.Unlock()
	}
	return out
}

func (c *fakeClient) BulkUpdateStock(_ context.Context, items []domain.StockItem) ([]domain.ItemOutcome, domain.Outcome) {
	c.count("bulk update stock")
	if c.bulkOut != nil {
		return nil, *c.bulkOut
	}
	if c.bulkResults != nil {
		return c.bulkResults(items), domain.Succeeded(200)
	}
	results := make([]domain.ItemOutcome, 0, len(items))
	for _, it := range items {
		c.mu.Lock()
		c.stockSet[it.ExternalID] = it.Quantity
		c.mu.Unlock()
		results = append(results, domain.ItemOutcome{ExternalID: it.ExternalID, Outcome: domain.Succeeded(200)})
	}
	return results, domain.Succeeded(200)
}

func (c *fakeClient) Orders(context.Context, string) iter.Seq2[[]domain.RemoteOrder, error] {
	return fakePages(c, "list orders", c.orderPages)
}

func (c *fakeClient) GetOrder(context.Context, string) (*domain.RemoteOrder, domain.Outcome) {
	return nil, domain.Outcome{Kind: domain.KindNotFound, StatusCode: 404}
}

func (c *fakeClient) CreateOrder(_ context.Context, o domain.RemoteOrder) (*domain.RemoteOrder, domain.Outcome) {
	o.ExternalID = c.newID()
	return &o, domain.Succeeded(201)
}

func (c *fakeClient) UpdateOrderStatus(_ context.Context, externalID, status string) domain.Outcome {
	c.count("update order status")
	out := c.outcome(externalID)
	if out.OK {
		c.mu.Lock()
		c.statuses[externalID] = status
		c.mu.Unlock()
	}
	return out
}

func (c *fakeClient) Customers(context.Context) iter.Seq2[[]domain.RemoteCustomer, error] {
	return fakePages(c, "list customers", c.customerPages)
}

func (c *fakeClient) GetCustomer(context.Context, string) (*domain.RemoteCustomer, domain.Outcome) {
	return nil, domain.Outcome{Kind: domain.KindNotFound, StatusCode: 404}
}

func (c *fakeClient) CreateCustomer(_ context.Context, cu domain.RemoteCustomer) (*domain.RemoteCustomer, domain.Outcome) {
	c.count("create customer")
	out := c.outcome(cu.Email)
	if !out.OK {
		return nil, out
	}
	cu.ExternalID = c.newID()
	return &cu, out
}

func (c *fakeClient) UpdateCustomer(_ context.Context, externalID string, _ domain.RemoteCustomer) domain.Outcome {
	c.count("update customer")
	return c.outcome(externalID)
}

func (c *fakeClient) RegisterWebhooks(_ context.Context, events []string, callbackURL string) []domain.ItemOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registered = append(c.registered, events...)
	c.callbackURL = callbackURL
	results := make([]domain.ItemOutcome, 0, len(events))
	for _, e := range events {
		results = append(results, domain.ItemOutcome{ExternalID: e, Outcome: domain.Succeeded(201)})
	}
	return results
}

// fakeFactory hands out the same client for every store
type fakeFactory struct {
	client ports.PlatformClient
	err    error
}

func (f *fakeFactory) ForStore(*domain.Store, *domain.StoreIntegration) (ports.PlatformClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}

// recordingNotifier collects finished runs
type recordingNotifier struct {
	mu   sync.Mutex
	logs []*domain.SyncLog
}

func (n *recordingNotifier) RunFinished(_ context.Context, _ *domain.Store, log *domain.SyncLog) {
	n.mu.Lock()
	n.logs = append(n.logs, log)
	n.mu.Unlock()
}

// fixture wires an orchestrator over memory repositories
type fixture struct {
	stores        *memory.StoreRepository
	integrations  *memory.IntegrationRepository
	logs          *memory.SyncLogRepository
	orders        *memory.StoreOrderRepository
	products      *memory.ProductRepository
	productLinks  *memory.ProductLinkRepository
	customers     *memory.CustomerRepository
	customerLinks *memory.CustomerLinkRepository
	locker        *lock.MemoryLocker
	notifier      *recordingNotifier
	client        *fakeClient
	orchestrator  *SyncOrchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		stores:        memory.NewStoreRepository(),
		integrations:  memory.NewIntegrationRepository(),
		logs:          memory.NewSyncLogRepository(),
		orders:        memory.NewStoreOrderRepository(),
		products:      memory.NewProductRepository(),
		productLinks:  memory.NewProductLinkRepository(),
		customers:     memory.NewCustomerRepository(),
		customerLinks: memory.NewCustomerLinkRepository(),
		locker:        lock.NewMemoryLocker(),
		notifier:      &recordingNotifier{},
		client:        newFakeClient(),
	}
	f.orchestrator = NewSyncOrchestrator(f.repositories(), &fakeFactory{client: f.client}, f.locker, f.notifier, nil,
		SyncOptions{RecordWorkers: 4, MaxLogErrors: 5, LockTTL: time.Minute}, zerolog.Nop())
	f.orchestrator.now = steppingClock(fixtureEpoch)

	ctx := context.Background()
	require.NoError(t, f.stores.Save(ctx, testStore("store-1")))
	require.NoError(t, f.integrations.Save(ctx, &domain.StoreIntegration{StoreID: "store-1", AccessToken: "token", WebhookSecret: "whsec"}))
	return f
}

// fixtureEpoch is the first instant of the fixture clock
var fixtureEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// steppingClock returns strictly increasing times one second apart
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func (f *fixture) repositories() Repositories {
	return Repositories{
		Stores:        f.stores,
		Integrations:  f.integrations,
		Logs:          f.logs,
		Orders:        f.orders,
		Products:      f.products,
		ProductLinks:  f.productLinks,
		Customers:     f.customers,
		CustomerLinks: f.customerLinks,
	}
}

// orchestratorWith builds a second orchestrator over repos sharing the fixture's client
func (f *fixture) orchestratorWith(repos Repositories) *SyncOrchestrator {
	return f.orchestratorWithLocker(repos, f.locker, time.Minute)
}

func (f *fixture) orchestratorWithLocker(repos Repositories, locker ports.RunLocker, ttl time.Duration) *SyncOrchestrator {
	o := NewSyncOrchestrator(repos, &fakeFactory{client: f.client}, locker, f.notifier, nil,
		SyncOptions{RecordWorkers: 4, MaxLogErrors: 5, LockTTL: ttl}, zerolog.Nop())
	o.now = steppingClock(fixtureEpoch)
	return o
}

// takenOverLocker grants leases that are already lost when first extended
type takenOverLocker struct{}

func (takenOverLocker) TryLock(context.Context, string, time.Duration) (ports.Lease, error) {
	return takenOverLease{}, nil
}

type takenOverLease struct{}

func (takenOverLease) Extend(context.Context) error { return domain.ErrLeaseLost }
func (takenOverLease) Release()                     {}

// brokenProductLinks fails every write with err
type brokenProductLinks struct {
	*memory.ProductLinkRepository
	err error
}

func (r brokenProductLinks) Upsert(context.Context, *domain.ProductLink) error {
	return r.err
}

func testStore(id string) *domain.Store {
	return &domain.Store{
		ID:           id,
		Name:         "Test store",
		PlatformType: domain.PlatformLaravel,
		BaseURL:      "https://partner.example.com",
		BranchID:     "branch-1",
		IsActive:     true,
		SyncSettings: domain.SyncSettings{
			SyncProducts:  true,
			SyncInventory: true,
			SyncOrders:    true,
			SyncCustomers: true,
			AutoSync:      true,
		},
	}
}

func remoteProducts(from, to int) []domain.RemoteProduct {
	var out []domain.RemoteProduct
	for i := from; i <= to; i++ {
		out = append(out, domain.RemoteProduct{
			ExternalID: fmt.Sprint(i),
			SKU:        fmt.Sprintf("SKU-%03d", i),
			Name:       fmt.Sprintf("Product %d", i),
			Price:      decimal.RequireFromString("9.50"),
			Stock:      i,
		})
	}
	return out
}
