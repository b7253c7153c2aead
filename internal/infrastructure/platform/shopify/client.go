package shopify

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/transport"
	"store-sync-engine/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// DefaultAPIVersion is the admin API version used when none is configured
const DefaultAPIVersion = "2024-10"

// Client is the Shopify adapter. Requests go through go-shopify, which sends the
// X-Shopify-Access-Token header and parses the Link response header into the
// next page_info cursor; its HTTP client is the store's paced transport.
type Client struct {
	shop      *goshopify.Client
	transport *transport.Transport
	logger    zerolog.Logger

	// The first active location, resolved on the first stock write
	locationMu sync.Mutex
	locationID uint64
}

var _ ports.PlatformClient = (*Client)(nil)

// NewClient creates a Shopify client for the shop at baseURL
func NewClient(baseURL, apiVersion string, integration *domain.StoreIntegration, tr *transport.Transport, logger zerolog.Logger) (*Client, error) {
	if integration == nil || integration.BearerToken().IsZero() {
		return nil, domain.ErrMissingCredentials
	}
	shopName, err := shopDomain(baseURL)
	if err != nil {
		return nil, err
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	app := goshopify.App{
		ApiKey:    integration.APIKey.Reveal(),
		ApiSecret: integration.APISecret.Reveal(),
	}
	shop, err := goshopify.NewClient(app, shopName, integration.BearerToken().Reveal(),
		goshopify.WithHTTPClient(tr.HTTPClient()),
		goshopify.WithVersion(apiVersion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Client{
		shop:      shop,
		transport: tr,
		logger:    logger.With().Str("platform", string(domain.PlatformShopify)).Logger(),
	}, nil
}

// shopDomain reduces a store URL such as https://acme.myshopify.com/admin to its host
func shopDomain(baseURL string) (string, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return "", fmt.Errorf("shopify: base URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("shopify: invalid base URL")
	}
	return u.Host, nil
}

// Platform implements ports.PlatformClient
func (c *Client) Platform() domain.PlatformType {
	return domain.PlatformShopify
}

// TestConnection reads the shop resource
func (c *Client) TestConnection(ctx context.Context) domain.Outcome {
	return c.do(ctx, "test connection", func(ctx context.Context) error {
		_, err := c.shop.Shop.Get(ctx, nil)
		return err
	})
}

// Products

func (c *Client) Products(ctx context.Context) iter.Seq2[[]domain.RemoteProduct, error] {
	return cursorPages(c, ctx, "list products", "", func(ctx context.Context, opts pageOptions) ([]domain.RemoteProduct, *goshopify.Pagination, error) {
		products, pagination, err := c.shop.Product.ListWithPagination(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		out := make([]domain.RemoteProduct, 0, len(products))
		for _, p := range products {
			out = append(out, toRemoteProduct(p))
		}
		return out, pagination, nil
	})
}

func (c *Client) GetProduct(ctx context.Context, externalID string) (*domain.RemoteProduct, domain.Outcome) {
	p, out := c.getProduct(ctx, "get product", externalID)
	if !out.OK {
		return nil, out
	}
	rp := toRemoteProduct(*p)
	return &rp, out
}

func (c *Client) CreateProduct(ctx context.Context, product domain.RemoteProduct) (*domain.RemoteProduct, domain.Outcome) {
	var created *goshopify.Product
	out := c.do(ctx, "create product", func(ctx context.Context) error {
		var err error
		created, err = c.shop.Product.Create(ctx, fromRemoteProduct(product))
		return err
	})
	if !out.OK {
		return nil, out
	}
	rp := toRemoteProduct(*created)
	out.StatusCode = http.StatusCreated
	return &rp, out
}

// UpdateProduct rewrites title, description and the first variant. The variant id
// is read first so Shopify updates the variant instead of adding one.
func (c *Client) UpdateProduct(ctx context.Context, externalID string, product domain.RemoteProduct) domain.Outcome {
	current, out := c.getProduct(ctx, "update product", externalID)
	if !out.OK {
		return out
	}

	update := fromRemoteProduct(product)
	update.Id = current.Id
	if len(current.Variants) > 0 {
		update.Variants[0].Id = current.Variants[0].Id
	}
	return c.do(ctx, "update product", func(ctx context.Context) error {
		_, err := c.shop.Product.Update(ctx, update)
		return err
	})
}

func (c *Client) DeleteProduct(ctx context.Context, externalID string) domain.Outcome {
	id, err := parseID("delete product", externalID)
	if err != nil {
		return domain.Failed(err)
	}
	return c.do(ctx, "delete product", func(ctx context.Context) error {
		return c.shop.Product.Delete(ctx, id)
	})
}

// Inventory

// GetInventory reports the variant inventory quantity of each product
func (c *Client) GetInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.StockItem, domain.Outcome) {
	var items []domain.StockItem
	add := func(p domain.RemoteProduct) {
		items = append(items, domain.StockItem{ExternalID: p.ExternalID, SKU: p.SKU, Quantity: p.Stock, Mode: domain.StockSet})
	}

	if len(filter.ExternalIDs) == 0 {
		for page, err := range c.Products(ctx) {
			if err != nil {
				return items, domain.Failed(err)
			}
			for _, p := range page {
				add(p)
			}
		}
		return items, domain.Succeeded(http.StatusOK)
	}

	for _, id := range filter.ExternalIDs {
		p, out := c.GetProduct(ctx, id)
		if !out.OK {
			if out.Kind == domain.KindNotFound {
				continue
			}
			return items, out
		}
		add(*p)
	}
	return items, domain.Succeeded(http.StatusOK)
}

// UpdateStock sets the available quantity of the product's inventory item at the
// first active location. Relative modes read the current level first.
func (c *Client) UpdateStock(ctx context.Context, externalID string, quantity int, mode domain.StockMode) domain.Outcome {
	const op = "update stock"

	p, out := c.getProduct(ctx, op, externalID)
	if !out.OK {
		return out
	}
	if len(p.Variants) == 0 || p.Variants[0].InventoryItemId == 0 {
		return domain.Failed(domain.MappingError(op, "product has no inventory item"))
	}
	itemID := p.Variants[0].InventoryItemId

	locationID, out := c.location(ctx)
	if !out.OK {
		return out
	}

	target := quantity
	if mode == domain.StockAdd || mode == domain.StockSubtract {
		var levels []goshopify.InventoryLevel
		out := c.do(ctx, "get inventory level", func(ctx context.Context) error {
			var err error
			levels, err = c.shop.InventoryLevel.List(ctx, levelOptions{
				InventoryItemIDs: formatID(itemID),
				LocationIDs:      formatID(locationID),
			})
			return err
		})
		if !out.OK {
			return out
		}
		current := 0
		if len(levels) > 0 {
			current = levels[0].Available
		}
		target = mode.Apply(current, quantity)
	}

	return c.do(ctx, op, func(ctx context.Context) error {
		_, err := c.shop.InventoryLevel.Set(ctx, goshopify.InventoryLevel{
			InventoryItemId: itemID,
			LocationId:      locationID,
			Available:       target,
		})
		return err
	})
}

// BulkUpdateStock is not offered by the Shopify REST admin API; callers fall back
// to UpdateStock per item
func (c *Client) BulkUpdateStock(ctx context.Context, items []domain.StockItem) ([]domain.ItemOutcome, domain.Outcome) {
	return nil, domain.Outcome{Kind: domain.KindUnsupported, Message: "bulk stock update not supported"}
}

// location returns the id of the first active location, cached for the client
func (c *Client) location(ctx context.Context) (uint64, domain.Outcome) {
	c.locationMu.Lock()
	defer c.locationMu.Unlock()
	if c.locationID != 0 {
		return c.locationID, domain.Succeeded(http.StatusOK)
	}

	var locations []goshopify.Location
	out := c.do(ctx, "list locations", func(ctx context.Context) error {
		var err error
		locations, err = c.shop.Location.List(ctx, nil)
		return err
	})
	if !out.OK {
		return 0, out
	}
	for _, l := range locations {
		if l.Active {
			c.locationID = l.Id
			c.logger.Debug().Uint64("locationId", l.Id).Msg("Resolved inventory location")
			return c.locationID, out
		}
	}
	return 0, domain.Failed(domain.NewPlatformError(domain.KindRemote, "list locations", 0, "shop has no active location"))
}

// Orders

func (c *Client) Orders(ctx context.Context, status string) iter.Seq2[[]domain.RemoteOrder, error] {
	if status == "" {
		status = "any"
	}
	return cursorPages(c, ctx, "list orders", status, func(ctx context.Context, opts pageOptions) ([]domain.RemoteOrder, *goshopify.Pagination, error) {
		var page rawOrders
		pagination, err := c.shop.ListWithPagination(ctx, "orders.json", &page, opts)
		if err != nil {
			return nil, nil, err
		}
		out := make([]domain.RemoteOrder, 0, len(page.Orders))
		for _, data := range page.Orders {
			out = append(out, toRemoteOrderJSON(data))
		}
		return out, pagination, nil
	})
}

func (c *Client) GetOrder(ctx context.Context, externalID string) (*domain.RemoteOrder, domain.Outcome) {
	id, err := parseID("get order", externalID)
	if err != nil {
		return nil, domain.Failed(err)
	}
	var order *goshopify.Order
	out := c.do(ctx, "get order", func(ctx context.Context) error {
		var err error
		order, err = c.shop.Order.Get(ctx, id, nil)
		return err
	})
	if !out.OK {
		return nil, out
	}
	ro := toRemoteOrder(*order)
	return &ro, out
}

func (c *Client) CreateOrder(ctx context.Context, order domain.RemoteOrder) (*domain.RemoteOrder, domain.Outcome) {
	var created *goshopify.Order
	out := c.do(ctx, "create order", func(ctx context.Context) error {
		var err error
		created, err = c.shop.Order.Create(ctx, goshopify.Order{Email: order.CustomerEmail, Currency: order.Currency})
		return err
	})
	if !out.OK {
		return nil, out
	}
	ro := toRemoteOrder(*created)
	out.StatusCode = http.StatusCreated
	return &ro, out
}

// UpdateOrderStatus maps the local status onto Shopify's cancel, close and open
// actions. Shopify has no free-form order status.
func (c *Client) UpdateOrderStatus(ctx context.Context, externalID string, status string) domain.Outcome {
	const op = "update order status"
	id, err := parseID(op, externalID)
	if err != nil {
		return domain.Failed(err)
	}

	var action func(ctx context.Context) error
	switch status {
	case domain.OrderStatusCancelled:
		action = func(ctx context.Context) error {
			_, err := c.shop.Order.Cancel(ctx, id, nil)
			return err
		}
	case "closed", "completed":
		action = func(ctx context.Context) error {
			_, err := c.shop.Order.Close(ctx, id)
			return err
		}
	case "open":
		action = func(ctx context.Context) error {
			_, err := c.shop.Order.Open(ctx, id)
			return err
		}
	default:
		return domain.Outcome{Kind: domain.KindUnsupported, Message: fmt.Sprintf("order status %q not supported", status)}
	}
	return c.do(ctx, op, action)
}

// Customers

func (c *Client) Customers(ctx context.Context) iter.Seq2[[]domain.RemoteCustomer, error] {
	return cursorPages(c, ctx, "list customers", "", func(ctx context.Context, opts pageOptions) ([]domain.RemoteCustomer, *goshopify.Pagination, error) {
		customers, pagination, err := c.shop.Customer.ListWithPagination(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		out := make([]domain.RemoteCustomer, 0, len(customers))
		for _, cu := range customers {
			out = append(out, toRemoteCustomer(cu))
		}
		return out, pagination, nil
	})
}

func (c *Client) GetCustomer(ctx context.Context, externalID string) (*domain.RemoteCustomer, domain.Outcome) {
	id, err := parseID("get customer", externalID)
	if err != nil {
		return nil, domain.Failed(err)
	}
	var customer *goshopify.Customer
	out := c.do(ctx, "get customer", func(ctx context.Context) error {
		var err error
		customer, err = c.shop.Customer.Get(ctx, id, nil)
		return err
	})
	if !out.OK {
		return nil, out
	}
	rc := toRemoteCustomer(*customer)
	return &rc, out
}

func (c *Client) CreateCustomer(ctx context.Context, customer domain.RemoteCustomer) (*domain.RemoteCustomer, domain.Outcome) {
	var created *goshopify.Customer
	out := c.do(ctx, "create customer", func(ctx context.Context) error {
		var err error
		created, err = c.shop.Customer.Create(ctx, fromRemoteCustomer(customer))
		return err
	})
	if !out.OK {
		return nil, out
	}
	rc := toRemoteCustomer(*created)
	out.StatusCode = http.StatusCreated
	return &rc, out
}

func (c *Client) UpdateCustomer(ctx context.Context, externalID string, customer domain.RemoteCustomer) domain.Outcome {
	id, err := parseID("update customer", externalID)
	if err != nil {
		return domain.Failed(err)
	}
	update := fromRemoteCustomer(customer)
	update.Id = id
	return c.do(ctx, "update customer", func(ctx context.Context) error {
		_, err := c.shop.Customer.Update(ctx, update)
		return err
	})
}

// Webhooks

// RegisterWebhooks subscribes callbackURL to each topic. Shopify signs deliveries
// with the app's API secret.
func (c *Client) RegisterWebhooks(ctx context.Context, events []string, callbackURL string) []domain.ItemOutcome {
	results := make([]domain.ItemOutcome, 0, len(events))
	for _, topic := range events {
		out := c.do(ctx, "register webhook", func(ctx context.Context) error {
			_, err := c.shop.Webhook.Create(ctx, goshopify.Webhook{
				Topic:   topic,
				Address: callbackURL,
				Format:  "json",
			})
			return err
		})
		if out.OK {
			out.StatusCode = http.StatusCreated
		}
		results = append(results, domain.ItemOutcome{ExternalID: topic, Outcome: out})
	}
	return results
}

// do runs one go-shopify call through the transport's retry policy
func (c *Client) do(ctx context.Context, op string, call func(ctx context.Context) error) domain.Outcome {
	if err := c.transport.Retry(ctx, op, call); err != nil {
		return domain.Failed(err)
	}
	return domain.Succeeded(http.StatusOK)
}

func (c *Client) getProduct(ctx context.Context, op, externalID string) (*goshopify.Product, domain.Outcome) {
	id, err := parseID(op, externalID)
	if err != nil {
		return nil, domain.Failed(err)
	}
	var product *goshopify.Product
	out := c.do(ctx, op, func(ctx context.Context) error {
		var err error
		product, err = c.shop.Product.Get(ctx, id, nil)
		return err
	})
	if !out.OK {
		return nil, out
	}
	return product, out
}

type listPage[T any] func(ctx context.Context, opts pageOptions) ([]T, *goshopify.Pagination, error)

// cursorPages follows rel="next" page_info cursors. The cursor is sent verbatim
// and the sequence ends on the first response without a next link.
func cursorPages[T any](c *Client, ctx context.Context, op, status string, list listPage[T]) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		cursor := ""
		pages := transport.Pages(ctx, op, c.transport.MaxPages(), func(ctx context.Context, page int) ([]T, bool, error) {
			opts := pageOptions{Limit: c.transport.PageSize(), PageInfo: cursor}
			if cursor == "" {
				opts.Status = status
			}

			var items []T
			var pagination *goshopify.Pagination
			err := c.transport.Retry(ctx, op, func(ctx context.Context) error {
				var err error
				items, pagination, err = list(ctx, opts)
				return err
			})
			if err != nil {
				return nil, false, err
			}

			cursor = ""
			if pagination != nil && pagination.NextPageOptions != nil {
				cursor = pagination.NextPageOptions.PageInfo
			}

			c.logger.Debug().
				Str("op", op).
				Int("page", page).
				Int("records", len(items)).
				Bool("more", cursor != "").
				Msg("Fetched page")
			return items, cursor != "", nil
		})
		for items, err := range pages {
			if !yield(items, err) {
				return
			}
		}
	}
}
