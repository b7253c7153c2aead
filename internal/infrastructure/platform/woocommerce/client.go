package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/transport"
	"store-sync-engine/internal/ports"

	"github.com/rs/zerolog"
)

const (
	apiPrefix = "/wp-json/wc/v3"

	// batchLimit is the WooCommerce cap on items per batch request
	batchLimit = 100
)

// Client is the WooCommerce REST v3 adapter. It authenticates with HTTP Basic Auth
// using the consumer key and secret and pages with page/per_page, bounded by the
// X-WP-TotalPages response header.
type Client struct {
	baseURL        string
	consumerKey    domain.Secret
	consumerSecret domain.Secret
	webhookSecret  domain.Secret
	transport      *transport.Transport
	logger         zerolog.Logger
}

var _ ports.PlatformClient = (*Client)(nil)

// NewClient creates a WooCommerce client for one store
func NewClient(baseURL string, integration *domain.StoreIntegration, tr *transport.Transport, logger zerolog.Logger) (*Client, error) {
	if integration == nil || integration.APIKey.IsZero() || integration.APISecret.IsZero() {
		return nil, domain.ErrMissingCredentials
	}
	if baseURL == "" {
		return nil, fmt.Errorf("woocommerce: base URL is required")
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/") + apiPrefix,
		consumerKey:    integration.APIKey,
		consumerSecret: integration.APISecret,
		webhookSecret:  integration.WebhookSecret,
		transport:      tr,
		logger:         logger.With().Str("platform", string(domain.PlatformWooCommerce)).Logger(),
	}, nil
}

// Platform implements ports.PlatformClient
func (c *Client) Platform() domain.PlatformType {
	return domain.PlatformWooCommerce
}

// TestConnection requests a single product to prove the credentials work
func (c *Client) TestConnection(ctx context.Context) domain.Outcome {
	resp, err := c.call(ctx, "test connection", http.MethodGet, "/products", url.Values{"per_page": {"1"}}, nil)
	return outcome(resp, err)
}

// Products

func (c *Client) Products(ctx context.Context) iter.Seq2[[]domain.RemoteProduct, error] {
	return listPages(c, ctx, "list products", "/products", nil, toRemoteProduct)
}

func (c *Client) GetProduct(ctx context.Context, externalID string) (*domain.RemoteProduct, domain.Outcome) {
	resp, err := c.call(ctx, "get product", http.MethodGet, "/products/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, domain.Failed(err)
	}
	p := toRemoteProduct(resp.Body)
	return &p, domain.Succeeded(resp.StatusCode)
}

func (c *Client) CreateProduct(ctx context.Context, product domain.RemoteProduct) (*domain.RemoteProduct, domain.Outcome) {
	resp, err := c.call(ctx, "create product", http.MethodPost, "/products", nil, fromRemoteProduct(product))
	if err != nil {
		return nil, domain.Failed(err)
	}
	created := toRemoteProduct(resp.Body)
	return &created, domain.Succeeded(resp.StatusCode)
}

func (c *Client) UpdateProduct(ctx context.Context, externalID string, product domain.RemoteProduct) domain.Outcome {
	resp, err := c.call(ctx, "update product", http.MethodPut, "/products/"+url.PathEscape(externalID), nil, fromRemoteProduct(product))
	return outcome(resp, err)
}

func (c *Client) DeleteProduct(ctx context.Context, externalID string) domain.Outcome {
	resp, err := c.call(ctx, "delete product", http.MethodDelete, "/products/"+url.PathEscape(externalID), url.Values{"force": {"true"}}, nil)
	return outcome(resp, err)
}

// Inventory

// GetInventory reads stock for the given product ids, or for the whole catalog
func (c *Client) GetInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.StockItem, domain.Outcome) {
	var items []domain.StockItem
	add := func(products []domain.RemoteProduct) {
		for _, p := range products {
			items = append(items, domain.StockItem{ExternalID: p.ExternalID, SKU: p.SKU, Quantity: p.Stock, Mode: domain.StockSet})
		}
	}

	if len(filter.ExternalIDs) == 0 {
		for page, err := range c.Products(ctx) {
			if err != nil {
				return items, domain.Failed(err)
			}
			add(page)
		}
		return items, domain.Succeeded(http.StatusOK)
	}

	for chunk := range chunks(filter.ExternalIDs, batchLimit) {
		query := url.Values{"include": {strings.Join(chunk, ",")}, "per_page": {strconv.Itoa(len(chunk))}}
		resp, err := c.call(ctx, "get inventory", http.MethodGet, "/products", query, nil)
		if err != nil {
			return items, domain.Failed(err)
		}
		page, err := decodeList(resp.Body, toRemoteProduct)
		if err != nil {
			return items, domain.Failed(err)
		}
		add(page)
	}
	return items, domain.Succeeded(http.StatusOK)
}

// UpdateStock writes stock_quantity. Relative modes read the current stock first
// since the REST API has no increment operation.
func (c *Client) UpdateStock(ctx context.Context, externalID string, quantity int, mode domain.StockMode) domain.Outcome {
	target := quantity
	if mode == domain.StockAdd || mode == domain.StockSubtract {
		current, out := c.GetProduct(ctx, externalID)
		if !out.OK {
			return out
		}
		target = mode.Apply(current.Stock, quantity)
	}

	payload := map[string]any{"manage_stock": true, "stock_quantity": target}
	resp, err := c.call(ctx, "update stock", http.MethodPut, "/products/"+url.PathEscape(externalID), nil, payload)
	return outcome(resp, err)
}

// BulkUpdateStock uses the products/batch endpoint in chunks of 100
func (c *Client) BulkUpdateStock(ctx context.Context, items []domain.StockItem) ([]domain.ItemOutcome, domain.Outcome) {
	results := make([]domain.ItemOutcome, 0, len(items))

	// Resolve relative modes to absolute quantities
	relative := []string{}
	for _, it := range items {
		if it.Mode == domain.StockAdd || it.Mode == domain.StockSubtract {
			relative = append(relative, it.ExternalID)
		}
	}
	current := map[string]int{}
	if len(relative) > 0 {
		levels, out := c.GetInventory(ctx, domain.InventoryFilter{ExternalIDs: relative})
		if !out.OK {
			return nil, out
		}
		for _, l := range levels {
			current[l.ExternalID] = l.Quantity
		}
	}

	for chunk := range chunks(items, batchLimit) {
		req := wcBatchRequest{Update: make([]wcStockWrite, 0, len(chunk))}
		for _, it := range chunk {
			req.Update = append(req.Update, wcStockWrite{
				ID:            wcID(it.ExternalID),
				ManageStock:   true,
				StockQuantity: it.Mode.Apply(current[it.ExternalID], it.Quantity),
			})
		}

		resp, err := c.call(ctx, "bulk update stock", http.MethodPost, "/products/batch", nil, req)
		if err != nil {
			out := domain.Failed(err)
			if out.Kind.Halts() {
				return results, out
			}
			for _, it := range chunk {
				results = append(results, domain.ItemOutcome{ExternalID: it.ExternalID, Outcome: out})
			}
			continue
		}

		var batch wcBatchResponse
		if err := json.Unmarshal(resp.Body, &batch); err != nil {
			out := domain.Outcome{StatusCode: resp.StatusCode, Kind: domain.KindRemote, Message: "unexpected response format"}
			for _, it := range chunk {
				results = append(results, domain.ItemOutcome{ExternalID: it.ExternalID, Outcome: out})
			}
			continue
		}

		byID := map[string]domain.Outcome{}
		for _, u := range batch.Update {
			if u.Error != nil {
				byID[string(u.ID)] = domain.Outcome{StatusCode: resp.StatusCode, Kind: domain.KindRemote, Message: "rejected: " + u.Error.Code}
				continue
			}
			byID[string(u.ID)] = domain.Succeeded(resp.StatusCode)
		}
		for _, it := range chunk {
			out, ok := byID[it.ExternalID]
			if !ok {
				out = domain.Outcome{StatusCode: resp.StatusCode, Kind: domain.KindRemote, Message: "missing from batch response"}
			}
			results = append(results, domain.ItemOutcome{ExternalID: it.ExternalID, Outcome: out})
		}
	}
	return results, domain.Succeeded(http.StatusOK)
}

// Orders

func (c *Client) Orders(ctx context.Context, status string) iter.Seq2[[]domain.RemoteOrder, error] {
	if status == "" {
		status = "any"
	}
	return listPages(c, ctx, "list orders", "/orders", url.Values{"status": {status}}, toRemoteOrder)
}

func (c *Client) GetOrder(ctx context.Context, externalID string) (*domain.RemoteOrder, domain.Outcome) {
	resp, err := c.call(ctx, "get order", http.MethodGet, "/orders/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, domain.Failed(err)
	}
	o := toRemoteOrder(resp.Body)
	return &o, domain.Succeeded(resp.StatusCode)
}

func (c *Client) CreateOrder(ctx context.Context, order domain.RemoteOrder) (*domain.RemoteOrder, domain.Outcome) {
	payload := wcOrderWrite{Status: order.Status, Currency: order.Currency}
	if order.CustomerEmail != "" {
		payload.Billing = &wcBilling{Email: order.CustomerEmail}
	}
	resp, err := c.call(ctx, "create order", http.MethodPost, "/orders", nil, payload)
	if err != nil {
		return nil, domain.Failed(err)
	}
	created := toRemoteOrder(resp.Body)
	return &created, domain.Succeeded(resp.StatusCode)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, externalID string, status string) domain.Outcome {
	resp, err := c.call(ctx, "update order status", http.MethodPut, "/orders/"+url.PathEscape(externalID), nil, wcOrderWrite{Status: status})
	return outcome(resp, err)
}

// Customers

func (c *Client) Customers(ctx context.Context) iter.Seq2[[]domain.RemoteCustomer, error] {
	return listPages(c, ctx, "list customers", "/customers", url.Values{"role": {"all"}}, toRemoteCustomer)
}

func (c *Client) GetCustomer(ctx context.Context, externalID string) (*domain.RemoteCustomer, domain.Outcome) {
	resp, err := c.call(ctx, "get customer", http.MethodGet, "/customers/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, domain.Failed(err)
	}
	cu := toRemoteCustomer(resp.Body)
	return &cu, domain.Succeeded(resp.StatusCode)
}

func (c *Client) CreateCustomer(ctx context.Context, customer domain.RemoteCustomer) (*domain.RemoteCustomer, domain.Outcome) {
	resp, err := c.call(ctx, "create customer", http.MethodPost, "/customers", nil, customerWrite(customer))
	if err != nil {
		return nil, domain.Failed(err)
	}
	created := toRemoteCustomer(resp.Body)
	return &created, domain.Succeeded(resp.StatusCode)
}

func (c *Client) UpdateCustomer(ctx context.Context, externalID string, customer domain.RemoteCustomer) domain.Outcome {
	resp, err := c.call(ctx, "update customer", http.MethodPut, "/customers/"+url.PathEscape(externalID), nil, customerWrite(customer))
	return outcome(resp, err)
}

// Webhooks

// RegisterWebhooks creates one webhook per topic, signed with the store's webhook secret
func (c *Client) RegisterWebhooks(ctx context.Context, events []string, callbackURL string) []domain.ItemOutcome {
	results := make([]domain.ItemOutcome, 0, len(events))
	for _, topic := range events {
		payload := wcWebhookWrite{
			Name:        "store-sync " + topic,
			Topic:       topic,
			DeliveryURL: callbackURL,
			Secret:      c.webhookSecret.Reveal(),
			Status:      "active",
		}
		resp, err := c.call(ctx, "register webhook", http.MethodPost, "/webhooks", nil, payload)
		results = append(results, domain.ItemOutcome{ExternalID: topic, Outcome: outcome(resp, err)})
	}
	return results
}

// call performs one authenticated JSON request through the shared transport
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, payload any) (*transport.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.transport.Do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := transport.NewJSONRequest(ctx, method, endpoint, payload)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.consumerKey.Reveal(), c.consumerSecret.Reveal())
		return req, nil
	})
}

// listPages pages a collection endpoint until page exceeds X-WP-TotalPages
func listPages[T any](c *Client, ctx context.Context, op, path string, extra url.Values, convert func(json.RawMessage) T) iter.Seq2[[]T, error] {
	perPage := c.transport.PageSize()
	return transport.Pages(ctx, op, c.transport.MaxPages(), func(ctx context.Context, page int) ([]T, bool, error) {
		query := url.Values{}
		for k, v := range extra {
			query[k] = v
		}
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(perPage))

		resp, err := c.call(ctx, op, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, false, err
		}
		items, err := decodeList(resp.Body, convert)
		if err != nil {
			return nil, false, domain.NewPlatformError(domain.KindRemote, op, resp.StatusCode, "unexpected response format")
		}

		more := len(items) >= perPage
		if total, err := strconv.Atoi(resp.Header.Get("X-WP-TotalPages")); err == nil {
			more = page < total
		}

		c.logger.Debug().
			Str("op", op).
			Int("page", page).
			Int("records", len(items)).
			Bool("more", more).
			Msg("Fetched page")
		return items, more, nil
	})
}

func decodeList[T any](body []byte, convert func(json.RawMessage) T) ([]T, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, err
	}
	items := make([]T, 0, len(raws))
	for _, raw := range raws {
		items = append(items, convert(raw))
	}
	return items, nil
}

func customerWrite(c domain.RemoteCustomer) wcCustomerWrite {
	w := wcCustomerWrite{Email: c.Email, FirstName: c.FirstName, LastName: c.LastName}
	if c.Phone != "" {
		w.Billing = &wcBilling{Phone: c.Phone, Email: c.Email}
	}
	return w
}

func outcome(resp *transport.Response, err error) domain.Outcome {
	if err != nil {
		return domain.Failed(err)
	}
	return domain.Succeeded(resp.StatusCode)
}

func chunks[T any](items []T, size int) iter.Seq[[]T] {
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end]) {
				return
			}
		}
	}
}
