// Package laravel implements the partner storefront adapter: a conventional
// Laravel REST API under /api/v1 authenticated with a bearer token. It also
// serves stores configured with platform_type "custom".
package laravel

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
	apiPrefix = "/api/v1"
	bulkLimit = 200
)

// Client is the Laravel-style adapter
type Client struct {
	baseURL       string
	token         domain.Secret
	webhookSecret domain.Secret
	transport     *transport.Transport
	logger        zerolog.Logger
}

var _ ports.PlatformClient = (*Client)(nil)

// NewClient creates a Laravel client for one store
func NewClient(baseURL string, integration *domain.StoreIntegration, tr *transport.Transport, logger zerolog.Logger) (*Client, error) {
	if integration == nil || integration.BearerToken().IsZero() {
		return nil, domain.ErrMissingCredentials
	}
	if baseURL == "" {
		return nil, fmt.Errorf("laravel: base URL is required")
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/") + apiPrefix,
		token:         integration.BearerToken(),
		webhookSecret: integration.WebhookSecret,
		transport:     tr,
		logger:        logger.With().Str("platform", string(domain.PlatformLaravel)).Logger(),
	}, nil
}

// Platform implements ports.PlatformClient
func (c *Client) Platform() domain.PlatformType {
	return domain.PlatformLaravel
}

// TestConnection calls the partner's health probe
func (c *Client) TestConnection(ctx context.Context) domain.Outcome {
	resp, err := c.call(ctx, "test connection", http.MethodGet, "/test-connection", nil, nil)
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
	p := toRemoteProduct(unwrap(resp.Body))
	return &p, domain.Succeeded(resp.StatusCode)
}

func (c *Client) CreateProduct(ctx context.Context, product domain.RemoteProduct) (*domain.RemoteProduct, domain.Outcome) {
	resp, err := c.call(ctx, "create product", http.MethodPost, "/products", nil, fromRemoteProduct(product))
	if err != nil {
		return nil, domain.Failed(err)
	}
	created := toRemoteProduct(unwrap(resp.Body))
	return &created, domain.Succeeded(resp.StatusCode)
}

func (c *Client) UpdateProduct(ctx context.Context, externalID string, product domain.RemoteProduct) domain.Outcome {
	resp, err := c.call(ctx, "update product", http.MethodPut, "/products/"+url.PathEscape(externalID), nil, fromRemoteProduct(product))
	return outcome(resp, err)
}

func (c *Client) DeleteProduct(ctx context.Context, externalID string) domain.Outcome {
	resp, err := c.call(ctx, "delete product", http.MethodDelete, "/products/"+url.PathEscape(externalID), nil, nil)
	return outcome(resp, err)
}

// Inventory

// GetInventory reads /inventory, optionally restricted to the given product ids
func (c *Client) GetInventory(ctx context.Context, filter domain.InventoryFilter) ([]domain.StockItem, domain.Outcome) {
	var query url.Values
	if len(filter.ExternalIDs) > 0 {
		query = url.Values{"ids": {strings.Join(filter.ExternalIDs, ",")}}
	}

	var items []domain.StockItem
	for page, err := range listPages(c, ctx, "get inventory", "/inventory", query, toStockItem) {
		if err != nil {
			return items, domain.Failed(err)
		}
		items = append(items, page...)
	}
	return items, domain.Succeeded(http.StatusOK)
}

// UpdateStock sends the mode through; the partner API applies it atomically
func (c *Client) UpdateStock(ctx context.Context, externalID string, quantity int, mode domain.StockMode) domain.Outcome {
	if mode == "" {
		mode = domain.StockSet
	}
	payload := lvStock{ID: transport.ID(externalID), Quantity: quantity, Mode: mode}
	resp, err := c.call(ctx, "update stock", http.MethodPut, "/products/"+url.PathEscape(externalID)+"/stock", nil, payload)
	return outcome(resp, err)
}

// BulkUpdateStock posts to the bulk-update-stock convention endpoint
func (c *Client) BulkUpdateStock(ctx context.Context, items []domain.StockItem) ([]domain.ItemOutcome, domain.Outcome) {
	results := make([]domain.ItemOutcome, 0, len(items))
	for start := 0; start < len(items); start += bulkLimit {
		chunk := items[start:min(start+bulkLimit, len(items))]

		req := lvBulkStockRequest{Items: make([]lvStock, 0, len(chunk))}
		for _, it := range chunk {
			mode := it.Mode
			if mode == "" {
				mode = domain.StockSet
			}
			req.Items = append(req.Items, lvStock{ID: transport.ID(it.ExternalID), SKU: it.SKU, Quantity: it.Quantity, Mode: mode})
		}

		resp, err := c.call(ctx, "bulk update stock", http.MethodPost, "/products/bulk-update-stock", nil, req)
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

		byID := perItem(resp, func(r lvItemResult) string { return string(r.ID) })
		for _, it := range chunk {
			out, ok := byID[it.ExternalID]
			if !ok {
				// A bare 2xx without per-item results accepts the whole chunk
				out = domain.Succeeded(resp.StatusCode)
			}
			results = append(results, domain.ItemOutcome{ExternalID: it.ExternalID, Outcome: out})
		}
	}
	return results, domain.Succeeded(http.StatusOK)
}

// Orders

func (c *Client) Orders(ctx context.Context, status string) iter.Seq2[[]domain.RemoteOrder, error] {
	var query url.Values
	if status != "" && status != "any" {
		query = url.Values{"status": {status}}
	}
	return listPages(c, ctx, "list orders", "/orders", query, toRemoteOrder)
}

func (c *Client) GetOrder(ctx context.Context, externalID string) (*domain.RemoteOrder, domain.Outcome) {
	resp, err := c.call(ctx, "get order", http.MethodGet, "/orders/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, domain.Failed(err)
	}
	o := toRemoteOrder(unwrap(resp.Body))
	return &o, domain.Succeeded(resp.StatusCode)
}

func (c *Client) CreateOrder(ctx context.Context, order domain.RemoteOrder) (*domain.RemoteOrder, domain.Outcome) {
	payload := lvOrderWrite{Status: order.Status, Currency: order.Currency, Total: order.Total, CustomerEmail: order.CustomerEmail}
	resp, err := c.call(ctx, "create order", http.MethodPost, "/orders", nil, payload)
	if err != nil {
		return nil, domain.Failed(err)
	}
	created := toRemoteOrder(unwrap(resp.Body))
	return &created, domain.Succeeded(resp.StatusCode)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, externalID string, status string) domain.Outcome {
	payload := map[string]string{"status": status}
	resp, err := c.call(ctx, "update order status", http.MethodPut, "/orders/"+url.PathEscape(externalID)+"/status", nil, payload)
	return outcome(resp, err)
}

// Customers

func (c *Client) Customers(ctx context.Context) iter.Seq2[[]domain.RemoteCustomer, error] {
	return listPages(c, ctx, "list customers", "/customers", nil, toRemoteCustomer)
}

func (c *Client) GetCustomer(ctx context.Context, externalID string) (*domain.RemoteCustomer, domain.Outcome) {
	resp, err := c.call(ctx, "get customer", http.MethodGet, "/customers/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, domain.Failed(err)
	}
	cu := toRemoteCustomer(unwrap(resp.Body))
	return &cu, domain.Succeeded(resp.StatusCode)
}

func (c *Client) CreateCustomer(ctx context.Context, customer domain.RemoteCustomer) (*domain.RemoteCustomer, domain.Outcome) {
	resp, err := c.call(ctx, "create customer", http.MethodPost, "/customers", nil, fromRemoteCustomer(customer))
	if err != nil {
		return nil, domain.Failed(err)
	}
	created := toRemoteCustomer(unwrap(resp.Body))
	return &created, domain.Succeeded(resp.StatusCode)
}

func (c *Client) UpdateCustomer(ctx context.Context, externalID string, customer domain.RemoteCustomer) domain.Outcome {
	resp, err := c.call(ctx, "update customer", http.MethodPut, "/customers/"+url.PathEscape(externalID), nil, fromRemoteCustomer(customer))
	return outcome(resp, err)
}

// Webhooks

// RegisterWebhooks posts every event in one call with the callback URL and the
// shared secret the partner must echo or sign with
func (c *Client) RegisterWebhooks(ctx context.Context, events []string, callbackURL string) []domain.ItemOutcome {
	payload := lvWebhookRegistration{Events: events, CallbackURL: callbackURL, Secret: c.webhookSecret.Reveal()}
	resp, err := c.call(ctx, "register webhooks", http.MethodPost, "/webhooks/register", nil, payload)

	results := make([]domain.ItemOutcome, 0, len(events))
	if err != nil {
		out := domain.Failed(err)
		for _, e := range events {
			results = append(results, domain.ItemOutcome{ExternalID: e, Outcome: out})
		}
		return results
	}

	byEvent := perItem(resp, func(r lvItemResult) string { return r.Event })
	for _, e := range events {
		out, ok := byEvent[e]
		if !ok {
			out = domain.Succeeded(resp.StatusCode)
		}
		results = append(results, domain.ItemOutcome{ExternalID: e, Outcome: out})
	}
	return results
}

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
		req.Header.Set("Authorization", "Bearer "+c.token.Reveal())
		return req, nil
	})
}

// listPages pages with page/per_page until page reaches last_page. Without a
// last_page hint a short page ends the sequence.
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

		var env envelope
		var raws []json.RawMessage
		if err := json.Unmarshal(resp.Body, &env); err != nil || json.Unmarshal(env.Data, &raws) != nil {
			return nil, false, domain.NewPlatformError(domain.KindRemote, op, resp.StatusCode, "unexpected response format")
		}
		items := make([]T, 0, len(raws))
		for _, raw := range raws {
			items = append(items, convert(raw))
		}

		more := len(items) >= perPage
		if last := env.lastPage(); last > 0 {
			more = page < last
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

func toStockItem(raw json.RawMessage) domain.StockItem {
	var s struct {
		ID        transport.ID `json:"id"`
		ProductID transport.ID `json:"product_id"`
		SKU       string       `json:"sku"`
		Quantity  int          `json:"quantity"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.StockItem{ExternalID: transport.ProbeID(raw)}
	}
	id := s.ProductID
	if id == "" {
		id = s.ID
	}
	return domain.StockItem{ExternalID: string(id), SKU: s.SKU, Quantity: s.Quantity, Mode: domain.StockSet}
}

// perItem reads an optional {"results": [...]} body into outcomes keyed by key
func perItem(resp *transport.Response, key func(lvItemResult) string) map[string]domain.Outcome {
	var body lvResults
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil
	}
	out := make(map[string]domain.Outcome, len(body.Results))
	for _, r := range body.Results {
		if r.Success {
			out[key(r)] = domain.Succeeded(resp.StatusCode)
			continue
		}
		out[key(r)] = domain.Outcome{StatusCode: resp.StatusCode, Kind: domain.KindRemote, Message: "rejected by platform"}
	}
	return out
}

func outcome(resp *transport.Response, err error) domain.Outcome {
	if err != nil {
		return domain.Failed(err)
	}
	return domain.Succeeded(resp.StatusCode)
}
