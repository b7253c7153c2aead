package laravel

import (
	"encoding/json"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/transport"

	"github.com/shopspring/decimal"
)

// envelope is the Laravel API resource wrapper. Paginated collections carry
// meta.last_page, simple paginators put last_page at the top level.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	LastPage int             `json:"last_page"`
	Meta     struct {
		LastPage int `json:"last_page"`
	} `json:"meta"`
}

func (e envelope) lastPage() int {
	if e.Meta.LastPage > 0 {
		return e.Meta.LastPage
	}
	return e.LastPage
}

// unwrap returns the record inside {"data": ...}, or body itself when unwrapped
func unwrap(body []byte) json.RawMessage {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		return env.Data
	}
	return body
}

type lvProduct struct {
	ID          transport.ID    `json:"id"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       *int            `json:"stock"`
	Quantity    *int            `json:"quantity"`
	Status      string          `json:"status"`
}

type lvProductWrite struct {
	SKU         string          `json:"sku,omitempty"`
	Barcode     string          `json:"barcode,omitempty"`
	Name        string          `json:"name,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type lvStock struct {
	ID       transport.ID     `json:"id"`
	SKU      string           `json:"sku,omitempty"`
	Quantity int              `json:"quantity"`
	Mode     domain.StockMode `json:"mode,omitempty"`
}

type lvBulkStockRequest struct {
	Items []lvStock `json:"items"`
}

type lvItemResult struct {
	ID      transport.ID `json:"id"`
	Event   string       `json:"event"`
	Success bool         `json:"success"`
	Message string       `json:"message"`
}

type lvResults struct {
	Results []lvItemResult `json:"results"`
}

type lvOrder struct {
	ID            transport.ID     `json:"id"`
	Number        string           `json:"order_number"`
	Status        string           `json:"status"`
	Currency      string           `json:"currency"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	Tax           decimal.Decimal  `json:"tax"`
	Total         *decimal.Decimal `json:"total"`
	CustomerEmail string           `json:"customer_email"`
	CreatedAt     *time.Time       `json:"created_at"`
}

type lvOrderWrite struct {
	Status        string          `json:"status,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Total         decimal.Decimal `json:"total"`
	CustomerEmail string          `json:"customer_email,omitempty"`
}

type lvCustomer struct {
	ID        transport.ID `json:"id,omitempty"`
	Email     string       `json:"email"`
	FirstName string       `json:"first_name"`
	LastName  string       `json:"last_name"`
	Phone     string       `json:"phone"`
}

type lvWebhookRegistration struct {
	Events      []string `json:"events"`
	CallbackURL string   `json:"callback_url"`
	Secret      string   `json:"secret"`
}

func toRemoteProduct(raw json.RawMessage) domain.RemoteProduct {
	var p lvProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.RemoteProduct{ExternalID: transport.ProbeID(raw), Raw: raw, Problem: "malformed product record"}
	}
	rp := domain.RemoteProduct{
		ExternalID:  string(p.ID),
		SKU:         p.SKU,
		Barcode:     p.Barcode,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Status:      p.Status,
		Raw:         raw,
	}
	switch {
	case p.Stock != nil:
		rp.Stock = *p.Stock
	case p.Quantity != nil:
		rp.Stock = *p.Quantity
	}
	return rp
}

func fromRemoteProduct(p domain.RemoteProduct) lvProductWrite {
	return lvProductWrite{
		SKU:         p.SKU,
		Barcode:     p.Barcode,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

func toRemoteOrder(raw json.RawMessage) domain.RemoteOrder {
	var o lvOrder
	if err := json.Unmarshal(raw, &o); err != nil {
		return domain.RemoteOrder{ExternalID: transport.ProbeID(raw), Raw: raw, Problem: "malformed order record"}
	}
	ro := domain.RemoteOrder{
		ExternalID:    string(o.ID),
		Number:        o.Number,
		Status:        o.Status,
		Currency:      o.Currency,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		CustomerEmail: o.CustomerEmail,
		Raw:           raw,
	}
	if o.CreatedAt != nil {
		ro.CreatedAt = o.CreatedAt.UTC()
	}
	if o.Total == nil {
		ro.Problem = "order has no total"
		return ro
	}
	ro.Total = *o.Total
	return ro
}

func toRemoteCustomer(raw json.RawMessage) domain.RemoteCustomer {
	var c lvCustomer
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.RemoteCustomer{ExternalID: transport.ProbeID(raw), Raw: raw, Problem: "malformed customer record"}
	}
	return domain.RemoteCustomer{
		ExternalID: string(c.ID),
		Email:      c.Email,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Phone:      c.Phone,
		Raw:        raw,
	}
}

func fromRemoteCustomer(c domain.RemoteCustomer) lvCustomer {
	return lvCustomer{Email: c.Email, FirstName: c.FirstName, LastName: c.LastName, Phone: c.Phone}
}
