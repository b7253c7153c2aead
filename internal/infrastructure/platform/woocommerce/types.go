package woocommerce

import (
	"encoding/json"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/platform/transport"

	"github.com/shopspring/decimal"
)

type wcID = transport.ID

type wcProduct struct {
	ID             wcID   `json:"id"`
	Name           string `json:"name"`
	SKU            string `json:"sku"`
	GlobalUniqueID string `json:"global_unique_id"`
	Description    string `json:"description"`
	Price          string `json:"price"`
	RegularPrice   string `json:"regular_price"`
	Status         string `json:"status"`
	ManageStock    bool   `json:"manage_stock"`
	StockQuantity  *int   `json:"stock_quantity"`
}

type wcProductWrite struct {
	Name          string `json:"name,omitempty"`
	SKU           string `json:"sku,omitempty"`
	Description   string `json:"description,omitempty"`
	RegularPrice  string `json:"regular_price,omitempty"`
	ManageStock   bool   `json:"manage_stock"`
	StockQuantity *int   `json:"stock_quantity,omitempty"`
}

type wcStockWrite struct {
	ID            wcID `json:"id"`
	ManageStock   bool `json:"manage_stock"`
	StockQuantity int  `json:"stock_quantity"`
}

type wcBatchRequest struct {
	Update []wcStockWrite `json:"update"`
}

type wcBatchResponse struct {
	Update []struct {
		ID    wcID `json:"id"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"update"`
}

type wcBilling struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type wcOrder struct {
	ID          wcID      `json:"id"`
	Number      string    `json:"number"`
	Status      string    `json:"status"`
	Currency    string    `json:"currency"`
	Total       string    `json:"total"`
	TotalTax    string    `json:"total_tax"`
	DateCreated string    `json:"date_created_gmt"`
	Billing     wcBilling `json:"billing"`
}

type wcOrderWrite struct {
	Status   string     `json:"status,omitempty"`
	Currency string     `json:"currency,omitempty"`
	Billing  *wcBilling `json:"billing,omitempty"`
}

type wcCustomer struct {
	ID        wcID      `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Billing   wcBilling `json:"billing"`
}

type wcCustomerWrite struct {
	Email     string     `json:"email,omitempty"`
	FirstName string     `json:"first_name,omitempty"`
	LastName  string     `json:"last_name,omitempty"`
	Billing   *wcBilling `json:"billing,omitempty"`
}

type wcWebhookWrite struct {
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	DeliveryURL string `json:"delivery_url"`
	Secret      string `json:"secret,omitempty"`
	Status      string `json:"status"`
}

// parseMoney reads a WooCommerce decimal string; empty means zero
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func toRemoteProduct(raw json.RawMessage) domain.RemoteProduct {
	var p wcProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.RemoteProduct{ExternalID: transport.ProbeID(raw), Raw: raw, Problem: "malformed product record"}
	}

	rp := domain.RemoteProduct{
		ExternalID:  string(p.ID),
		SKU:         p.SKU,
		Barcode:     p.GlobalUniqueID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		Raw:         raw,
	}
	if p.StockQuantity != nil {
		rp.Stock = *p.StockQuantity
	}

	price := p.RegularPrice
	if price == "" {
		price = p.Price
	}
	amount, err := parseMoney(price)
	if err != nil {
		rp.Problem = "invalid price"
		return rp
	}
	rp.Price = amount
	return rp
}

func fromRemoteProduct(p domain.RemoteProduct) wcProductWrite {
	stock := p.Stock
	w := wcProductWrite{
		Name:          p.Name,
		SKU:           p.SKU,
		Description:   p.Description,
		ManageStock:   true,
		StockQuantity: &stock,
	}
	if !p.Price.IsZero() {
		w.RegularPrice = p.Price.StringFixed(2)
	}
	return w
}

func toRemoteOrder(raw json.RawMessage) domain.RemoteOrder {
	var o wcOrder
	if err := json.Unmarshal(raw, &o); err != nil {
		return domain.RemoteOrder{ExternalID: transport.ProbeID(raw), Raw: raw, Problem: "malformed order record"}
	}

	ro := domain.RemoteOrder{
		ExternalID:    string(o.ID),
		Number:        o.Number,
		Status:        o.Status,
		Currency:      o.Currency,
		CustomerEmail: o.Billing.Email,
		Raw:           raw,
	}
	if o.DateCreated != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", o.DateCreated); err == nil {
			ro.CreatedAt = t.UTC()
		}
	}

	total, err := parseMoney(o.Total)
	if err != nil {
		ro.Problem = "invalid order total"
		return ro
	}
	tax, err := parseMoney(o.TotalTax)
	if err != nil {
		ro.Problem = "invalid order tax"
		return ro
	}
	ro.Total = total
	ro.Tax = tax
	ro.Subtotal = total.Sub(tax)
	return ro
}

func toRemoteCustomer(raw json.RawMessage) domain.RemoteCustomer {
	var c wcCustomer
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.RemoteCustomer{ExternalID: transport.ProbeID(raw), Raw: raw, Problem: "malformed customer record"}
	}
	email := c.Email
	if email == "" {
		email = c.Billing.Email
	}
	return domain.RemoteCustomer{
		ExternalID: string(c.ID),
		Email:      email,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Phone:      c.Billing.Phone,
		Raw:        raw,
	}
}
