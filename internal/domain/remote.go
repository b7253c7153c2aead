package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RemoteProduct is a product as reported by a platform, already translated out of
// the platform's wire shape
type RemoteProduct struct {
	ExternalID  string          `json:"external_id"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Status      string          `json:"status,omitempty"`
	Raw         json.RawMessage `json:"-"`
	// Problem is set when the platform record could not be fully translated.
	// Such records count as mapping failures.
	Problem string `json:"-"`
}

// RemoteOrder is an order as reported by a platform
type RemoteOrder struct {
	ExternalID    string          `json:"external_id"`
	Number        string          `json:"number,omitempty"`
	Status        string          `json:"status"`
	Currency      string          `json:"currency,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Raw           json.RawMessage `json:"-"`
	Problem       string          `json:"-"`
}

// RemoteCustomer is a customer as reported by a platform
type RemoteCustomer struct {
	ExternalID string          `json:"external_id"`
	Email      string          `json:"email"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	Phone      string          `json:"phone,omitempty"`
	Raw        json.RawMessage `json:"-"`
	Problem    string          `json:"-"`
}

// StockMode says how a quantity is applied to remote stock
type StockMode string

const (
	StockSet      StockMode = "set"
	StockAdd      StockMode = "add"
	StockSubtract StockMode = "subtract"
)

// Apply returns the resulting stock when quantity is applied to current
func (m StockMode) Apply(current, quantity int) int {
	switch m {
	case StockAdd:
		return current + quantity
	case StockSubtract:
		return current - quantity
	default:
		return quantity
	}
}

// StockItem is one stock change sent to, or read from, a platform
type StockItem struct {
	ExternalID string    `json:"external_id"`
	SKU        string    `json:"sku,omitempty"`
	Quantity   int       `json:"quantity"`
	Mode       StockMode `json:"mode,omitempty"`
}

// InventoryFilter restricts GetInventory to known remote ids. Empty means every product.
type InventoryFilter struct {
	ExternalIDs []string
}

// ItemOutcome is the per-item result of a bulk call
type ItemOutcome struct {
	ExternalID string `json:"external_id"`
	Outcome
}

// WebhookAction is what a webhook asks the engine to do with the referenced record
type WebhookAction string

const (
	ActionUpsert WebhookAction = "upsert"
	ActionDelete WebhookAction = "delete"
)

// WebhookEvent is a verified, decoded single-record webhook delivery. Exactly one of
// the record fields matching Domain is set for upserts.
type WebhookEvent struct {
	ID         string        `json:"id"`
	Platform   PlatformType  `json:"platform"`
	StoreID    string        `json:"store_id"`
	Topic      string        `json:"topic"`
	Domain     SyncDomain    `json:"domain"`
	Action     WebhookAction `json:"action"`
	ExternalID string        `json:"external_id"`
	Ping       bool          `json:"ping,omitempty"` // Delivery test with no record
	ReceivedAt time.Time     `json:"received_at"`

	Product  *RemoteProduct  `json:"-"`
	Order    *RemoteOrder    `json:"-"`
	Customer *RemoteCustomer `json:"-"`
	Stock    *StockItem      `json:"-"`
}
