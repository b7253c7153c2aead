package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const OrderStatusCancelled = "cancelled"

// StoreOrder is the local mirror of a remote order. (StoreID, ExternalOrderID) is unique;
// re-pulls and webhooks update the existing row.
type StoreOrder struct {
	ID              string          `json:"id"`
	StoreID         string          `json:"store_id"`
	ExternalOrderID string          `json:"external_order_id"`
	Number          string          `json:"number,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	Status          string          `json:"status"`
	PendingStatus   string          `json:"pending_status,omitempty"` // Local status change waiting to be pushed
	Currency        string          `json:"currency,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	BranchID        string          `json:"branch_id"`
	LinkedSaleID    *string         `json:"linked_sale_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
