package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the local catalog entry synced with stores. SKU is the natural key,
// Barcode is used when a remote record carries no SKU.
type Product struct {
	ID          string          `json:"id"`
	BranchID    string          `json:"branch_id"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Module      string          `json:"module,omitempty"`
	Category    string          `json:"category,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NaturalKey returns the identifier used to match remote records
func (p *Product) NaturalKey() string {
	if p.SKU != "" {
		return p.SKU
	}
	return p.Barcode
}

// ProductLink associates a local product with its id on one store
type ProductLink struct {
	StoreID     string    `json:"store_id"`
	ProductID   string    `json:"product_id"`
	ExternalID  string    `json:"external_id"`
	RemoteStock *int      `json:"remote_stock,omitempty"`
	SyncedAt    time.Time `json:"synced_at"`
}

// Customer is the local customer record, keyed by email
type Customer struct {
	ID        string    `json:"id"`
	BranchID  string    `json:"branch_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CustomerLink associates a local customer with its id on one store
type CustomerLink struct {
	StoreID    string    `json:"store_id"`
	CustomerID string    `json:"customer_id"`
	ExternalID string    `json:"external_id"`
	SyncedAt   time.Time `json:"synced_at"`
}
