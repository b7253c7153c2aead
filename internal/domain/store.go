package domain

import (
	"slices"
	"time"
)

// PlatformType identifies the storefront platform a Store is connected to
type PlatformType string

const (
	PlatformShopify     PlatformType = "shopify"
	PlatformWooCommerce PlatformType = "woocommerce"
	PlatformLaravel     PlatformType = "laravel"
	PlatformCustom      PlatformType = "custom"
)

// Valid reports whether the platform type is one the engine knows
func (p PlatformType) Valid() bool {
	switch p {
	case PlatformShopify, PlatformWooCommerce, PlatformLaravel, PlatformCustom:
		return true
	}
	return false
}

// Wire returns the protocol family used to talk to the platform.
// Custom stores speak the generic Laravel protocol.
func (p PlatformType) Wire() PlatformType {
	if p == PlatformCustom {
		return PlatformLaravel
	}
	return p
}

// SyncDomain is the kind of data a sync run moves
type SyncDomain string

const (
	DomainProducts  SyncDomain = "products"
	DomainInventory SyncDomain = "inventory"
	DomainOrders    SyncDomain = "orders"
	DomainCustomers SyncDomain = "customers"
)

// Direction is the data flow of a sync run
type Direction string

const (
	DirectionPull Direction = "pull" // remote to local
	DirectionPush Direction = "push" // local to remote
)

// ParseSyncDomain validates a domain name coming from a URL or a queue message
func ParseSyncDomain(s string) (SyncDomain, bool) {
	d := SyncDomain(s)
	switch d {
	case DomainProducts, DomainInventory, DomainOrders, DomainCustomers:
		return d, true
	}
	return "", false
}

// ParseDirection validates a direction name
func ParseDirection(s string) (Direction, bool) {
	d := Direction(s)
	if d == DirectionPull || d == DirectionPush {
		return d, true
	}
	return "", false
}

// SyncKey is the (domain, direction) pair used for lock names and last-sync bookkeeping
func SyncKey(d SyncDomain, dir Direction) string {
	return string(d) + ":" + string(dir)
}

// SyncSettings holds the per-store sync toggles and product filters
type SyncSettings struct {
	SyncProducts   bool     `json:"sync_products"`
	SyncInventory  bool     `json:"sync_inventory"`
	SyncOrders     bool     `json:"sync_orders"`
	SyncCustomers  bool     `json:"sync_customers"`
	AutoSync       bool     `json:"auto_sync"`
	SyncInterval   int      `json:"sync_interval"`   // Minutes; 0 uses the configured default
	SyncModules    []string `json:"sync_modules"`    // Empty means every module
	SyncCategories []string `json:"sync_categories"` // Empty means every category
}

// Enabled reports whether the given domain is switched on
func (s SyncSettings) Enabled(d SyncDomain) bool {
	switch d {
	case DomainProducts:
		return s.SyncProducts
	case DomainInventory:
		return s.SyncInventory
	case DomainOrders:
		return s.SyncOrders
	case DomainCustomers:
		return s.SyncCustomers
	}
	return false
}

// Exposes reports whether a local product falls inside the module/category filters
func (s SyncSettings) Exposes(p *Product) bool {
	if len(s.SyncModules) > 0 && !slices.Contains(s.SyncModules, p.Module) {
		return false
	}
	if len(s.SyncCategories) > 0 && !slices.Contains(s.SyncCategories, p.Category) {
		return false
	}
	return true
}

// Store represents a configured connection between one branch and one external storefront
type Store struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	PlatformType PlatformType         `json:"platform_type"`
	BaseURL      string               `json:"base_url"`
	BranchID     string               `json:"branch_id"`
	IsActive     bool                 `json:"is_active"`
	SyncSettings SyncSettings         `json:"sync_settings"`
	LastSyncedAt map[string]time.Time `json:"last_synced_at,omitempty"` // Keyed by SyncKey
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Interval returns the store's sync interval, falling back to def when unset
func (s *Store) Interval(def time.Duration) time.Duration {
	if s.SyncSettings.SyncInterval > 0 {
		return time.Duration(s.SyncSettings.SyncInterval) * time.Minute
	}
	return def
}

// Due reports whether a scheduled run of (d, dir) should start at now
func (s *Store) Due(d SyncDomain, dir Direction, now time.Time, def time.Duration) bool {
	if !s.IsActive || !s.SyncSettings.AutoSync || !s.SyncSettings.Enabled(d) {
		return false
	}
	last, ok := s.LastSyncedAt[SyncKey(d, dir)]
	if !ok {
		return true
	}
	return now.Sub(last) >= s.Interval(def)
}
