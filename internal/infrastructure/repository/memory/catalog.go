package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/google/uuid"
)

var (
	_ ports.ProductRepository      = (*ProductRepository)(nil)
	_ ports.ProductLinkRepository  = (*ProductLinkRepository)(nil)
	_ ports.CustomerRepository     = (*CustomerRepository)(nil)
	_ ports.CustomerLinkRepository = (*CustomerLinkRepository)(nil)
)

// ProductRepository is an in-memory local catalog
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product // keyed by id
}

// NewProductRepository creates a new in-memory product repository
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]*domain.Product)}
}

// UpsertByKey implements ports.ProductRepository
func (r *ProductRepository) UpsertByKey(_ context.Context, product *domain.Product) (*domain.Product, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing := r.find(product.BranchID, product.SKU, product.Barcode); existing != nil {
		existing.Name = product.Name
		existing.Description = product.Description
		existing.Price = product.Price
		if product.SKU != "" {
			existing.SKU = product.SKU
		}
		if product.Barcode != "" {
			existing.Barcode = product.Barcode
		}
		if product.Module != "" {
			existing.Module = product.Module
		}
		if product.Category != "" {
			existing.Category = product.Category
		}
		existing.UpdatedAt = now
		c := *existing
		return &c, false, nil
	}

	p := *product
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.UpdatedAt = now
	r.products[p.ID] = &p
	c := p
	return &c, true, nil
}

func (r *ProductRepository) find(branchID, sku, barcode string) *domain.Product {
	for _, p := range r.products {
		if p.BranchID != branchID {
			continue
		}
		if sku != "" && p.SKU == sku {
			return p
		}
	}
	if barcode == "" {
		return nil
	}
	for _, p := range r.products {
		if p.BranchID == branchID && p.Barcode == barcode {
			return p
		}
	}
	return nil
}

// ListByBranch implements ports.ProductRepository
func (r *ProductRepository) ListByBranch(_ context.Context, branchID string) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Product
	for _, p := range r.products {
		if p.BranchID == branchID {
			c := *p
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Product) int { return cmp.Compare(a.NaturalKey(), b.NaturalKey()) })
	return out, nil
}

// Get implements ports.ProductRepository
func (r *ProductRepository) Get(_ context.Context, productID string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[productID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

// Len returns the number of stored products
func (r *ProductRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.products)
}

type linkKey struct {
	storeID    string
	externalID string
}

// ProductLinkRepository keeps product links keyed by (store, external id)
type ProductLinkRepository struct {
	mu    sync.RWMutex
	links map[linkKey]*domain.ProductLink
}

// NewProductLinkRepository creates a new in-memory product link repository
func NewProductLinkRepository() *ProductLinkRepository {
	return &ProductLinkRepository{links: make(map[linkKey]*domain.ProductLink)}
}

// Upsert implements ports.ProductLinkRepository. A product has at most one link per
// store, so an older link of the same product under another external id is replaced.
func (r *ProductLinkRepository) Upsert(_ context.Context, link *domain.ProductLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, l := range r.links {
		if k.storeID == link.StoreID && l.ProductID == link.ProductID && k.externalID != link.ExternalID {
			delete(r.links, k)
		}
	}
	key := linkKey{link.StoreID, link.ExternalID}
	c := cloneLink(link)
	if existing, ok := r.links[key]; ok && c.RemoteStock == nil {
		c.RemoteStock = existing.RemoteStock
	}
	r.links[key] = c
	return nil
}

// GetByExternalID implements ports.ProductLinkRepository
func (r *ProductLinkRepository) GetByExternalID(_ context.Context, storeID, externalID string) (*domain.ProductLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[linkKey{storeID, externalID}]
	if !ok {
		return nil, nil
	}
	return cloneLink(l), nil
}

// GetByProductID implements ports.ProductLinkRepository
func (r *ProductLinkRepository) GetByProductID(_ context.Context, storeID, productID string) (*domain.ProductLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for k, l := range r.links {
		if k.storeID == storeID && l.ProductID == productID {
			return cloneLink(l), nil
		}
	}
	return nil, nil
}

// ListByStore implements ports.ProductLinkRepository
func (r *ProductLinkRepository) ListByStore(_ context.Context, storeID string) ([]*domain.ProductLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.ProductLink
	for k, l := range r.links {
		if k.storeID == storeID {
			out = append(out, cloneLink(l))
		}
	}
	slices.SortFunc(out, func(a, b *domain.ProductLink) int { return cmp.Compare(a.ExternalID, b.ExternalID) })
	return out, nil
}

// Delete implements ports.ProductLinkRepository
func (r *ProductLinkRepository) Delete(_ context.Context, storeID, externalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.links, linkKey{storeID, externalID})
	return nil
}

// Count implements ports.ProductLinkRepository
func (r *ProductLinkRepository) Count(_ context.Context, storeID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for k := range r.links {
		if k.storeID == storeID {
			n++
		}
	}
	return n, nil
}

func cloneLink(l *domain.ProductLink) *domain.ProductLink {
	c := *l
	if l.RemoteStock != nil {
		v := *l.RemoteStock
		c.RemoteStock = &v
	}
	return &c
}

// CustomerRepository is an in-memory customer table keyed by (branch, email)
type CustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer // keyed by branch + email
}

// NewCustomerRepository creates a new in-memory customer repository
func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{customers: make(map[string]*domain.Customer)}
}

// UpsertByEmail implements ports.CustomerRepository
func (r *CustomerRepository) UpsertByEmail(_ context.Context, customer *domain.Customer) (*domain.Customer, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := customer.BranchID + "\x00" + customer.Email
	now := time.Now().UTC()
	if existing, ok := r.customers[key]; ok {
		existing.FirstName = customer.FirstName
		existing.LastName = customer.LastName
		if customer.Phone != "" {
			existing.Phone = customer.Phone
		}
		existing.UpdatedAt = now
		c := *existing
		return &c, false, nil
	}

	c := *customer
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.UpdatedAt = now
	r.customers[key] = &c
	out := c
	return &out, true, nil
}

// ListByBranch implements ports.CustomerRepository
func (r *CustomerRepository) ListByBranch(_ context.Context, branchID string) ([]*domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Customer
	for _, c := range r.customers {
		if c.BranchID == branchID {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Customer) int { return cmp.Compare(a.Email, b.Email) })
	return out, nil
}

// Len returns the number of stored customers
func (r *CustomerRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.customers)
}

// CustomerLinkRepository keeps customer links keyed by (store, customer id)
type CustomerLinkRepository struct {
	mu    sync.RWMutex
	links map[linkKey]domain.CustomerLink
}

// NewCustomerLinkRepository creates a new in-memory customer link repository
func NewCustomerLinkRepository() *CustomerLinkRepository {
	return &CustomerLinkRepository{links: make(map[linkKey]domain.CustomerLink)}
}

// Upsert implements ports.CustomerLinkRepository
func (r *CustomerLinkRepository) Upsert(_ context.Context, link *domain.CustomerLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.links[linkKey{link.StoreID, link.CustomerID}] = *link
	return nil
}

// GetByCustomerID implements ports.CustomerLinkRepository
func (r *CustomerLinkRepository) GetByCustomerID(_ context.Context, storeID, customerID string) (*domain.CustomerLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[linkKey{storeID, customerID}]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// Len returns the number of customer links
func (r *CustomerLinkRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}
