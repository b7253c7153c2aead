package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/google/uuid"
)

var _ ports.StoreOrderRepository = (*StoreOrderRepository)(nil)

type orderKey struct {
	storeID    string
	externalID string
}

// StoreOrderRepository keeps the order mirror keyed by (store, external id)
type StoreOrderRepository struct {
	mu     sync.RWMutex
	orders map[orderKey]*domain.StoreOrder
}

// NewStoreOrderRepository creates a new in-memory store order repository
func NewStoreOrderRepository() *StoreOrderRepository {
	return &StoreOrderRepository{orders: make(map[orderKey]*domain.StoreOrder)}
}

// Upsert implements ports.StoreOrderRepository
func (r *StoreOrderRepository) Upsert(_ context.Context, order *domain.StoreOrder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := orderKey{order.StoreID, order.ExternalOrderID}
	now := time.Now().UTC()
	existing, ok := r.orders[key]
	if !ok {
		row := cloneOrder(order)
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		row.UpdatedAt = now
		r.orders[key] = row
		*order = *cloneOrder(row)
		return true, nil
	}

	row := cloneOrder(order)
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	row.LinkedSaleID = existing.LinkedSaleID
	row.PendingStatus = existing.PendingStatus
	row.UpdatedAt = now
	r.orders[key] = row
	*order = *cloneOrder(row)
	return false, nil
}

// Get implements ports.StoreOrderRepository
func (r *StoreOrderRepository) Get(_ context.Context, storeID, externalOrderID string) (*domain.StoreOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[orderKey{storeID, externalOrderID}]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

// ListPendingStatus implements ports.StoreOrderRepository
func (r *StoreOrderRepository) ListPendingStatus(_ context.Context, storeID string) ([]*domain.StoreOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.StoreOrder
	for k, o := range r.orders {
		if k.storeID == storeID && o.PendingStatus != "" {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b *domain.StoreOrder) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// ClearPendingStatus implements ports.StoreOrderRepository. The pending flag is kept
// when it was changed to another status in the meantime.
func (r *StoreOrderRepository) ClearPendingStatus(_ context.Context, storeID, externalOrderID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderKey{storeID, externalOrderID}]
	if !ok || o.PendingStatus != status {
		return nil
	}
	o.Status = status
	o.PendingStatus = ""
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Count implements ports.StoreOrderRepository
func (r *StoreOrderRepository) Count(_ context.Context, storeID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for k := range r.orders {
		if k.storeID == storeID {
			n++
		}
	}
	return n, nil
}

// SetPendingStatus marks a local status change waiting to be pushed
func (r *StoreOrderRepository) SetPendingStatus(storeID, externalOrderID, status string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderKey{storeID, externalOrderID}]
	if !ok {
		return false
	}
	o.PendingStatus = status
	return true
}

// LinkSale attaches a local sale to a mirrored order
func (r *StoreOrderRepository) LinkSale(storeID, externalOrderID, saleID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderKey{storeID, externalOrderID}]
	if !ok {
		return false
	}
	o.LinkedSaleID = &saleID
	return true
}

func cloneOrder(o *domain.StoreOrder) *domain.StoreOrder {
	c := *o
	c.Payload = slices.Clone(o.Payload)
	if o.LinkedSaleID != nil {
		id := *o.LinkedSaleID
		c.LinkedSaleID = &id
	}
	return &c
}
