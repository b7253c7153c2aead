// Package memory provides in-process repositories. They back the engine's unit tests
// and single-node development runs started without a database.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"
)

var (
	_ ports.StoreRepository       = (*StoreRepository)(nil)
	_ ports.IntegrationRepository = (*IntegrationRepository)(nil)
)

// StoreRepository keeps stores in a map keyed by id
type StoreRepository struct {
	mu     sync.RWMutex
	stores map[string]*domain.Store
}

// NewStoreRepository creates a new in-memory store repository
func NewStoreRepository() *StoreRepository {
	return &StoreRepository{stores: make(map[string]*domain.Store)}
}

// Get implements ports.StoreRepository
func (r *StoreRepository) Get(_ context.Context, storeID string) (*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stores[storeID]
	if !ok {
		return nil, domain.ErrStoreNotFound
	}
	return cloneStore(s), nil
}

// Save implements ports.StoreRepository
func (r *StoreRepository) Save(_ context.Context, store *domain.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.stores[store.ID]; ok {
		store.CreatedAt = existing.CreatedAt
		if store.LastSyncedAt == nil {
			store.LastSyncedAt = existing.LastSyncedAt
		}
	} else if store.CreatedAt.IsZero() {
		store.CreatedAt = now
	}
	store.UpdatedAt = now
	r.stores[store.ID] = cloneStore(store)
	return nil
}

// ListAutoSync implements ports.StoreRepository
func (r *StoreRepository) ListAutoSync(_ context.Context) ([]*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Store
	for _, s := range r.stores {
		if s.IsActive && s.SyncSettings.AutoSync {
			out = append(out, cloneStore(s))
		}
	}
	slices.SortFunc(out, func(a, b *domain.Store) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// MarkSynced implements ports.StoreRepository
func (r *StoreRepository) MarkSynced(_ context.Context, storeID string, d domain.SyncDomain, dir domain.Direction, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stores[storeID]
	if !ok {
		return domain.ErrStoreNotFound
	}
	if s.LastSyncedAt == nil {
		s.LastSyncedAt = make(map[string]time.Time)
	}
	s.LastSyncedAt[domain.SyncKey(d, dir)] = at
	return nil
}

func cloneStore(s *domain.Store) *domain.Store {
	c := *s
	c.SyncSettings.SyncModules = slices.Clone(s.SyncSettings.SyncModules)
	c.SyncSettings.SyncCategories = slices.Clone(s.SyncSettings.SyncCategories)
	c.LastSyncedAt = maps.Clone(s.LastSyncedAt)
	return &c
}

// IntegrationRepository keeps credentials keyed by store id
type IntegrationRepository struct {
	mu           sync.RWMutex
	integrations map[string]domain.StoreIntegration
}

// NewIntegrationRepository creates a new in-memory integration repository
func NewIntegrationRepository() *IntegrationRepository {
	return &IntegrationRepository{integrations: make(map[string]domain.StoreIntegration)}
}

// GetByStoreID implements ports.IntegrationRepository
func (r *IntegrationRepository) GetByStoreID(_ context.Context, storeID string) (*domain.StoreIntegration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.integrations[storeID]
	if !ok {
		return nil, domain.ErrIntegrationNotFound
	}
	return &i, nil
}

// Save implements ports.IntegrationRepository
func (r *IntegrationRepository) Save(_ context.Context, integration *domain.StoreIntegration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.integrations[integration.StoreID]; ok {
		integration.CreatedAt = existing.CreatedAt
	} else if integration.CreatedAt.IsZero() {
		integration.CreatedAt = now
	}
	integration.UpdatedAt = now
	r.integrations[integration.StoreID] = *integration
	return nil
}
