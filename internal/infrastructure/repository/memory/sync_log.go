package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"
)

var _ ports.SyncLogRepository = (*SyncLogRepository)(nil)

// SyncLogRepository keeps run logs keyed by id
type SyncLogRepository struct {
	mu   sync.RWMutex
	logs map[string]*domain.SyncLog
}

// NewSyncLogRepository creates a new in-memory sync log repository
func NewSyncLogRepository() *SyncLogRepository {
	return &SyncLogRepository{logs: make(map[string]*domain.SyncLog)}
}

// Create implements ports.SyncLogRepository
func (r *SyncLogRepository) Create(_ context.Context, log *domain.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.logs[log.ID]; ok {
		return fmt.Errorf("failed to create sync log: id %s already exists", log.ID)
	}
	r.logs[log.ID] = cloneLog(log)
	return nil
}

// Update implements ports.SyncLogRepository
func (r *SyncLogRepository) Update(_ context.Context, log *domain.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.logs[log.ID]
	if !ok {
		return domain.ErrSyncLogNotFound
	}
	if stored.IsFinalized() {
		return domain.ErrSyncLogFinalized
	}
	r.logs[log.ID] = cloneLog(log)
	return nil
}

// Get implements ports.SyncLogRepository
func (r *SyncLogRepository) Get(_ context.Context, id string) (*domain.SyncLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.logs[id]
	if !ok {
		return nil, domain.ErrSyncLogNotFound
	}
	return cloneLog(l), nil
}

// Latest implements ports.SyncLogRepository
func (r *SyncLogRepository) Latest(_ context.Context, storeID string, d domain.SyncDomain, dir domain.Direction) (*domain.SyncLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.SyncLog
	for _, l := range r.logs {
		if l.StoreID != storeID || l.Domain != d || l.Direction != dir {
			continue
		}
		if latest == nil || l.StartedAt.After(latest.StartedAt) {
			latest = l
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneLog(latest), nil
}

// All returns every log of a store, oldest first
func (r *SyncLogRepository) All(storeID string) []*domain.SyncLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.SyncLog
	for _, l := range r.logs {
		if l.StoreID == storeID {
			out = append(out, cloneLog(l))
		}
	}
	slices.SortFunc(out, func(a, b *domain.SyncLog) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

func cloneLog(l *domain.SyncLog) *domain.SyncLog {
	c := *l
	c.Errors = slices.Clone(l.Errors)
	if l.FinishedAt != nil {
		t := *l.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
