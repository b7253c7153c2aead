package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Runner starts orchestrated runs
type Runner interface {
	Run(ctx context.Context, req RunRequest) (*domain.SyncLog, error)
}

// schedule lists the pairs run automatically, in run order within a store
var schedule = []syncKey{
	{domain.DomainProducts, domain.DirectionPull},
	{domain.DomainInventory, domain.DirectionPush},
	{domain.DomainOrders, domain.DirectionPull},
	{domain.DomainCustomers, domain.DirectionPull},
}

// RunSummary reports what a scheduler tick did for one (store, domain, direction)
type RunSummary struct {
	StoreID   string            `json:"store_id"`
	Domain    domain.SyncDomain `json:"domain"`
	Direction domain.Direction  `json:"direction"`
	LogID     string            `json:"log_id,omitempty"`
	Status    domain.SyncStatus `json:"status,omitempty"`
	Skipped   bool              `json:"skipped,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Scheduler starts the runs that are due across all auto-sync stores
type Scheduler struct {
	stores   ports.StoreRepository
	runner   Runner
	settings ports.SettingsProvider
	workers  int
	logger   zerolog.Logger
}

// NewScheduler creates a new scheduler running at most workers stores at once
func NewScheduler(
	stores ports.StoreRepository,
	runner Runner,
	settings ports.SettingsProvider,
	workers int,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		stores:   stores,
		runner:   runner,
		settings: settings,
		workers:  max(1, workers),
		logger:   logger,
	}
}

// RunDue runs every due pair of every auto-sync store. Pairs of one store run one after
// another; stores run in parallel. Summaries are ordered by store.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) ([]RunSummary, error) {
	stores, err := s.stores.ListAutoSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-sync stores: %w", err)
	}
	def := s.settings.DefaultSyncInterval(ctx)

	var (
		mu        sync.Mutex
		summaries []RunSummary
	)
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, store := range stores {
		g.Go(func() error {
			results := s.runStore(ctx, store, now, def)
			mu.Lock()
			summaries = append(summaries, results...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(summaries, func(a, b RunSummary) int {
		return cmp.Compare(a.StoreID, b.StoreID)
	})
	s.logger.Info().Int("stores", len(stores)).Int("runs", len(summaries)).Msg("Scheduler tick finished")
	return summaries, nil
}

func (s *Scheduler) runStore(ctx context.Context, store *domain.Store, now time.Time, def time.Duration) []RunSummary {
	var results []RunSummary
	for _, key := range schedule {
		if ctx.Err() != nil {
			break
		}
		if !store.Due(key.domain, key.direction, now, def) {
			continue
		}

		summary := RunSummary{StoreID: store.ID, Domain: key.domain, Direction: key.direction}
		log, err := s.runner.Run(ctx, RunRequest{
			StoreID:   store.ID,
			Domain:    key.domain,
			Direction: key.direction,
			Trigger:   domain.TriggerScheduled,
		})
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			summary.Skipped = true
		case err != nil:
			summary.Error = err.Error()
			s.logger.Error().Err(err).
				Str("storeId", store.ID).
				Str("domain", string(key.domain)).
				Str("direction", string(key.direction)).
				Msg("Scheduled sync failed to start")
		}
		if log != nil {
			summary.LogID = log.ID
			summary.Status = log.Status
		}
		results = append(results, summary)
	}
	return results
}
