// Package application holds the sync use cases: orchestrated runs, single-record
// webhook application, scheduling and store administration.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"store-sync-engine/internal/config"
	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repositories groups the persistence collaborators of the orchestrator
type Repositories struct {
	Stores        ports.StoreRepository
	Integrations  ports.IntegrationRepository
	Logs          ports.SyncLogRepository
	Orders        ports.StoreOrderRepository
	Products      ports.ProductRepository
	ProductLinks  ports.ProductLinkRepository
	Customers     ports.CustomerRepository
	CustomerLinks ports.CustomerLinkRepository
}

// SyncOptions bounds the work of one run
type SyncOptions struct {
	RecordWorkers int
	MaxLogErrors  int
	LockTTL       time.Duration
}

// SyncOptionsFromConfig maps the sync configuration onto orchestrator options
func SyncOptionsFromConfig(cfg config.SyncConfig) SyncOptions {
	return SyncOptions{
		RecordWorkers: cfg.RecordWorkers,
		MaxLogErrors:  cfg.MaxLogErrors,
		LockTTL:       cfg.LockTTL,
	}
}

// RunRequest identifies one orchestrated run
type RunRequest struct {
	StoreID   string
	Domain    domain.SyncDomain
	Direction domain.Direction
	Trigger   domain.Trigger
}

type syncKey struct {
	domain    domain.SyncDomain
	direction domain.Direction
}

type syncFunc func(ctx context.Context, rc *runContext)

// SyncOrchestrator runs sync jobs between the local catalog and connected stores
type SyncOrchestrator struct {
	repos      Repositories
	factory    ports.PlatformFactory
	locker     ports.RunLocker
	notifier   ports.Notifier
	metrics    ports.SyncMetrics
	opts       SyncOptions
	logger     zerolog.Logger
	now        func() time.Time
	jobs       map[syncKey]syncFunc
	dispatcher *WebhookDispatcher
}

// NewSyncOrchestrator creates a new sync orchestrator. notifier and metrics are optional.
func NewSyncOrchestrator(
	repos Repositories,
	factory ports.PlatformFactory,
	locker ports.RunLocker,
	notifier ports.Notifier,
	metrics ports.SyncMetrics,
	opts SyncOptions,
	logger zerolog.Logger,
) *SyncOrchestrator {
	if opts.RecordWorkers < 1 {
		opts.RecordWorkers = 1
	}
	if opts.MaxLogErrors < 1 {
		opts.MaxLogErrors = 100
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Minute
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	o := &SyncOrchestrator{
		repos:    repos,
		factory:  factory,
		locker:   locker,
		notifier: notifier,
		metrics:  metrics,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	o.jobs = map[syncKey]syncFunc{
		{domain.DomainProducts, domain.DirectionPull}:  o.pullProducts,
		{domain.DomainProducts, domain.DirectionPush}:  o.pushProducts,
		{domain.DomainInventory, domain.DirectionPull}: o.pullInventory,
		{domain.DomainInventory, domain.DirectionPush}: o.pushStock,
		{domain.DomainOrders, domain.DirectionPull}:    o.pullOrders,
		{domain.DomainOrders, domain.DirectionPush}:    o.pushOrderStatuses,
		{domain.DomainCustomers, domain.DirectionPull}: o.pullCustomers,
		{domain.DomainCustomers, domain.DirectionPush}: o.pushCustomers,
	}

	o.dispatcher = NewWebhookDispatcher(logger)
	o.dispatcher.RegisterHandler(&productEventHandler{o: o})
	o.dispatcher.RegisterHandler(&inventoryEventHandler{o: o})
	o.dispatcher.RegisterHandler(&orderEventHandler{o: o})
	o.dispatcher.RegisterHandler(&customerEventHandler{o: o})
	return o
}

// Run executes one (domain, direction) sync for a store and returns its finalized log.
// Precondition failures return an error without writing a log.
func (o *SyncOrchestrator) Run(ctx context.Context, req RunRequest) (*domain.SyncLog, error) {
	job, ok := o.jobs[syncKey{req.Domain, req.Direction}]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSync, domain.SyncKey(req.Domain, req.Direction))
	}
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}

	store, err := o.repos.Stores.Get(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	if !store.IsActive {
		return nil, domain.ErrStoreInactive
	}
	if !store.SyncSettings.Enabled(req.Domain) {
		return nil, fmt.Errorf("%w: %s", domain.ErrDomainDisabled, req.Domain)
	}

	lease, err := o.locker.TryLock(ctx, lockKey(store.ID, req.Domain, req.Direction), o.opts.LockTTL)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	integration, err := o.repos.Integrations.GetByStoreID(ctx, store.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load store integration: %w", err)
	}
	client, err := o.factory.ForStore(store, integration)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve platform client: %w", err)
	}

	started := o.now()
	log := domain.NewSyncLog(uuid.New().String(), store.ID, req.Domain, req.Direction, req.Trigger, started)
	if err := o.repos.Logs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}

	rc := &runContext{
		store:     store,
		client:    client,
		log:       log,
		maxErrors: o.opts.MaxLogErrors,
		logger: o.logger.With().
			Str("runId", log.ID).
			Str("storeId", store.ID).
			Str("domain", string(req.Domain)).
			Str("direction", string(req.Direction)).
			Logger(),
	}
	rc.logger.Info().Str("trigger", string(req.Trigger)).Msg("Sync run started")

	keepCtx, stopKeep := context.WithCancel(ctx)
	go o.keepLease(keepCtx, rc, lease)
	job(ctx, rc)
	stopKeep()
	if ctx.Err() != nil {
		rc.stop(ctx.Err())
	}

	// The run's own context may be gone; the log must still be closed
	return o.finalize(context.WithoutCancel(ctx), rc, started)
}

func (o *SyncOrchestrator) finalize(ctx context.Context, rc *runContext, started time.Time) (*domain.SyncLog, error) {
	status, message := rc.result()
	finished := o.now()

	rc.mu.Lock()
	err := rc.log.Finalize(status, message, finished)
	log := *rc.log
	rc.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to finalize sync log: %w", err)
	}

	if err := o.repos.Logs.Update(ctx, &log); err != nil {
		rc.logger.Error().Err(err).Msg("Failed to persist finalized sync log")
		return &log, fmt.Errorf("failed to update sync log: %w", err)
	}
	if err := o.repos.Stores.MarkSynced(ctx, rc.store.ID, log.Domain, log.Direction, finished); err != nil {
		rc.logger.Error().Err(err).Msg("Failed to record last sync time")
	}

	o.notifier.RunFinished(ctx, rc.store, &log)
	o.metrics.RunFinished(rc.store.PlatformType.Wire(), &log, finished.Sub(started))

	event := rc.logger.Info()
	if log.Status != domain.SyncStatusCompleted {
		event = rc.logger.Warn()
	}
	event.
		Str("status", string(log.Status)).
		Int("recordsSuccess", log.RecordsSuccess).
		Int("recordsFailed", log.RecordsFailed).
		Int("pagesFetched", log.PagesFetched).
		Dur("elapsed", finished.Sub(started)).
		Msg("Sync run finished")
	return &log, nil
}

// keepLease extends the run lock every third of its ttl until ctx is done. Losing
// the lease halts the run so two holders never write the same pair.
func (o *SyncOrchestrator) keepLease(ctx context.Context, rc *runContext, lease ports.Lease) {
	interval := o.opts.LockTTL / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := lease.Extend(ctx)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLeaseLost):
				rc.stop(err)
				return
			case ctx.Err() == nil:
				rc.logger.Warn().Err(err).Msg("Failed to extend run lock")
			}
		}
	}
}

// saveProgress persists the running counters so the admin UI can follow a long run
func (o *SyncOrchestrator) saveProgress(ctx context.Context, rc *runContext) {
	rc.mu.Lock()
	snapshot := *rc.log
	snapshot.Errors = append([]domain.SyncError(nil), rc.log.Errors...)
	rc.mu.Unlock()

	if err := o.repos.Logs.Update(ctx, &snapshot); err != nil && !errors.Is(err, domain.ErrSyncLogFinalized) {
		rc.logger.Warn().Err(err).Msg("Failed to save sync progress")
	}
}

// PullProducts imports the store catalog into the local catalog
func (o *SyncOrchestrator) PullProducts(ctx context.Context, storeID string, trigger domain.Trigger) (*domain.SyncLog, error) {
	return o.Run(ctx, RunRequest{StoreID: storeID, Domain: domain.DomainProducts, Direction: domain.DirectionPull, Trigger: trigger})
}

// PushProducts exports eligible local products to the store
func (o *SyncOrchestrator) PushProducts(ctx context.Context, storeID string, trigger domain.Trigger) (*domain.SyncLog, error) {
	return o.Run(ctx, RunRequest{StoreID: storeID, Domain: domain.DomainProducts, Direction: domain.DirectionPush, Trigger: trigger})
}

// PullInventory records remote stock levels of linked products
func (o *SyncOrchestrator) PullInventory(ctx context.Context, storeID string, trigger domain.Trigger) (*domain.SyncLog, error) {
	return o.Run(ctx, RunRequest{StoreID: storeID, Domain: domain.DomainInventory, Direction: domain.DirectionPull, Trigger: trigger})
}

// PushStock sends local stock of linked products to the store
func (o *SyncOrchestrator) PushStock(ctx context.Context, storeID string, trigger domain.Trigger) (*domain.SyncLog, error) {
	return o.Run(ctx, RunRequest{StoreID: storeID, Domain: domain.DomainInventory, Direction: domain.DirectionPush, Trigger: trigger})
}

// PullOrders mirrors remote orders locally
func (o *SyncOrchestrator) PullOrders(ctx context.Context, storeID string, trigger domain.Trigger) (*domain.SyncLog, error) {
	return o.Run(ctx, RunRequest{StoreID: storeID, Domain: domain.DomainOrders, Direction: domain.DirectionPull, Trigger: trigger})
}

// PushOrderStatuses sends pending local status changes to the store
func (o *SyncOrchestrator) PushOrderStatuses(ctx context.Context, storeID string, trigger domain.Trigger) (*domain.SyncLog, error) {
	return o.Run(ctx, RunRequest{StoreID: storeID, Domain: domain.DomainOrders, Direction: domain.DirectionPush, Trigger: trigger})
}

// PullCustomers imports remote customers
func (o *SyncOrchestrator) PullCustomers(ctx context.Context, storeID string, trigger domain.Trigger) (*domain.SyncLog, error) {
	return o.Run(ctx, RunRequest{StoreID: storeID, Domain: domain.DomainCustomers, Direction: domain.DirectionPull, Trigger: trigger})
}

// PushCustomers exports local customers
func (o *SyncOrchestrator) PushCustomers(ctx context.Context, storeID string, trigger domain.Trigger) (*domain.SyncLog, error) {
	return o.Run(ctx, RunRequest{StoreID: storeID, Domain: domain.DomainCustomers, Direction: domain.DirectionPush, Trigger: trigger})
}

// ApplyOne applies a single verified webhook record through the same mapping and
// upsert path as a pull
func (o *SyncOrchestrator) ApplyOne(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error {
	return o.dispatcher.Dispatch(ctx, store, event)
}

func lockKey(storeID string, d domain.SyncDomain, dir domain.Direction) string {
	return storeID + ":" + domain.SyncKey(d, dir)
}

type nopNotifier struct{}

func (nopNotifier) RunFinished(context.Context, *domain.Store, *domain.SyncLog) {}

type nopMetrics struct{}

func (nopMetrics) RunFinished(domain.PlatformType, *domain.SyncLog, time.Duration) {}
func (nopMetrics) WebhookHandled(domain.PlatformType, string)                      {}
