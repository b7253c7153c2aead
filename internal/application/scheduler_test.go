package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/infrastructure/repository/memory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records requests and answers with a completed log
type fakeRunner struct {
	mu       sync.Mutex
	requests []RunRequest
	busy     map[string]bool // lock keys reported as held
}

func (r *fakeRunner) Run(_ context.Context, req RunRequest) (*domain.SyncLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.busy[lockKey(req.StoreID, req.Domain, req.Direction)] {
		return nil, domain.ErrRunInProgress
	}
	log := domain.NewSyncLog("log-"+req.StoreID, req.StoreID, req.Domain, req.Direction, req.Trigger, time.Now())
	_ = log.Finalize(domain.SyncStatusCompleted, "", time.Now())
	return log, nil
}

func TestScheduler_RunDue(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stores := memory.NewStoreRepository()

	due := testStore("a")
	due.SyncSettings.SyncCustomers = false
	require.NoError(t, stores.Save(ctx, due))

	recent := testStore("b")
	recent.LastSyncedAt = map[string]time.Time{
		domain.SyncKey(domain.DomainProducts, domain.DirectionPull):  now.Add(-10 * time.Minute),
		domain.SyncKey(domain.DomainInventory, domain.DirectionPush): now.Add(-2 * time.Hour),
		domain.SyncKey(domain.DomainOrders, domain.DirectionPull):    now.Add(-10 * time.Minute),
		domain.SyncKey(domain.DomainCustomers, domain.DirectionPull): now.Add(-10 * time.Minute),
	}
	require.NoError(t, stores.Save(ctx, recent))

	manual := testStore("c")
	manual.SyncSettings.AutoSync = false
	require.NoError(t, stores.Save(ctx, manual))

	runner := &fakeRunner{busy: map[string]bool{lockKey("a", domain.DomainOrders, domain.DirectionPull): true}}
	s := NewScheduler(stores, runner, memory.Settings{Interval: time.Hour}, 2, zerolog.Nop())

	summaries, err := s.RunDue(ctx, now)
	require.NoError(t, err)

	require.Len(t, summaries, 4)
	assert.Equal(t, RunSummary{StoreID: "a", Domain: domain.DomainProducts, Direction: domain.DirectionPull, LogID: "log-a", Status: domain.SyncStatusCompleted}, summaries[0])
	assert.Equal(t, domain.DomainInventory, summaries[1].Domain)
	assert.Equal(t, domain.DirectionPush, summaries[1].Direction)
	assert.Equal(t, RunSummary{StoreID: "a", Domain: domain.DomainOrders, Direction: domain.DirectionPull, Skipped: true}, summaries[2])
	assert.Equal(t, RunSummary{StoreID: "b", Domain: domain.DomainInventory, Direction: domain.DirectionPush, LogID: "log-b", Status: domain.SyncStatusCompleted}, summaries[3])

	for _, req := range runner.requests {
		assert.Equal(t, domain.TriggerScheduled, req.Trigger)
		assert.NotEqual(t, "c", req.StoreID)
	}
}

func TestScheduler_RunsThroughOrchestrator(t *testing.T) {
	f := newFixture(t)
	f.client.productPages = [][]domain.RemoteProduct{remoteProducts(1, 2)}
	s := NewScheduler(f.stores, f.orchestrator, memory.Settings{Interval: time.Hour}, 4, zerolog.Nop())
	now := fixtureEpoch

	summaries, err := s.RunDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, summaries, 4)
	for _, summary := range summaries {
		assert.Empty(t, summary.Error)
		assert.NotEmpty(t, summary.LogID)
	}
	assert.Equal(t, 2, f.products.Len())

	// Everything just ran, so nothing is due
	summaries, err = s.RunDue(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
