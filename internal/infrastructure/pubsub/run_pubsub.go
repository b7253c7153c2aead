// Package pubsub fans finalized sync runs out to admin UI subscribers
package pubsub

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/rs/zerolog"
)

// RunEvent is one finalized run as shown to the admin UI
type RunEvent struct {
	StoreID   string            `json:"store_id"`
	StoreName string            `json:"store_name,omitempty"`
	Platform  string            `json:"platform"`
	Log       *domain.SyncLog   `json:"log"`
	Status    domain.SyncStatus `json:"status"`
}

// RunEventChannel represents a subscription channel
type RunEventChannel struct {
	ID     string
	Filter *RunEventFilter
	Events chan *RunEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// RunEventFilter filters run events
type RunEventFilter struct {
	StoreID  string              // Filter by store
	Statuses []domain.SyncStatus // Filter by final status
}

// RunPubSub manages run event subscriptions
type RunPubSub struct {
	mu       sync.RWMutex
	channels map[string]*RunEventChannel
	logger   zerolog.Logger
	nextID   int64
	idMu     sync.Mutex
}

var _ ports.Notifier = (*RunPubSub)(nil)

// NewRunPubSub creates a new run pub/sub system
func NewRunPubSub(logger zerolog.Logger) *RunPubSub {
	return &RunPubSub{
		channels: make(map[string]*RunEventChannel),
		logger:   logger,
	}
}

// Subscribe creates a new subscription channel, removed when ctx is done
func (ps *RunPubSub) Subscribe(ctx context.Context, filter *RunEventFilter) *RunEventChannel {
	ps.idMu.Lock()
	ps.nextID++
	id := fmt.Sprintf("channel-%d", ps.nextID)
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	channel := &RunEventChannel{
		ID:     id,
		Filter: filter,
		Events: make(chan *RunEvent, 16),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.channels[id] = channel
	ps.mu.Unlock()

	ps.logger.Debug().Str("channelId", id).Msg("Run subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return channel
}

// Unsubscribe removes a subscription channel
func (ps *RunPubSub) Unsubscribe(channelID string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	channel, exists := ps.channels[channelID]
	if !exists {
		return
	}

	close(channel.Events)
	close(channel.Done)
	channel.cancel()
	delete(ps.channels, channelID)

	ps.logger.Debug().Str("channelId", channelID).Msg("Run subscription removed")
}

// RunFinished implements ports.Notifier
func (ps *RunPubSub) RunFinished(_ context.Context, store *domain.Store, log *domain.SyncLog) {
	ps.Publish(&RunEvent{
		StoreID:   store.ID,
		StoreName: store.Name,
		Platform:  string(store.PlatformType),
		Log:       log,
		Status:    log.Status,
	})
}

// Publish broadcasts a run event to all matching subscribers without blocking
func (ps *RunPubSub) Publish(event *RunEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	published := 0
	for _, channel := range ps.channels {
		if !matchesFilter(event, channel.Filter) {
			continue
		}
		select {
		case channel.Events <- event:
			published++
		case <-channel.ctx.Done():
		default:
			ps.logger.Warn().Str("channelId", channel.ID).Msg("Channel buffer full, dropping run event")
		}
	}

	if published > 0 {
		ps.logger.Debug().
			Str("storeId", event.StoreID).
			Str("status", string(event.Status)).
			Int("subscribers", published).
			Msg("Published run event to subscribers")
	}
}

func matchesFilter(event *RunEvent, filter *RunEventFilter) bool {
	if filter == nil {
		return true
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, event.Status) {
		return false
	}
	if filter.StoreID != "" && event.StoreID != filter.StoreID {
		return false
	}
	return true
}

// Subscribers returns the number of active subscriptions
func (ps *RunPubSub) Subscribers() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.channels)
}
