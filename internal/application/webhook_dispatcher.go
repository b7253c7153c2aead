package application

import (
	"context"
	"fmt"

	"store-sync-engine/internal/domain"

	"github.com/rs/zerolog"
)

// WebhookHandler applies one kind of decoded webhook event
type WebhookHandler interface {
	CanHandle(event *domain.WebhookEvent) bool
	Handle(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error
}

// WebhookDispatcher routes events to the first handler that accepts them
type WebhookDispatcher struct {
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a new webhook dispatcher
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{logger: logger}
}

// RegisterHandler adds a handler. Handlers are tried in registration order.
func (d *WebhookDispatcher) RegisterHandler(h WebhookHandler) {
	d.handlers = append(d.handlers, h)
}

// Dispatch applies the event with the matching handler
func (d *WebhookDispatcher) Dispatch(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error {
	for _, h := range d.handlers {
		if h.CanHandle(event) {
			return h.Handle(ctx, store, event)
		}
	}
	d.logger.Warn().
		Str("storeId", store.ID).
		Str("topic", event.Topic).
		Str("domain", string(event.Domain)).
		Msg("No handler for webhook event")
	return fmt.Errorf("%w: webhook for %s", domain.ErrUnsupportedSync, event.Domain)
}

type productEventHandler struct {
	o *SyncOrchestrator
}

func (h *productEventHandler) CanHandle(event *domain.WebhookEvent) bool {
	return event.Domain == domain.DomainProducts
}

// Handle upserts the product, or removes only its link on delete
func (h *productEventHandler) Handle(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error {
	if event.Action == domain.ActionDelete {
		if err := h.o.repos.ProductLinks.Delete(ctx, store.ID, event.ExternalID); err != nil {
			return fmt.Errorf("failed to unlink product: %w", err)
		}
		h.o.logger.Info().Str("storeId", store.ID).Str("externalId", event.ExternalID).Msg("Product unlinked")
		return nil
	}
	if event.Product == nil {
		return domain.MappingError("apply product", "webhook carries no product")
	}
	return h.o.applyProduct(ctx, store, *event.Product)
}

type inventoryEventHandler struct {
	o *SyncOrchestrator
}

func (h *inventoryEventHandler) CanHandle(event *domain.WebhookEvent) bool {
	return event.Domain == domain.DomainInventory
}

func (h *inventoryEventHandler) Handle(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error {
	if event.Action == domain.ActionDelete {
		return nil
	}
	if event.Stock == nil {
		return domain.MappingError("apply stock", "webhook carries no stock level")
	}
	return h.o.applyStock(ctx, store, *event.Stock)
}

type orderEventHandler struct {
	o *SyncOrchestrator
}

func (h *orderEventHandler) CanHandle(event *domain.WebhookEvent) bool {
	return event.Domain == domain.DomainOrders
}

// Handle upserts the order mirror. Deleted and cancelled orders end up with status cancelled.
func (h *orderEventHandler) Handle(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error {
	if event.Action == domain.ActionDelete {
		return h.o.cancelOrder(ctx, store, event.ExternalID)
	}
	if event.Order == nil {
		return domain.MappingError("apply order", "webhook carries no order")
	}
	return h.o.applyOrder(ctx, store, *event.Order)
}

type customerEventHandler struct {
	o *SyncOrchestrator
}

func (h *customerEventHandler) CanHandle(event *domain.WebhookEvent) bool {
	return event.Domain == domain.DomainCustomers
}

// Handle upserts the customer. Remote deletes leave the local customer in place.
func (h *customerEventHandler) Handle(ctx context.Context, store *domain.Store, event *domain.WebhookEvent) error {
	if event.Action == domain.ActionDelete {
		h.o.logger.Info().Str("storeId", store.ID).Str("externalId", event.ExternalID).Msg("Remote customer deleted, local record kept")
		return nil
	}
	if event.Customer == nil {
		return domain.MappingError("apply customer", "webhook carries no customer")
	}
	return h.o.applyCustomer(ctx, store, *event.Customer)
}
