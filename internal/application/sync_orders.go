package application

import (
	"context"
	"encoding/json"
	"fmt"

	"store-sync-engine/internal/domain"
)

// orderStatusFilter asks every platform for orders in any status
const orderStatusFilter = "any"

func (o *SyncOrchestrator) pullOrders(ctx context.Context, rc *runContext) {
	for page, err := range rc.client.Orders(ctx, orderStatusFilter) {
		if err != nil {
			rc.stop(err)
			return
		}
		rc.pageFetched()
		forEach(ctx, rc, o.opts.RecordWorkers, page, func(ctx context.Context, ro domain.RemoteOrder) {
			if err := o.applyOrder(ctx, rc.store, ro); err != nil {
				rc.fail(ro.ExternalID, err)
				return
			}
			rc.succeed()
		})
		o.saveProgress(ctx, rc)
		if rc.halted() {
			return
		}
	}
}

// applyOrder upserts the local mirror of one remote order. The linked sale of an
// existing row is kept.
func (o *SyncOrchestrator) applyOrder(ctx context.Context, store *domain.Store, ro domain.RemoteOrder) error {
	order, err := mapRemoteOrder(store, ro)
	if err != nil {
		return err
	}
	created, err := o.repos.Orders.Upsert(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to upsert store order: %w", err)
	}
	o.logger.Debug().
		Str("storeId", store.ID).
		Str("externalId", ro.ExternalID).
		Bool("created", created).
		Msg("Order applied")
	return nil
}

func mapRemoteOrder(store *domain.Store, ro domain.RemoteOrder) (*domain.StoreOrder, error) {
	if ro.Problem != "" {
		return nil, domain.MappingError("map order", ro.Problem)
	}
	if ro.ExternalID == "" {
		return nil, domain.MappingError("map order", "order has no id")
	}
	payload := ro.Raw
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return &domain.StoreOrder{
		StoreID:         store.ID,
		ExternalOrderID: ro.ExternalID,
		Number:          ro.Number,
		Payload:         payload,
		Status:          ro.Status,
		Currency:        ro.Currency,
		Subtotal:        ro.Subtotal,
		Tax:             ro.Tax,
		Total:           ro.Total,
		CustomerEmail:   ro.CustomerEmail,
		BranchID:        store.BranchID,
	}, nil
}

// cancelOrder marks the local mirror of a deleted or cancelled remote order
func (o *SyncOrchestrator) cancelOrder(ctx context.Context, store *domain.Store, externalID string) error {
	order, err := o.repos.Orders.Get(ctx, store.ID, externalID)
	if err != nil {
		return fmt.Errorf("failed to load store order: %w", err)
	}
	if order == nil {
		o.logger.Debug().Str("storeId", store.ID).Str("externalId", externalID).Msg("Cancel for unknown order ignored")
		return nil
	}
	order.Status = domain.OrderStatusCancelled
	if _, err := o.repos.Orders.Upsert(ctx, order); err != nil {
		return fmt.Errorf("failed to cancel store order: %w", err)
	}
	return nil
}

func (o *SyncOrchestrator) pushOrderStatuses(ctx context.Context, rc *runContext) {
	pending, err := o.repos.Orders.ListPendingStatus(ctx, rc.store.ID)
	if err != nil {
		rc.stop(fmt.Errorf("failed to list pending order statuses: %w", err))
		return
	}

	forEach(ctx, rc, o.opts.RecordWorkers, pending, func(ctx context.Context, order *domain.StoreOrder) {
		status := order.PendingStatus
		if err := rc.client.UpdateOrderStatus(ctx, order.ExternalOrderID, status).Err("update order status"); err != nil {
			rc.fail(order.ExternalOrderID, err)
			return
		}
		if err := o.repos.Orders.ClearPendingStatus(ctx, rc.store.ID, order.ExternalOrderID, status); err != nil {
			rc.fail(order.ExternalOrderID, fmt.Errorf("failed to clear pending status: %w", err))
			return
		}
		rc.succeed()
	})
}
