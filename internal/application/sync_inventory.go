package application

import (
	"context"
	"fmt"

	"store-sync-engine/internal/domain"
)

type stockPush struct {
	link *domain.ProductLink
	item domain.StockItem
}

// linkedStock pairs each eligible linked product with a set-mode stock item
func (o *SyncOrchestrator) linkedStock(ctx context.Context, store *domain.Store) ([]stockPush, error) {
	products, err := o.eligibleProducts(ctx, store)
	if err != nil {
		return nil, err
	}
	var pushes []stockPush
	for _, p := range products {
		link, err := o.repos.ProductLinks.GetByProductID(ctx, store.ID, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load product link: %w", err)
		}
		if link == nil {
			continue
		}
		pushes = append(pushes, stockPush{
			link: link,
			item: domain.StockItem{ExternalID: link.ExternalID, SKU: p.SKU, Quantity: p.Stock, Mode: domain.StockSet},
		})
	}
	return pushes, nil
}

func (o *SyncOrchestrator) pushStock(ctx context.Context, rc *runContext) {
	pushes, err := o.linkedStock(ctx, rc.store)
	if err != nil {
		rc.stop(err)
		return
	}
	if len(pushes) == 0 {
		return
	}

	items := make([]domain.StockItem, len(pushes))
	for i, p := range pushes {
		items[i] = p.item
	}

	results, out := rc.client.BulkUpdateStock(ctx, items)
	if out.Kind == domain.KindUnsupported {
		rc.logger.Debug().Msg("Bulk stock update unsupported, updating per item")
		o.pushStockPerItem(ctx, rc, pushes)
		return
	}

	byID := make(map[string]domain.Outcome, len(results))
	for _, r := range results {
		byID[r.ExternalID] = r.Outcome
	}
	callErr := out.Err("bulk update stock")
	for _, p := range pushes {
		result, ok := byID[p.item.ExternalID]
		switch {
		case ok && result.OK:
			o.recordRemoteStock(ctx, rc, p)
		case ok:
			rc.fail(p.item.ExternalID, result.Err("update stock"))
		case callErr != nil:
			// A failed call fails every item it carried with the same message
			rc.fail(p.item.ExternalID, callErr)
		default:
			rc.fail(p.item.ExternalID, domain.NewPlatformError(domain.KindRemote, "bulk update stock", 0, "no result for item"))
		}
	}
}

func (o *SyncOrchestrator) pushStockPerItem(ctx context.Context, rc *runContext, pushes []stockPush) {
	forEach(ctx, rc, o.opts.RecordWorkers, pushes, func(ctx context.Context, p stockPush) {
		out := rc.client.UpdateStock(ctx, p.item.ExternalID, p.item.Quantity, p.item.Mode)
		if err := out.Err("update stock"); err != nil {
			rc.fail(p.item.ExternalID, err)
			return
		}
		o.recordRemoteStock(ctx, rc, p)
	})
}

func (o *SyncOrchestrator) recordRemoteStock(ctx context.Context, rc *runContext, p stockPush) {
	link := *p.link
	quantity := p.item.Quantity
	link.RemoteStock = &quantity
	link.SyncedAt = o.now()
	if err := o.repos.ProductLinks.Upsert(ctx, &link); err != nil {
		rc.fail(p.item.ExternalID, fmt.Errorf("failed to record remote stock: %w", err))
		return
	}
	rc.succeed()
}

func (o *SyncOrchestrator) pullInventory(ctx context.Context, rc *runContext) {
	links, err := o.repos.ProductLinks.ListByStore(ctx, rc.store.ID)
	if err != nil {
		rc.stop(fmt.Errorf("failed to list product links: %w", err))
		return
	}
	if len(links) == 0 {
		return
	}

	byExternalID := make(map[string]*domain.ProductLink, len(links))
	ids := make([]string, 0, len(links))
	for _, l := range links {
		byExternalID[l.ExternalID] = l
		ids = append(ids, l.ExternalID)
	}

	levels, out := rc.client.GetInventory(ctx, domain.InventoryFilter{ExternalIDs: ids})
	if err := out.Err("get inventory"); err != nil {
		rc.stop(err)
		return
	}
	rc.pageFetched()

	forEach(ctx, rc, o.opts.RecordWorkers, levels, func(ctx context.Context, level domain.StockItem) {
		link, ok := byExternalID[level.ExternalID]
		if !ok {
			rc.fail(level.ExternalID, domain.MappingError("map stock", "stock level for unlinked product"))
			return
		}
		o.recordRemoteStock(ctx, rc, stockPush{link: link, item: level})
	})
}

// applyStock records a single remote stock change on the product link
func (o *SyncOrchestrator) applyStock(ctx context.Context, store *domain.Store, item domain.StockItem) error {
	link, err := o.repos.ProductLinks.GetByExternalID(ctx, store.ID, item.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to load product link: %w", err)
	}
	if link == nil {
		o.logger.Debug().Str("storeId", store.ID).Str("externalId", item.ExternalID).Msg("Stock change for unlinked product ignored")
		return nil
	}

	current := 0
	if link.RemoteStock != nil {
		current = *link.RemoteStock
	}
	quantity := item.Mode.Apply(current, item.Quantity)
	link.RemoteStock = &quantity
	link.SyncedAt = o.now()
	if err := o.repos.ProductLinks.Upsert(ctx, link); err != nil {
		return fmt.Errorf("failed to record remote stock: %w", err)
	}
	return nil
}
