package application

import (
	"context"
	"fmt"
	"strings"

	"store-sync-engine/internal/domain"
)

func (o *SyncOrchestrator) pullProducts(ctx context.Context, rc *runContext) {
	for page, err := range rc.client.Products(ctx) {
		if err != nil {
			rc.stop(err)
			return
		}
		rc.pageFetched()
		forEach(ctx, rc, o.opts.RecordWorkers, page, func(ctx context.Context, rp domain.RemoteProduct) {
			if err := o.applyProduct(ctx, rc.store, rp); err != nil {
				rc.fail(rp.ExternalID, err)
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

// applyProduct maps one remote product, upserts it by SKU or barcode and links it to the store
func (o *SyncOrchestrator) applyProduct(ctx context.Context, store *domain.Store, rp domain.RemoteProduct) error {
	product, err := mapRemoteProduct(store, rp)
	if err != nil {
		return err
	}
	stored, created, err := o.repos.Products.UpsertByKey(ctx, product)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	remoteStock := rp.Stock
	link := &domain.ProductLink{
		StoreID:     store.ID,
		ProductID:   stored.ID,
		ExternalID:  rp.ExternalID,
		RemoteStock: &remoteStock,
		SyncedAt:    o.now(),
	}
	if err := o.repos.ProductLinks.Upsert(ctx, link); err != nil {
		return fmt.Errorf("failed to link product: %w", err)
	}

	o.logger.Debug().
		Str("storeId", store.ID).
		Str("externalId", rp.ExternalID).
		Str("productId", stored.ID).
		Bool("created", created).
		Msg("Product applied")
	return nil
}

// mapRemoteProduct builds the local product. Stock seeds new products only; the
// remote quantity of linked products is kept on the link.
func mapRemoteProduct(store *domain.Store, rp domain.RemoteProduct) (*domain.Product, error) {
	if rp.Problem != "" {
		return nil, domain.MappingError("map product", rp.Problem)
	}
	if rp.ExternalID == "" {
		return nil, domain.MappingError("map product", "product has no id")
	}
	sku := strings.TrimSpace(rp.SKU)
	barcode := strings.TrimSpace(rp.Barcode)
	if sku == "" && barcode == "" {
		return nil, domain.MappingError("map product", "product has no sku or barcode")
	}
	name := strings.TrimSpace(rp.Name)
	if name == "" {
		return nil, domain.MappingError("map product", "product has no name")
	}
	return &domain.Product{
		BranchID:    store.BranchID,
		SKU:         sku,
		Barcode:     barcode,
		Name:        name,
		Description: rp.Description,
		Price:       rp.Price,
		Stock:       rp.Stock,
	}, nil
}

func toRemoteProduct(p *domain.Product) domain.RemoteProduct {
	return domain.RemoteProduct{
		SKU:         p.SKU,
		Barcode:     p.Barcode,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

// eligibleProducts lists local products of the store's branch that pass its module
// and category filters
func (o *SyncOrchestrator) eligibleProducts(ctx context.Context, store *domain.Store) ([]*domain.Product, error) {
	products, err := o.repos.Products.ListByBranch(ctx, store.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list local products: %w", err)
	}
	eligible := products[:0]
	for _, p := range products {
		if store.SyncSettings.Exposes(p) {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

func (o *SyncOrchestrator) pushProducts(ctx context.Context, rc *runContext) {
	products, err := o.eligibleProducts(ctx, rc.store)
	if err != nil {
		rc.stop(err)
		return
	}

	forEach(ctx, rc, o.opts.RecordWorkers, products, func(ctx context.Context, p *domain.Product) {
		link, err := o.repos.ProductLinks.GetByProductID(ctx, rc.store.ID, p.ID)
		if err != nil {
			rc.fail(p.NaturalKey(), fmt.Errorf("failed to load product link: %w", err))
			return
		}

		if link != nil {
			if err := rc.client.UpdateProduct(ctx, link.ExternalID, toRemoteProduct(p)).Err("update product"); err != nil {
				rc.fail(link.ExternalID, err)
				return
			}
			link.SyncedAt = o.now()
		} else {
			created, out := rc.client.CreateProduct(ctx, toRemoteProduct(p))
			if err := out.Err("create product"); err != nil {
				rc.fail(p.NaturalKey(), err)
				return
			}
			if created == nil || created.ExternalID == "" {
				rc.fail(p.NaturalKey(), domain.MappingError("create product", "platform returned no product id"))
				return
			}
			link = &domain.ProductLink{StoreID: rc.store.ID, ProductID: p.ID, ExternalID: created.ExternalID, SyncedAt: o.now()}
		}

		if err := o.repos.ProductLinks.Upsert(ctx, link); err != nil {
			rc.fail(link.ExternalID, fmt.Errorf("failed to link product: %w", err))
			return
		}
		rc.succeed()
	})
}
