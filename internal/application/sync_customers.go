package application

import (
	"context"
	"fmt"
	"strings"

	"store-sync-engine/internal/domain"
)

func (o *SyncOrchestrator) pullCustomers(ctx context.Context, rc *runContext) {
	for page, err := range rc.client.Customers(ctx) {
		if err != nil {
			rc.stop(err)
			return
		}
		rc.pageFetched()
		forEach(ctx, rc, o.opts.RecordWorkers, page, func(ctx context.Context, rcu domain.RemoteCustomer) {
			if err := o.applyCustomer(ctx, rc.store, rcu); err != nil {
				rc.fail(rcu.ExternalID, err)
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

// applyCustomer upserts one remote customer by email and links it to the store
func (o *SyncOrchestrator) applyCustomer(ctx context.Context, store *domain.Store, remote domain.RemoteCustomer) error {
	customer, err := mapRemoteCustomer(store, remote)
	if err != nil {
		return err
	}
	stored, _, err := o.repos.Customers.UpsertByEmail(ctx, customer)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", err)
	}
	link := &domain.CustomerLink{
		StoreID:    store.ID,
		CustomerID: stored.ID,
		ExternalID: remote.ExternalID,
		SyncedAt:   o.now(),
	}
	if err := o.repos.CustomerLinks.Upsert(ctx, link); err != nil {
		return fmt.Errorf("failed to link customer: %w", err)
	}
	return nil
}

func mapRemoteCustomer(store *domain.Store, remote domain.RemoteCustomer) (*domain.Customer, error) {
	if remote.Problem != "" {
		return nil, domain.MappingError("map customer", remote.Problem)
	}
	email := strings.ToLower(strings.TrimSpace(remote.Email))
	if email == "" {
		return nil, domain.MappingError("map customer", "customer has no email")
	}
	return &domain.Customer{
		BranchID:  store.BranchID,
		Email:     email,
		FirstName: remote.FirstName,
		LastName:  remote.LastName,
		Phone:     remote.Phone,
	}, nil
}

func toRemoteCustomer(c *domain.Customer) domain.RemoteCustomer {
	return domain.RemoteCustomer{
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Phone:     c.Phone,
	}
}

func (o *SyncOrchestrator) pushCustomers(ctx context.Context, rc *runContext) {
	customers, err := o.repos.Customers.ListByBranch(ctx, rc.store.BranchID)
	if err != nil {
		rc.stop(fmt.Errorf("failed to list local customers: %w", err))
		return
	}

	forEach(ctx, rc, o.opts.RecordWorkers, customers, func(ctx context.Context, c *domain.Customer) {
		link, err := o.repos.CustomerLinks.GetByCustomerID(ctx, rc.store.ID, c.ID)
		if err != nil {
			rc.fail(c.Email, fmt.Errorf("failed to load customer link: %w", err))
			return
		}

		if link != nil {
			if err := rc.client.UpdateCustomer(ctx, link.ExternalID, toRemoteCustomer(c)).Err("update customer"); err != nil {
				rc.fail(link.ExternalID, err)
				return
			}
			link.SyncedAt = o.now()
		} else {
			if c.Email == "" {
				rc.fail(c.ID, domain.MappingError("create customer", "customer has no email"))
				return
			}
			created, out := rc.client.CreateCustomer(ctx, toRemoteCustomer(c))
			if err := out.Err("create customer"); err != nil {
				rc.fail(c.Email, err)
				return
			}
			if created == nil || created.ExternalID == "" {
				rc.fail(c.Email, domain.MappingError("create customer", "platform returned no customer id"))
				return
			}
			link = &domain.CustomerLink{StoreID: rc.store.ID, CustomerID: c.ID, ExternalID: created.ExternalID, SyncedAt: o.now()}
		}

		if err := o.repos.CustomerLinks.Upsert(ctx, link); err != nil {
			rc.fail(link.ExternalID, fmt.Errorf("failed to link customer: %w", err))
			return
		}
		rc.succeed()
	})
}
