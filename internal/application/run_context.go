package application

import (
	"context"
	"errors"
	"sync"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// runContext carries the state of one run. Counters and the error list are only
// touched under mu since records of a page are processed concurrently.
type runContext struct {
	store     *domain.Store
	client    ports.PlatformClient
	log       *domain.SyncLog
	logger    zerolog.Logger
	maxErrors int

	mu   sync.Mutex
	halt error // first error that stopped the run
}

func (rc *runContext) succeed() {
	rc.mu.Lock()
	rc.log.RecordsSuccess++
	rc.mu.Unlock()
}

// fail counts one failed record. A failure of a halting kind also stops the run.
func (rc *runContext) fail(externalID string, err error) {
	msg := failureMessage(err)

	rc.mu.Lock()
	rc.log.RecordsFailed++
	if len(rc.log.Errors) < rc.maxErrors {
		rc.log.Errors = append(rc.log.Errors, domain.SyncError{ExternalID: externalID, Message: msg})
	} else {
		rc.log.ErrorsTruncated = true
	}
	rc.mu.Unlock()

	rc.logger.Debug().Err(err).Str("externalId", externalID).Msg("Record failed")
	if domain.KindOf(err).Halts() {
		rc.stop(err)
	}
}

func (rc *runContext) pageFetched() {
	rc.mu.Lock()
	rc.log.PagesFetched++
	rc.mu.Unlock()
}

// stop halts the run. Only the first reason is kept.
func (rc *runContext) stop(err error) {
	rc.mu.Lock()
	first := rc.halt == nil
	if first {
		rc.halt = err
	}
	rc.mu.Unlock()

	if first {
		rc.logger.Warn().Err(err).Msg("Sync run halted")
	}
}

func (rc *runContext) halted() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.halt != nil
}

// result returns the final status and message of the run
func (rc *runContext) result() (domain.SyncStatus, string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.halt == nil {
		return domain.SyncStatusCompleted, ""
	}
	return domain.StatusForHalt(domain.KindOf(rc.halt)), "Sync failed: " + failureMessage(rc.halt)
}

// localFailure is what a SyncLog shows for repository errors. The driver error
// itself only goes to the process log.
const localFailure = "local storage failed"

// failureMessage renders err without anything but the sanitized platform message
func failureMessage(err error) string {
	var pe *domain.PlatformError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	if errors.Is(err, domain.ErrLeaseLost) {
		return domain.ErrLeaseLost.Error()
	}
	switch domain.KindOf(err) {
	case domain.KindCancelled:
		return "cancelled"
	case domain.KindNetwork:
		return "request timed out"
	}
	return localFailure
}

// forEach processes items with at most workers concurrent calls. It stops
// scheduling new items once the run is halted or ctx is done.
func forEach[T any](ctx context.Context, rc *runContext, workers int, items []T, fn func(ctx context.Context, item T)) {
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for _, item := range items {
		if ctx.Err() != nil || rc.halted() {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil || rc.halted() {
				return nil
			}
			fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
}
