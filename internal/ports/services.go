package ports

import (
	"context"
	"time"

	"store-sync-engine/internal/domain"
)

// EncryptionService defines the interface for encryption operations
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// RunLocker guards a (store, domain, direction) tuple against concurrent runs
type RunLocker interface {
	// TryLock acquires the lock without waiting. Returns domain.ErrRunInProgress when held.
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Lease is a held run lock
type Lease interface {
	// Extend pushes the expiry one ttl past now. Returns domain.ErrLeaseLost once
	// the lock was released or taken over.
	Extend(ctx context.Context) error
	// Release frees the lock. Safe to call twice and after the caller's context is gone.
	Release()
}

// Deduper remembers webhook event ids per store
type Deduper interface {
	Seen(ctx context.Context, storeID, eventID string) (bool, error)
	Remember(ctx context.Context, storeID, eventID string, ttl time.Duration) error
}

// Notifier reports finalized runs to the admin surface
type Notifier interface {
	RunFinished(ctx context.Context, store *domain.Store, log *domain.SyncLog)
}

// SettingsProvider supplies application-wide sync defaults
type SettingsProvider interface {
	DefaultSyncInterval(ctx context.Context) time.Duration
}

// SyncMetrics records run and webhook outcomes
type SyncMetrics interface {
	RunFinished(platform domain.PlatformType, log *domain.SyncLog, elapsed time.Duration)
	WebhookHandled(platform domain.PlatformType, result string)
}
