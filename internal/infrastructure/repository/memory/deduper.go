package memory

import (
	"context"
	"sync"
	"time"

	"store-sync-engine/internal/ports"
)

var _ ports.Deduper = (*Deduper)(nil)

// Deduper remembers webhook event ids until their ttl passes
type Deduper struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewDeduper creates a new in-memory deduper
func NewDeduper() *Deduper {
	return &Deduper{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seen implements ports.Deduper
func (d *Deduper) Seen(_ context.Context, storeID, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := storeID + "\x00" + eventID
	exp, ok := d.expires[key]
	if !ok {
		return false, nil
	}
	if !d.now().Before(exp) {
		delete(d.expires, key)
		return false, nil
	}
	return true, nil
}

// Remember implements ports.Deduper
func (d *Deduper) Remember(_ context.Context, storeID, eventID string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, exp := range d.expires {
		if !now.Before(exp) {
			delete(d.expires, k)
		}
	}
	d.expires[storeID+"\x00"+eventID] = now.Add(ttl)
	return nil
}

// Settings is a fixed ports.SettingsProvider
type Settings struct {
	Interval time.Duration
}

var _ ports.SettingsProvider = Settings{}

// DefaultSyncInterval implements ports.SettingsProvider
func (s Settings) DefaultSyncInterval(_ context.Context) time.Duration {
	return s.Interval
}
