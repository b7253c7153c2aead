package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"
)

// MemoryLocker implements RunLocker for a single process
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

type lease struct {
	token   uint64
	expires time.Time
}

var _ ports.RunLocker = (*MemoryLocker)(nil)

// NewMemoryLocker creates a new in-process run locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

var lastToken atomic.Uint64

// TryLock implements ports.RunLocker
func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.leases[key]; ok && now.Before(held.expires) {
		return nil, domain.ErrRunInProgress
	}
	token := lastToken.Add(1)
	l.leases[key] = lease{token: token, expires: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, token: token, ttl: ttl}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  uint64
	ttl    time.Duration
	once   sync.Once
}

func (m *memoryLease) Extend(context.Context) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.leases[m.key]
	if !ok || held.token != m.token {
		return domain.ErrLeaseLost
	}
	held.expires = l.now().Add(m.ttl)
	l.leases[m.key] = held
	return nil
}

func (m *memoryLease) Release() {
	m.once.Do(func() {
		l := m.locker
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.leases[m.key]; ok && held.token == m.token {
			delete(l.leases, m.key)
		}
	})
}
