// Package lock provides the run locks that keep two runs of the same
// (store, domain, direction) from overlapping
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"store-sync-engine/internal/domain"
	"store-sync-engine/internal/ports"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultKeyPrefix = "store-sync:lock:"
	releaseTimeout   = 5 * time.Second
)

// releaseScript deletes the lock only while it still holds our token, so a run whose
// lease expired cannot release the lock of the run that took over
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// extendScript renews the lease only while it still holds our token
var extendScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements RunLocker with SET NX PX leases
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    zerolog.Logger
}

var _ ports.RunLocker = (*RedisLocker)(nil)

// NewRedisLocker creates a new Redis run locker
func NewRedisLocker(client redis.UniversalClient, keyPrefix string, logger zerolog.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// TryLock implements ports.RunLocker
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrRunInProgress
	}
	return &redisLease{locker: l, key: key, redisKey: redisKey, token: token, ttl: ttl, base: context.WithoutCancel(ctx)}, nil
}

type redisLease struct {
	locker   *RedisLocker
	key      string
	redisKey string
	token    string
	ttl      time.Duration
	base     context.Context // acquiring context without its cancellation
	once     sync.Once
}

func (l *redisLease) Extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, l.locker.client, []string{l.redisKey}, l.token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to extend run lock: %w", err)
	}
	if n == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func (l *redisLease) Release() {
	l.once.Do(func() {
		rctx, cancel := context.WithTimeout(l.base, releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(rctx, l.locker.client, []string{l.redisKey}, l.token).Err(); err != nil {
			l.locker.logger.Warn().Err(err).Str("lock", l.key).Msg("Failed to release run lock, it expires with its lease")
		}
	})
}
