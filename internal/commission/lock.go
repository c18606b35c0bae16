package commission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultChargeLockTTL = 10 * time.Minute

// ChargeLock serializes charge attempts per (community, transaction) so a
// duplicated dispatch cannot run two gateway calls concurrently.
type ChargeLock interface {
	// Acquire returns ok=false when another charge holds the lock. On
	// success the returned release frees the lock; it is safe to call with
	// an already-canceled context.
	Acquire(ctx context.Context, communityID, transactionID int64) (release func(context.Context), ok bool, err error)
}

// lockStore defines the Redis operations used by RedisChargeLock.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	ChargeLockKey(communityID, transactionID int64) string
}

// RedisChargeLock implements ChargeLock with SETNX + TTL.
type RedisChargeLock struct {
	client lockStore
	ttl    time.Duration
}

// NewRedisChargeLock constructs a Redis-backed charge lock.
func NewRedisChargeLock(client lockStore, ttl time.Duration) (*RedisChargeLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for charge lock")
	}
	if ttl <= 0 {
		ttl = defaultChargeLockTTL
	}
	return &RedisChargeLock{client: client, ttl: ttl}, nil
}

// Acquire tries to own the per-charge lock for the configured TTL.
func (l *RedisChargeLock) Acquire(ctx context.Context, communityID, transactionID int64) (func(context.Context), bool, error) {
	key := l.client.ChargeLockKey(communityID, transactionID)
	owner := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(releaseCtx context.Context) {
		// Free the lock only if this charge still owns it.
		value, err := l.client.Get(releaseCtx, key)
		if err != nil {
			return
		}
		if value != owner {
			return
		}
		_ = l.client.Del(releaseCtx, key)
	}
	return release, true, nil
}

// NoopChargeLock always grants the lock. Used when Redis is not configured.
type NoopChargeLock struct{}

// Acquire implements ChargeLock.
func (NoopChargeLock) Acquire(context.Context, int64, int64) (func(context.Context), bool, error) {
	return func(context.Context) {}, true, nil
}

var _ ChargeLock = (*RedisChargeLock)(nil)
var _ ChargeLock = NoopChargeLock{}
