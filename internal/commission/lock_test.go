package commission

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLockStore struct {
	values map[string]string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (f *fakeLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = asString(value)
	return true, nil
}

func (f *fakeLockStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (f *fakeLockStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeLockStore) ChargeLockKey(communityID, transactionID int64) string {
	return fmt.Sprintf("mb:lock:charge:%d:%d", communityID, transactionID)
}

func TestRedisChargeLockExcludesDuplicates(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisChargeLock(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, 1, 42)
	require.NoError(t, err)
	require.True(t, ok)

	// A second charge for the same transaction is shut out.
	_, ok, err = lock.Acquire(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different transaction is unaffected.
	otherRelease, ok, err := lock.Acquire(ctx, 1, 43)
	require.NoError(t, err)
	assert.True(t, ok)
	otherRelease(ctx)

	release(ctx)

	// Released locks can be re-acquired.
	again, ok, err := lock.Acquire(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	again(ctx)
}

func TestRedisChargeLockReleaseIgnoresForeignOwner(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisChargeLock(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, 1, 42)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate TTL expiry plus takeover by another charge.
	key := store.ChargeLockKey(1, 42)
	store.values[key] = "someone-else"

	release(ctx)
	assert.Equal(t, "someone-else", store.values[key])
}

func TestNoopChargeLockAlwaysGrants(t *testing.T) {
	release, ok, err := NoopChargeLock{}.Acquire(context.Background(), 1, 42)
	require.NoError(t, err)
	assert.True(t, ok)
	release(context.Background())
}
