package redis_test

import (
	"context"
	"testing"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillform/stepflow/pkg/adapters/redis"
)

func TestLocker_AcquireRelease(t *testing.T) {
	mr, client := newTestClient(t)
	locker := redis.NewLocker(client, "stepflow:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session-1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("stepflow:lock:session-1"))

	assert.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("stepflow:lock:session-1"))
}

func TestLocker_ContentionTimesOut(t *testing.T) {
	_, client := newTestClient(t)
	locker := redis.NewLocker(client, "stepflow:")

	unlock, err := locker.Lock(context.Background(), "busy", 30*time.Second)
	require.NoError(t, err)
	defer unlock(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "busy", 30*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_StaleUnlockIsNoop(t *testing.T) {
	mr, client := newTestClient(t)
	locker := redis.NewLocker(client, "stepflow:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session-2", 1*time.Second)
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the lock.
	mr.FastForward(2 * time.Second)
	other := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	require.NoError(t, other.Set(ctx, "stepflow:lock:session-2", "other-holder", 0).Err())

	assert.NoError(t, unlock(ctx))
	val, err := other.Get(ctx, "stepflow:lock:session-2").Result()
	require.NoError(t, err)
	assert.Equal(t, "other-holder", val, "stale unlock must not release another holder's lock")
}
