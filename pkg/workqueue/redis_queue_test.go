package workqueue

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pbinitiative/zenexec/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisQueue(t *testing.T, client *redis.Client) *RedisQueue {
	t.Helper()
	// a fresh prefix per test keeps the subtests apart without FLUSHDB
	return NewRedisQueue(client, "zenexec:test:"+ulid.Make().String()+":")
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: testutil.GetRedisAddress(t),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisQueue(t *testing.T) {
	client := newTestRedisClient(t)
	runQueueContract(t, func(t *testing.T) Queue {
		return newTestRedisQueue(t, client)
	})
}

func TestRedisQueueRecoverRequeuesInFlight(t *testing.T) {
	client := newTestRedisClient(t)
	q := newTestRedisQueue(t, client)

	item := forwardItem("orphan")
	require.NoError(t, q.Enqueue(t.Context(), item))
	got := dequeueWithin(t, q, time.Second)
	assert.Equal(t, item.Id, got.Id)
	assert.Equal(t, 0, q.Len())

	n, err := q.Recover(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, q.Len())

	again := dequeueWithin(t, q, time.Second)
	assert.Equal(t, item.Id, again.Id)
	require.NoError(t, q.Ack(t.Context(), again))
}
