package lock

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pbinitiative/zenexec/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *redis.Client) {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: testutil.GetRedisAddress(t)})
	t.Cleanup(func() {
		_ = client.Close()
	})
	require.NoError(t, client.Ping(t.Context()).Err())
	return NewRedisLocker(client, "zenexec:test:"+ulid.Make().String()+":", ttl), client
}

func TestRedisLocker(t *testing.T) {
	locker, _ := newTestRedisLocker(t, 5*time.Second)
	runLockerContract(t, locker)
}

func TestRedisLockerKeepsLockPastTTL(t *testing.T) {
	locker, client := newTestRedisLocker(t, 200*time.Millisecond)

	unlock, err := locker.Lock(t.Context(), ProcessKey(3))
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	exists, err := client.Exists(t.Context(), locker.prefix+ProcessKey(3)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	unlock()
	exists, err = client.Exists(t.Context(), locker.prefix+ProcessKey(3)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
