package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLockerContract(t *testing.T, locker Locker) {
	t.Run("excludes concurrent holders", func(t *testing.T) {
		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(context.Background(), ProcessKey(1))
				if !assert.NoError(t, err) {
					return
				}
				n := inside.Add(1)
				for {
					m := maxInside.Load()
					if n <= m || maxInside.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside.Load())
	})

	t.Run("distinct keys do not block each other", func(t *testing.T) {
		unlockNode, err := locker.Lock(t.Context(), FlowNodeKey(7))
		require.NoError(t, err)
		defer unlockNode()

		ctx, cancel := context.WithTimeout(t.Context(), time.Second)
		defer cancel()
		unlockProcess, err := locker.Lock(ctx, ProcessKey(7))
		require.NoError(t, err)
		unlockProcess()
	})

	t.Run("waiter gives up when context ends", func(t *testing.T) {
		unlock, err := locker.Lock(t.Context(), FlowNodeKey(9))
		require.NoError(t, err)
		defer unlock()

		ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, FlowNodeKey(9))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("unlock twice is harmless", func(t *testing.T) {
		unlock, err := locker.Lock(t.Context(), ProcessKey(11))
		require.NoError(t, err)
		unlock()
		unlock()

		again, err := locker.Lock(t.Context(), ProcessKey(11))
		require.NoError(t, err)
		again()
	})
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	runLockerContract(t, locker)
	assert.Equal(t, 0, locker.Size())
}
