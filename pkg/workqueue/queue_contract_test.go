package workqueue

import (
	"context"
	"testing"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forwardItem(fdi string) runtime.WorkItem {
	item := runtime.NewWorkItem(runtime.WorkExecuteFlowNode, 1)
	item.FlowNodeDefinitionId = fdi
	return item
}

func dequeueWithin(t *testing.T, q Queue, d time.Duration) runtime.WorkItem {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), d)
	defer cancel()
	item, err := q.Dequeue(ctx)
	require.NoError(t, err)
	return item
}

// runQueueContract checks the behaviour every Queue implementation shares.
func runQueueContract(t *testing.T, newQueue func(t *testing.T) Queue) {
	t.Run("forward items are FIFO", func(t *testing.T) {
		q := newQueue(t)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, q.Enqueue(t.Context(), forwardItem(id)))
		}
		assert.Equal(t, 3, q.Len())

		for _, id := range []string{"a", "b", "c"} {
			item := dequeueWithin(t, q, time.Second)
			assert.Equal(t, id, item.FlowNodeDefinitionId)
			require.NoError(t, q.Ack(t.Context(), item))
		}
		assert.Equal(t, 0, q.Len())
	})

	t.Run("exit items overtake forward items", func(t *testing.T) {
		q := newQueue(t)
		require.NoError(t, q.Enqueue(t.Context(), forwardItem("forward")))
		abort := runtime.NewWorkItem(runtime.WorkAbortFlowNode, 1)
		abort.FlowNodeInstanceKey = 42
		require.NoError(t, q.Enqueue(t.Context(), abort))

		first := dequeueWithin(t, q, time.Second)
		assert.Equal(t, runtime.WorkAbortFlowNode, first.Kind)
		assert.Equal(t, int64(42), first.FlowNodeInstanceKey)
		second := dequeueWithin(t, q, time.Second)
		assert.Equal(t, "forward", second.FlowNodeDefinitionId)
	})

	t.Run("nack redelivers with increased attempts", func(t *testing.T) {
		q := newQueue(t)
		item := forwardItem("retry")
		item.Variables = map[string]any{"amount": float64(12)}
		require.NoError(t, q.Enqueue(t.Context(), item))

		got := dequeueWithin(t, q, time.Second)
		require.NoError(t, q.Nack(t.Context(), got, 50*time.Millisecond))

		again := dequeueWithin(t, q, 2*time.Second)
		assert.Equal(t, item.Id, again.Id)
		assert.Equal(t, 1, again.Attempts)
		assert.Equal(t, float64(12), again.Variables["amount"])
		require.NoError(t, q.Ack(t.Context(), again))
	})

	t.Run("delayed item is not served early", func(t *testing.T) {
		q := newQueue(t)
		item := forwardItem("later")
		item.NotBefore = time.Now().Add(300 * time.Millisecond)
		require.NoError(t, q.Enqueue(t.Context(), item))

		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()
		_, err := q.Dequeue(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		got := dequeueWithin(t, q, 2*time.Second)
		assert.Equal(t, item.Id, got.Id)
	})

	t.Run("ack of unknown item fails", func(t *testing.T) {
		q := newQueue(t)
		err := q.Ack(t.Context(), forwardItem("never"))
		assert.ErrorIs(t, err, ErrUnknownItem)
	})

	t.Run("dequeue blocks until an item arrives", func(t *testing.T) {
		q := newQueue(t)
		go func() {
			time.Sleep(50 * time.Millisecond)
			_ = q.Enqueue(context.Background(), forwardItem("late"))
		}()
		got := dequeueWithin(t, q, 2*time.Second)
		assert.Equal(t, "late", got.FlowNodeDefinitionId)
	})
}
