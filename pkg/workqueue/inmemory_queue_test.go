package workqueue

import (
	"testing"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	runQueueContract(t, func(t *testing.T) Queue {
		return NewInMemoryQueue()
	})
}

func TestInMemoryQueueTracksInFlight(t *testing.T) {
	q := NewInMemoryQueue()
	require.NoError(t, EnqueueAll(t.Context(), q, forwardItem("a"), forwardItem("b")))

	item := dequeueWithin(t, q, time.Second)
	assert.Equal(t, 1, q.InFlight())
	assert.Equal(t, 1, q.Len())

	require.NoError(t, q.Ack(t.Context(), item))
	assert.Equal(t, 0, q.InFlight())
	assert.ErrorIs(t, q.Ack(t.Context(), item), ErrUnknownItem)
}

func TestInMemoryQueueSamePriorityKeepsArrivalOrder(t *testing.T) {
	q := NewInMemoryQueue()
	var ids []string
	for range 20 {
		item := runtime.NewWorkItem(runtime.WorkCancelFlowNode, 1)
		ids = append(ids, item.Id)
		require.NoError(t, q.Enqueue(t.Context(), item))
	}
	for _, id := range ids {
		got := dequeueWithin(t, q, time.Second)
		assert.Equal(t, id, got.Id)
	}
}
