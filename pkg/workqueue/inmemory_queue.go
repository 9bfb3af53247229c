package workqueue

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

type queued struct {
	item runtime.WorkItem
	seq  uint64
}

// readyHeap orders eligible items by priority, then by arrival.
type readyHeap []queued

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].item.Priority != h[j].item.Priority {
		return h[i].item.Priority > h[j].item.Priority
	}
	return h[i].seq < h[j].seq
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)   { *h = append(*h, x.(queued)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// delayedHeap orders items that are not yet eligible by NotBefore.
type delayedHeap []queued

func (h delayedHeap) Len() int { return len(h) }
func (h delayedHeap) Less(i, j int) bool {
	if !h[i].item.NotBefore.Equal(h[j].item.NotBefore) {
		return h[i].item.NotBefore.Before(h[j].item.NotBefore)
	}
	return h[i].seq < h[j].seq
}
func (h delayedHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *delayedHeap) Push(x any)   { *h = append(*h, x.(queued)) }
func (h *delayedHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// InMemoryQueue keeps items in process memory. It is safe for concurrent use.
type InMemoryQueue struct {
	mu       sync.Mutex
	ready    readyHeap
	delayed  delayedHeap
	inFlight map[string]runtime.WorkItem
	seq      uint64
	signal   chan struct{}
	now      func() time.Time
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		inFlight: map[string]runtime.WorkItem{},
		signal:   make(chan struct{}, 1),
		now:      time.Now,
	}
}

var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(ctx context.Context, item runtime.WorkItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	q.push(item)
	q.mu.Unlock()
	q.notify()
	return nil
}

func (q *InMemoryQueue) push(item runtime.WorkItem) {
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = q.now()
	}
	q.seq++
	e := queued{item: item, seq: q.seq}
	if item.NotBefore.After(q.now()) {
		heap.Push(&q.delayed, e)
		return
	}
	heap.Push(&q.ready, e)
}

func (q *InMemoryQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (runtime.WorkItem, error) {
	for {
		q.mu.Lock()
		now := q.now()
		for q.delayed.Len() > 0 && !q.delayed[0].item.NotBefore.After(now) {
			heap.Push(&q.ready, heap.Pop(&q.delayed))
		}
		if q.ready.Len() > 0 {
			e := heap.Pop(&q.ready).(queued)
			q.inFlight[e.item.Id] = e.item
			more := q.ready.Len() > 0
			q.mu.Unlock()
			if more {
				q.notify()
			}
			return e.item, nil
		}
		var timer *time.Timer
		var wait <-chan time.Time
		if q.delayed.Len() > 0 {
			timer = time.NewTimer(q.delayed[0].item.NotBefore.Sub(now))
			wait = timer.C
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return runtime.WorkItem{}, ctx.Err()
		case <-q.signal:
		case <-wait:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (q *InMemoryQueue) Ack(ctx context.Context, item runtime.WorkItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inFlight[item.Id]; !ok {
		return ErrUnknownItem
	}
	delete(q.inFlight, item.Id)
	return nil
}

func (q *InMemoryQueue) Nack(ctx context.Context, item runtime.WorkItem, delay time.Duration) error {
	q.mu.Lock()
	if _, ok := q.inFlight[item.Id]; !ok {
		q.mu.Unlock()
		return ErrUnknownItem
	}
	delete(q.inFlight, item.Id)
	item.Attempts++
	item.NotBefore = q.now().Add(delay)
	q.push(item)
	q.mu.Unlock()
	q.notify()
	return nil
}

func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready.Len() + q.delayed.Len()
}

// InFlight returns the number of dequeued items that were neither acked nor nacked.
func (q *InMemoryQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}
