// Package workqueue carries work items between the engine and its workers.
//
// Items are delivered to one consumer at a time. A consumer acknowledges an
// item after its effects are committed, or negatively acknowledges it to have
// it redelivered after a delay. Exit items (abort, cancel) are served before
// forward items that are ready at the same time.
package workqueue

import (
	"context"
	"errors"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

var (
	// ErrUnknownItem is returned when acking an item that is not in flight.
	ErrUnknownItem = errors.New("work item is not in flight")
	ErrClosed      = errors.New("queue closed")
)

type Queue interface {
	// Enqueue adds an item. Items with NotBefore in the future become eligible at that time.
	Enqueue(ctx context.Context, item runtime.WorkItem) error

	// Dequeue removes and returns the next eligible item, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (runtime.WorkItem, error)

	// Ack finishes an item returned by Dequeue.
	Ack(ctx context.Context, item runtime.WorkItem) error

	// Nack returns the item to the queue, eligible again after delay, with Attempts increased.
	Nack(ctx context.Context, item runtime.WorkItem, delay time.Duration) error

	// Len returns the approximate number of queued items, in flight items excluded.
	Len() int
}

// EnqueueAll enqueues items in order and stops at the first error.
func EnqueueAll(ctx context.Context, q Queue, items ...runtime.WorkItem) error {
	for _, item := range items {
		if err := q.Enqueue(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func isExit(item runtime.WorkItem) bool {
	return item.Priority > runtime.PriorityForward
}
