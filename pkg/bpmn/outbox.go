package bpmn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

const defaultOutboxRelayBatch = 100

// relay enqueues committed items and removes the enqueued ones from the outbox.
// It stops at the first item the queue refuses.
func (engine *Engine) relay(ctx context.Context, items []runtime.WorkItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	sb := engine.persistence.NewBatch()
	relayed := 0
	var enqueueErr error
	for _, item := range items {
		if enqueueErr = engine.queue.Enqueue(ctx, item); enqueueErr != nil {
			enqueueErr = fmt.Errorf("failed to enqueue work item %s: %w", item.Id, enqueueErr)
			break
		}
		if err := sb.DeleteOutboxItem(ctx, item.Id); err != nil {
			return relayed, errors.Join(enqueueErr, err)
		}
		relayed++
	}
	if relayed > 0 {
		if err := sb.Flush(ctx); err != nil {
			// the items are in the queue, relaying them again only produces duplicates
			return relayed, errors.Join(enqueueErr, fmt.Errorf("failed to clear outbox: %w", err))
		}
	}
	return relayed, enqueueErr
}

// RelayOutbox enqueues work items that were committed at least olderThan ago but never
// reached the queue, and returns how many it enqueued. Items of batches still being
// flushed are younger than any sensible olderThan.
func (engine *Engine) RelayOutbox(ctx context.Context, olderThan time.Duration) (int, error) {
	deadline := engine.now().Add(-olderThan)
	total := 0
	for {
		items, err := engine.persistence.FindOutboxItems(ctx, defaultOutboxRelayBatch)
		if err != nil {
			return total, fmt.Errorf("failed to read outbox: %w", err)
		}
		due := make([]runtime.WorkItem, 0, len(items))
		for _, item := range items {
			if !item.EnqueuedAt.After(deadline) {
				due = append(due, item)
			}
		}
		relayed, err := engine.relay(ctx, due)
		total += relayed
		if err != nil {
			return total, err
		}
		if len(items) < defaultOutboxRelayBatch || len(due) == 0 {
			if total > 0 {
				engine.logger.Info("work items relayed from outbox", "count", total)
			}
			return total, nil
		}
	}
}
