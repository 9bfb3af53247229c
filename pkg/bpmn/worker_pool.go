package bpmn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// WorkerPool runs Advance for the items of the engine's queue on a fixed number of goroutines.
// Several pools, in one process or many, can share a queue as long as they share storage and locks.
type WorkerPool struct {
	engine  *Engine
	workers int
	logger  hclog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func NewWorkerPool(engine *Engine, workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		engine:  engine,
		workers: workers,
		logger:  engine.logger.Named("worker-pool"),
	}
}

// Start launches the workers. They run until Stop is called or ctx is cancelled.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("worker pool already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(p.workers + 1)
	go func() {
		defer p.wg.Done()
		p.relayOutbox(ctx)
	}()
	for range p.workers {
		id := uuid.NewString()
		logger := p.logger.With("worker", id)
		go func() {
			defer p.wg.Done()
			logger.Debug("worker started")
			for {
				_, err := p.engine.ProcessOne(ctx)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						logger.Debug("worker stopped")
						return
					}
					logger.Error("failed to process work item", "error", err)
				}
			}
		}()
	}
	p.logger.Info("worker pool started", "workers", p.workers)
	return nil
}

// Stop cancels the workers and waits for them to exit. An item a worker was applying is finished first.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// relayOutbox periodically enqueues committed work items whose enqueue failed.
func (p *WorkerPool) relayOutbox(ctx context.Context) {
	interval := p.engine.outboxRelayInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := p.engine.RelayOutbox(ctx, interval); err != nil && ctx.Err() == nil {
			p.logger.Warn("failed to relay outbox", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOne dequeues one work item, applies it and settles it with the queue.
// It blocks until an item is available or ctx is cancelled.
func (engine *Engine) ProcessOne(ctx context.Context) (runtime.WorkItem, error) {
	item, err := engine.queue.Dequeue(ctx)
	if err != nil {
		return item, err
	}
	// the item is applied even when the worker is asked to stop
	return item, engine.handleWorkItem(context.WithoutCancel(ctx), item)
}

// handleWorkItem applies the item and acks or nacks it:
//   - success and duplicates are acked
//   - a lost optimistic lock race is nacked and retried from a fresh load
//   - a connector failure below the attempt limit is nacked with a growing delay,
//     at the limit the incident is already written and the item is acked
//   - an error retrying cannot fix records an incident and is acked
//   - any other error is nacked until the attempt limit, then handled like the previous case
func (engine *Engine) handleWorkItem(ctx context.Context, item runtime.WorkItem) error {
	_, _, err := engine.Advance(ctx, item)
	kind := metric.WithAttributes(attribute.String(otelPkg.AttributeWorkKind, string(item.Kind)))
	if err == nil {
		engine.metrics.WorkItemsProcessed.Add(ctx, 1, kind)
		return engine.queue.Ack(ctx, item)
	}

	var connectorErr *ConnectorExecutionError
	switch {
	case errors.Is(err, ErrConcurrentModification):
		engine.logger.Debug("work item lost a concurrent modification, retrying", "item", item.Id, "kind", item.Kind, "error", err)
		return engine.retryWorkItem(ctx, item, engine.retryDelay, kind)
	case errors.As(err, &connectorErr):
		if connectorErr.Retryable {
			return engine.retryWorkItem(ctx, item, engine.retryDelay*time.Duration(max(connectorErr.Attempts, 1)), kind)
		}
		engine.metrics.WorkItemsProcessed.Add(ctx, 1, kind)
		return engine.queue.Ack(ctx, item)
	case isFatal(err) || item.Attempts+1 >= engine.maxAttempts:
		engine.logger.Error("work item failed", "item", item.Id, "kind", item.Kind, "processInstance", item.ProcessInstanceKey, "flowNode", item.FlowNodeInstanceKey, "error", err)
		if _, incidentErr := engine.recordIncident(ctx, item, err); incidentErr != nil {
			engine.logger.Error("failed to record incident", "item", item.Id, "error", incidentErr)
			return errors.Join(err, incidentErr, engine.queue.Nack(ctx, item, engine.retryDelay))
		}
		return engine.queue.Ack(ctx, item)
	}
	engine.logger.Warn("work item failed, retrying", "item", item.Id, "kind", item.Kind, "attempt", item.Attempts+1, "error", err)
	return engine.retryWorkItem(ctx, item, engine.retryDelay, kind)
}

func (engine *Engine) retryWorkItem(ctx context.Context, item runtime.WorkItem, delay time.Duration, attrs metric.MeasurementOption) error {
	engine.metrics.WorkItemsRetried.Add(ctx, 1, attrs)
	return engine.queue.Nack(ctx, item, delay)
}
