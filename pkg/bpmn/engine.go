package bpmn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenexec/pkg/bpmn/exporter"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/lock"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"github.com/pbinitiative/zenexec/pkg/script"
	"github.com/pbinitiative/zenexec/pkg/script/feel"
	"github.com/pbinitiative/zenexec/pkg/script/js"
	"github.com/pbinitiative/zenexec/pkg/storage"
	"github.com/pbinitiative/zenexec/pkg/storage/inmemory"
	"github.com/pbinitiative/zenexec/pkg/workqueue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxAttempts         = 3
	defaultRetryDelay          = 100 * time.Millisecond
	defaultDefinitionCacheSize = 128
	defaultOutboxRelayInterval = time.Second
)

// Engine advances process instances one work item at a time. It holds no
// per-instance state, everything lives in storage and the work queue.
type Engine struct {
	name        string
	persistence storage.Storage
	definitions *CachedDefinitions
	queue       workqueue.Queue
	locker      lock.Locker
	evaluator   *script.Evaluator
	oracle      ReachabilityOracle

	tokens         *TokenManager
	gateways       *GatewayMerger
	loops          *LoopController
	multiInstances *MultiInstanceController
	connectors     *ConnectorScheduler
	propagator     *StateCategoryPropagator

	connectorsMu       sync.RWMutex
	connectorExecutors map[string]ConnectorExecutor

	taskHandlers taskHandlerRegistry

	exporters []exporter.EventExporter
	tracer    trace.Tracer
	meter     metric.Meter
	metrics   *otelPkg.EngineMetrics
	logger    hclog.Logger

	definitionCacheSize int
	maxAttempts         int
	retryDelay          time.Duration
	outboxRelayInterval time.Duration
	now                 func() time.Time
}

// NewEngine creates a new engine. Without options it keeps everything in memory.
func NewEngine(options ...EngineOption) (*Engine, error) {
	engine := &Engine{
		name:                "zenexec",
		connectorExecutors:  map[string]ConnectorExecutor{},
		exporters:           []exporter.EventExporter{},
		oracle:              GraphReachabilityOracle{},
		definitionCacheSize: defaultDefinitionCacheSize,
		maxAttempts:         defaultMaxAttempts,
		retryDelay:          defaultRetryDelay,
		outboxRelayInterval: defaultOutboxRelayInterval,
		now:                 time.Now,
	}
	for _, option := range options {
		option(engine)
	}

	if engine.persistence == nil {
		engine.persistence = inmemory.NewStorage()
	}
	if engine.queue == nil {
		engine.queue = workqueue.NewInMemoryQueue()
	}
	if engine.locker == nil {
		engine.locker = lock.NewLocalLocker()
	}
	if engine.evaluator == nil {
		engine.evaluator = script.NewEvaluator(feel.NewFeelRuntime(), js.NewJsRuntime(context.Background(), 4, 1))
	}
	if engine.tracer == nil {
		engine.tracer = otel.Tracer(engine.name)
	}
	if engine.meter == nil {
		engine.meter = otel.Meter(engine.name)
	}
	if engine.logger == nil {
		engine.logger = hclog.Default().Named(engine.name)
	}

	metrics, err := otelPkg.NewMetrics(engine.meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics of engine %s: %w", engine.name, err)
	}
	engine.metrics = metrics
	engine.definitions = NewCachedDefinitions(engine.persistence, engine.definitionCacheSize)

	engine.tokens = &TokenManager{engine: engine}
	engine.gateways = &GatewayMerger{engine: engine}
	engine.loops = &LoopController{engine: engine}
	engine.multiInstances = &MultiInstanceController{engine: engine}
	engine.connectors = &ConnectorScheduler{engine: engine}
	engine.propagator = &StateCategoryPropagator{engine: engine}
	return engine, nil
}

func (engine *Engine) Name() string {
	return engine.name
}

func (engine *Engine) Queue() workqueue.Queue {
	return engine.queue
}

func (engine *Engine) Tokens() *TokenManager {
	return engine.tokens
}

func (engine *Engine) Connectors() *ConnectorScheduler {
	return engine.connectors
}

func (engine *Engine) Propagator() *StateCategoryPropagator {
	return engine.propagator
}

// Advance applies one work item. All mutations it causes commit as one batch together
// with the emitted work items, which are enqueued after the commit and returned.
// The returned state is the state of the flow node the item addressed,
// FlowNodeStateCreated when the item turned out to be a duplicate before any node was touched.
func (engine *Engine) Advance(ctx context.Context, item runtime.WorkItem) (state runtime.FlowNodeState, emitted []runtime.WorkItem, err error) {
	ctx, span := engine.tracer.Start(ctx, fmt.Sprintf("advance:%s", item.Kind), trace.WithAttributes(
		attribute.String(otelPkg.AttributeWorkItemId, item.Id),
		attribute.String(otelPkg.AttributeWorkKind, string(item.Kind)),
		attribute.Int64(otelPkg.AttributeProcessInstanceKey, item.ProcessInstanceKey),
		attribute.Int64(otelPkg.AttributeFlowNodeInstanceKey, item.FlowNodeInstanceKey),
	))
	start := engine.now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		engine.metrics.WorkItemDuration.Record(ctx, float64(engine.now().Sub(start).Microseconds())/1000,
			metric.WithAttributes(attribute.String(otelPkg.AttributeWorkKind, string(item.Kind))))
	}()

	if item.Kind == runtime.WorkExecuteConnectors {
		return engine.connectors.advance(ctx, item)
	}

	batch := engine.newEngineBatch(item)
	state, err = engine.advance(ctx, batch)
	if err != nil {
		batch.release()
		return state, nil, err
	}
	if err := batch.Flush(ctx); err != nil {
		return state, nil, err
	}
	return state, batch.emitted, nil
}

func (engine *Engine) advance(ctx context.Context, batch *EngineBatch) (runtime.FlowNodeState, error) {
	item := batch.item
	if item.FlowNodeInstanceKey != 0 {
		if err := batch.lockNode(ctx, item.FlowNodeInstanceKey); err != nil {
			return runtime.FlowNodeStateCreated, err
		}
	}
	pi, err := batch.process(ctx, item.ProcessInstanceKey)
	if err != nil {
		return runtime.FlowNodeStateCreated, errors.Join(newEngineErrorf("failed to find process instance with key: %d", item.ProcessInstanceKey), err)
	}
	if pi.State.IsTerminal() {
		engine.logger.Debug("work item for finished process instance dropped", "item", item.Id, "kind", item.Kind, "processInstance", pi.Key)
		return runtime.FlowNodeStateCreated, nil
	}

	switch item.Kind {
	case runtime.WorkExecuteFlowNode:
		return engine.advanceExecuteFlowNode(ctx, batch)
	case runtime.WorkReevaluateGateway:
		return engine.gateways.reevaluate(ctx, batch)
	}

	n, err := batch.node(ctx, item.FlowNodeInstanceKey)
	if err != nil {
		return runtime.FlowNodeStateCreated, errors.Join(newEngineErrorf("failed to find flow node instance with key: %d", item.FlowNodeInstanceKey), err)
	}
	if n.Terminal {
		return n.State, nil
	}

	switch item.Kind {
	case runtime.WorkAbortFlowNode:
		err = engine.propagator.exitFlowNode(ctx, batch, n, runtime.StateCategoryAborting)
		return n.State, err
	case runtime.WorkCancelFlowNode:
		err = engine.propagator.exitFlowNode(ctx, batch, n, runtime.StateCategoryCancelling)
		return n.State, err
	}

	if category := n.StateCategory.Effective(pi.StateCategory); category.IsExiting() {
		// the node missed the propagation because it was mid-transition, it exits now
		err = engine.propagator.exitFlowNode(ctx, batch, n, category)
		return n.State, err
	}

	switch item.Kind {
	case runtime.WorkCompleteFlowNode:
		err = engine.advanceCompleteFlowNode(ctx, batch, n)
	case runtime.WorkChildFinished:
		err = engine.advanceChildFinished(ctx, batch, n)
	case runtime.WorkInterruptByBoundary:
		err = engine.interruptByBoundary(ctx, batch, n)
	case runtime.WorkRetryFlowNode:
		err = engine.retryFlowNode(ctx, batch, n)
	case runtime.WorkSkipFlowNode:
		err = engine.skipFlowNode(ctx, batch, n)
	default:
		err = newEngineErrorf("unsupported work item kind %s", item.Kind)
	}
	return n.State, err
}
