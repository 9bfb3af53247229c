package bpmn

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"github.com/pbinitiative/zenexec/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DeployDefinition validates and stores a process definition. Deploying an id again
// creates the next version, running instances keep the version they were started with.
func (engine *Engine) DeployDefinition(ctx context.Context, def *runtime.ProcessDefinition) (*runtime.ProcessDefinition, error) {
	if err := def.Index(); err != nil {
		return nil, err
	}
	if len(def.StartNodes()) == 0 {
		return nil, newEngineErrorf("process %s has no start event", def.Id)
	}
	def.Version = 1
	latest, err := engine.persistence.FindLatestProcessDefinitionById(ctx, def.Id)
	switch {
	case err == nil:
		def.Version = latest.Version + 1
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to find latest version of process %s: %w", def.Id, err)
	}
	def.Key = engine.generateKey()

	batch := engine.newEngineBatch(runtime.WorkItem{})
	batch.saveDefinition(def)
	batch.AddPostFlushAction(func() {
		engine.definitions.Add(def)
		engine.exportNewProcessEvent(def)
	})
	if err := batch.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to deploy process %s: %w", def.Id, err)
	}
	engine.logger.Info("process definition deployed", "id", def.Id, "key", def.Key, "version", def.Version)
	return def, nil
}

// StartProcess creates a new instance of the process definition and enqueues its start events.
func (engine *Engine) StartProcess(ctx context.Context, processDefinitionKey int64, variables map[string]any) (*runtime.ProcessInstance, error) {
	def, err := engine.definitions.Get(ctx, processDefinitionKey)
	if err != nil {
		return nil, err
	}
	return engine.startProcess(ctx, def, variables)
}

// StartProcessById starts the latest version of the process with the given id.
func (engine *Engine) StartProcessById(ctx context.Context, processDefinitionId string, variables map[string]any) (*runtime.ProcessInstance, error) {
	def, err := engine.definitions.Latest(ctx, processDefinitionId)
	if err != nil {
		return nil, err
	}
	return engine.startProcess(ctx, def, variables)
}

func (engine *Engine) startProcess(ctx context.Context, def *runtime.ProcessDefinition, variables map[string]any) (pi *runtime.ProcessInstance, err error) {
	ctx, createSpan := engine.tracer.Start(ctx, fmt.Sprintf("create-instance:%s", def.Id), trace.WithAttributes(
		attribute.String(otelPkg.AttributeProcessId, def.Id),
		attribute.Int64(otelPkg.AttributeProcessDefinitionKey, def.Key),
	))
	defer func() {
		if err != nil {
			createSpan.RecordError(err)
			createSpan.SetStatus(codes.Error, err.Error())
		}
		createSpan.End()
	}()

	batch := engine.newEngineBatch(runtime.WorkItem{})
	pi = &runtime.ProcessInstance{
		Key:                  engine.generateKey(),
		ProcessDefinitionKey: def.Key,
		State:                runtime.ProcessInstanceActive,
		StateCategory:        runtime.StateCategoryNormal,
		Variables:            maps.Clone(variables),
		StartDate:            batch.now,
		InterruptingEventKey: runtime.NoInterruptingEvent,
	}
	pi.RootProcessInstanceKey = pi.Key
	createSpan.SetAttributes(attribute.Int64(otelPkg.AttributeProcessInstanceKey, pi.Key))
	if err := engine.startInstance(ctx, batch, pi, def); err != nil {
		batch.release()
		return nil, err
	}
	if err := batch.Flush(ctx); err != nil {
		return nil, fmt.Errorf("failed to start process instance of %s: %w", def.Id, err)
	}
	res := pi.Clone()
	return &res, nil
}

// AbortProcess moves the process instance to ABORTING and hands an abort to every stable flow node.
// It returns the number of flow nodes the abort was handed to.
func (engine *Engine) AbortProcess(ctx context.Context, processInstanceKey int64) (int, error) {
	return engine.exitProcess(ctx, processInstanceKey, runtime.StateCategoryAborting)
}

// CancelProcess is AbortProcess for CANCELLING, which overrides an ongoing abort.
func (engine *Engine) CancelProcess(ctx context.Context, processInstanceKey int64) (int, error) {
	return engine.exitProcess(ctx, processInstanceKey, runtime.StateCategoryCancelling)
}

// CompleteFlowNode enqueues the completion of a waiting flow node with result variables.
func (engine *Engine) CompleteFlowNode(ctx context.Context, flowNodeInstanceKey int64, variables map[string]any) error {
	n, err := engine.persistence.FindFlowNodeInstanceByKey(ctx, flowNodeInstanceKey)
	if err != nil {
		return errors.Join(newEngineErrorf("failed to find flow node instance with key: %d", flowNodeInstanceKey), err)
	}
	item := runtime.NewWorkItem(runtime.WorkCompleteFlowNode, n.ProcessInstanceKey())
	item.FlowNodeInstanceKey = n.Key
	item.FlowNodeDefinitionId = n.FlowNodeDefinitionId
	item.Variables = variables
	item.EnqueuedAt = engine.now()
	return engine.queue.Enqueue(ctx, item)
}

// InterruptByBoundary enqueues the firing of the interrupting boundary event boundaryId on an activity.
func (engine *Engine) InterruptByBoundary(ctx context.Context, flowNodeInstanceKey int64, boundaryId string) error {
	n, err := engine.persistence.FindFlowNodeInstanceByKey(ctx, flowNodeInstanceKey)
	if err != nil {
		return errors.Join(newEngineErrorf("failed to find flow node instance with key: %d", flowNodeInstanceKey), err)
	}
	item := runtime.NewWorkItem(runtime.WorkInterruptByBoundary, n.ProcessInstanceKey())
	item.FlowNodeInstanceKey = n.Key
	item.FlowNodeDefinitionId = boundaryId
	item.EnqueuedAt = engine.now()
	return engine.queue.Enqueue(ctx, item)
}

// SetVariables merges variables into a running process instance.
func (engine *Engine) SetVariables(ctx context.Context, processInstanceKey int64, variables map[string]any) error {
	batch := engine.newEngineBatch(runtime.WorkItem{ProcessInstanceKey: processInstanceKey})
	pi, err := batch.lockProcess(ctx, processInstanceKey)
	if err != nil {
		batch.release()
		return err
	}
	if pi.State.IsTerminal() {
		batch.release()
		return newEngineErrorf("process instance %d already reached state %s", processInstanceKey, pi.State)
	}
	pi.SetVariables(variables)
	batch.saveProcess(pi)
	return batch.Flush(ctx)
}

// ActiveCount returns the number of live tokens of a process instance.
func (engine *Engine) ActiveCount(ctx context.Context, processInstanceKey int64) (int, error) {
	return engine.tokens.ActiveCount(ctx, processInstanceKey)
}

// FindProcessInstance searches for a given processInstanceKey
func (engine *Engine) FindProcessInstance(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error) {
	return engine.persistence.FindProcessInstanceByKey(ctx, processInstanceKey)
}

// FindFlowNodeInstances returns the flow nodes of a process instance in creation order.
func (engine *Engine) FindFlowNodeInstances(ctx context.Context, processInstanceKey int64) ([]runtime.FlowNodeInstance, error) {
	res := make([]runtime.FlowNodeInstance, 0)
	for n, err := range engine.persistence.QueryFlowNodeInstances(ctx, processInstanceKey, nil) {
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, nil
}

// Drain processes queued work items on the calling goroutine until neither the queue
// nor the outbox holds any, and returns how many were processed.
func (engine *Engine) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		for engine.queue.Len() > 0 {
			if _, err := engine.ProcessOne(ctx); err != nil {
				return processed, err
			}
			processed++
		}
		relayed, err := engine.RelayOutbox(ctx, 0)
		if err != nil {
			return processed, err
		}
		if relayed == 0 {
			return processed, nil
		}
	}
}
