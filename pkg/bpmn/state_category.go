package bpmn

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"github.com/pbinitiative/zenexec/pkg/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const propagationAttempts = 3

// StateCategoryPropagator drives the flow nodes of an ABORTING or CANCELLING process
// instance towards their exit states.
//
// Only stable nodes are touched. A node that is mid-transition observes the new category
// on its next work item and exits from there, so running the propagation again finds
// nothing left to do.
type StateCategoryPropagator struct {
	engine *Engine
}

func exitKind(category runtime.StateCategory) runtime.WorkKind {
	if category == runtime.StateCategoryCancelling {
		return runtime.WorkCancelFlowNode
	}
	return runtime.WorkAbortFlowNode
}

// Propagate walks the live flow nodes of the process instance depth first and hands an exit
// work item to every stable node not yet in the category. It returns the number of work items emitted.
func (p *StateCategoryPropagator) Propagate(ctx context.Context, processInstanceKey int64, category runtime.StateCategory) (int, error) {
	if !category.IsExiting() {
		return 0, newEngineErrorf("cannot propagate state category %s", category)
	}
	children := map[int64][]int64{}
	for n, err := range p.engine.persistence.QueryFlowNodeInstances(ctx, processInstanceKey, func(n runtime.FlowNodeInstance) bool {
		return !n.Terminal
	}) {
		if err != nil {
			return 0, fmt.Errorf("failed to query flow nodes of process instance %d: %w", processInstanceKey, err)
		}
		children[n.ParentContainerKey] = append(children[n.ParentContainerKey], n.Key)
	}

	var order []int64
	var walk func(container int64)
	walk = func(container int64) {
		for _, key := range children[container] {
			order = append(order, key)
			walk(key)
		}
	}
	walk(processInstanceKey)

	emitted := 0
	for _, key := range order {
		var (
			ok  bool
			err error
		)
		for range propagationAttempts {
			ok, err = p.propagateTo(ctx, processInstanceKey, key, category)
			if !errors.Is(err, ErrConcurrentModification) {
				break
			}
		}
		if err != nil {
			return emitted, err
		}
		if ok {
			emitted++
		}
	}
	if emitted > 0 {
		p.engine.metrics.PropagatedExits.Add(ctx, int64(emitted), metric.WithAttributes(
			attribute.String(otelPkg.AttributeStateCategory, string(category)),
		))
	}
	p.engine.logger.Debug("state category propagated", "processInstance", processInstanceKey, "category", category, "exits", emitted)

	batch := p.engine.newEngineBatch(runtime.WorkItem{Kind: exitKind(category), ProcessInstanceKey: processInstanceKey})
	pi, err := batch.lockProcess(ctx, processInstanceKey)
	if err != nil {
		batch.release()
		return emitted, err
	}
	if err := p.finalize(ctx, batch, pi); err != nil {
		batch.release()
		return emitted, err
	}
	return emitted, batch.Flush(ctx)
}

func (p *StateCategoryPropagator) propagateTo(ctx context.Context, processInstanceKey int64, flowNodeInstanceKey int64, category runtime.StateCategory) (bool, error) {
	batch := p.engine.newEngineBatch(runtime.WorkItem{
		Kind:                exitKind(category),
		ProcessInstanceKey:  processInstanceKey,
		FlowNodeInstanceKey: flowNodeInstanceKey,
	})
	if err := batch.lockNode(ctx, flowNodeInstanceKey); err != nil {
		return false, err
	}
	n, err := batch.node(ctx, flowNodeInstanceKey)
	if err != nil {
		batch.release()
		return false, err
	}
	if n.Terminal || !n.MustExecuteOnAbortOrCancelProcess() || n.StateCategory.Effective(category) == n.StateCategory {
		batch.release()
		return false, nil
	}
	n.StateCategory = category
	batch.saveNode(n)
	item := batch.newItem(exitKind(category), processInstanceKey)
	item.FlowNodeInstanceKey = n.Key
	item.FlowNodeDefinitionId = n.FlowNodeDefinitionId
	batch.emit(item)
	if err := batch.Flush(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// exitFlowNode moves the node to ABORTED or CANCELLED. Loops and multi-instance
// activities first hand the exit to their live children and wait for them.
func (p *StateCategoryPropagator) exitFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, category runtime.StateCategory) error {
	if n.Terminal {
		return nil
	}
	n.StateCategory = n.StateCategory.Effective(category)
	category = n.StateCategory
	batch.saveNode(n)
	connectorState := runtime.ConnectorAborted
	if category == runtime.StateCategoryCancelling {
		connectorState = runtime.ConnectorCancelled
	}
	if err := p.engine.connectors.finishUnfinished(ctx, batch, n, connectorState); err != nil {
		return err
	}

	if n.Kind == runtime.FlowNodeKindLoopActivity || n.Kind == runtime.FlowNodeKindMultiInstanceActivity {
		children, err := batch.flowNodes(ctx, n.ProcessInstanceKey(), func(child runtime.FlowNodeInstance) bool {
			return child.ParentContainerKey == n.Key && !child.Terminal
		})
		if err != nil {
			return err
		}
		if len(children) > 0 {
			for _, child := range children {
				item := batch.newItem(exitKind(category), n.ProcessInstanceKey())
				item.FlowNodeInstanceKey = child.Key
				item.FlowNodeDefinitionId = child.FlowNodeDefinitionId
				batch.emit(item)
			}
			return nil
		}
	}

	n.StateExecuting = false
	if err := p.engine.transitionNode(ctx, batch, n, category.ExitEvent()); err != nil {
		return err
	}
	if n.Kind == runtime.FlowNodeKindHumanTask {
		batch.deleteHiddenTasksForActivity(n.Key)
	}
	p.exitCalledProcesses(ctx, batch, n, category)

	if n.IsChild() {
		return p.engine.notifyParent(ctx, batch, n)
	}
	retired := false
	if n.TokenKey != 0 && (n.Activity == nil || n.Activity.AbortedByBoundary == 0) {
		token, ok, err := p.engine.tokens.Token(ctx, batch, n.ProcessInstanceKey(), n.TokenKey)
		if err != nil {
			return err
		}
		if ok {
			if _, err := p.engine.tokens.Retire(ctx, batch, token); err != nil {
				return err
			}
			retired = true
		}
	}
	pi, err := batch.lockProcess(ctx, n.ProcessInstanceKey())
	if err != nil {
		return err
	}
	if pi.StateCategory.IsExiting() {
		return p.finalize(ctx, batch, pi)
	}
	if retired {
		return p.engine.checkCompletion(ctx, batch, pi)
	}
	return nil
}

// exitCalledProcesses aborts or cancels the process instances a call activity started, once the batch committed.
func (p *StateCategoryPropagator) exitCalledProcesses(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, category runtime.StateCategory) {
	if n.Kind != runtime.FlowNodeKindActivity {
		return
	}
	ctx = context.WithoutCancel(ctx)
	batch.AddPostFlushAction(func() {
		called, err := p.engine.persistence.FindProcessInstancesByCaller(ctx, n.Key)
		if err != nil {
			p.engine.logger.Error("failed to find called process instances", "caller", n.Key, "error", err)
			return
		}
		for _, pi := range called {
			if pi.State.IsTerminal() {
				continue
			}
			if _, err := p.engine.exitProcess(ctx, pi.Key, category); err != nil {
				p.engine.logger.Error("failed to exit called process instance", "processInstance", pi.Key, "caller", n.Key, "error", err)
			}
		}
	})
}

// finalize ends an exiting process instance once nothing but parked joins is left in it.
func (p *StateCategoryPropagator) finalize(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance) error {
	if pi.State.IsTerminal() || !pi.StateCategory.IsExiting() {
		return nil
	}
	if err := p.retireUnheldTokens(ctx, batch, pi.Key); err != nil {
		return err
	}
	set, err := batch.tokenSet(ctx, pi.Key)
	if err != nil {
		return err
	}
	if set.Count() > 0 {
		return nil
	}
	live, err := batch.flowNodes(ctx, pi.Key, func(n runtime.FlowNodeInstance) bool { return !n.Terminal })
	if err != nil {
		return err
	}
	for _, n := range live {
		if !isParkedGateway(*n) {
			return nil
		}
	}
	for _, gw := range live {
		gw.StateCategory = pi.StateCategory
		if err := p.engine.transitionNode(ctx, batch, gw, pi.StateCategory.ExitEvent()); err != nil {
			return err
		}
	}
	pi.State = runtime.ProcessInstanceAborted
	if pi.StateCategory == runtime.StateCategoryCancelling {
		pi.State = runtime.ProcessInstanceCancelled
	}
	pi.EndDate = batch.now
	batch.saveProcess(pi)
	p.engine.processEnded(ctx, batch, pi)
	return nil
}

// retireUnheldTokens retires the tokens of an exiting process instance that no live flow node
// holds. They are in flight, and their delivery would retire them, or their delivery failed.
func (p *StateCategoryPropagator) retireUnheldTokens(ctx context.Context, batch *EngineBatch, processInstanceKey int64) error {
	set, err := batch.tokenSet(ctx, processInstanceKey)
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(set.Live) {
		token := set.Live[key]
		if token.Holder != 0 {
			holder, err := batch.node(ctx, token.Holder)
			switch {
			case errors.Is(err, storage.ErrNotFound):
			case err != nil:
				return fmt.Errorf("failed to load holder %d of token %d: %w", token.Holder, token.Key, err)
			case !holder.Terminal:
				continue
			}
		}
		if _, err := p.engine.tokens.Retire(ctx, batch, token); err != nil {
			return err
		}
		p.engine.logger.Debug("unheld token retired", "token", token.Key, "holder", token.Holder, "processInstance", processInstanceKey)
	}
	return nil
}

// exitProcess switches the process instance to category and propagates it to its flow nodes.
func (engine *Engine) exitProcess(ctx context.Context, processInstanceKey int64, category runtime.StateCategory) (int, error) {
	batch := engine.newEngineBatch(runtime.WorkItem{Kind: exitKind(category), ProcessInstanceKey: processInstanceKey})
	pi, err := batch.lockProcess(ctx, processInstanceKey)
	if err != nil {
		batch.release()
		return 0, err
	}
	if pi.State.IsTerminal() {
		batch.release()
		return 0, newEngineErrorf("process instance %d already reached state %s", processInstanceKey, pi.State)
	}
	if effective := pi.StateCategory.Effective(category); effective != pi.StateCategory {
		pi.StateCategory = effective
		batch.saveProcess(pi)
	}
	if err := batch.Flush(ctx); err != nil {
		return 0, err
	}
	return engine.propagator.Propagate(ctx, processInstanceKey, pi.StateCategory)
}
