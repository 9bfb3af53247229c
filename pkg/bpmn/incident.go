package bpmn

import (
	"context"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// raiseIncident stages a new incident in the batch.
func (engine *Engine) raiseIncident(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, incident runtime.Incident) runtime.Incident {
	incident.Key = engine.generateKey()
	incident.CreatedAt = batch.now
	batch.saveIncident(incident)
	engine.exportIncidentEvent(ctx, batch, pi, incident)
	engine.logger.Warn("incident raised", "incident", incident.Key, "kind", incident.Kind, "processInstance", incident.ProcessInstanceKey, "flowNode", incident.FlowNodeInstanceKey, "message", incident.Message)
	return incident
}

// recordIncident stores an incident for a work item that failed in a way retrying cannot fix.
// The item is kept on the incident so that resolving it with a retry can enqueue it again.
// A failed token delivery is bound to its target node, created in FAILED and holding the token.
func (engine *Engine) recordIncident(ctx context.Context, item runtime.WorkItem, cause error) (runtime.Incident, error) {
	failed := item
	incident := runtime.Incident{
		Kind:                incidentKindOf(cause),
		ProcessInstanceKey:  item.ProcessInstanceKey,
		FlowNodeInstanceKey: item.FlowNodeInstanceKey,
		Message:             cause.Error(),
		WorkItem:            &failed,
	}
	if item.Kind == runtime.WorkExecuteFlowNode {
		bound, ok, err := engine.recordFailedDelivery(ctx, item, incident)
		if err != nil {
			engine.logger.Warn("failed to bind incident to its flow node", "item", item.Id, "flowNode", item.FlowNodeDefinitionId, "error", err)
		}
		if ok {
			return bound, nil
		}
	}

	batch := engine.newEngineBatch(item)
	pi, err := batch.process(ctx, item.ProcessInstanceKey)
	if err != nil {
		return runtime.Incident{}, err
	}
	if item.FlowNodeInstanceKey != 0 {
		if n, err := batch.node(ctx, item.FlowNodeInstanceKey); err == nil && n.State == runtime.FlowNodeStateFailed {
			incident.NodeFailed = true
		}
	}
	incident = engine.raiseIncident(ctx, batch, pi, incident)
	if err := batch.Flush(ctx); err != nil {
		return runtime.Incident{}, err
	}
	return incident, nil
}

// recordFailedDelivery creates the flow node a failed token delivery was headed for in FAILED
// and moves the token into it. Deliveries to gateways and deliveries whose token moved on are
// not bound, ok is false then.
func (engine *Engine) recordFailedDelivery(ctx context.Context, item runtime.WorkItem, incident runtime.Incident) (res runtime.Incident, ok bool, err error) {
	batch := engine.newEngineBatch(item)
	defer func() {
		if !ok {
			batch.release()
		}
	}()
	pi, err := batch.lockProcess(ctx, item.ProcessInstanceKey)
	if err != nil {
		return incident, false, err
	}
	if pi.State.IsTerminal() || pi.StateCategory.IsExiting() {
		return incident, false, nil
	}
	token, live, err := engine.tokens.Token(ctx, batch, pi.Key, item.TokenKey)
	if err != nil || !live || token.Holder != item.SourceKey {
		return incident, false, err
	}
	def, err := batch.definition(ctx, pi.ProcessDefinitionKey)
	if err != nil {
		return incident, false, err
	}
	nodeDef, found := def.FlowNode(item.FlowNodeDefinitionId)
	if !found || nodeDef.Kind == runtime.FlowNodeKindGateway {
		return incident, false, nil
	}
	n, err := engine.createFlowNode(ctx, batch, pi, def, nodeDef, nil, nodeDef.Kind, token.Key)
	if err != nil {
		return incident, false, err
	}
	if _, err := engine.tokens.Move(ctx, batch, token, n.Key); err != nil {
		return incident, false, err
	}
	if err := engine.transitionNode(ctx, batch, n, runtime.EventFail); err != nil {
		return incident, false, err
	}
	incident.FlowNodeInstanceKey = n.Key
	incident.NodeFailed = true
	incident = engine.raiseIncident(ctx, batch, pi, incident)
	if err := batch.Flush(ctx); err != nil {
		return incident, false, err
	}
	return incident, true, nil
}

// dropDelivery retires the token of a token delivery that is given up, if it is still in flight,
// and lets the process instance complete without it.
func (engine *Engine) dropDelivery(ctx context.Context, batch *EngineBatch, item *runtime.WorkItem) error {
	if item == nil || item.Kind != runtime.WorkExecuteFlowNode {
		return nil
	}
	pi, err := batch.lockProcess(ctx, item.ProcessInstanceKey)
	if err != nil {
		return err
	}
	token, live, err := engine.tokens.Token(ctx, batch, pi.Key, item.TokenKey)
	if err != nil || !live || token.Holder != item.SourceKey {
		return err
	}
	if _, err := engine.tokens.Retire(ctx, batch, token); err != nil {
		return err
	}
	return engine.checkCompletion(ctx, batch, pi)
}

// retryFlowNode moves a FAILED node back to READY. A failed connector is re-run,
// otherwise the node is entered again.
func (engine *Engine) retryFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	failed, err := engine.connectors.failedConnector(ctx, batch, n)
	if err != nil {
		return err
	}
	if failed != nil {
		failed.State = runtime.ConnectorToReExecute
		failed.Attempts = 0
		failed.LastError = ""
		batch.saveConnector(failed)
		return engine.resumeFailedNode(ctx, batch, n, failed.ActivationEvent)
	}
	if err := engine.transitionNode(ctx, batch, n, runtime.EventRetry); err != nil {
		return err
	}
	return engine.enterFlowNode(ctx, batch, n)
}

// skipFlowNode skips the failed connector of a node and lets its group go on. A node
// that failed on its own is completed as it is.
func (engine *Engine) skipFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	failed, err := engine.connectors.failedConnector(ctx, batch, n)
	if err != nil {
		return err
	}
	if failed != nil {
		failed.State = runtime.ConnectorSkipped
		batch.saveConnector(failed)
		return engine.resumeFailedNode(ctx, batch, n, failed.ActivationEvent)
	}
	n.EndExecuting()
	if err := engine.transitionNode(ctx, batch, n, runtime.EventSkip); err != nil {
		return err
	}
	return engine.afterCompletion(ctx, batch, n)
}

// resumeFailedNode brings a node blocked by a connector group back to where the group runs.
func (engine *Engine) resumeFailedNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, activationEvent runtime.ActivationEvent) error {
	if err := engine.transitionNode(ctx, batch, n, runtime.EventRetry); err != nil {
		return err
	}
	if activationEvent == runtime.ActivationOnEnter {
		return engine.enterFlowNode(ctx, batch, n)
	}
	if err := engine.transitionNode(ctx, batch, n, runtime.EventExecute); err != nil {
		return err
	}
	n.BeginExecuting()
	batch.saveNode(n)
	batch.emit(engine.connectors.nextItem(batch, n, runtime.ActivationOnFinish))
	return nil
}
