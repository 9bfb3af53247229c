package bpmn

import (
	"context"
	"errors"
	"maps"

	"github.com/pbinitiative/zenexec/pkg/bpmn/exporter"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/senseyeio/duration"
)

var elementIntents = map[runtime.TransitionEvent]exporter.Intent{
	runtime.EventInitialize: exporter.ElementCreated,
	runtime.EventRetry:      exporter.ElementReady,
	runtime.EventExecute:    exporter.ElementExecuting,
	runtime.EventComplete:   exporter.ElementCompleted,
	runtime.EventSkip:       exporter.ElementCompleted,
	runtime.EventFail:       exporter.ElementFailed,
	runtime.EventAbort:      exporter.ElementAborted,
	runtime.EventCancel:     exporter.ElementCancelled,
}

// transitionNode applies event to the node and stages it.
func (engine *Engine) transitionNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, event runtime.TransitionEvent) error {
	if err := n.Transition(event, batch.now); err != nil {
		return err
	}
	batch.saveNode(n)
	if intent, ok := elementIntents[event]; ok {
		engine.exportElementEvent(ctx, batch, n, intent)
	}
	return nil
}

// createFlowNode creates a READY instance of nodeDef. Iterations of loops and
// multi-instance activities pass their container.
func (engine *Engine) createFlowNode(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, def *runtime.ProcessDefinition, nodeDef *runtime.FlowNodeDefinition, container *runtime.FlowNodeInstance, kind runtime.FlowNodeKind, tokenKey int64) (*runtime.FlowNodeInstance, error) {
	n := runtime.FlowNodeInstance{
		Key:                  engine.generateKey(),
		Name:                 nodeDef.Name,
		Kind:                 kind,
		FlowNodeDefinitionId: nodeDef.Id,
		RootContainerKey:     pi.Key,
		ParentContainerKey:   pi.Key,
		State:                runtime.FlowNodeStateCreated,
		ReachedStateDate:     batch.now,
		DisplayName:          nodeDef.Name,
		DisplayDescription:   nodeDef.Description,
		TokenKey:             tokenKey,
		StateCategory:        runtime.StateCategoryNormal,
	}
	if tokenKey != 0 {
		n.TokenCount = 1
	}
	root := pi.RootProcessInstanceKey
	if root == 0 {
		root = pi.Key
	}
	n.LogicalGroups[runtime.LogicalGroupProcessDefinition] = def.Key
	n.LogicalGroups[runtime.LogicalGroupRootProcessInstance] = root
	n.LogicalGroups[runtime.LogicalGroupParentProcessInstance] = pi.Key
	if container != nil {
		n.ParentContainerKey = container.Key
		n.LogicalGroups[runtime.LogicalGroupParentActivity] = container.Key
	}

	if kind.IsActivity() {
		n.Activity = &runtime.ActivityPayload{}
	}
	switch kind {
	case runtime.FlowNodeKindGateway:
		n.Gateway = &runtime.GatewayPayload{GatewayType: nodeDef.GatewayType, HitBys: runtime.NewHitBys()}
	case runtime.FlowNodeKindEvent:
		n.Event = &runtime.EventPayload{EventType: nodeDef.EventType}
	case runtime.FlowNodeKindLoopActivity:
		n.Loop = &runtime.LoopPayload{LoopMax: -1}
		if nodeDef.Loop != nil {
			n.Loop.LoopMax = nodeDef.Loop.LoopMax
			n.Loop.LoopCondition = nodeDef.Loop.LoopCondition
			n.Loop.TestBefore = nodeDef.Loop.TestBefore
		}
	case runtime.FlowNodeKindMultiInstanceActivity:
		n.MultiInstance = &runtime.MultiInstancePayload{}
		if nodeDef.MultiInstance != nil {
			n.MultiInstance.Sequential = nodeDef.MultiInstance.Sequential
			n.MultiInstance.LoopDataInputRef = nodeDef.MultiInstance.LoopDataInputRef
		}
	case runtime.FlowNodeKindHumanTask:
		n.HumanTask = &runtime.HumanTaskPayload{}
		if nodeDef.HumanTask != nil {
			n.HumanTask.ActorKey = nodeDef.HumanTask.ActorKey
			n.HumanTask.Priority = nodeDef.HumanTask.Priority
			if nodeDef.HumanTask.ExpectedDuration != "" {
				d, err := duration.ParseISO8601(nodeDef.HumanTask.ExpectedDuration)
				if err != nil {
					return nil, errors.Join(newEngineErrorf("invalid expected duration of human task %s", nodeDef.Id), err)
				}
				n.HumanTask.ExpectedEndDate = d.Shift(batch.now)
			}
		}
	}

	if err := engine.transitionNode(ctx, batch, &n, runtime.EventInitialize); err != nil {
		return nil, err
	}
	return &n, nil
}

// advanceExecuteFlowNode delivers a token to the flow node named by the work item.
// The token must still be held by the node that sent it, otherwise the item was
// already applied and is dropped.
func (engine *Engine) advanceExecuteFlowNode(ctx context.Context, batch *EngineBatch) (runtime.FlowNodeState, error) {
	item := batch.item
	pi, err := batch.lockProcess(ctx, item.ProcessInstanceKey)
	if err != nil {
		return runtime.FlowNodeStateCreated, err
	}
	token, ok, err := engine.tokens.Token(ctx, batch, pi.Key, item.TokenKey)
	if err != nil {
		return runtime.FlowNodeStateCreated, err
	}
	if !ok || token.Holder != item.SourceKey {
		engine.logger.Debug("duplicate token delivery dropped", "item", item.Id, "token", item.TokenKey, "processInstance", pi.Key)
		return runtime.FlowNodeStateCreated, nil
	}
	if pi.StateCategory.IsExiting() {
		if _, err := engine.tokens.Retire(ctx, batch, token); err != nil {
			return runtime.FlowNodeStateCreated, err
		}
		return runtime.FlowNodeStateCreated, engine.propagator.finalize(ctx, batch, pi)
	}

	def, err := batch.definition(ctx, pi.ProcessDefinitionKey)
	if err != nil {
		return runtime.FlowNodeStateCreated, err
	}
	nodeDef, ok := def.FlowNode(item.FlowNodeDefinitionId)
	if !ok {
		return runtime.FlowNodeStateCreated, newEngineErrorf("process %s has no flow node %s", def.Id, item.FlowNodeDefinitionId)
	}
	if item.TransitionId != "" {
		engine.exportSequenceFlowEvent(ctx, batch, pi, item.TransitionId)
	}

	if nodeDef.Kind == runtime.FlowNodeKindGateway {
		gw, err := engine.gateways.Arrive(ctx, batch, def, nodeDef, token, item.TransitionId)
		if errors.Is(err, ErrUnreachableGatewayState) {
			engine.logger.Debug("inclusive gateway parked", "gateway", nodeDef.Id, "processInstance", pi.Key, "reason", err)
			err = nil
		}
		if gw == nil {
			return runtime.FlowNodeStateCreated, err
		}
		return gw.State, err
	}

	n, err := engine.createFlowNode(ctx, batch, pi, def, nodeDef, nil, nodeDef.Kind, token.Key)
	if err != nil {
		return runtime.FlowNodeStateCreated, err
	}
	if _, err := engine.tokens.Move(ctx, batch, token, n.Key); err != nil {
		return n.State, err
	}
	err = engine.enterFlowNode(ctx, batch, n)
	return n.State, err
}

// enterFlowNode runs the ON_ENTER connectors of a READY node, then executes it.
func (engine *Engine) enterFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	_, nodeDef, err := batch.flowNodeDefinition(ctx, n)
	if err != nil {
		return err
	}
	started, err := engine.connectors.startGroup(ctx, batch, n, nodeDef, runtime.ActivationOnEnter)
	if err != nil || started {
		return err
	}
	return engine.executeFlowNode(ctx, batch, n)
}

func (engine *Engine) executeFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	def, nodeDef, err := batch.flowNodeDefinition(ctx, n)
	if err != nil {
		return err
	}
	if err := engine.transitionNode(ctx, batch, n, runtime.EventExecute); err != nil {
		return err
	}
	switch n.Kind {
	case runtime.FlowNodeKindEvent:
		if n.Event.EventType == runtime.EventTypeIntermediateCatch {
			// woken by an external CompleteFlowNode item
			return nil
		}
		return engine.completeFlowNode(ctx, batch, n, nil)
	case runtime.FlowNodeKindLoopActivity:
		return engine.loops.Start(ctx, batch, n, nodeDef)
	case runtime.FlowNodeKindMultiInstanceActivity:
		return engine.multiInstances.Start(ctx, batch, n, nodeDef)
	case runtime.FlowNodeKindHumanTask:
		return nil
	case runtime.FlowNodeKindActivity:
		if nodeDef.CalledElement != "" {
			return engine.startCalledProcess(ctx, batch, n, nodeDef)
		}
		if handler := engine.findTaskHandler(nodeDef); handler != nil {
			return engine.runTaskHandler(ctx, batch, n, def, nodeDef, handler)
		}
		return nil
	}
	return newEngineErrorf("flow node %s of kind %s cannot be executed", n.FlowNodeDefinitionId, n.Kind)
}

// completeFlowNode merges the result variables, runs the ON_FINISH connectors and finishes the node.
func (engine *Engine) completeFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, variables map[string]any) error {
	if len(variables) > 0 {
		pi, err := batch.lockProcess(ctx, n.ProcessInstanceKey())
		if err != nil {
			return err
		}
		pi.SetVariables(variables)
		batch.saveProcess(pi)
	}
	n.EndExecuting()
	batch.saveNode(n)
	_, nodeDef, err := batch.flowNodeDefinition(ctx, n)
	if err != nil {
		return err
	}
	started, err := engine.connectors.startGroup(ctx, batch, n, nodeDef, runtime.ActivationOnFinish)
	if err != nil || started {
		return err
	}
	return engine.finishFlowNode(ctx, batch, n)
}

func (engine *Engine) finishFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	n.EndExecuting()
	if err := engine.transitionNode(ctx, batch, n, runtime.EventComplete); err != nil {
		return err
	}
	return engine.afterCompletion(ctx, batch, n)
}

// afterCompletion hands the control flow on once the node reached COMPLETED.
func (engine *Engine) afterCompletion(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	if n.Kind == runtime.FlowNodeKindHumanTask {
		batch.deleteHiddenTasksForActivity(n.Key)
	}
	if n.IsChild() {
		return engine.notifyParent(ctx, batch, n)
	}
	return engine.leaveFlowNode(ctx, batch, n)
}

// notifyParent retires the token of an iteration, if it had one, and tells its container.
func (engine *Engine) notifyParent(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	if n.TokenKey != 0 {
		token, ok, err := engine.tokens.Token(ctx, batch, n.ProcessInstanceKey(), n.TokenKey)
		if err != nil {
			return err
		}
		if ok {
			if _, err := engine.tokens.Retire(ctx, batch, token); err != nil {
				return err
			}
		}
	}
	item := batch.newItem(runtime.WorkChildFinished, n.ProcessInstanceKey())
	item.FlowNodeInstanceKey = n.ParentContainerKey
	item.SourceKey = n.Key
	batch.emit(item)
	return nil
}

// leaveFlowNode moves the node's token along the selected outgoing transitions.
// One transition passes the token on, several retire it and spawn one per branch,
// none retires it and checks whether the process instance is done.
func (engine *Engine) leaveFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	def, nodeDef, err := batch.flowNodeDefinition(ctx, n)
	if err != nil {
		return err
	}
	pi, err := batch.lockProcess(ctx, n.ProcessInstanceKey())
	if err != nil {
		return err
	}
	selected, err := engine.selectOutgoing(ctx, def, nodeDef, pi.Variables)
	if err != nil {
		return err
	}
	token, ok, err := engine.tokens.Token(ctx, batch, pi.Key, n.TokenKey)
	if err != nil {
		return err
	}
	if !ok {
		return newEngineErrorf("flow node instance %d (%s) does not hold a live token", n.Key, n.FlowNodeDefinitionId)
	}

	switch len(selected) {
	case 0:
		if _, err := engine.tokens.Retire(ctx, batch, token); err != nil {
			return err
		}
		return engine.checkCompletion(ctx, batch, pi)
	case 1:
		batch.emit(newExecuteItem(batch, n, selected[0], token.Key))
		return nil
	}
	if _, err := engine.tokens.Retire(ctx, batch, token); err != nil {
		return err
	}
	for _, transition := range selected {
		branch, err := engine.tokens.Spawn(ctx, batch, pi.Key, token)
		if err != nil {
			return err
		}
		batch.emit(newExecuteItem(batch, n, transition, branch.Key))
	}
	return nil
}

func newExecuteItem(batch *EngineBatch, source *runtime.FlowNodeInstance, transition *runtime.TransitionDefinition, tokenKey int64) runtime.WorkItem {
	item := batch.newItem(runtime.WorkExecuteFlowNode, source.ProcessInstanceKey())
	item.FlowNodeDefinitionId = transition.TargetRef
	item.TransitionId = transition.Id
	item.TokenKey = tokenKey
	item.SourceKey = source.Key
	item.ParentContainerKey = source.ParentContainerKey
	return item
}

// checkCompletion completes the process instance once no token is left and no flow node
// still waits. Joins that can never fire any more are aborted on the way.
func (engine *Engine) checkCompletion(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance) error {
	if pi.StateCategory.IsExiting() {
		return engine.propagator.finalize(ctx, batch, pi)
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
	parked := make([]*runtime.FlowNodeInstance, 0, len(live))
	for _, n := range live {
		if !isParkedGateway(*n) {
			return nil
		}
		parked = append(parked, n)
	}
	woken := false
	for _, gw := range parked {
		satisfied, err := engine.gateways.satisfied(ctx, batch, gw)
		if err != nil && !errors.Is(err, ErrUnreachableGatewayState) {
			return err
		}
		if satisfied {
			item := batch.newItem(runtime.WorkReevaluateGateway, pi.Key)
			item.FlowNodeInstanceKey = gw.Key
			item.FlowNodeDefinitionId = gw.FlowNodeDefinitionId
			batch.emit(item)
			woken = true
		}
	}
	if woken {
		return nil
	}
	for _, gw := range parked {
		engine.logger.Warn("join can never fire, aborting it", "gateway", gw.FlowNodeDefinitionId, "instance", gw.Key, "processInstance", pi.Key)
		if err := engine.transitionNode(ctx, batch, gw, runtime.EventAbort); err != nil {
			return err
		}
	}
	return engine.completeProcess(ctx, batch, pi)
}

func (engine *Engine) completeProcess(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance) error {
	pi.State = runtime.ProcessInstanceCompleted
	pi.EndDate = batch.now
	batch.saveProcess(pi)
	if pi.CallerKey != 0 && pi.CallerType == runtime.CallerTypeCallActivity {
		item := batch.newItem(runtime.WorkCompleteFlowNode, pi.ContainerKey)
		item.FlowNodeInstanceKey = pi.CallerKey
		item.Variables = maps.Clone(pi.Variables)
		batch.emit(item)
	}
	engine.processEnded(ctx, batch, pi)
	return nil
}

// advanceCompleteFlowNode applies an external completion, a node can only be completed while it waits in EXECUTING.
func (engine *Engine) advanceCompleteFlowNode(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	waiting := n.State == runtime.FlowNodeStateExecuting && !n.StateExecuting
	switch n.Kind {
	case runtime.FlowNodeKindGateway, runtime.FlowNodeKindLoopActivity, runtime.FlowNodeKindMultiInstanceActivity:
		waiting = false
	}
	if !waiting {
		return &runtime.IllegalTransitionError{
			FlowNodeInstanceKey: n.Key,
			From:                n.State,
			Event:               runtime.EventComplete,
			Category:            n.StateCategory,
		}
	}
	if executedBy := batch.item.ExecutedBy; executedBy != 0 {
		n.ExecutedBy = executedBy
		if n.HumanTask != nil && n.HumanTask.AssigneeKey != 0 && n.HumanTask.AssigneeKey != executedBy {
			n.ExecutedBy = n.HumanTask.AssigneeKey
			n.ExecutedBySubstitute = executedBy
		}
	}
	return engine.completeFlowNode(ctx, batch, n, batch.item.Variables)
}

func (engine *Engine) advanceChildFinished(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	switch n.Kind {
	case runtime.FlowNodeKindLoopActivity:
		return engine.loops.ChildFinished(ctx, batch, n, batch.item.SourceKey)
	case runtime.FlowNodeKindMultiInstanceActivity:
		return engine.multiInstances.ChildFinished(ctx, batch, n, batch.item.SourceKey)
	}
	return newEngineErrorf("flow node instance %d of kind %s has no children", n.Key, n.Kind)
}
