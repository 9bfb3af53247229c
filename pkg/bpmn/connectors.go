package bpmn

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/pbinitiative/zenexec/pkg/bpmn/exporter"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"github.com/pbinitiative/zenexec/pkg/script"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ConnectorRequest is what a connector body gets to work with.
type ConnectorRequest struct {
	ConnectorInstanceKey int64
	ConnectorId          string
	Version              string
	Name                 string
	ProcessInstanceKey   int64
	FlowNodeInstanceKey  int64
	ActivationEvent      runtime.ActivationEvent
	Attempt              int
	Inputs               map[string]any
}

// ConnectorExecutor runs the body of a connector against an external system.
// It is called without any engine lock held and may block.
type ConnectorExecutor interface {
	Execute(ctx context.Context, request ConnectorRequest) (map[string]any, error)
}

// ConnectorFunc adapts a function to ConnectorExecutor.
type ConnectorFunc func(ctx context.Context, request ConnectorRequest) (map[string]any, error)

func (f ConnectorFunc) Execute(ctx context.Context, request ConnectorRequest) (map[string]any, error) {
	return f(ctx, request)
}

var _ ConnectorExecutor = ConnectorFunc(nil)

// RegisterConnector binds the executor to a connector id, replacing an earlier registration.
func (engine *Engine) RegisterConnector(connectorId string, executor ConnectorExecutor) {
	engine.connectorsMu.Lock()
	defer engine.connectorsMu.Unlock()
	engine.connectorExecutors[connectorId] = executor
}

func (engine *Engine) connectorExecutor(connectorId string) (ConnectorExecutor, bool) {
	engine.connectorsMu.RLock()
	defer engine.connectorsMu.RUnlock()
	executor, ok := engine.connectorExecutors[connectorId]
	return executor, ok
}

// ConnectorScheduler runs the connectors of a flow node group by group. A group is
// identified by (container, container type, activation event) and runs strictly by
// ascending execution order, one connector per work item. A FAILED connector blocks
// the rest of its group until it is retried or skipped.
type ConnectorScheduler struct {
	engine *Engine
}

type groupStatus int

const (
	groupDone groupStatus = iota
	groupRunnable
	groupRunning
	groupBlocked
)

// nextInGroup finds the connector deciding the status of a group sorted by execution order.
func nextInGroup(group []*runtime.ConnectorInstance) (*runtime.ConnectorInstance, groupStatus) {
	for _, c := range group {
		switch {
		case c.State.IsFinished():
			continue
		case c.State.IsExecutable():
			return c, groupRunnable
		case c.State == runtime.ConnectorExecuting:
			return c, groupRunning
		default:
			return c, groupBlocked
		}
	}
	return nil, groupDone
}

// NextExecutable returns the committed connector of the group that runs next. There is none
// when the group is finished, a connector is executing, or a FAILED connector blocks it.
func (s *ConnectorScheduler) NextExecutable(ctx context.Context, containerKey int64, containerType runtime.ContainerType, activationEvent runtime.ActivationEvent) (runtime.ConnectorInstance, bool, error) {
	stored, err := s.engine.persistence.FindConnectorInstances(ctx, containerKey, containerType, activationEvent)
	if err != nil {
		return runtime.ConnectorInstance{}, false, err
	}
	runtime.SortByExecutionOrder(stored)
	group := make([]*runtime.ConnectorInstance, 0, len(stored))
	for i := range stored {
		group = append(group, &stored[i])
	}
	c, status := nextInGroup(group)
	if status != groupRunnable {
		return runtime.ConnectorInstance{}, false, nil
	}
	return *c, true, nil
}

func connectorDefinitions(nodeDef *runtime.FlowNodeDefinition, activationEvent runtime.ActivationEvent) []runtime.ConnectorDefinition {
	var res []runtime.ConnectorDefinition
	for _, c := range nodeDef.Connectors {
		if c.ActivationEvent == activationEvent {
			res = append(res, c)
		}
	}
	return res
}

func connectorDefinition(nodeDef *runtime.FlowNodeDefinition, c *runtime.ConnectorInstance) (runtime.ConnectorDefinition, bool) {
	for _, d := range nodeDef.Connectors {
		if d.ActivationEvent == c.ActivationEvent && d.ExecutionOrder == c.ExecutionOrder && d.ConnectorId == c.ConnectorId {
			return d, true
		}
	}
	return runtime.ConnectorDefinition{}, false
}

// startGroup creates the connector instances of a group on first use and schedules its first
// connector. It reports false when the group has nothing to run and the node may go on.
func (s *ConnectorScheduler) startGroup(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, nodeDef *runtime.FlowNodeDefinition, activationEvent runtime.ActivationEvent) (bool, error) {
	switch n.Kind {
	case runtime.FlowNodeKindLoopActivity, runtime.FlowNodeKindMultiInstanceActivity:
		// connectors run once per iteration, on the children
		return false, nil
	}
	defs := connectorDefinitions(nodeDef, activationEvent)
	if len(defs) == 0 {
		return false, nil
	}
	group, err := batch.connectorGroup(ctx, n.Key, runtime.ContainerTypeFlowNode, activationEvent)
	if err != nil {
		return false, err
	}
	if len(group) == 0 {
		for _, d := range defs {
			c := &runtime.ConnectorInstance{
				Key:             s.engine.generateKey(),
				ContainerKey:    n.Key,
				ContainerType:   runtime.ContainerTypeFlowNode,
				ConnectorId:     d.ConnectorId,
				Version:         d.Version,
				Name:            d.Name,
				ActivationEvent: activationEvent,
				State:           runtime.ConnectorToBeExecuted,
				ExecutionOrder:  d.ExecutionOrder,
			}
			batch.saveConnector(c)
			group = append(group, c)
		}
	}
	_, status := nextInGroup(group)
	switch status {
	case groupDone:
		return false, nil
	case groupBlocked:
		return true, newEngineErrorf("connectors %s of flow node instance %d are blocked by a failed connector", activationEvent, n.Key)
	}
	n.BeginExecuting()
	batch.saveNode(n)
	batch.emit(s.nextItem(batch, n, activationEvent))
	return true, nil
}

func (s *ConnectorScheduler) nextItem(batch *EngineBatch, n *runtime.FlowNodeInstance, activationEvent runtime.ActivationEvent) runtime.WorkItem {
	item := batch.newItem(runtime.WorkExecuteConnectors, n.ProcessInstanceKey())
	item.FlowNodeInstanceKey = n.Key
	item.FlowNodeDefinitionId = n.FlowNodeDefinitionId
	item.ActivationEvent = activationEvent
	return item
}

type connectorClaim struct {
	connector runtime.ConnectorInstance
	inputs    map[string]any
}

// advance runs one connector of a group. The connector is claimed under the node lock,
// its body runs with no lock held and the result is recorded under the node lock again.
func (s *ConnectorScheduler) advance(ctx context.Context, item runtime.WorkItem) (runtime.FlowNodeState, []runtime.WorkItem, error) {
	batch := s.engine.newEngineBatch(item)
	claim, state, err := s.claim(ctx, batch)
	if err != nil {
		batch.release()
		return state, nil, err
	}
	if err := batch.Flush(ctx); err != nil {
		return state, nil, err
	}
	if claim == nil {
		return state, batch.emitted, nil
	}
	emitted := batch.emitted

	outputs, execErr := s.execute(ctx, item, claim)

	batch = s.engine.newEngineBatch(item)
	state, connectorErr, err := s.record(ctx, batch, claim, outputs, execErr)
	if err != nil {
		batch.release()
		return state, emitted, err
	}
	if err := batch.Flush(ctx); err != nil {
		return state, emitted, err
	}
	emitted = append(emitted, batch.emitted...)
	if connectorErr != nil {
		return state, emitted, connectorErr
	}
	return state, emitted, nil
}

func (s *ConnectorScheduler) claim(ctx context.Context, batch *EngineBatch) (*connectorClaim, runtime.FlowNodeState, error) {
	item := batch.item
	if err := batch.lockNode(ctx, item.FlowNodeInstanceKey); err != nil {
		return nil, runtime.FlowNodeStateCreated, err
	}
	pi, err := batch.process(ctx, item.ProcessInstanceKey)
	if err != nil {
		return nil, runtime.FlowNodeStateCreated, errors.Join(newEngineErrorf("failed to find process instance with key: %d", item.ProcessInstanceKey), err)
	}
	if pi.State.IsTerminal() {
		return nil, runtime.FlowNodeStateCreated, nil
	}
	n, err := batch.node(ctx, item.FlowNodeInstanceKey)
	if err != nil {
		return nil, runtime.FlowNodeStateCreated, errors.Join(newEngineErrorf("failed to find flow node instance with key: %d", item.FlowNodeInstanceKey), err)
	}
	if n.Terminal {
		return nil, n.State, nil
	}
	if category := n.StateCategory.Effective(pi.StateCategory); category.IsExiting() {
		return nil, n.State, s.engine.propagator.exitFlowNode(ctx, batch, n, category)
	}

	group, err := batch.connectorGroup(ctx, n.Key, runtime.ContainerTypeFlowNode, item.ActivationEvent)
	if err != nil {
		return nil, n.State, err
	}
	c, status := nextInGroup(group)
	switch status {
	case groupDone:
		return nil, n.State, s.resume(ctx, batch, n, item.ActivationEvent)
	case groupBlocked:
		s.engine.logger.Debug("connector group blocked", "flowNode", n.Key, "connector", c.Key, "state", c.State)
		return nil, n.State, nil
	case groupRunning:
		if c.ClaimedBy != item.Id {
			s.engine.logger.Debug("connector already claimed", "connector", c.Key, "claimedBy", c.ClaimedBy, "item", item.Id)
			return nil, n.State, nil
		}
		// redelivery after the claim was committed, the body runs again
	case groupRunnable:
		c.State = runtime.ConnectorExecuting
		c.ClaimedBy = item.Id
		c.Attempts++
		batch.saveConnector(c)
	}

	_, nodeDef, err := batch.flowNodeDefinition(ctx, n)
	if err != nil {
		return nil, n.State, err
	}
	d, _ := connectorDefinition(nodeDef, c)
	inputs := make(map[string]any, len(d.Inputs))
	for name, expression := range d.Inputs {
		v, err := s.engine.evaluateExpression(ctx, expression, pi.Variables)
		if err != nil {
			return nil, n.State, &ExpressionEvaluationError{
				Msg: fmt.Sprintf("Error evaluating input %s of connector %s", name, c.ConnectorId),
				Err: err,
			}
		}
		inputs[name] = v
	}
	return &connectorClaim{connector: *c, inputs: inputs}, n.State, nil
}

// resume lets the node continue once its group finished.
func (s *ConnectorScheduler) resume(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, activationEvent runtime.ActivationEvent) error {
	if !n.StateExecuting {
		return nil
	}
	if activationEvent == runtime.ActivationOnEnter {
		if n.State != runtime.FlowNodeStateReady {
			return nil
		}
		n.EndExecuting()
		batch.saveNode(n)
		return s.engine.executeFlowNode(ctx, batch, n)
	}
	return s.engine.finishFlowNode(ctx, batch, n)
}

func (s *ConnectorScheduler) execute(ctx context.Context, item runtime.WorkItem, claim *connectorClaim) (outputs map[string]any, err error) {
	c := claim.connector
	ctx, span := s.engine.tracer.Start(ctx, fmt.Sprintf("connector:%s", c.ConnectorId), trace.WithAttributes(
		attribute.Int64(otelPkg.AttributeConnectorInstanceKey, c.Key),
		attribute.Int64(otelPkg.AttributeFlowNodeInstanceKey, item.FlowNodeInstanceKey),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("connector %s panicked: %v", c.ConnectorId, r)
		}
		attrs := metric.WithAttributes(attribute.String("connector", c.ConnectorId))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.engine.metrics.ConnectorsFailed.Add(ctx, 1, attrs)
		} else {
			s.engine.metrics.ConnectorsExecuted.Add(ctx, 1, attrs)
		}
		span.End()
	}()

	executor, ok := s.engine.connectorExecutor(c.ConnectorId)
	if !ok {
		return nil, fmt.Errorf("no executor registered for connector %s", c.ConnectorId)
	}
	return executor.Execute(ctx, ConnectorRequest{
		ConnectorInstanceKey: c.Key,
		ConnectorId:          c.ConnectorId,
		Version:              c.Version,
		Name:                 c.Name,
		ProcessInstanceKey:   item.ProcessInstanceKey,
		FlowNodeInstanceKey:  item.FlowNodeInstanceKey,
		ActivationEvent:      c.ActivationEvent,
		Attempt:              c.Attempts,
		Inputs:               claim.inputs,
	})
}

// record stores the outcome of a connector body. A result arriving for a connector that
// is no longer claimed by this work item is dropped. The returned connector error tells
// the caller whether the work item should come back.
func (s *ConnectorScheduler) record(ctx context.Context, batch *EngineBatch, claim *connectorClaim, outputs map[string]any, execErr error) (runtime.FlowNodeState, *ConnectorExecutionError, error) {
	item := batch.item
	if err := batch.lockNode(ctx, item.FlowNodeInstanceKey); err != nil {
		return runtime.FlowNodeStateCreated, nil, err
	}
	n, err := batch.node(ctx, item.FlowNodeInstanceKey)
	if err != nil {
		return runtime.FlowNodeStateCreated, nil, err
	}
	group, err := batch.connectorGroup(ctx, n.Key, runtime.ContainerTypeFlowNode, item.ActivationEvent)
	if err != nil {
		return n.State, nil, err
	}
	var c *runtime.ConnectorInstance
	for _, candidate := range group {
		if candidate.Key == claim.connector.Key {
			c = candidate
		}
	}
	if c == nil || c.State != runtime.ConnectorExecuting || c.ClaimedBy != item.Id {
		s.engine.logger.Debug("stale connector result dropped", "connector", claim.connector.Key, "item", item.Id)
		return n.State, nil, nil
	}
	pi, err := batch.process(ctx, item.ProcessInstanceKey)
	if err != nil {
		return n.State, nil, err
	}
	c.ClaimedBy = ""

	if category := n.StateCategory.Effective(pi.StateCategory); category.IsExiting() || n.Terminal {
		if execErr == nil {
			c.State = runtime.ConnectorDone
		}
		batch.saveConnector(c)
		if n.Terminal {
			return n.State, nil, nil
		}
		return n.State, nil, s.engine.propagator.exitFlowNode(ctx, batch, n, category)
	}

	if execErr == nil {
		c.State = runtime.ConnectorDone
		c.LastError = ""
		batch.saveConnector(c)
		if err := s.applyOutputs(ctx, batch, n, c, outputs); err != nil {
			return n.State, nil, err
		}
		s.engine.exportConnectorEvent(ctx, batch, pi, c, exporter.ConnectorExecuted)
		batch.emit(s.nextItem(batch, n, item.ActivationEvent))
		return n.State, nil, nil
	}

	c.LastError = execErr.Error()
	connectorErr := &ConnectorExecutionError{
		ConnectorInstanceKey: c.Key,
		ConnectorId:          c.ConnectorId,
		Attempts:             c.Attempts,
		Retryable:            true,
		Err:                  execErr,
	}
	if c.Attempts < s.engine.maxAttempts {
		c.State = runtime.ConnectorToReExecute
		batch.saveConnector(c)
		return n.State, connectorErr, nil
	}

	connectorErr.Retryable = false
	c.State = runtime.ConnectorFailed
	batch.saveConnector(c)
	s.engine.exportConnectorEvent(ctx, batch, pi, c, exporter.ConnectorFailed)
	n.EndExecuting()
	if err := s.engine.transitionNode(ctx, batch, n, runtime.EventFail); err != nil {
		return n.State, nil, err
	}
	s.engine.raiseIncident(ctx, batch, pi, runtime.Incident{
		Kind:                 runtime.IncidentConnectorFailure,
		ProcessInstanceKey:   pi.Key,
		FlowNodeInstanceKey:  n.Key,
		ConnectorInstanceKey: c.Key,
		Message:              connectorErr.Error(),
		NodeFailed:           true,
	})
	return n.State, connectorErr, nil
}

// applyOutputs maps the connector result into process variables. An output whose
// mapping is a literal copies that result key, an expression sees the result on top of the
// process variables. Without mappings the whole result is merged.
func (s *ConnectorScheduler) applyOutputs(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, c *runtime.ConnectorInstance, outputs map[string]any) error {
	_, nodeDef, err := batch.flowNodeDefinition(ctx, n)
	if err != nil {
		return err
	}
	d, _ := connectorDefinition(nodeDef, c)
	if len(outputs) == 0 && len(d.Outputs) == 0 {
		return nil
	}
	pi, err := batch.lockProcess(ctx, n.ProcessInstanceKey())
	if err != nil {
		return err
	}
	variables := map[string]any{}
	if len(d.Outputs) == 0 {
		maps.Copy(variables, outputs)
	}
	for name, mapping := range d.Outputs {
		if !script.IsExpression(mapping) {
			variables[name] = outputs[mapping]
			continue
		}
		v, err := s.engine.evaluateExpression(ctx, mapping, withLocals(pi.Variables, outputs))
		if err != nil {
			return &ExpressionEvaluationError{
				Msg: fmt.Sprintf("Error evaluating output %s of connector %s", name, c.ConnectorId),
				Err: err,
			}
		}
		variables[name] = v
	}
	pi.SetVariables(variables)
	batch.saveProcess(pi)
	return nil
}

// unfinishedConnectors returns the connectors of both groups of a node that still hold them back.
func (s *ConnectorScheduler) unfinishedConnectors(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) ([]*runtime.ConnectorInstance, error) {
	var res []*runtime.ConnectorInstance
	for _, ae := range []runtime.ActivationEvent{runtime.ActivationOnEnter, runtime.ActivationOnFinish} {
		group, err := batch.connectorGroup(ctx, n.Key, runtime.ContainerTypeFlowNode, ae)
		if err != nil {
			return nil, err
		}
		for _, c := range group {
			if !c.State.IsFinished() {
				res = append(res, c)
			}
		}
	}
	return res, nil
}

// finishUnfinished moves every unfinished connector of the node to state.
func (s *ConnectorScheduler) finishUnfinished(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, state runtime.ConnectorState) error {
	unfinished, err := s.unfinishedConnectors(ctx, batch, n)
	if err != nil {
		return err
	}
	for _, c := range unfinished {
		c.State = state
		c.ClaimedBy = ""
		batch.saveConnector(c)
	}
	return nil
}

// failedConnector returns the FAILED connector blocking one of the node's groups.
func (s *ConnectorScheduler) failedConnector(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) (*runtime.ConnectorInstance, error) {
	unfinished, err := s.unfinishedConnectors(ctx, batch, n)
	if err != nil {
		return nil, err
	}
	for _, c := range unfinished {
		if c.State == runtime.ConnectorFailed {
			return c, nil
		}
	}
	return nil, nil
}
