package bpmn

import (
	"context"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// interruptByBoundary fires the interrupting boundary event named by the work item on the
// activity it is attached to. The activity is aborted and its token continues from the boundary event.
func (engine *Engine) interruptByBoundary(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance) error {
	if !n.Kind.IsActivity() || n.IsChild() {
		return newEngineErrorf("flow node instance %d (%s) cannot be interrupted by a boundary event", n.Key, n.FlowNodeDefinitionId)
	}
	def, err := batch.definition(ctx, n.ProcessDefinitionKey())
	if err != nil {
		return err
	}
	boundaryId := batch.item.FlowNodeDefinitionId
	boundaryDef, ok := def.FlowNode(boundaryId)
	if !ok || boundaryDef.AttachedTo != n.FlowNodeDefinitionId {
		return newEngineErrorf("%s is not a boundary event of %s", boundaryId, n.FlowNodeDefinitionId)
	}
	pi, err := batch.lockProcess(ctx, n.ProcessInstanceKey())
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

	boundary, err := engine.createFlowNode(ctx, batch, pi, def, boundaryDef, nil, runtime.FlowNodeKindEvent, token.Key)
	if err != nil {
		return err
	}
	boundary.Event.EventType = runtime.EventTypeBoundary
	boundary.Event.AttachedTo = n.Key
	if _, err := engine.tokens.Move(ctx, batch, token, boundary.Key); err != nil {
		return err
	}

	if n.Activity == nil {
		n.Activity = &runtime.ActivityPayload{}
	}
	n.Activity.AbortedByBoundary = boundary.Key
	pi.InterruptingEventKey = boundary.Key
	batch.saveProcess(pi)
	if err := engine.propagator.exitFlowNode(ctx, batch, n, runtime.StateCategoryAborting); err != nil {
		return err
	}
	return engine.enterFlowNode(ctx, batch, boundary)
}
