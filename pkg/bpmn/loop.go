package bpmn

import (
	"context"
	"fmt"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// LoopController runs the iterations of a standard loop activity. Each iteration is a
// child flow node of the loop node. The loop node stays EXECUTING and re-enters once per
// finished iteration, LoopCounter is the only progress it keeps across iterations.
type LoopController struct {
	engine *Engine
}

// Start runs the first iteration, or exits right away when the loop may not run at all.
func (c *LoopController) Start(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, nodeDef *runtime.FlowNodeDefinition) error {
	return c.next(ctx, batch, n, nodeDef)
}

// next increments the counter, checks the ceiling and the condition and starts the next body.
// With LoopMax 3 the bodies run with counters 1, 2 and 3 and the loop exits with counter 4.
func (c *LoopController) next(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, nodeDef *runtime.FlowNodeDefinition) error {
	n.LoopCounter++
	batch.saveNode(n)
	if n.Loop.LoopMax >= 0 && n.LoopCounter > n.Loop.LoopMax {
		c.engine.logger.Debug("loop reached its ceiling", "flowNode", n.FlowNodeDefinitionId, "instance", n.Key, "loopMax", n.Loop.LoopMax)
		return c.engine.completeFlowNode(ctx, batch, n, nil)
	}
	pi, err := batch.process(ctx, n.ProcessInstanceKey())
	if err != nil {
		return err
	}
	if n.Loop.TestBefore || n.LoopCounter > 1 {
		// loopCounter counts the bodies that already ran
		variables := withLocals(pi.Variables, map[string]any{"loopCounter": n.LoopCounter - 1})
		ok, err := c.engine.evaluateBool(ctx, n.Loop.LoopCondition, variables)
		if err != nil {
			return &ExpressionEvaluationError{
				Msg: fmt.Sprintf("Error evaluating loop condition of %s", n.FlowNodeDefinitionId),
				Err: err,
			}
		}
		if !ok {
			return c.engine.completeFlowNode(ctx, batch, n, nil)
		}
	}

	def, err := batch.definition(ctx, n.ProcessDefinitionKey())
	if err != nil {
		return err
	}
	child, err := c.engine.createFlowNode(ctx, batch, pi, def, nodeDef, n, childKind(nodeDef), 0)
	if err != nil {
		return err
	}
	child.LoopCounter = n.LoopCounter
	n.Loop.CurrentIterationKey = child.Key
	batch.saveNode(n)
	return c.engine.enterFlowNode(ctx, batch, child)
}

// ChildFinished continues the loop once the current iteration reached a terminal state.
func (c *LoopController) ChildFinished(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, childKey int64) error {
	if n.Loop.CurrentIterationKey != childKey {
		c.engine.logger.Debug("stale iteration notification dropped", "flowNode", n.FlowNodeDefinitionId, "instance", n.Key, "child", childKey)
		return nil
	}
	child, err := batch.node(ctx, childKey)
	if err != nil {
		return err
	}
	n.Loop.CurrentIterationKey = 0
	batch.saveNode(n)
	switch child.State {
	case runtime.FlowNodeStateAborted:
		return c.engine.propagator.exitFlowNode(ctx, batch, n, runtime.StateCategoryAborting)
	case runtime.FlowNodeStateCancelled:
		return c.engine.propagator.exitFlowNode(ctx, batch, n, runtime.StateCategoryCancelling)
	}
	if err := n.ReEnter(batch.now); err != nil {
		return err
	}
	_, nodeDef, err := batch.flowNodeDefinition(ctx, n)
	if err != nil {
		return err
	}
	return c.next(ctx, batch, n, nodeDef)
}

// childKind is the kind of one iteration of a loop or multi-instance activity.
func childKind(nodeDef *runtime.FlowNodeDefinition) runtime.FlowNodeKind {
	if nodeDef.HumanTask != nil {
		return runtime.FlowNodeKindHumanTask
	}
	return runtime.FlowNodeKindActivity
}
