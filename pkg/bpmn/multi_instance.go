// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package bpmn

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// MultiInstanceController runs the children of a multi-instance activity. Parallel
// children are started together and each holds its own token, sequential ones run one
// after another. The parent re-enters EXECUTING on every finished child and completes
// once all of them finished.
type MultiInstanceController struct {
	engine *Engine
}

func (c *MultiInstanceController) Start(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, nodeDef *runtime.FlowNodeDefinition) error {
	pi, err := batch.process(ctx, n.ProcessInstanceKey())
	if err != nil {
		return err
	}
	cardinality, err := c.cardinality(ctx, nodeDef, pi.Variables)
	if err != nil {
		return err
	}
	n.MultiInstance.LoopCardinality = cardinality
	batch.saveNode(n)
	if cardinality == 0 {
		return c.engine.completeFlowNode(ctx, batch, n, nil)
	}
	count := cardinality
	if n.MultiInstance.Sequential {
		count = 1
	}
	for range count {
		if err := c.startChild(ctx, batch, pi, n, nodeDef); err != nil {
			return err
		}
	}
	return nil
}

// cardinality is LoopCardinality when set, the size of the LoopDataInputRef collection otherwise.
func (c *MultiInstanceController) cardinality(ctx context.Context, nodeDef *runtime.FlowNodeDefinition, variables map[string]any) (int, error) {
	mi := nodeDef.MultiInstance
	if mi == nil {
		return 0, newEngineErrorf("multi-instance activity %s has no multi-instance characteristics", nodeDef.Id)
	}
	if strings.TrimSpace(mi.LoopCardinality) != "" {
		cardinality, err := c.engine.evaluateInt(ctx, mi.LoopCardinality, variables)
		if err != nil {
			return 0, &ExpressionEvaluationError{
				Msg: fmt.Sprintf("Error evaluating loop cardinality of %s", nodeDef.Id),
				Err: err,
			}
		}
		if cardinality < 0 {
			return 0, &ExpressionEvaluationError{Msg: fmt.Sprintf("negative loop cardinality %d of %s", cardinality, nodeDef.Id)}
		}
		return cardinality, nil
	}
	collection, err := inputCollection(nodeDef, variables)
	if err != nil {
		return 0, err
	}
	return collection.Len(), nil
}

// inputCollection resolves the LoopDataInputRef variable to a slice or array.
func inputCollection(nodeDef *runtime.FlowNodeDefinition, variables map[string]any) (reflect.Value, error) {
	ref := nodeDef.MultiInstance.LoopDataInputRef
	if ref == "" {
		return reflect.Value{}, newEngineErrorf("multi-instance activity %s defines neither loop cardinality nor input collection", nodeDef.Id)
	}
	v := reflect.ValueOf(variables[ref])
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return reflect.Value{}, &ExpressionEvaluationError{
			Msg: fmt.Sprintf("input collection %s of %s is not a list: %T", ref, nodeDef.Id, variables[ref]),
		}
	}
	return v, nil
}

func (c *MultiInstanceController) startChild(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, n *runtime.FlowNodeInstance, nodeDef *runtime.FlowNodeDefinition) error {
	def, err := batch.definition(ctx, n.ProcessDefinitionKey())
	if err != nil {
		return err
	}
	var token runtime.Token
	if !n.MultiInstance.Sequential {
		token, err = c.engine.tokens.Spawn(ctx, batch, pi.Key, runtime.Token{Key: n.TokenKey, Holder: n.Key})
		if err != nil {
			return err
		}
	}
	child, err := c.engine.createFlowNode(ctx, batch, pi, def, nodeDef, n, childKind(nodeDef), token.Key)
	if err != nil {
		return err
	}
	if token.Key != 0 {
		if _, err := c.engine.tokens.Move(ctx, batch, token, child.Key); err != nil {
			return err
		}
	}
	child.LoopCounter = n.MultiInstance.Started() + 1
	n.MultiInstance.NumberOfActiveInstances++
	batch.saveNode(n)
	return c.engine.enterFlowNode(ctx, batch, child)
}

// ChildFinished recounts the children from the stored state and decides how to go on.
func (c *MultiInstanceController) ChildFinished(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, childKey int64) error {
	children, err := batch.flowNodes(ctx, n.ProcessInstanceKey(), func(child runtime.FlowNodeInstance) bool {
		return child.ParentContainerKey == n.Key
	})
	if err != nil {
		return err
	}
	mi := n.MultiInstance
	mi.NumberOfActiveInstances, mi.NumberOfCompletedInstances, mi.NumberOfTerminatedInstances = 0, 0, 0
	for _, child := range children {
		switch {
		case !child.Terminal:
			mi.NumberOfActiveInstances++
		case child.State == runtime.FlowNodeStateCompleted:
			mi.NumberOfCompletedInstances++
		default:
			mi.NumberOfTerminatedInstances++
		}
	}
	batch.saveNode(n)
	if mi.NumberOfActiveInstances == 0 && mi.Started() >= mi.LoopCardinality {
		return c.engine.completeFlowNode(ctx, batch, n, nil)
	}
	if err := n.ReEnter(batch.now); err != nil {
		return err
	}
	if mi.NumberOfActiveInstances > 0 {
		return nil
	}
	pi, err := batch.process(ctx, n.ProcessInstanceKey())
	if err != nil {
		return err
	}
	_, nodeDef, err := batch.flowNodeDefinition(ctx, n)
	if err != nil {
		return err
	}
	return c.startChild(ctx, batch, pi, n, nodeDef)
}

// iterationLocals are the variables one child of a loop or multi-instance activity sees on top of the process variables.
func iterationLocals(n *runtime.FlowNodeInstance, nodeDef *runtime.FlowNodeDefinition, variables map[string]any) map[string]any {
	if !n.IsChild() {
		return nil
	}
	locals := map[string]any{"loopCounter": n.LoopCounter}
	if nodeDef.MultiInstance != nil && nodeDef.MultiInstance.LoopDataInputRef != "" {
		collection, err := inputCollection(nodeDef, variables)
		if err == nil && n.LoopCounter > 0 && n.LoopCounter <= collection.Len() {
			locals["item"] = collection.Index(n.LoopCounter - 1).Interface()
		}
	}
	return locals
}
