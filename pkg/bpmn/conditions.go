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
	"strings"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// selectOutgoing decides which outgoing transitions a completed node hands its token to.
func (engine *Engine) selectOutgoing(ctx context.Context, def *runtime.ProcessDefinition, nodeDef *runtime.FlowNodeDefinition, variableContext map[string]any) ([]*runtime.TransitionDefinition, error) {
	flows := def.Outgoing(nodeDef.Id)
	if len(flows) == 0 {
		return nil, nil
	}
	var defaultFlow *runtime.TransitionDefinition
	if nodeDef.DefaultTransition != "" {
		defaultFlow, _ = def.Transition(nodeDef.DefaultTransition)
	}
	if nodeDef.Kind != runtime.FlowNodeKindGateway {
		return engine.conditionallyFilter(ctx, nodeDef, flows, defaultFlow, variableContext)
	}
	switch nodeDef.GatewayType {
	case runtime.GatewayTypeParallel:
		return flows, nil
	case runtime.GatewayTypeExclusive:
		return engine.exclusivelyFilterByConditionExpression(ctx, flows, defaultFlow, variableContext)
	case runtime.GatewayTypeInclusive:
		return engine.inclusivelyFilterByConditionExpression(ctx, flows, defaultFlow, variableContext)
	}
	return nil, newEngineErrorf("unsupported gateway type %s of %s", nodeDef.GatewayType, nodeDef.Id)
}

// exclusivelyFilterByConditionExpression
// A diverging exclusive gateway takes the first outgoing flow whose condition holds,
// in declaration order. The default flow is taken when none does. Without a default
// flow this is a runtime error.
func (engine *Engine) exclusivelyFilterByConditionExpression(ctx context.Context, flows []*runtime.TransitionDefinition, defaultFlow *runtime.TransitionDefinition, variableContext map[string]any) ([]*runtime.TransitionDefinition, error) {
	flowIds := strings.Builder{}
	for _, flow := range flows {
		if flow == defaultFlow {
			continue
		}
		if flow.Condition == "" {
			if len(flows) == 1 {
				return []*runtime.TransitionDefinition{flow}, nil
			}
			continue
		}
		flowIds.WriteString(fmt.Sprintf("[id='%s']", flow.Id))
		ok, err := engine.evaluateCondition(ctx, flow, variableContext)
		if err != nil {
			return nil, err
		}
		if ok {
			return []*runtime.TransitionDefinition{flow}, nil
		}
	}
	if defaultFlow == nil {
		return nil, &ExpressionEvaluationError{
			Msg: fmt.Sprintf("No default flow, nor matching expressions found, for flow elements: %s", flowIds.String()),
		}
	}
	return []*runtime.TransitionDefinition{defaultFlow}, nil
}

// inclusivelyFilterByConditionExpression
// A diverging inclusive gateway takes every outgoing flow whose condition holds.
// The default flow is taken only when none does.
func (engine *Engine) inclusivelyFilterByConditionExpression(ctx context.Context, flows []*runtime.TransitionDefinition, defaultFlow *runtime.TransitionDefinition, variableContext map[string]any) ([]*runtime.TransitionDefinition, error) {
	var ret []*runtime.TransitionDefinition
	for _, flow := range flows {
		if flow == defaultFlow {
			continue
		}
		if flow.Condition == "" {
			// if there is one outgoing flow with no condition - it is enough to proceed
			if len(flows) == 1 {
				ret = append(ret, flow)
			}
			continue
		}
		ok, err := engine.evaluateCondition(ctx, flow, variableContext)
		if err != nil {
			return nil, err
		}
		if ok {
			ret = append(ret, flow)
		}
	}
	if len(ret) == 0 {
		if defaultFlow == nil {
			return nil, &ExpressionEvaluationError{
				Msg: fmt.Sprintf("No default flow, nor matching expressions found for gateway: %s", flows[0].SourceRef),
			}
		}
		ret = append(ret, defaultFlow)
	}
	return ret, nil
}

// conditionallyFilter handles flows leaving an activity or event: unconditioned flows are
// always taken, conditioned ones when they hold, the default one when nothing else was.
func (engine *Engine) conditionallyFilter(ctx context.Context, nodeDef *runtime.FlowNodeDefinition, flows []*runtime.TransitionDefinition, defaultFlow *runtime.TransitionDefinition, variableContext map[string]any) ([]*runtime.TransitionDefinition, error) {
	var ret []*runtime.TransitionDefinition
	for _, flow := range flows {
		if flow == defaultFlow {
			continue
		}
		if flow.Condition == "" {
			ret = append(ret, flow)
			continue
		}
		ok, err := engine.evaluateCondition(ctx, flow, variableContext)
		if err != nil {
			return nil, err
		}
		if ok {
			ret = append(ret, flow)
		}
	}
	if len(ret) == 0 && defaultFlow != nil {
		ret = append(ret, defaultFlow)
	}
	if len(ret) == 0 {
		return nil, &ExpressionEvaluationError{
			Msg: fmt.Sprintf("No outgoing flow of %s can be taken", nodeDef.Id),
		}
	}
	return ret, nil
}

func (engine *Engine) evaluateCondition(ctx context.Context, flow *runtime.TransitionDefinition, variableContext map[string]any) (bool, error) {
	ok, err := engine.evaluateBool(ctx, flow.Condition, variableContext)
	if err != nil {
		return false, &ExpressionEvaluationError{
			Msg: fmt.Sprintf("Error evaluating expression in flow element id='%s'", flow.Id),
			Err: err,
		}
	}
	return ok, nil
}
