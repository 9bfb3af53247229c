package bpmn

import (
	"context"
	"fmt"
	"maps"
	"strings"
)

// evaluateExpression evaluates "=" prefixed text as FEEL and "js:" prefixed text as JavaScript.
// Anything else is a constant.
func (engine *Engine) evaluateExpression(ctx context.Context, expression string, variableContext map[string]any) (any, error) {
	res, err := engine.evaluator.Evaluate(expression, variableContext)
	if err != nil {
		engine.logger.Debug("expression evaluation failed", "expression", strings.TrimSpace(expression), "error", err)
		return nil, fmt.Errorf("failed to evaluate expression %s: %w", expression, err)
	}
	return res, nil
}

// evaluateBool treats an empty expression as true.
func (engine *Engine) evaluateBool(ctx context.Context, expression string, variableContext map[string]any) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	return engine.evaluator.EvaluateBool(expression, variableContext)
}

func (engine *Engine) evaluateInt(ctx context.Context, expression string, variableContext map[string]any) (int, error) {
	return engine.evaluator.EvaluateInt(expression, variableContext)
}

// withLocals returns a copy of the process variables overlaid with locals.
func withLocals(variables map[string]any, locals map[string]any) map[string]any {
	res := make(map[string]any, len(variables)+len(locals))
	maps.Copy(res, variables)
	maps.Copy(res, locals)
	return res
}
