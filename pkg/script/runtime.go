package script

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Runtime evaluates an expression in one language against a variable context.
type Runtime interface {
	Evaluate(expression string, variableContext map[string]any) (any, error)
}

var ErrUnexpectedType = errors.New("expression produced an unexpected type")

const (
	// FeelPrefix marks a FEEL expression, as in "= amount > 100".
	FeelPrefix = "="
	// JsPrefix marks a JavaScript expression, as in "js: items.length".
	JsPrefix = "js:"
)

// Evaluator routes expressions to a runtime by prefix. Text without a known
// prefix is a literal and is returned as is.
type Evaluator struct {
	feel Runtime
	js   Runtime
}

func NewEvaluator(feel Runtime, js Runtime) *Evaluator {
	return &Evaluator{feel: feel, js: js}
}

// IsExpression reports whether text is evaluated rather than taken literally.
func IsExpression(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, FeelPrefix) || strings.HasPrefix(text, JsPrefix)
}

func (e *Evaluator) Evaluate(expression string, variableContext map[string]any) (any, error) {
	expression = strings.TrimSpace(expression)
	var (
		rt   Runtime
		body string
	)
	switch {
	case strings.HasPrefix(expression, JsPrefix):
		rt, body = e.js, strings.TrimPrefix(expression, JsPrefix)
	case strings.HasPrefix(expression, FeelPrefix):
		rt, body = e.feel, strings.TrimPrefix(expression, FeelPrefix)
	default:
		return expression, nil
	}
	if rt == nil {
		return nil, fmt.Errorf("no runtime configured for expression %q", expression)
	}
	res, err := rt.Evaluate(strings.TrimSpace(body), variableContext)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %s: %w", expression, err)
	}
	return res, nil
}

func (e *Evaluator) EvaluateBool(expression string, variableContext map[string]any) (bool, error) {
	v, err := e.Evaluate(expression, variableContext)
	if err != nil {
		return false, err
	}
	return ToBool(v)
}

func (e *Evaluator) EvaluateInt(expression string, variableContext map[string]any) (int, error) {
	v, err := e.Evaluate(expression, variableContext)
	if err != nil {
		return 0, err
	}
	return ToInt(v)
}

func ToBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrUnexpectedType, b)
		}
		return parsed, nil
	case nil:
		return false, fmt.Errorf("%w: null is not a boolean", ErrUnexpectedType)
	}
	return false, fmt.Errorf("%w: %T is not a boolean", ErrUnexpectedType, v)
}

// ToInt converts numeric results of any runtime to int. Fractions are rejected.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrUnexpectedType, n)
		}
		return int(n), nil
	case nil:
		return 0, fmt.Errorf("%w: null is not an integer", ErrUnexpectedType)
	}
	// FEEL numbers and literals print as decimals
	s := strings.TrimSpace(fmt.Sprint(v))
	if i, err := strconv.Atoi(s); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrUnexpectedType, s)
	}
	return int(f), nil
}
