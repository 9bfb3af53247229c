package feel

import (
	"fmt"

	"github.com/pbinitiative/feel"
	"github.com/pbinitiative/zenexec/pkg/script"
)

// FeelRuntime evaluates FEEL expressions. The interpreter keeps no state
// between calls so it needs no runner pool.
type FeelRuntime struct{}

func NewFeelRuntime() *FeelRuntime {
	return &FeelRuntime{}
}

var _ script.Runtime = (*FeelRuntime)(nil)

func (r *FeelRuntime) Evaluate(expression string, variableContext map[string]any) (any, error) {
	if variableContext == nil {
		variableContext = map[string]any{}
	}
	res, err := feel.EvalStringWithScope(expression, variableContext)
	if err != nil {
		return nil, fmt.Errorf("feel: %w", err)
	}
	return res, nil
}
