package js

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
	"github.com/pbinitiative/zenexec/pkg/script"
)

type JsRunnerFactory struct {
}

func (JsRunnerFactory) NewRunner() script.Runner {
	return newJsRunner()
}

type JsRuntime struct {
	pool *script.RunnerPool
}

func NewJsRuntime(ctx context.Context, maxVmPoolSize int, minVmPoolSize int) *JsRuntime {
	return &JsRuntime{
		pool: script.NewRunnerPool(ctx, JsRunnerFactory{}, maxVmPoolSize, minVmPoolSize),
	}
}

var _ script.Runtime = (*JsRuntime)(nil)

// Evaluate runs expression with each variable bound as a global. The bindings
// are removed before the VM goes back to the pool.
func (r *JsRuntime) Evaluate(expression string, variableContext map[string]any) (any, error) {
	runner := r.pool.GetRunnerFromPool()
	defer r.pool.ReturnRunnerToPool(runner)

	return runner.(*JsRunner).evaluate(expression, variableContext)
}

type JsRunner struct {
	vm *goja.Runtime
}

func (r *JsRunner) Runner() {}

func newJsRunner() *JsRunner {
	return &JsRunner{vm: goja.New()}
}

func (r *JsRunner) evaluate(expression string, variableContext map[string]any) (any, error) {
	global := r.vm.GlobalObject()
	for name, value := range variableContext {
		if err := r.vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("failed to bind variable %s: %w", name, err)
		}
	}
	defer func() {
		for name := range variableContext {
			_ = global.Delete(name)
		}
	}()

	resp, err := r.vm.RunString(expression)
	if err != nil {
		return nil, fmt.Errorf("error running script %q: %w", expression, err)
	}
	return resp.Export(), nil
}
