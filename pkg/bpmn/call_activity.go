package bpmn

import (
	"context"
	"maps"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// startCalledProcess starts the latest version of the called process. The call activity
// waits in EXECUTING until the called instance completes and sends CompleteFlowNode back.
func (engine *Engine) startCalledProcess(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, nodeDef *runtime.FlowNodeDefinition) error {
	def, err := engine.definitions.Latest(ctx, nodeDef.CalledElement)
	if err != nil {
		return err
	}
	parent, err := batch.lockProcess(ctx, n.ProcessInstanceKey())
	if err != nil {
		return err
	}
	root := parent.RootProcessInstanceKey
	if root == 0 {
		root = parent.Key
	}
	pi := &runtime.ProcessInstance{
		Key:                    engine.generateKey(),
		ProcessDefinitionKey:   def.Key,
		RootProcessInstanceKey: root,
		ContainerKey:           parent.Key,
		CallerKey:              n.Key,
		CallerType:             runtime.CallerTypeCallActivity,
		State:                  runtime.ProcessInstanceActive,
		StateCategory:          runtime.StateCategoryNormal,
		Variables:              maps.Clone(parent.Variables),
		StartDate:              batch.now,
		InterruptingEventKey:   runtime.NoInterruptingEvent,
	}
	engine.logger.Debug("starting called process", "calledElement", def.Id, "caller", n.Key, "processInstance", pi.Key)
	return engine.startInstance(ctx, batch, pi, def)
}

// startInstance stages a new process instance with one token per start event.
func (engine *Engine) startInstance(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, def *runtime.ProcessDefinition) error {
	starts := def.StartNodes()
	if len(starts) == 0 {
		return newEngineErrorf("process %s has no start event", def.Id)
	}
	batch.addProcess(pi)
	batch.saveProcess(pi)
	for _, start := range starts {
		token, err := engine.tokens.Spawn(ctx, batch, pi.Key, runtime.Token{})
		if err != nil {
			return err
		}
		item := batch.newItem(runtime.WorkExecuteFlowNode, pi.Key)
		item.FlowNodeDefinitionId = start
		item.TokenKey = token.Key
		item.ParentContainerKey = pi.Key
		batch.emit(item)
	}
	engine.processStarted(ctx, batch, pi)
	return nil
}
