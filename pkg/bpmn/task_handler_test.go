package bpmn

import (
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
)

func Test_task_handler_registry_replaces_and_removes(t *testing.T) {
	// setup
	registry := taskHandlerRegistry{}
	nodeDef := &runtime.FlowNodeDefinition{Id: "task", TaskType: "simple"}
	calls := []string{}
	register := func(key taskHandlerKey, name string) *TaskHandlerRegistration {
		reg := &TaskHandlerRegistration{key: key, handler: func(job ActivatedJob) { calls = append(calls, name) }}
		registry.add(reg)
		return reg
	}

	// given
	first := register(taskHandlerKey{scope: taskHandlerForType, match: "simple"}, "first")
	register(taskHandlerKey{scope: taskHandlerForType, match: "simple"}, "second")

	// when
	registry.find(nodeDef)(nil)

	// then
	assert.Equal(t, []string{"second"}, calls)

	// when a replaced registration is removed
	registry.remove(first)

	// then the replacement stays
	assert.NotNil(t, registry.find(nodeDef))

	// when
	byId := register(taskHandlerKey{scope: taskHandlerForId, match: "task"}, "id")
	registry.find(nodeDef)(nil)
	registry.remove(byId)
	registry.find(nodeDef)(nil)

	// then
	assert.Equal(t, []string{"second", "id", "second"}, calls)
	assert.Nil(t, registry.find(&runtime.FlowNodeDefinition{Id: "other"}))
}
