package bpmn

import (
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCallActivity(t *testing.T) (*Engine, runtime.ProcessInstance, runtime.ProcessInstance) {
	t.Helper()
	bpmnEngine := newTestEngine(t)
	deploy(t, bpmnEngine, "called.yaml")
	process := deploy(t, bpmnEngine, "call_activity.yaml")
	pi := startAndDrain(t, bpmnEngine, process, map[string]any{"orderId": 1234})

	call := waiting(t, bpmnEngine, pi.Key, "call")
	called, err := bpmnEngine.persistence.FindProcessInstancesByCaller(t.Context(), call.Key)
	require.NoError(t, err)
	require.Len(t, called, 1)
	return bpmnEngine, pi, called[0]
}

func Test_call_activity_waits_for_the_called_process(t *testing.T) {
	// when
	bpmnEngine, pi, child := startCallActivity(t)

	// then
	assert.Equal(t, runtime.ProcessInstanceActive, pi.State)
	assert.Equal(t, runtime.ProcessInstanceActive, child.State)
	assert.Equal(t, pi.Key, child.ContainerKey)
	assert.Equal(t, pi.Key, child.RootProcessInstanceKey)
	assert.Equal(t, runtime.CallerTypeCallActivity, child.CallerType)
	assert.Equal(t, 1234, child.Variables["orderId"])
	waiting(t, bpmnEngine, child.Key, "inner")
	assert.Equal(t, 1, activeCount(t, bpmnEngine, pi.Key))
	assert.Equal(t, 1, activeCount(t, bpmnEngine, child.Key))
}

func Test_completed_called_process_completes_the_call_activity(t *testing.T) {
	// setup
	bpmnEngine, pi, child := startCallActivity(t)

	// when
	complete(t, bpmnEngine, child.Key, "inner", map[string]any{"shipped": true})

	// then
	assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, child.Key).State)
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
	assert.Equal(t, true, pi.Variables["shipped"])
	calls := flowNodes(t, bpmnEngine, pi.Key, "call")
	require.Len(t, calls, 1)
	assert.Equal(t, runtime.FlowNodeStateCompleted, calls[0].State)
}

func Test_aborting_the_caller_aborts_the_called_process(t *testing.T) {
	// setup
	bpmnEngine, pi, child := startCallActivity(t)

	// when
	propagated, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	assert.Equal(t, 1, propagated)
	assert.Equal(t, runtime.ProcessInstanceAborted, processInstance(t, bpmnEngine, pi.Key).State)
	assert.Equal(t, runtime.ProcessInstanceAborted, processInstance(t, bpmnEngine, child.Key).State)
	inner := flowNodes(t, bpmnEngine, child.Key, "inner")
	require.Len(t, inner, 1)
	assert.Equal(t, runtime.FlowNodeStateAborted, inner[0].State)
}

func Test_call_activity_of_unknown_process_raises_incident(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "call_activity.yaml")

	// when
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// then
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	assert.NoError(t, err)
	assert.Len(t, incidents, 1)
	assert.Equal(t, runtime.ProcessInstanceActive, pi.State)
}
