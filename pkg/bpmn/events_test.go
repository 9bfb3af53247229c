package bpmn

import (
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_interrupting_boundary_event_takes_over_the_token(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "boundary.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	task := waiting(t, bpmnEngine, pi.Key, "task")

	// when
	require.NoError(t, bpmnEngine.InterruptByBoundary(t.Context(), task.Key, "timeout"))
	drain(t, bpmnEngine)

	// then
	tasks := flowNodes(t, bpmnEngine, pi.Key, "task")
	require.Len(t, tasks, 1)
	assert.Equal(t, runtime.FlowNodeStateAborted, tasks[0].State)
	require.NotNil(t, tasks[0].Activity)
	timeouts := flowNodes(t, bpmnEngine, pi.Key, "timeout")
	require.Len(t, timeouts, 1)
	assert.Equal(t, timeouts[0].Key, tasks[0].Activity.AbortedByBoundary)
	assert.Equal(t, runtime.FlowNodeStateCompleted, timeouts[0].State)
	assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "escalated"), 1)
	assert.Empty(t, flowNodes(t, bpmnEngine, pi.Key, "end"))
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
	assert.Equal(t, timeouts[0].Key, pi.InterruptingEventKey)
}

func Test_boundary_event_not_attached_to_the_activity_raises_incident(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "boundary.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	task := waiting(t, bpmnEngine, pi.Key, "task")

	// when
	require.NoError(t, bpmnEngine.InterruptByBoundary(t.Context(), task.Key, "escalated"))
	drain(t, bpmnEngine)

	// then
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	assert.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Contains(t, incidents[0].Message, "is not a boundary event of task")
	assert.Equal(t, runtime.FlowNodeStateExecuting, waiting(t, bpmnEngine, pi.Key, "task").State)
}

func Test_completed_activity_ignores_late_boundary_event(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "boundary.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	task := waiting(t, bpmnEngine, pi.Key, "task")
	require.NoError(t, bpmnEngine.CompleteFlowNode(t.Context(), task.Key, nil))

	// when
	require.NoError(t, bpmnEngine.InterruptByBoundary(t.Context(), task.Key, "timeout"))
	drain(t, bpmnEngine)

	// then
	assert.Empty(t, flowNodes(t, bpmnEngine, pi.Key, "timeout"))
	assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "end"), 1)
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
	assert.Equal(t, runtime.NoInterruptingEvent, pi.InterruptingEventKey)
}
