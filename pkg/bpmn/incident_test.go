package bpmn

import (
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingTaskEngine(t *testing.T, failures *int) (*Engine, runtime.ProcessInstance, runtime.Incident) {
	t.Helper()
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	bpmnEngine.NewTaskHandler().Type("simple").Handler(func(job ActivatedJob) {
		if *failures > 0 {
			*failures--
			job.Fail("backend unavailable")
			return
		}
		job.SetOutputVariable("done", true)
		job.Complete()
	})
	pi := startAndDrain(t, bpmnEngine, process, nil)
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	return bpmnEngine, pi, incidents[0]
}

func Test_failed_task_raises_incident(t *testing.T) {
	// setup
	failures := 1

	// when
	bpmnEngine, pi, incident := failingTaskEngine(t, &failures)

	// then
	assert.Equal(t, runtime.IncidentTaskFailure, incident.Kind)
	assert.Equal(t, "backend unavailable", incident.Message)
	assert.False(t, incident.IsResolved())
	task := waiting(t, bpmnEngine, pi.Key, "task")
	assert.Equal(t, runtime.FlowNodeStateFailed, task.State)
	assert.Equal(t, task.Key, incident.FlowNodeInstanceKey)
	assert.Equal(t, runtime.ProcessInstanceActive, pi.State)
}

func Test_retry_resolution_runs_the_task_again(t *testing.T) {
	// setup
	failures := 1
	bpmnEngine, pi, incident := failingTaskEngine(t, &failures)

	// when
	err := bpmnEngine.ResolveIncident(t.Context(), incident.Key, runtime.ResolutionRetry)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
	assert.Equal(t, true, pi.Variables["done"])
	tasks := flowNodes(t, bpmnEngine, pi.Key, "task")
	require.Len(t, tasks, 1)
	assert.Equal(t, runtime.FlowNodeStateCompleted, tasks[0].State)
}

func Test_skip_resolution_completes_the_task_without_running_it(t *testing.T) {
	// setup
	failures := 5
	bpmnEngine, pi, incident := failingTaskEngine(t, &failures)

	// when
	err := bpmnEngine.ResolveIncident(t.Context(), incident.Key, runtime.ResolutionSkip)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
	assert.Nil(t, pi.Variables["done"])
	assert.Equal(t, 4, failures)
}

func Test_panicking_task_handler_fails_the_task(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	bpmnEngine.NewTaskHandler().Type("simple").Handler(func(job ActivatedJob) {
		panic("nil map")
	})

	// when
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// then
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	assert.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Contains(t, incidents[0].Message, "nil map")
	assert.Equal(t, runtime.FlowNodeStateFailed, waiting(t, bpmnEngine, pi.Key, "task").State)
}

func Test_expression_failure_raises_incident_and_retry_resumes(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "exclusive_gateway.yaml")
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

	// given
	pi := startAndDrain(t, bpmnEngine, process, nil)
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, runtime.IncidentExpressionEvaluation, incidents[0].Kind)
	require.NotNil(t, incidents[0].WorkItem)
	assert.Equal(t, runtime.WorkExecuteFlowNode, incidents[0].WorkItem.Kind)

	// when
	require.NoError(t, bpmnEngine.SetVariables(t.Context(), pi.Key, map[string]any{"amount": 500}))
	require.NoError(t, bpmnEngine.ResolveIncident(t.Context(), incidents[0].Key, runtime.ResolutionRetry))
	drain(t, bpmnEngine)

	// then
	assert.Equal(t, "big", cp.String())
	assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
}

func failedMultiInstance(t *testing.T, bpmnEngine *Engine) (runtime.ProcessInstance, runtime.Incident) {
	t.Helper()
	process := deploy(t, bpmnEngine, "multi_instance.yaml")
	pi := startAndDrain(t, bpmnEngine, process, map[string]any{"items": 42})
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	return pi, incidents[0]
}

func Test_failed_token_delivery_leaves_its_flow_node_failed(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)

	// given
	pi, incident := failedMultiInstance(t, bpmnEngine)
	each := waiting(t, bpmnEngine, pi.Key, "each")
	assert.Equal(t, runtime.FlowNodeStateFailed, each.State)
	assert.Equal(t, each.Key, incident.FlowNodeInstanceKey)
	assert.True(t, incident.NodeFailed)
	assert.Equal(t, 1, activeCount(t, bpmnEngine, pi.Key))

	// when
	err := bpmnEngine.ResolveIncident(t.Context(), incident.Key, runtime.ResolutionFail)

	// then
	assert.NoError(t, err)
	each = waiting(t, bpmnEngine, pi.Key, "each")
	assert.Equal(t, runtime.FlowNodeStateFailed, each.State)
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.True(t, incidents[0].IsResolved())
}

func Test_abort_reaches_a_flow_node_failed_on_delivery(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	pi, _ := failedMultiInstance(t, bpmnEngine)

	// when
	_, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceAborted, pi.State)
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
	each := flowNodes(t, bpmnEngine, pi.Key, "each")
	require.Len(t, each, 1)
	assert.Equal(t, runtime.FlowNodeStateAborted, each[0].State)
}

func Test_skip_resolution_completes_a_flow_node_failed_on_delivery(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	pi, incident := failedMultiInstance(t, bpmnEngine)

	// when
	err := bpmnEngine.ResolveIncident(t.Context(), incident.Key, runtime.ResolutionSkip)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
	each := flowNodes(t, bpmnEngine, pi.Key, "each")
	require.Len(t, each, 1)
	assert.Equal(t, runtime.FlowNodeStateCompleted, each[0].State)
}

func Test_abort_retires_the_token_of_a_failed_gateway_delivery(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "exclusive_gateway.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	require.Equal(t, 1, activeCount(t, bpmnEngine, pi.Key))

	// when
	_, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceAborted, pi.State)
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
}

func Test_skip_resolution_drops_a_failed_gateway_delivery(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "exclusive_gateway.yaml")
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)
	pi := startAndDrain(t, bpmnEngine, process, nil)
	incidents, err := bpmnEngine.FindIncidents(t.Context(), pi.Key)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.False(t, incidents[0].NodeFailed)

	// when
	err = bpmnEngine.ResolveIncident(t.Context(), incidents[0].Key, runtime.ResolutionSkip)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	assert.Equal(t, "", cp.String())
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
	assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
}

func Test_resolving_unknown_incident_fails(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)

	// when
	err := bpmnEngine.ResolveIncident(t.Context(), 42, runtime.ResolutionRetry)

	// then
	var engineErr *BpmnEngineError
	assert.ErrorAs(t, err, &engineErr)
}
