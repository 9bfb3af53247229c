package bpmn

import (
	"context"
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/workqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_abort_propagates_once_to_every_stable_node(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "fork_join.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// when
	first, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	second, err := bpmnEngine.Propagator().Propagate(t.Context(), pi.Key, runtime.StateCategoryAborting)
	require.NoError(t, err)

	// then
	assert.Equal(t, 2, first)
	assert.Equal(t, 0, second)
	assert.Equal(t, runtime.StateCategoryAborting, processInstance(t, bpmnEngine, pi.Key).StateCategory)

	drain(t, bpmnEngine)
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceAborted, pi.State)
	for _, id := range []string{"a", "b"} {
		nodes := flowNodes(t, bpmnEngine, pi.Key, id)
		require.Len(t, nodes, 1)
		assert.Equal(t, runtime.FlowNodeStateAborted, nodes[0].State)
	}
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
}

const forkWithEnterConnector = `
id: fork-with-enter-connector
flowNodes:
  - id: start
    kind: EVENT
    eventType: START
  - id: fork
    kind: GATEWAY
    gatewayType: PARALLEL
  - id: a
    kind: ACTIVITY
  - id: b
    kind: ACTIVITY
  - id: c
    kind: ACTIVITY
    connectors:
      - name: lookup
        connectorId: lookup
        version: "1"
        activationEvent: ON_ENTER
  - id: end
    kind: EVENT
    eventType: END
transitions:
  - id: s
    sourceRef: start
    targetRef: fork
  - id: fa
    sourceRef: fork
    targetRef: a
  - id: fb
    sourceRef: fork
    targetRef: b
  - id: fc
    sourceRef: fork
    targetRef: c
  - id: ea
    sourceRef: a
    targetRef: end
  - id: eb
    sourceRef: b
    targetRef: end
  - id: ec
    sourceRef: c
    targetRef: end
`

func Test_abort_skips_a_node_inside_its_enter_connectors(t *testing.T) {
	// setup
	queue := &refusingQueue{Queue: workqueue.NewInMemoryQueue()}
	bpmnEngine := newTestEngine(t, EngineWithQueue(queue))
	bpmnEngine.RegisterConnector("lookup", ConnectorFunc(func(ctx context.Context, request ConnectorRequest) (map[string]any, error) {
		return nil, nil
	}))
	process := deployYAML(t, bpmnEngine, forkWithEnterConnector)

	// given
	queue.refuseNext(runtime.WorkExecuteConnectors)
	started, err := bpmnEngine.StartProcess(t.Context(), process.Key, nil)
	require.NoError(t, err)
	for queue.Len() > 0 {
		_, err := bpmnEngine.ProcessOne(t.Context())
		require.NoError(t, err)
	}
	c := waiting(t, bpmnEngine, started.Key, "c")
	require.Equal(t, runtime.FlowNodeStateReady, c.State)
	require.True(t, c.StateExecuting)
	require.Equal(t, 3, activeCount(t, bpmnEngine, started.Key))

	// when
	first, err := bpmnEngine.AbortProcess(t.Context(), started.Key)
	require.NoError(t, err)
	second, err := bpmnEngine.Propagator().Propagate(t.Context(), started.Key, runtime.StateCategoryAborting)
	require.NoError(t, err)

	// then
	assert.Equal(t, 2, first)
	assert.Equal(t, 0, second)
	assert.Equal(t, runtime.StateCategoryNormal, waiting(t, bpmnEngine, started.Key, "c").StateCategory)

	// when
	drain(t, bpmnEngine)

	// then
	pi := processInstance(t, bpmnEngine, started.Key)
	assert.Equal(t, runtime.ProcessInstanceAborted, pi.State)
	for _, id := range []string{"a", "b", "c"} {
		nodes := flowNodes(t, bpmnEngine, pi.Key, id)
		require.Len(t, nodes, 1)
		assert.Equal(t, runtime.FlowNodeStateAborted, nodes[0].State, id)
	}
	assert.Equal(t, 0, activeCount(t, bpmnEngine, started.Key))
	assert.Equal(t, 0, outboxLen(t, bpmnEngine))
}

func Test_cancel_overrides_an_ongoing_abort(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "fork_join.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// given
	aborted, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	assert.Equal(t, 2, aborted)

	// when
	cancelled, err := bpmnEngine.CancelProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	assert.Equal(t, 2, cancelled)
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceCancelled, pi.State)
	assert.Equal(t, runtime.StateCategoryCancelling, pi.StateCategory)
	for _, id := range []string{"a", "b"} {
		assert.Equal(t, runtime.FlowNodeStateCancelled, flowNodes(t, bpmnEngine, pi.Key, id)[0].State)
	}
}

func Test_abort_does_not_fall_back_from_cancel(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// given
	_, err := bpmnEngine.CancelProcess(t.Context(), pi.Key)
	require.NoError(t, err)

	// when
	aborted, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	assert.Equal(t, 0, aborted)
	assert.Equal(t, runtime.ProcessInstanceCancelled, processInstance(t, bpmnEngine, pi.Key).State)
}

func Test_abort_ends_parked_join(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "fork_join.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	complete(t, bpmnEngine, pi.Key, "a", nil)

	// when
	propagated, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	assert.Equal(t, 1, propagated)
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceAborted, pi.State)
	joins := flowNodes(t, bpmnEngine, pi.Key, "join")
	require.Len(t, joins, 1)
	assert.Equal(t, runtime.FlowNodeStateAborted, joins[0].State)
}

func Test_completion_arriving_after_abort_is_not_applied(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	task := waiting(t, bpmnEngine, pi.Key, "task")

	// given
	require.NoError(t, bpmnEngine.CompleteFlowNode(t.Context(), task.Key, map[string]any{"late": true}))

	// when
	_, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceAborted, pi.State)
	assert.Nil(t, pi.Variables["late"])
	assert.Equal(t, runtime.FlowNodeStateAborted, flowNodes(t, bpmnEngine, pi.Key, "task")[0].State)
	assert.Empty(t, flowNodes(t, bpmnEngine, pi.Key, "end"))
}

func Test_aborting_a_finished_process_fails(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	bpmnEngine.NewTaskHandler().Type("simple").Handler(func(job ActivatedJob) { job.Complete() })
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// when
	_, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)

	// then
	assert.Error(t, err)
}

func Test_abort_reaches_loop_iterations(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "loop.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// when
	propagated, err := bpmnEngine.AbortProcess(t.Context(), pi.Key)
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	assert.Equal(t, 1, propagated)
	assert.Equal(t, runtime.ProcessInstanceAborted, processInstance(t, bpmnEngine, pi.Key).State)
	for _, n := range flowNodes(t, bpmnEngine, pi.Key, "repeat") {
		assert.Equal(t, runtime.FlowNodeStateAborted, n.State, n.Kind)
	}
}
