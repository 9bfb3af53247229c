package bpmn

import (
	"testing"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func humanTaskEngine(t *testing.T) (*Engine, runtime.ProcessInstance, time.Time) {
	t.Helper()
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	bpmnEngine := newTestEngine(t, EngineWithClock(func() time.Time { return now }))
	process := deploy(t, bpmnEngine, "human_task.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	return bpmnEngine, pi, now
}

func Test_human_task_waits_with_its_bookkeeping(t *testing.T) {
	// when
	bpmnEngine, pi, now := humanTaskEngine(t)

	// then
	task := waiting(t, bpmnEngine, pi.Key, "approve")
	assert.Equal(t, runtime.FlowNodeKindHumanTask, task.Kind)
	assert.Equal(t, runtime.FlowNodeStateExecuting, task.State)
	assert.Equal(t, "Approve request", task.DisplayName)
	require.NotNil(t, task.HumanTask)
	assert.Equal(t, int64(7), task.HumanTask.ActorKey)
	assert.Equal(t, 2, task.HumanTask.Priority)
	assert.Equal(t, now.Add(2*time.Hour), task.HumanTask.ExpectedEndDate)
	assert.Zero(t, task.HumanTask.AssigneeKey)
}

func Test_claim_assign_and_release_human_task(t *testing.T) {
	// setup
	bpmnEngine, pi, now := humanTaskEngine(t)
	task := waiting(t, bpmnEngine, pi.Key, "approve")

	// when
	err := bpmnEngine.ClaimHumanTask(t.Context(), task.Key, 11)

	// then
	assert.NoError(t, err)
	task = waiting(t, bpmnEngine, pi.Key, "approve")
	assert.Equal(t, int64(11), task.HumanTask.AssigneeKey)
	assert.Equal(t, now, task.HumanTask.ClaimedDate)

	// when
	err = bpmnEngine.ClaimHumanTask(t.Context(), task.Key, 12)

	// then
	assert.ErrorIs(t, err, ErrTaskAlreadyClaimed)

	// when
	err = bpmnEngine.ReleaseHumanTask(t.Context(), task.Key)

	// then
	assert.NoError(t, err)
	task = waiting(t, bpmnEngine, pi.Key, "approve")
	assert.Zero(t, task.HumanTask.AssigneeKey)
	assert.True(t, task.HumanTask.ClaimedDate.IsZero())

	// when
	err = bpmnEngine.AssignHumanTask(t.Context(), task.Key, 12)

	// then
	assert.NoError(t, err)
	task = waiting(t, bpmnEngine, pi.Key, "approve")
	assert.Equal(t, int64(12), task.HumanTask.AssigneeKey)
	assert.NoError(t, bpmnEngine.ClaimHumanTask(t.Context(), task.Key, 11))
}

func Test_claim_without_a_user_is_rejected(t *testing.T) {
	// setup
	bpmnEngine, pi, _ := humanTaskEngine(t)
	task := waiting(t, bpmnEngine, pi.Key, "approve")

	for _, userKey := range []int64{0, -3} {
		// when
		err := bpmnEngine.ClaimHumanTask(t.Context(), task.Key, userKey)

		// then
		var engineErr *BpmnEngineError
		assert.ErrorAs(t, err, &engineErr)
		task = waiting(t, bpmnEngine, pi.Key, "approve")
		assert.True(t, task.HumanTask.ClaimedDate.IsZero())
		assert.Zero(t, task.HumanTask.AssigneeKey)
	}
}

func Test_hidden_task_cannot_be_claimed_by_that_user(t *testing.T) {
	// setup
	bpmnEngine, pi, _ := humanTaskEngine(t)
	task := waiting(t, bpmnEngine, pi.Key, "approve")

	// when
	require.NoError(t, bpmnEngine.HideTask(t.Context(), task.Key, 11))

	// then
	hidden, err := bpmnEngine.IsTaskHidden(t.Context(), task.Key, 11)
	assert.NoError(t, err)
	assert.True(t, hidden)
	hidden, err = bpmnEngine.IsTaskHidden(t.Context(), task.Key, 12)
	assert.NoError(t, err)
	assert.False(t, hidden)
	assert.ErrorIs(t, bpmnEngine.ClaimHumanTask(t.Context(), task.Key, 11), ErrTaskHidden)

	// when
	require.NoError(t, bpmnEngine.UnhideTask(t.Context(), task.Key, 11))

	// then
	hidden, err = bpmnEngine.IsTaskHidden(t.Context(), task.Key, 11)
	assert.NoError(t, err)
	assert.False(t, hidden)
	assert.NoError(t, bpmnEngine.ClaimHumanTask(t.Context(), task.Key, 11))
}

func Test_completing_human_task_for_the_assignee_records_substitute(t *testing.T) {
	// setup
	bpmnEngine, pi, _ := humanTaskEngine(t)
	task := waiting(t, bpmnEngine, pi.Key, "approve")
	require.NoError(t, bpmnEngine.AssignHumanTask(t.Context(), task.Key, 11))
	require.NoError(t, bpmnEngine.HideTask(t.Context(), task.Key, 13))

	// when
	err := bpmnEngine.CompleteHumanTask(t.Context(), task.Key, 12, map[string]any{"approved": true})
	require.NoError(t, err)
	drain(t, bpmnEngine)

	// then
	tasks := flowNodes(t, bpmnEngine, pi.Key, "approve")
	require.Len(t, tasks, 1)
	assert.Equal(t, runtime.FlowNodeStateCompleted, tasks[0].State)
	assert.Equal(t, int64(11), tasks[0].ExecutedBy)
	assert.Equal(t, int64(12), tasks[0].ExecutedBySubstitute)
	hidden, err := bpmnEngine.IsTaskHidden(t.Context(), task.Key, 13)
	assert.NoError(t, err)
	assert.False(t, hidden)
	pi = processInstance(t, bpmnEngine, pi.Key)
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
	assert.Equal(t, true, pi.Variables["approved"])
}

func Test_completing_human_task_by_the_assignee(t *testing.T) {
	// setup
	bpmnEngine, pi, _ := humanTaskEngine(t)
	task := waiting(t, bpmnEngine, pi.Key, "approve")
	require.NoError(t, bpmnEngine.ClaimHumanTask(t.Context(), task.Key, 11))

	// when
	require.NoError(t, bpmnEngine.CompleteHumanTask(t.Context(), task.Key, 11, nil))
	drain(t, bpmnEngine)

	// then
	tasks := flowNodes(t, bpmnEngine, pi.Key, "approve")
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(11), tasks[0].ExecutedBy)
	assert.Zero(t, tasks[0].ExecutedBySubstitute)
}

func Test_human_task_operations_reject_other_flow_nodes(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	task := waiting(t, bpmnEngine, pi.Key, "task")

	// when
	err := bpmnEngine.ClaimHumanTask(t.Context(), task.Key, 11)

	// then
	var engineErr *BpmnEngineError
	assert.ErrorAs(t, err, &engineErr)
	assert.Error(t, bpmnEngine.CompleteHumanTask(t.Context(), task.Key, 11, nil))
}
