package bpmn

import (
	"testing"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_worker_pool_runs_process_to_completion(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "fork_join.yaml")
	cp := CallPath{}
	for _, id := range []string{"a", "b", "after-join"} {
		bpmnEngine.NewTaskHandler().Id(id).Handler(cp.TaskHandler)
	}
	pool := NewWorkerPool(bpmnEngine, 4)
	require.NoError(t, pool.Start(t.Context()))
	defer pool.Stop()

	// when
	pi, err := bpmnEngine.StartProcess(t.Context(), process.Key, nil)
	require.NoError(t, err)

	// then
	assert.Eventually(t, func() bool {
		instance, err := bpmnEngine.FindProcessInstance(t.Context(), pi.Key)
		return err == nil && instance.State == runtime.ProcessInstanceCompleted
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "join"), 1)
	assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "after-join"), 1)
	assert.Contains(t, cp.String(), "a")
	assert.Contains(t, cp.String(), "b")
}

func Test_worker_pool_cannot_be_started_twice(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	pool := NewWorkerPool(bpmnEngine, 2)

	// when
	require.NoError(t, pool.Start(t.Context()))
	err := pool.Start(t.Context())

	// then
	assert.Error(t, err)
	pool.Stop()
	pool.Stop()
	assert.NoError(t, pool.Start(t.Context()))
	pool.Stop()
}
