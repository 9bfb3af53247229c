package bpmn

import (
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_loop_runs_body_until_loop_max(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "loop.yaml")
	var counters []int
	bpmnEngine.NewTaskHandler().Type("record").Handler(func(job ActivatedJob) {
		counters = append(counters, job.LoopCounter())
		job.Complete()
	})

	// when
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// then
	assert.Equal(t, []int{1, 2, 3}, counters)
	loops := flowNodes(t, bpmnEngine, pi.Key, "repeat")
	var parent runtime.FlowNodeInstance
	children := 0
	for _, n := range loops {
		if n.Kind == runtime.FlowNodeKindLoopActivity {
			parent = n
			continue
		}
		children++
		assert.Equal(t, runtime.FlowNodeStateCompleted, n.State)
		assert.True(t, n.IsChild())
	}
	assert.Equal(t, 3, children)
	assert.Equal(t, 4, parent.LoopCounter)
	assert.Equal(t, runtime.FlowNodeStateCompleted, parent.State)
	assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
}

func Test_loop_condition_tested_before_each_body(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		bodies int
	}{
		{name: "two bodies", limit: 2, bodies: 2},
		{name: "no body", limit: 0, bodies: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// setup
			bpmnEngine := newTestEngine(t)
			process := deploy(t, bpmnEngine, "loop_condition.yaml")
			cp := CallPath{}
			bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

			// when
			pi := startAndDrain(t, bpmnEngine, process, map[string]any{"limit": test.limit})

			// then
			assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "repeat"), test.bodies+1)
			assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
		})
	}
}

func Test_loop_waits_for_each_iteration(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "loop.yaml")

	// given
	pi := startAndDrain(t, bpmnEngine, process, nil)

	for i := 1; i <= 3; i++ {
		// when
		var current runtime.FlowNodeInstance
		for _, n := range flowNodes(t, bpmnEngine, pi.Key, "repeat") {
			if n.Kind == runtime.FlowNodeKindActivity && !n.Terminal {
				current = n
			}
		}
		require.Equal(t, i, current.LoopCounter)
		require.NoError(t, bpmnEngine.CompleteFlowNode(t.Context(), current.Key, nil))
		drain(t, bpmnEngine)
	}

	// then
	assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
}
