package bpmn

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForkJoinActiveCount(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "fork_join.yaml")

	// given
	pi := startAndDrain(t, bpmnEngine, process, nil)
	assert.Equal(t, 2, activeCount(t, bpmnEngine, pi.Key))

	// when
	complete(t, bpmnEngine, pi.Key, "a", nil)

	// then
	assert.Equal(t, 1, activeCount(t, bpmnEngine, pi.Key))
	join := waiting(t, bpmnEngine, pi.Key, "join")
	assert.Equal(t, runtime.NewHitBys("t4"), join.Gateway.HitBys)

	// when
	complete(t, bpmnEngine, pi.Key, "b", nil)

	// then
	assert.Equal(t, 1, activeCount(t, bpmnEngine, pi.Key))
	joins := flowNodes(t, bpmnEngine, pi.Key, "join")
	require.Len(t, joins, 1)
	assert.Equal(t, runtime.FlowNodeStateCompleted, joins[0].State)
	assert.Equal(t, 2, joins[0].TokenCount)
	waiting(t, bpmnEngine, pi.Key, "after-join")

	// when
	complete(t, bpmnEngine, pi.Key, "after-join", nil)

	// then
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
	assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
}

func permutations(ids []string) [][]string {
	if len(ids) <= 1 {
		return [][]string{append([]string{}, ids...)}
	}
	var res [][]string
	for i := range ids {
		rest := make([]string, 0, len(ids)-1)
		rest = append(rest, ids[:i]...)
		rest = append(rest, ids[i+1:]...)
		for _, p := range permutations(rest) {
			res = append(res, append([]string{ids[i]}, p...))
		}
	}
	return res
}

func Test_parallel_join_fires_once_for_every_arrival_order(t *testing.T) {
	for _, order := range permutations([]string{"a", "b", "c"}) {
		t.Run(strings.Join(order, "-"), func(t *testing.T) {
			// setup
			bpmnEngine := newTestEngine(t)
			process := deploy(t, bpmnEngine, "three_way_join.yaml")
			pi := startAndDrain(t, bpmnEngine, process, nil)
			assert.Equal(t, 3, activeCount(t, bpmnEngine, pi.Key))

			// when
			for i, id := range order {
				complete(t, bpmnEngine, pi.Key, id, nil)
				if i < len(order)-1 {
					assert.Equal(t, len(order)-1-i, activeCount(t, bpmnEngine, pi.Key))
					assert.Equal(t, runtime.ProcessInstanceActive, processInstance(t, bpmnEngine, pi.Key).State)
				}
			}

			// then
			joins := flowNodes(t, bpmnEngine, pi.Key, "join")
			require.Len(t, joins, 1)
			assert.Equal(t, runtime.FlowNodeStateCompleted, joins[0].State)
			assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "end"), 1)
			assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
			assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
		})
	}
}

func Test_parallel_join_fires_once_when_arrivals_are_queued_together(t *testing.T) {
	for _, order := range permutations([]string{"a", "b", "c"}) {
		t.Run(strings.Join(order, "-"), func(t *testing.T) {
			// setup
			bpmnEngine := newTestEngine(t)
			process := deploy(t, bpmnEngine, "three_way_join.yaml")
			pi := startAndDrain(t, bpmnEngine, process, nil)

			// when
			for _, id := range order {
				n := waiting(t, bpmnEngine, pi.Key, id)
				require.NoError(t, bpmnEngine.CompleteFlowNode(t.Context(), n.Key, nil))
			}
			drain(t, bpmnEngine)

			// then
			assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "join"), 1)
			assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "end"), 1)
			assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
		})
	}
}

func Test_exclusive_gateway_selects_one_and_not_the_other(t *testing.T) {
	tests := []struct {
		amount   int
		expected string
	}{
		{amount: 150, expected: "big"},
		{amount: 50, expected: "small"},
		{amount: 100, expected: "small"},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("amount %d", test.amount), func(t *testing.T) {
			// setup
			bpmnEngine := newTestEngine(t)
			process := deploy(t, bpmnEngine, "exclusive_gateway.yaml")
			cp := CallPath{}
			bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

			// when
			pi := startAndDrain(t, bpmnEngine, process, map[string]any{"amount": test.amount})

			// then
			assert.Equal(t, test.expected, cp.String())
			assert.Equal(t, runtime.ProcessInstanceCompleted, pi.State)
		})
	}
}

func Test_exclusive_merge_emits_once_and_discards_late_branch(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "exclusive_merge.yaml")
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)
	pi := startAndDrain(t, bpmnEngine, process, nil)

	// when
	complete(t, bpmnEngine, pi.Key, "a", nil)

	// then
	assert.Equal(t, "after-merge", cp.String())
	assert.Equal(t, 1, activeCount(t, bpmnEngine, pi.Key))
	merges := flowNodes(t, bpmnEngine, pi.Key, "merge")
	require.Len(t, merges, 1)
	assert.Equal(t, runtime.NewHitBys("t5"), merges[0].Gateway.Pending)
	assert.Equal(t, runtime.ProcessInstanceActive, processInstance(t, bpmnEngine, pi.Key).State)

	// when
	complete(t, bpmnEngine, pi.Key, "b", nil)

	// then
	assert.Equal(t, "after-merge", cp.String())
	assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "merge"), 1)
	assert.Equal(t, 0, activeCount(t, bpmnEngine, pi.Key))
	assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
}

func Test_inclusive_join_waits_for_every_taken_branch(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "inclusive_gateway.yaml")
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

	// given
	pi := startAndDrain(t, bpmnEngine, process, map[string]any{"takeA": true, "takeB": true})
	assert.Equal(t, 2, activeCount(t, bpmnEngine, pi.Key))

	// when
	complete(t, bpmnEngine, pi.Key, "a", nil)

	// then
	assert.Equal(t, "", cp.String())
	join := waiting(t, bpmnEngine, pi.Key, "join")
	assert.True(t, join.Gateway.HitBys.Contains("t4"))

	// when
	complete(t, bpmnEngine, pi.Key, "b", nil)

	// then
	assert.Equal(t, "after-join", cp.String())
	assert.Len(t, flowNodes(t, bpmnEngine, pi.Key, "join"), 1)
	assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
}

func Test_inclusive_join_fires_when_only_one_branch_was_taken(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "inclusive_gateway.yaml")
	cp := CallPath{}
	bpmnEngine.NewTaskHandler().Type("record").Handler(cp.TaskHandler)

	// given
	pi := startAndDrain(t, bpmnEngine, process, map[string]any{"takeA": false, "takeB": true})
	assert.Equal(t, 1, activeCount(t, bpmnEngine, pi.Key))
	assert.Empty(t, flowNodes(t, bpmnEngine, pi.Key, "a"))

	// when
	complete(t, bpmnEngine, pi.Key, "b", nil)

	// then
	assert.Equal(t, "after-join", cp.String())
	assert.Equal(t, runtime.ProcessInstanceCompleted, processInstance(t, bpmnEngine, pi.Key).State)
}

func Test_reachability_oracle_reports_branches_still_on_their_way(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	def := deploy(t, bpmnEngine, "inclusive_gateway.yaml")
	oracle := GraphReachabilityOracle{}

	// when
	pending, decided := oracle.PendingBranches(def, "join", runtime.NewHitBys("t4"), []TokenPosition{{FlowNodeDefinitionId: "b"}})

	// then
	assert.Equal(t, []string{"t5"}, pending)
	assert.True(t, decided)

	// when
	pending, decided = oracle.PendingBranches(def, "join", runtime.NewHitBys("t4"), []TokenPosition{{FlowNodeDefinitionId: "split", InFlight: true}})

	// then
	assert.Equal(t, []string{"t5"}, pending)
	assert.False(t, decided)

	// when
	pending, decided = oracle.PendingBranches(def, "join", runtime.NewHitBys("t4"), []TokenPosition{{FlowNodeDefinitionId: "after-join"}})

	// then
	assert.Empty(t, pending)
	assert.True(t, decided)
}
