package bpmn

import (
	"context"
	"slices"
	"testing"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noLocker lets two batches of one goroutine work on the same process instance.
type noLocker struct{}

func (noLocker) Lock(ctx context.Context, key string) (lock.Unlock, error) {
	return func() {}, nil
}

func Test_stale_token_commit_is_rejected(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t, EngineWithLocker(noLocker{}))
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	assert.Equal(t, 1, activeCount(t, bpmnEngine, pi.Key))

	// given
	first := bpmnEngine.newEngineBatch(runtime.WorkItem{ProcessInstanceKey: pi.Key})
	second := bpmnEngine.newEngineBatch(runtime.WorkItem{ProcessInstanceKey: pi.Key})
	_, err := bpmnEngine.tokens.Spawn(t.Context(), first, pi.Key, runtime.Token{})
	require.NoError(t, err)
	_, err = bpmnEngine.tokens.Spawn(t.Context(), second, pi.Key, runtime.Token{})
	require.NoError(t, err)

	// when
	firstErr := first.Flush(t.Context())
	secondErr := second.Flush(t.Context())

	// then
	assert.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, ErrConcurrentModification)
	assert.Equal(t, 2, activeCount(t, bpmnEngine, pi.Key))
}

func Test_stale_flow_node_commit_is_rejected(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t, EngineWithLocker(noLocker{}))
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	task := waiting(t, bpmnEngine, pi.Key, "task")

	// given
	first := bpmnEngine.newEngineBatch(runtime.WorkItem{FlowNodeInstanceKey: task.Key})
	second := bpmnEngine.newEngineBatch(runtime.WorkItem{FlowNodeInstanceKey: task.Key})
	n1, err := first.node(t.Context(), task.Key)
	require.NoError(t, err)
	n2, err := second.node(t.Context(), task.Key)
	require.NoError(t, err)
	n1.DisplayName = "first"
	first.saveNode(n1)
	n2.DisplayName = "second"
	second.saveNode(n2)

	// when
	firstErr := first.Flush(t.Context())
	secondErr := second.Flush(t.Context())

	// then
	assert.NoError(t, firstErr)
	assert.ErrorIs(t, secondErr, ErrConcurrentModification)
	stored := waiting(t, bpmnEngine, pi.Key, "task")
	assert.Equal(t, "first", stored.DisplayName)
}

func Test_retiring_a_token_twice_fails(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "simple_task.yaml")
	pi := startAndDrain(t, bpmnEngine, process, nil)
	task := waiting(t, bpmnEngine, pi.Key, "task")

	// given
	batch := bpmnEngine.newEngineBatch(runtime.WorkItem{ProcessInstanceKey: pi.Key})
	defer batch.release()
	token, ok, err := bpmnEngine.tokens.Token(t.Context(), batch, pi.Key, task.TokenKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, task.Key, token.Holder)
	remaining, err := bpmnEngine.tokens.Retire(t.Context(), batch, token)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	// when
	remaining, err = bpmnEngine.tokens.Retire(t.Context(), batch, token)

	// then
	assert.ErrorIs(t, err, ErrTokenNotLive)
	assert.Equal(t, 0, remaining)
}

func Test_active_count_never_goes_below_zero(t *testing.T) {
	// setup
	bpmnEngine := newTestEngine(t)
	process := deploy(t, bpmnEngine, "three_way_join.yaml")
	pi, err := bpmnEngine.StartProcess(t.Context(), process.Key, nil)
	require.NoError(t, err)

	// when
	counts := []int{activeCount(t, bpmnEngine, pi.Key)}
	for bpmnEngine.Queue().Len() > 0 {
		_, err := bpmnEngine.ProcessOne(t.Context())
		require.NoError(t, err)
		counts = append(counts, activeCount(t, bpmnEngine, pi.Key))
	}
	for _, id := range []string{"a", "b", "c"} {
		complete(t, bpmnEngine, pi.Key, id, nil)
		counts = append(counts, activeCount(t, bpmnEngine, pi.Key))
	}

	// then
	for _, count := range counts {
		assert.GreaterOrEqual(t, count, 0)
	}
	assert.Equal(t, 0, counts[len(counts)-1])
	assert.Equal(t, 3, slices.Max(counts))
}
