package runtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNode(kind FlowNodeKind) *FlowNodeInstance {
	return &FlowNodeInstance{Key: 1, Kind: kind, State: FlowNodeStateCreated, StateCategory: StateCategoryNormal}
}

func TestForwardLifecycle(t *testing.T) {
	now := time.Now()
	n := newNode(FlowNodeKindActivity)

	require.NoError(t, n.Transition(EventInitialize, now))
	assert.Equal(t, FlowNodeStateReady, n.State)
	assert.Equal(t, FlowNodeStateCreated, n.PreviousState)
	assert.True(t, n.Stable)
	assert.False(t, n.Terminal)

	require.NoError(t, n.Transition(EventExecute, now))
	assert.Equal(t, FlowNodeStateExecuting, n.State)
	assert.True(t, n.Stable)

	require.NoError(t, n.Transition(EventComplete, now))
	assert.Equal(t, FlowNodeStateCompleted, n.State)
	assert.True(t, n.Terminal)
	assert.False(t, n.Stable)
	assert.Equal(t, now, n.ReachedStateDate)
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	for _, event := range []TransitionEvent{EventInitialize, EventExecute, EventComplete, EventFail, EventRetry, EventSkip, EventLoop, EventAbort, EventCancel} {
		n := newNode(FlowNodeKindLoopActivity)
		n.State = FlowNodeStateAborted
		n.Terminal = true

		err := n.Transition(event, time.Now())
		assert.ErrorIs(t, err, ErrIllegalStateTransition, "event %s", event)
		assert.Equal(t, FlowNodeStateAborted, n.State)
	}
}

func TestExitFromEveryLiveState(t *testing.T) {
	for _, state := range []FlowNodeState{FlowNodeStateCreated, FlowNodeStateReady, FlowNodeStateExecuting, FlowNodeStateFailed} {
		n := newNode(FlowNodeKindActivity)
		n.State = state
		require.NoError(t, n.Transition(EventAbort, time.Now()))
		assert.Equal(t, FlowNodeStateAborted, n.State)

		n = newNode(FlowNodeKindActivity)
		n.State = state
		require.NoError(t, n.Transition(EventCancel, time.Now()))
		assert.Equal(t, FlowNodeStateCancelled, n.State)
	}
}

func TestCategoryGating(t *testing.T) {
	n := newNode(FlowNodeKindActivity)
	n.State = FlowNodeStateReady
	n.StateCategory = StateCategoryAborting

	var illegal *IllegalTransitionError
	err := n.Transition(EventExecute, time.Now())
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, EventExecute, illegal.Event)
	assert.Equal(t, FlowNodeStateReady, illegal.From)

	require.NoError(t, n.Transition(EventCancel, time.Now()))

	n = newNode(FlowNodeKindActivity)
	n.State = FlowNodeStateExecuting
	n.StateCategory = StateCategoryCancelling
	assert.ErrorIs(t, n.Transition(EventAbort, time.Now()), ErrIllegalStateTransition)
	assert.NoError(t, n.Transition(EventCancel, time.Now()))
}

func TestFailedIsStableAndRecoverable(t *testing.T) {
	n := newNode(FlowNodeKindActivity)
	n.State = FlowNodeStateExecuting

	require.NoError(t, n.Transition(EventFail, time.Now()))
	assert.True(t, n.Stable)
	assert.False(t, n.Terminal)

	require.NoError(t, n.Transition(EventRetry, time.Now()))
	assert.Equal(t, FlowNodeStateReady, n.State)

	require.NoError(t, n.Transition(EventFail, time.Now()))
	require.NoError(t, n.Transition(EventSkip, time.Now()))
	assert.Equal(t, FlowNodeStateCompleted, n.State)
}

func TestLoopReEntryKeepsCounter(t *testing.T) {
	n := newNode(FlowNodeKindLoopActivity)
	n.State = FlowNodeStateExecuting
	n.LoopCounter = 2
	n.BeginExecuting()

	require.NoError(t, n.ReEnter(time.Now()))
	assert.Equal(t, FlowNodeStateExecuting, n.State)
	assert.Equal(t, 2, n.LoopCounter)
	assert.True(t, n.Stable)
	assert.False(t, n.StateExecuting)

	plain := newNode(FlowNodeKindActivity)
	plain.State = FlowNodeStateExecuting
	assert.ErrorIs(t, plain.ReEnter(time.Now()), ErrIllegalStateTransition)
}

func TestStableRequiresNoRunningHandler(t *testing.T) {
	n := newNode(FlowNodeKindActivity)
	require.NoError(t, n.Transition(EventInitialize, time.Now()))
	n.BeginExecuting()
	assert.False(t, n.Stable)

	require.NoError(t, n.Transition(EventExecute, time.Now()))
	assert.False(t, n.Stable, "stable must stay false while a handler runs")

	n.EndExecuting()
	assert.True(t, n.Stable)
}

func TestLogicalGroupBounds(t *testing.T) {
	n := newNode(FlowNodeKindActivity)
	for i := range 4 {
		require.NoError(t, n.SetLogicalGroup(i, int64(i+10)))
		v, err := n.LogicalGroup(i)
		require.NoError(t, err)
		assert.Equal(t, int64(i+10), v)
	}
	_, err := n.LogicalGroup(4)
	assert.ErrorIs(t, err, ErrLogicalGroupIndex)
	_, err = n.LogicalGroup(-1)
	assert.ErrorIs(t, err, ErrLogicalGroupIndex)
	assert.ErrorIs(t, n.SetLogicalGroup(7, 1), ErrLogicalGroupIndex)
}

func TestFlowNodeStateJSON(t *testing.T) {
	n := newNode(FlowNodeKindGateway)
	n.State = FlowNodeStateExecuting
	n.Gateway = &GatewayPayload{GatewayType: GatewayTypeParallel, HitBys: NewHitBys("b", "a")}

	data, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"s":"EXECUTING"`)
	assert.Contains(t, string(data), `"hb":["a","b"]`)

	var decoded FlowNodeInstance
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, FlowNodeStateExecuting, decoded.State)
	assert.True(t, decoded.Gateway.HitBys.ContainsAll([]string{"a", "b"}))
}

func TestCloneDoesNotShareHitBys(t *testing.T) {
	n := newNode(FlowNodeKindGateway)
	n.Gateway = &GatewayPayload{GatewayType: GatewayTypeParallel, HitBys: NewHitBys("a")}

	c := n.Clone()
	c.Gateway.HitBys["b"] = struct{}{}
	assert.Equal(t, 1, n.Gateway.HitBys.Len())
	assert.Equal(t, 2, c.Gateway.HitBys.Len())
}

func TestMustExecuteOnAbort(t *testing.T) {
	n := newNode(FlowNodeKindHumanTask)
	n.Stable = true
	assert.True(t, n.MustExecuteOnAbortOrCancelProcess())

	n.Kind = FlowNodeKindLoopActivity
	n.State = FlowNodeStateExecuting
	assert.False(t, n.MustExecuteOnAbortOrCancelProcess())

	// a failed container has no children to defer to
	n.Kind = FlowNodeKindMultiInstanceActivity
	n.State = FlowNodeStateFailed
	assert.True(t, n.MustExecuteOnAbortOrCancelProcess())

	n.Kind = FlowNodeKindActivity
	n.Stable = false
	assert.False(t, n.MustExecuteOnAbortOrCancelProcess())
}

func TestStateCategoryEffective(t *testing.T) {
	assert.Equal(t, StateCategoryAborting, StateCategoryNormal.Effective(StateCategoryAborting))
	assert.Equal(t, StateCategoryCancelling, StateCategoryAborting.Effective(StateCategoryCancelling))
	assert.Equal(t, StateCategoryCancelling, StateCategoryCancelling.Effective(StateCategoryAborting))
	assert.Equal(t, StateCategoryNormal, StateCategory("").Effective(StateCategoryNormal))
	assert.Equal(t, EventCancel, StateCategoryCancelling.ExitEvent())
	assert.Equal(t, EventAbort, StateCategoryAborting.ExitEvent())
}
