// Package storagetest holds the contract tests every storage.Storage implementation must pass.
package storagetest

import (
	"reflect"
	"strings"
	"testing"
	"time"

	stdruntime "runtime"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type StorageTestFunc func(s storage.Storage, t *testing.T) func(t *testing.T)

type StorageTester struct {
	processDefinition *runtime.ProcessDefinition
	processInstance   runtime.ProcessInstance
}

func (st *StorageTester) GetTests() map[string]StorageTestFunc {
	tests := map[string]StorageTestFunc{}

	// all test functions need to be registered here
	functions := []StorageTestFunc{
		st.TestProcessDefinitionStorage,
		st.TestProcessInstanceStorageWriter,
		st.TestProcessInstanceStorageReader,
		st.TestProcessInstanceRootIsImmutable,
		st.TestVersionConflictOnStaleCommit,
		st.TestBatchIsAtomic,
		st.TestFlowNodeInstanceStorage,
		st.TestFlowNodeInstanceQuery,
		st.TestConnectorInstanceStorage,
		st.TestTokenSetStorage,
		st.TestHiddenTaskStorage,
		st.TestIncidentStorage,
		st.TestOutboxStorage,
	}

	for _, function := range functions {
		funcName := getFunctionName(function)
		strippedName := funcName[strings.LastIndex(funcName, ".")+1:]
		strippedName = strings.TrimSuffix(strippedName, "-fm")
		tests[strippedName] = function
	}
	return tests
}

func getFunctionName(i any) string {
	return stdruntime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
}

func getProcessDefinition(r int64) *runtime.ProcessDefinition {
	return &runtime.ProcessDefinition{
		Key:     r,
		Id:      "storage-test",
		Version: 1,
		FlowNodes: []runtime.FlowNodeDefinition{
			{Id: "start", Kind: runtime.FlowNodeKindEvent, EventType: runtime.EventTypeStart},
			{Id: "task", Kind: runtime.FlowNodeKindActivity},
			{Id: "end", Kind: runtime.FlowNodeKindEvent, EventType: runtime.EventTypeEnd},
		},
		Transitions: []runtime.TransitionDefinition{
			{Id: "t1", SourceRef: "start", TargetRef: "task"},
			{Id: "t2", SourceRef: "task", TargetRef: "end"},
		},
	}
}

func getProcessInstance(r int64, d *runtime.ProcessDefinition) runtime.ProcessInstance {
	return runtime.ProcessInstance{
		Key:                  r,
		ProcessDefinitionKey: d.Key,
		State:                runtime.ProcessInstanceActive,
		StateCategory:        runtime.StateCategoryNormal,
		Variables: map[string]any{
			"v1":   float64(123),
			"var2": "val2",
		},
		StartDate:            time.Now().Truncate(time.Millisecond),
		InterruptingEventKey: runtime.NoInterruptingEvent,
	}
}

func getFlowNodeInstance(key int64, pi runtime.ProcessInstance, kind runtime.FlowNodeKind) runtime.FlowNodeInstance {
	n := runtime.FlowNodeInstance{
		Key:                  key,
		Kind:                 kind,
		FlowNodeDefinitionId: "task",
		RootContainerKey:     pi.Key,
		ParentContainerKey:   pi.Key,
		State:                runtime.FlowNodeStateExecuting,
		PreviousState:        runtime.FlowNodeStateReady,
		StateCategory:        runtime.StateCategoryNormal,
		Stable:               true,
		ReachedStateDate:     time.Now().Truncate(time.Millisecond),
	}
	n.LogicalGroups[runtime.LogicalGroupParentProcessInstance] = pi.Key
	n.LogicalGroups[runtime.LogicalGroupRootProcessInstance] = pi.Key
	n.LogicalGroups[runtime.LogicalGroupProcessDefinition] = pi.ProcessDefinitionKey
	if kind.IsActivity() {
		n.Activity = &runtime.ActivityPayload{}
	}
	return n
}

func flush(t *testing.T, s storage.Storage, write func(b storage.Batch)) error {
	t.Helper()
	b := s.NewBatch()
	write(b)
	return b.Flush(t.Context())
}

// PrepareTestData will prepare common data for the tests
func (st *StorageTester) PrepareTestData(s storage.Storage, t *testing.T) {
	r := s.GenerateId()

	st.processDefinition = getProcessDefinition(r)
	require.NoError(t, st.processDefinition.Index())
	err := flush(t, s, func(b storage.Batch) {
		assert.NoError(t, b.SaveProcessDefinition(t.Context(), st.processDefinition))
	})
	require.NoError(t, err)

	st.processInstance = getProcessInstance(s.GenerateId(), st.processDefinition)
	err = flush(t, s, func(b storage.Batch) {
		assert.NoError(t, b.SaveProcessInstance(t.Context(), st.processInstance))
	})
	require.NoError(t, err)
	st.processInstance.Version = 1
	st.processInstance.RootProcessInstanceKey = st.processInstance.Key
}

func (st *StorageTester) TestProcessDefinitionStorage(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		def, err := s.FindProcessDefinitionByKey(t.Context(), st.processDefinition.Key)
		require.NoError(t, err)
		assert.Equal(t, "storage-test", def.Id)
		node, ok := def.FlowNode("task")
		require.True(t, ok, "loaded definitions must be indexed")
		assert.Equal(t, runtime.FlowNodeKindActivity, node.Kind)
		assert.Len(t, def.Outgoing("start"), 1)

		newer := getProcessDefinition(s.GenerateId())
		newer.Version = 2
		require.NoError(t, newer.Index())
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveProcessDefinition(t.Context(), newer))
		}))

		latest, err := s.FindLatestProcessDefinitionById(t.Context(), "storage-test")
		require.NoError(t, err)
		assert.Equal(t, newer.Key, latest.Key)

		_, err = s.FindProcessDefinitionByKey(t.Context(), -1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.FindLatestProcessDefinitionById(t.Context(), "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StorageTester) TestProcessInstanceStorageWriter(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		inst := getProcessInstance(s.GenerateId(), st.processDefinition)
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveProcessInstance(t.Context(), inst))
		}))

		stored, err := s.FindProcessInstanceByKey(t.Context(), inst.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)
		assert.Equal(t, inst.Key, stored.RootProcessInstanceKey, "root key is assigned at first persistence")

		stored.State = runtime.ProcessInstanceCompleted
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveProcessInstance(t.Context(), stored))
		}))
		stored, err = s.FindProcessInstanceByKey(t.Context(), inst.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Version)
		assert.Equal(t, runtime.ProcessInstanceCompleted, stored.State)
	}
}

func (st *StorageTester) TestProcessInstanceStorageReader(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		pi, err := s.FindProcessInstanceByKey(t.Context(), st.processInstance.Key)
		require.NoError(t, err)
		assert.Equal(t, st.processInstance.Key, pi.Key)
		assert.Equal(t, "val2", pi.Variables["var2"])
		assert.Equal(t, float64(123), pi.Variables["v1"])
		assert.Equal(t, runtime.NoInterruptingEvent, pi.InterruptingEventKey)

		child := getProcessInstance(s.GenerateId(), st.processDefinition)
		child.CallerKey = 77
		child.CallerType = runtime.CallerTypeCallActivity
		child.RootProcessInstanceKey = st.processInstance.Key
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveProcessInstance(t.Context(), child))
		}))

		children, err := s.FindProcessInstancesByCaller(t.Context(), 77)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, st.processInstance.Key, children[0].RootProcessInstanceKey)
		assert.False(t, children[0].IsRoot())

		_, err = s.FindProcessInstanceByKey(t.Context(), -1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StorageTester) TestProcessInstanceRootIsImmutable(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		inst := getProcessInstance(s.GenerateId(), st.processDefinition)
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveProcessInstance(t.Context(), inst))
		}))
		stored, err := s.FindProcessInstanceByKey(t.Context(), inst.Key)
		require.NoError(t, err)

		stored.RootProcessInstanceKey = 12345
		err = flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveProcessInstance(t.Context(), stored))
		})
		assert.ErrorIs(t, err, storage.ErrImmutableField)
	}
}

func (st *StorageTester) TestVersionConflictOnStaleCommit(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		n := getFlowNodeInstance(s.GenerateId(), st.processInstance, runtime.FlowNodeKindActivity)
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), n))
		}))

		first, err := s.FindFlowNodeInstanceByKey(t.Context(), n.Key)
		require.NoError(t, err)
		second := first.Clone()

		first.State = runtime.FlowNodeStateCompleted
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), first))
		}))

		second.State = runtime.FlowNodeStateAborted
		err = flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), second))
		})
		assert.ErrorIs(t, err, storage.ErrVersionConflict)

		stored, err := s.FindFlowNodeInstanceByKey(t.Context(), n.Key)
		require.NoError(t, err)
		assert.Equal(t, runtime.FlowNodeStateCompleted, stored.State)
		assert.Equal(t, int64(2), stored.Version)

		// a second insert of the same key is a conflict as well
		err = flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), n))
		})
		assert.ErrorIs(t, err, storage.ErrVersionConflict)
	}
}

func (st *StorageTester) TestBatchIsAtomic(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		stale := getFlowNodeInstance(s.GenerateId(), st.processInstance, runtime.FlowNodeKindActivity)
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), stale))
		}))

		fresh := getFlowNodeInstance(s.GenerateId(), st.processInstance, runtime.FlowNodeKindActivity)
		set := runtime.NewTokenSet(s.GenerateId())
		set.Live[1] = runtime.Token{Key: 1, ProcessInstanceKey: set.ProcessInstanceKey}
		err := flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), fresh))
			assert.NoError(t, b.SaveTokenSet(t.Context(), set))
			// stale still carries version 0
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), stale))
		})
		assert.ErrorIs(t, err, storage.ErrVersionConflict)

		_, err = s.FindFlowNodeInstanceByKey(t.Context(), fresh.Key)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.FindTokenSet(t.Context(), set.ProcessInstanceKey)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StorageTester) TestFlowNodeInstanceStorage(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		gw := getFlowNodeInstance(s.GenerateId(), st.processInstance, runtime.FlowNodeKindGateway)
		gw.Gateway = &runtime.GatewayPayload{
			GatewayType: runtime.GatewayTypeParallel,
			HitBys:      runtime.NewHitBys("t4"),
		}
		task := getFlowNodeInstance(s.GenerateId(), st.processInstance, runtime.FlowNodeKindHumanTask)
		task.HumanTask = &runtime.HumanTaskPayload{AssigneeKey: 5, Priority: 2}
		task.LoopCounter = 3
		task.Activity.AbortedByBoundary = 9

		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), gw))
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), task))
		}))

		storedGw, err := s.FindFlowNodeInstanceByKey(t.Context(), gw.Key)
		require.NoError(t, err)
		require.NotNil(t, storedGw.Gateway)
		assert.True(t, storedGw.Gateway.HitBys.Contains("t4"))
		assert.Equal(t, runtime.FlowNodeStateExecuting, storedGw.State)
		assert.Equal(t, runtime.FlowNodeStateReady, storedGw.PreviousState)

		storedTask, err := s.FindFlowNodeInstanceByKey(t.Context(), task.Key)
		require.NoError(t, err)
		require.NotNil(t, storedTask.HumanTask)
		assert.Equal(t, int64(5), storedTask.HumanTask.AssigneeKey)
		assert.Equal(t, 3, storedTask.LoopCounter)
		assert.Equal(t, int64(9), storedTask.Activity.AbortedByBoundary)
		pik, err := storedTask.LogicalGroup(runtime.LogicalGroupParentProcessInstance)
		require.NoError(t, err)
		assert.Equal(t, st.processInstance.Key, pik)

		// mutating a loaded copy must not leak into the store
		storedGw.Gateway.HitBys["t5"] = struct{}{}
		again, err := s.FindFlowNodeInstanceByKey(t.Context(), gw.Key)
		require.NoError(t, err)
		assert.False(t, again.Gateway.HitBys.Contains("t5"))

		_, err = s.FindFlowNodeInstanceByKey(t.Context(), -1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StorageTester) TestFlowNodeInstanceQuery(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		pi := getProcessInstance(s.GenerateId(), st.processDefinition)
		other := getProcessInstance(s.GenerateId(), st.processDefinition)

		stable := getFlowNodeInstance(s.GenerateId(), pi, runtime.FlowNodeKindActivity)
		moving := getFlowNodeInstance(s.GenerateId(), pi, runtime.FlowNodeKindActivity)
		moving.StateExecuting = true
		moving.Stable = false
		done := getFlowNodeInstance(s.GenerateId(), pi, runtime.FlowNodeKindActivity)
		done.State = runtime.FlowNodeStateCompleted
		done.Terminal = true
		done.Stable = false
		foreign := getFlowNodeInstance(s.GenerateId(), other, runtime.FlowNodeKindActivity)

		require.NoError(t, flush(t, s, func(b storage.Batch) {
			// saved out of key order on purpose
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), done))
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), foreign))
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), stable))
			assert.NoError(t, b.SaveFlowNodeInstance(t.Context(), moving))
		}))

		var keys []int64
		for n, err := range s.QueryFlowNodeInstances(t.Context(), pi.Key, nil) {
			require.NoError(t, err)
			keys = append(keys, n.Key)
		}
		assert.Equal(t, []int64{stable.Key, moving.Key, done.Key}, keys)

		keys = nil
		for n, err := range s.QueryFlowNodeInstances(t.Context(), pi.Key, func(n runtime.FlowNodeInstance) bool {
			return n.Stable && !n.Terminal
		}) {
			require.NoError(t, err)
			keys = append(keys, n.Key)
		}
		assert.Equal(t, []int64{stable.Key}, keys)

		count := 0
		for range s.QueryFlowNodeInstances(t.Context(), -1, nil) {
			count++
		}
		assert.Zero(t, count)
	}
}

func (st *StorageTester) TestConnectorInstanceStorage(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		container := s.GenerateId()
		mk := func(order int, event runtime.ActivationEvent) runtime.ConnectorInstance {
			return runtime.ConnectorInstance{
				Key:             s.GenerateId(),
				ContainerKey:    container,
				ContainerType:   runtime.ContainerTypeFlowNode,
				ConnectorId:     "email",
				Version:         "1.0",
				Name:            "notify",
				ActivationEvent: event,
				State:           runtime.ConnectorToBeExecuted,
				ExecutionOrder:  order,
			}
		}
		c2 := mk(2, runtime.ActivationOnEnter)
		c0 := mk(0, runtime.ActivationOnEnter)
		c1 := mk(1, runtime.ActivationOnEnter)
		finish := mk(0, runtime.ActivationOnFinish)
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveConnectorInstance(t.Context(), c2))
			assert.NoError(t, b.SaveConnectorInstance(t.Context(), c0))
			assert.NoError(t, b.SaveConnectorInstance(t.Context(), finish))
			assert.NoError(t, b.SaveConnectorInstance(t.Context(), c1))
		}))

		group, err := s.FindConnectorInstances(t.Context(), container, runtime.ContainerTypeFlowNode, runtime.ActivationOnEnter)
		require.NoError(t, err)
		require.Len(t, group, 3)
		assert.Equal(t, []int{0, 1, 2}, []int{group[0].ExecutionOrder, group[1].ExecutionOrder, group[2].ExecutionOrder})
		assert.Equal(t, int64(1), group[0].Revision)

		stale := group[0]
		group[0].State = runtime.ConnectorExecuting
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveConnectorInstance(t.Context(), group[0]))
		}))
		stale.State = runtime.ConnectorDone
		err = flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveConnectorInstance(t.Context(), stale))
		})
		assert.ErrorIs(t, err, storage.ErrVersionConflict)

		stored, err := s.FindConnectorInstanceByKey(t.Context(), c0.Key)
		require.NoError(t, err)
		assert.Equal(t, runtime.ConnectorExecuting, stored.State)
		assert.Equal(t, "1.0", stored.Version)

		empty, err := s.FindConnectorInstances(t.Context(), -1, runtime.ContainerTypeFlowNode, runtime.ActivationOnEnter)
		require.NoError(t, err)
		assert.Empty(t, empty)
	}
}

func (st *StorageTester) TestTokenSetStorage(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		pik := s.GenerateId()
		_, err := s.FindTokenSet(t.Context(), pik)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		set := runtime.NewTokenSet(pik)
		set.Live[10] = runtime.Token{Key: 10, ProcessInstanceKey: pik}
		set.Live[11] = runtime.Token{Key: 11, ProcessInstanceKey: pik, ParentKey: 10}
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveTokenSet(t.Context(), set))
		}))

		stored, err := s.FindTokenSet(t.Context(), pik)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Count())
		assert.Equal(t, int64(10), stored.Live[11].ParentKey)
		assert.Equal(t, int64(1), stored.Version)

		delete(stored.Live, 10)
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveTokenSet(t.Context(), stored))
		}))
		err = flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveTokenSet(t.Context(), stored))
		})
		assert.ErrorIs(t, err, storage.ErrVersionConflict)
	}
}

func (st *StorageTester) TestHiddenTaskStorage(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		activity := s.GenerateId()
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveHiddenTask(t.Context(), runtime.HiddenTask{ActivityInstanceKey: activity, UserKey: 1, HiddenAt: time.Now()}))
			assert.NoError(t, b.SaveHiddenTask(t.Context(), runtime.HiddenTask{ActivityInstanceKey: activity, UserKey: 2, HiddenAt: time.Now()}))
			// saving the same pair twice is an upsert
			assert.NoError(t, b.SaveHiddenTask(t.Context(), runtime.HiddenTask{ActivityInstanceKey: activity, UserKey: 2, HiddenAt: time.Now()}))
		}))

		hidden, err := s.IsTaskHidden(t.Context(), activity, 1)
		require.NoError(t, err)
		assert.True(t, hidden)

		tasks, err := s.FindHiddenTasks(t.Context(), activity)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)

		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.DeleteHiddenTask(t.Context(), activity, 1))
		}))
		hidden, err = s.IsTaskHidden(t.Context(), activity, 1)
		require.NoError(t, err)
		assert.False(t, hidden)

		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.DeleteHiddenTasksForActivity(t.Context(), activity))
		}))
		tasks, err = s.FindHiddenTasks(t.Context(), activity)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	}
}

func (st *StorageTester) TestIncidentStorage(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		item := runtime.NewWorkItem(runtime.WorkExecuteConnectors, st.processInstance.Key)
		inc := runtime.Incident{
			Key:                  s.GenerateId(),
			Kind:                 runtime.IncidentConnectorFailure,
			ProcessInstanceKey:   st.processInstance.Key,
			FlowNodeInstanceKey:  3,
			ConnectorInstanceKey: 4,
			Message:              "smtp unavailable",
			WorkItem:             &item,
			CreatedAt:            time.Now().Truncate(time.Millisecond),
		}
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveIncident(t.Context(), inc))
		}))

		stored, err := s.FindIncidentByKey(t.Context(), inc.Key)
		require.NoError(t, err)
		assert.Equal(t, "smtp unavailable", stored.Message)
		require.NotNil(t, stored.WorkItem)
		assert.Equal(t, item.Id, stored.WorkItem.Id)
		assert.False(t, stored.IsResolved())

		stored.ResolvedAt = time.Now()
		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveIncident(t.Context(), stored))
		}))

		incidents, err := s.FindIncidentsByProcessInstanceKey(t.Context(), st.processInstance.Key)
		require.NoError(t, err)
		require.NotEmpty(t, incidents)
		found := false
		for _, i := range incidents {
			if i.Key == inc.Key {
				found = true
				assert.True(t, i.IsResolved())
			}
		}
		assert.True(t, found)

		_, err = s.FindIncidentByKey(t.Context(), -1)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	}
}

func (st *StorageTester) TestOutboxStorage(s storage.Storage, t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		first := runtime.NewWorkItem(runtime.WorkExecuteFlowNode, st.processInstance.Key)
		first.FlowNodeDefinitionId = "task"
		first.TransitionId = "t1"
		second := runtime.NewWorkItem(runtime.WorkAbortFlowNode, st.processInstance.Key)
		second.FlowNodeInstanceKey = 42

		// a conflicting write takes the outbox items down with it
		err := flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveOutboxItem(t.Context(), first))
			assert.NoError(t, b.SaveProcessInstance(t.Context(), runtime.ProcessInstance{Key: st.processInstance.Key, Version: 99}))
		})
		assert.ErrorIs(t, err, storage.ErrVersionConflict)
		assert.NotContains(t, outboxIds(t, s), first.Id)

		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.SaveOutboxItem(t.Context(), second))
			assert.NoError(t, b.SaveOutboxItem(t.Context(), first))
		}))
		items, err := s.FindOutboxItems(t.Context(), 0)
		require.NoError(t, err)
		var stored []runtime.WorkItem
		for _, item := range items {
			if item.Id == first.Id || item.Id == second.Id {
				stored = append(stored, item)
			}
		}
		require.Len(t, stored, 2)
		assert.Equal(t, first.Id, stored[0].Id)
		assert.Equal(t, "t1", stored[0].TransitionId)
		assert.Equal(t, runtime.PriorityExit, stored[1].Priority)
		assert.Equal(t, int64(42), stored[1].FlowNodeInstanceKey)

		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.DeleteOutboxItem(t.Context(), first.Id))
			assert.NoError(t, b.DeleteOutboxItem(t.Context(), "unknown"))
		}))
		ids := outboxIds(t, s)
		assert.NotContains(t, ids, first.Id)
		assert.Contains(t, ids, second.Id)

		require.NoError(t, flush(t, s, func(b storage.Batch) {
			assert.NoError(t, b.DeleteOutboxItem(t.Context(), second.Id))
		}))
	}
}

func outboxIds(t *testing.T, s storage.Storage) []string {
	t.Helper()
	items, err := s.FindOutboxItems(t.Context(), 0)
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Id)
	}
	return ids
}
