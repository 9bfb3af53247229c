package inmemory

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/storage"
	"github.com/pbinitiative/zenexec/pkg/zenflake"
)

type hiddenTaskKey struct {
	activityInstanceKey int64
	userKey             int64
}

// Storage keeps process information in memory,
// please use NewStorage to create a new object of this type.
type Storage struct {
	mu   sync.RWMutex
	keys *zenflake.Generator

	processDefinitions map[int64]*runtime.ProcessDefinition
	processInstances   map[int64]runtime.ProcessInstance
	flowNodeInstances  map[int64]runtime.FlowNodeInstance
	connectorInstances map[int64]runtime.ConnectorInstance
	tokenSets          map[int64]runtime.TokenSet
	hiddenTasks        map[hiddenTaskKey]runtime.HiddenTask
	incidents          map[int64]runtime.Incident
	outbox             map[string]runtime.WorkItem
}

func NewStorage() *Storage {
	keys, err := zenflake.NewGenerator(0)
	if err != nil {
		panic(err)
	}
	return &Storage{
		keys:               keys,
		processDefinitions: make(map[int64]*runtime.ProcessDefinition),
		processInstances:   make(map[int64]runtime.ProcessInstance),
		flowNodeInstances:  make(map[int64]runtime.FlowNodeInstance),
		connectorInstances: make(map[int64]runtime.ConnectorInstance),
		tokenSets:          make(map[int64]runtime.TokenSet),
		hiddenTasks:        make(map[hiddenTaskKey]runtime.HiddenTask),
		incidents:          make(map[int64]runtime.Incident),
		outbox:             make(map[string]runtime.WorkItem),
	}
}

var _ storage.Storage = &Storage{}

func (mem *Storage) GenerateId() int64 {
	return mem.keys.Generate()
}

func (mem *Storage) NewBatch() storage.Batch {
	return &StorageBatch{
		db:  mem,
		ops: make([]op, 0, 10),
	}
}

var _ storage.ProcessDefinitionStorageReader = &Storage{}

func (mem *Storage) FindProcessDefinitionByKey(ctx context.Context, processDefinitionKey int64) (*runtime.ProcessDefinition, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	def, ok := mem.processDefinitions[processDefinitionKey]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return def, nil
}

func (mem *Storage) FindLatestProcessDefinitionById(ctx context.Context, processDefinitionId string) (*runtime.ProcessDefinition, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	var res *runtime.ProcessDefinition
	for _, def := range mem.processDefinitions {
		if def.Id != processDefinitionId {
			continue
		}
		if res != nil && def.Version < res.Version {
			continue
		}
		res = def
	}
	if res == nil {
		return nil, storage.ErrNotFound
	}
	return res, nil
}

var _ storage.ProcessInstanceStorageReader = &Storage{}

func (mem *Storage) FindProcessInstanceByKey(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	pi, ok := mem.processInstances[processInstanceKey]
	if !ok {
		return runtime.ProcessInstance{}, storage.ErrNotFound
	}
	return pi.Clone(), nil
}

func (mem *Storage) FindProcessInstancesByCaller(ctx context.Context, callerKey int64) ([]runtime.ProcessInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.ProcessInstance, 0)
	for _, pi := range mem.processInstances {
		if pi.CallerKey == callerKey {
			res = append(res, pi.Clone())
		}
	}
	slices.SortFunc(res, func(a, b runtime.ProcessInstance) int { return cmpKey(a.Key, b.Key) })
	return res, nil
}

var _ storage.FlowNodeInstanceStorageReader = &Storage{}

func (mem *Storage) FindFlowNodeInstanceByKey(ctx context.Context, flowNodeInstanceKey int64) (runtime.FlowNodeInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	n, ok := mem.flowNodeInstances[flowNodeInstanceKey]
	if !ok {
		return runtime.FlowNodeInstance{}, storage.ErrNotFound
	}
	return n.Clone(), nil
}

func (mem *Storage) QueryFlowNodeInstances(ctx context.Context, rootContainerKey int64, predicate func(runtime.FlowNodeInstance) bool) iter.Seq2[runtime.FlowNodeInstance, error] {
	mem.mu.RLock()
	matches := make([]runtime.FlowNodeInstance, 0)
	for _, n := range mem.flowNodeInstances {
		if n.RootContainerKey != rootContainerKey {
			continue
		}
		if predicate != nil && !predicate(n) {
			continue
		}
		matches = append(matches, n.Clone())
	}
	mem.mu.RUnlock()
	slices.SortFunc(matches, func(a, b runtime.FlowNodeInstance) int { return cmpKey(a.Key, b.Key) })

	return func(yield func(runtime.FlowNodeInstance, error) bool) {
		for _, n := range matches {
			if err := ctx.Err(); err != nil {
				yield(runtime.FlowNodeInstance{}, err)
				return
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}

var _ storage.ConnectorInstanceStorageReader = &Storage{}

func (mem *Storage) FindConnectorInstanceByKey(ctx context.Context, connectorInstanceKey int64) (runtime.ConnectorInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	c, ok := mem.connectorInstances[connectorInstanceKey]
	if !ok {
		return runtime.ConnectorInstance{}, storage.ErrNotFound
	}
	return c, nil
}

func (mem *Storage) FindConnectorInstances(ctx context.Context, containerKey int64, containerType runtime.ContainerType, activationEvent runtime.ActivationEvent) ([]runtime.ConnectorInstance, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.ConnectorInstance, 0)
	for _, c := range mem.connectorInstances {
		if c.ContainerKey == containerKey && c.ContainerType == containerType && c.ActivationEvent == activationEvent {
			res = append(res, c)
		}
	}
	runtime.SortByExecutionOrder(res)
	return res, nil
}

var _ storage.TokenStorageReader = &Storage{}

func (mem *Storage) FindTokenSet(ctx context.Context, processInstanceKey int64) (runtime.TokenSet, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	set, ok := mem.tokenSets[processInstanceKey]
	if !ok {
		return runtime.TokenSet{}, storage.ErrNotFound
	}
	return set.Clone(), nil
}

var _ storage.HiddenTaskStorageReader = &Storage{}

func (mem *Storage) IsTaskHidden(ctx context.Context, activityInstanceKey int64, userKey int64) (bool, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	_, ok := mem.hiddenTasks[hiddenTaskKey{activityInstanceKey, userKey}]
	return ok, nil
}

func (mem *Storage) FindHiddenTasks(ctx context.Context, activityInstanceKey int64) ([]runtime.HiddenTask, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.HiddenTask, 0)
	for k, h := range mem.hiddenTasks {
		if k.activityInstanceKey == activityInstanceKey {
			res = append(res, h)
		}
	}
	slices.SortFunc(res, func(a, b runtime.HiddenTask) int { return cmpKey(a.UserKey, b.UserKey) })
	return res, nil
}

var _ storage.IncidentStorageReader = &Storage{}

func (mem *Storage) FindIncidentByKey(ctx context.Context, incidentKey int64) (runtime.Incident, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	inc, ok := mem.incidents[incidentKey]
	if !ok {
		return runtime.Incident{}, storage.ErrNotFound
	}
	return inc, nil
}

func (mem *Storage) FindIncidentsByProcessInstanceKey(ctx context.Context, processInstanceKey int64) ([]runtime.Incident, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := make([]runtime.Incident, 0)
	for _, inc := range mem.incidents {
		if inc.ProcessInstanceKey == processInstanceKey {
			res = append(res, inc)
		}
	}
	slices.SortFunc(res, func(a, b runtime.Incident) int { return cmpKey(a.Key, b.Key) })
	return res, nil
}

var _ storage.OutboxStorageReader = &Storage{}

func (mem *Storage) FindOutboxItems(ctx context.Context, limit int) ([]runtime.WorkItem, error) {
	mem.mu.RLock()
	defer mem.mu.RUnlock()
	res := slices.SortedFunc(maps.Values(mem.outbox), func(a, b runtime.WorkItem) int { return strings.Compare(a.Id, b.Id) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func cmpKey(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func checkVersion(entity string, key int64, exists bool, stored int64, expected int64) error {
	if !exists {
		if expected != 0 {
			return fmt.Errorf("%w: %s %d does not exist, expected version %d", storage.ErrVersionConflict, entity, key, expected)
		}
		return nil
	}
	if stored != expected {
		return fmt.Errorf("%w: %s %d has version %d, expected %d", storage.ErrVersionConflict, entity, key, stored, expected)
	}
	return nil
}

// op is one staged write. All checks of a batch run before any apply.
type op struct {
	check func() error
	apply func()
}

type StorageBatch struct {
	db  *Storage
	ops []op
}

func (b *StorageBatch) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	var joinErr error
	for _, o := range b.ops {
		if o.check == nil {
			continue
		}
		if err := o.check(); err != nil {
			joinErr = errors.Join(joinErr, err)
		}
	}
	if joinErr != nil {
		b.ops = b.ops[:0]
		return joinErr
	}
	for _, o := range b.ops {
		o.apply()
	}
	b.ops = b.ops[:0]
	return nil
}

var _ storage.ProcessDefinitionStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveProcessDefinition(ctx context.Context, definition *runtime.ProcessDefinition) error {
	b.ops = append(b.ops, op{apply: func() {
		b.db.processDefinitions[definition.Key] = definition
	}})
	return nil
}

var _ storage.ProcessInstanceStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error {
	pi := processInstance.Clone()
	if pi.RootProcessInstanceKey == 0 {
		pi.RootProcessInstanceKey = pi.Key
	}
	b.ops = append(b.ops, op{
		check: func() error {
			stored, ok := b.db.processInstances[pi.Key]
			if err := checkVersion("process instance", pi.Key, ok, stored.Version, pi.Version); err != nil {
				return err
			}
			if ok && stored.RootProcessInstanceKey != pi.RootProcessInstanceKey {
				return fmt.Errorf("%w: root process instance key of %d", storage.ErrImmutableField, pi.Key)
			}
			return nil
		},
		apply: func() {
			pi.Version++
			b.db.processInstances[pi.Key] = pi
		},
	})
	return nil
}

var _ storage.FlowNodeInstanceStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveFlowNodeInstance(ctx context.Context, flowNodeInstance runtime.FlowNodeInstance) error {
	n := flowNodeInstance.Clone()
	b.ops = append(b.ops, op{
		check: func() error {
			stored, ok := b.db.flowNodeInstances[n.Key]
			return checkVersion("flow node instance", n.Key, ok, stored.Version, n.Version)
		},
		apply: func() {
			n.Version++
			b.db.flowNodeInstances[n.Key] = n
		},
	})
	return nil
}

var _ storage.ConnectorInstanceStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveConnectorInstance(ctx context.Context, connectorInstance runtime.ConnectorInstance) error {
	c := connectorInstance
	b.ops = append(b.ops, op{
		check: func() error {
			stored, ok := b.db.connectorInstances[c.Key]
			return checkVersion("connector instance", c.Key, ok, stored.Revision, c.Revision)
		},
		apply: func() {
			c.Revision++
			b.db.connectorInstances[c.Key] = c
		},
	})
	return nil
}

var _ storage.TokenStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveTokenSet(ctx context.Context, tokenSet runtime.TokenSet) error {
	set := tokenSet.Clone()
	b.ops = append(b.ops, op{
		check: func() error {
			stored, ok := b.db.tokenSets[set.ProcessInstanceKey]
			return checkVersion("token set", set.ProcessInstanceKey, ok, stored.Version, set.Version)
		},
		apply: func() {
			set.Version++
			b.db.tokenSets[set.ProcessInstanceKey] = set
		},
	})
	return nil
}

var _ storage.HiddenTaskStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveHiddenTask(ctx context.Context, hiddenTask runtime.HiddenTask) error {
	b.ops = append(b.ops, op{apply: func() {
		b.db.hiddenTasks[hiddenTaskKey{hiddenTask.ActivityInstanceKey, hiddenTask.UserKey}] = hiddenTask
	}})
	return nil
}

func (b *StorageBatch) DeleteHiddenTask(ctx context.Context, activityInstanceKey int64, userKey int64) error {
	b.ops = append(b.ops, op{apply: func() {
		delete(b.db.hiddenTasks, hiddenTaskKey{activityInstanceKey, userKey})
	}})
	return nil
}

func (b *StorageBatch) DeleteHiddenTasksForActivity(ctx context.Context, activityInstanceKey int64) error {
	b.ops = append(b.ops, op{apply: func() {
		for k := range b.db.hiddenTasks {
			if k.activityInstanceKey == activityInstanceKey {
				delete(b.db.hiddenTasks, k)
			}
		}
	}})
	return nil
}

var _ storage.IncidentStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveIncident(ctx context.Context, incident runtime.Incident) error {
	b.ops = append(b.ops, op{apply: func() {
		b.db.incidents[incident.Key] = incident
	}})
	return nil
}

var _ storage.OutboxStorageWriter = &StorageBatch{}

func (b *StorageBatch) SaveOutboxItem(ctx context.Context, item runtime.WorkItem) error {
	b.ops = append(b.ops, op{apply: func() {
		b.db.outbox[item.Id] = item
	}})
	return nil
}

func (b *StorageBatch) DeleteOutboxItem(ctx context.Context, itemId string) error {
	b.ops = append(b.ops, op{apply: func() {
		delete(b.db.outbox, itemId)
	}})
	return nil
}
