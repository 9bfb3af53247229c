package bpmn

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/lock"
	"github.com/pbinitiative/zenexec/pkg/storage"
)

// EngineBatch stages every mutation one work item causes and commits them atomically.
//
// Reads go through the batch so that staged entities shadow stored ones. A flow node
// is locked before it is loaded, a process instance is locked (and reloaded) before
// its tokens, variables or gateway accumulators are touched. Locks are always taken
// node first, process second and are released right after the commit.
type EngineBatch struct {
	engine *Engine
	item   runtime.WorkItem
	now    time.Time

	processes  map[int64]*runtime.ProcessInstance
	nodes      map[int64]*runtime.FlowNodeInstance
	connectors map[int64]*runtime.ConnectorInstance
	tokenSets  map[int64]*runtime.TokenSet

	dirtyProcesses  map[int64]struct{}
	dirtyNodes      map[int64]struct{}
	dirtyConnectors map[int64]struct{}
	dirtyTokenSets  map[int64]struct{}
	newProcesses    map[int64]struct{}
	tokensChanged   map[int64]struct{}

	hiddenTasks           []runtime.HiddenTask
	hiddenTaskDeletes     []runtime.HiddenTask
	hiddenActivityDeletes []int64
	incidents             []runtime.Incident
	definitions           []*runtime.ProcessDefinition

	lockedNodes     map[int64]struct{}
	lockedProcesses map[int64]struct{}
	unlocks         []lock.Unlock

	emitted          []runtime.WorkItem
	postFlushActions []func()
}

func (engine *Engine) newEngineBatch(item runtime.WorkItem) *EngineBatch {
	return &EngineBatch{
		engine:          engine,
		item:            item,
		now:             engine.now(),
		processes:       map[int64]*runtime.ProcessInstance{},
		nodes:           map[int64]*runtime.FlowNodeInstance{},
		connectors:      map[int64]*runtime.ConnectorInstance{},
		tokenSets:       map[int64]*runtime.TokenSet{},
		dirtyProcesses:  map[int64]struct{}{},
		dirtyNodes:      map[int64]struct{}{},
		dirtyConnectors: map[int64]struct{}{},
		dirtyTokenSets:  map[int64]struct{}{},
		newProcesses:    map[int64]struct{}{},
		tokensChanged:   map[int64]struct{}{},
		lockedNodes:     map[int64]struct{}{},
		lockedProcesses: map[int64]struct{}{},
	}
}

func (b *EngineBatch) lockNode(ctx context.Context, flowNodeInstanceKey int64) error {
	if _, ok := b.lockedNodes[flowNodeInstanceKey]; ok {
		return nil
	}
	if len(b.lockedProcesses) > len(b.newProcesses) {
		return fmt.Errorf("flow node %d must be locked before its process instance", flowNodeInstanceKey)
	}
	unlock, err := b.engine.locker.Lock(ctx, lock.FlowNodeKey(flowNodeInstanceKey))
	if err != nil {
		return fmt.Errorf("failed to lock flow node instance %d: %w", flowNodeInstanceKey, err)
	}
	b.unlocks = append(b.unlocks, unlock)
	b.lockedNodes[flowNodeInstanceKey] = struct{}{}
	return nil
}

// lockProcess acquires the process lock and refreshes everything the lock guards in place,
// so pointers handed out earlier stay valid.
func (b *EngineBatch) lockProcess(ctx context.Context, processInstanceKey int64) (*runtime.ProcessInstance, error) {
	if _, ok := b.lockedProcesses[processInstanceKey]; ok {
		return b.processes[processInstanceKey], nil
	}
	unlock, err := b.engine.locker.Lock(ctx, lock.ProcessKey(processInstanceKey))
	if err != nil {
		return nil, fmt.Errorf("failed to lock process instance %d: %w", processInstanceKey, err)
	}
	b.unlocks = append(b.unlocks, unlock)
	b.lockedProcesses[processInstanceKey] = struct{}{}

	fresh, err := b.engine.persistence.FindProcessInstanceByKey(ctx, processInstanceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to reload process instance %d: %w", processInstanceKey, err)
	}
	if pi, ok := b.processes[processInstanceKey]; ok {
		if _, dirty := b.dirtyProcesses[processInstanceKey]; !dirty {
			*pi = fresh
		}
	} else {
		b.processes[processInstanceKey] = &fresh
	}
	if _, dirty := b.dirtyTokenSets[processInstanceKey]; !dirty {
		delete(b.tokenSets, processInstanceKey)
	}
	for key, n := range b.nodes {
		if n.Kind != runtime.FlowNodeKindGateway || n.ProcessInstanceKey() != processInstanceKey {
			continue
		}
		if _, dirty := b.dirtyNodes[key]; dirty {
			continue
		}
		stored, err := b.engine.persistence.FindFlowNodeInstanceByKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to reload gateway instance %d: %w", key, err)
		}
		*n = stored
	}
	return b.processes[processInstanceKey], nil
}

// process returns the staged process instance, loading it without a lock when needed.
func (b *EngineBatch) process(ctx context.Context, processInstanceKey int64) (*runtime.ProcessInstance, error) {
	if pi, ok := b.processes[processInstanceKey]; ok {
		return pi, nil
	}
	pi, err := b.engine.persistence.FindProcessInstanceByKey(ctx, processInstanceKey)
	if err != nil {
		return nil, err
	}
	b.processes[processInstanceKey] = &pi
	return &pi, nil
}

// addProcess stages a process instance created by this batch together with its empty token set.
func (b *EngineBatch) addProcess(pi *runtime.ProcessInstance) {
	set := runtime.NewTokenSet(pi.Key)
	b.processes[pi.Key] = pi
	b.tokenSets[pi.Key] = &set
	b.newProcesses[pi.Key] = struct{}{}
	b.lockedProcesses[pi.Key] = struct{}{}
	b.dirtyProcesses[pi.Key] = struct{}{}
	b.dirtyTokenSets[pi.Key] = struct{}{}
}

func (b *EngineBatch) saveProcess(pi *runtime.ProcessInstance) {
	pi.LastUpdate = b.now
	b.processes[pi.Key] = pi
	b.dirtyProcesses[pi.Key] = struct{}{}
}

func (b *EngineBatch) definition(ctx context.Context, processDefinitionKey int64) (*runtime.ProcessDefinition, error) {
	return b.engine.definitions.Get(ctx, processDefinitionKey)
}

// flowNodeDefinition resolves the definition a flow node instance was created from.
func (b *EngineBatch) flowNodeDefinition(ctx context.Context, n *runtime.FlowNodeInstance) (*runtime.ProcessDefinition, *runtime.FlowNodeDefinition, error) {
	def, err := b.definition(ctx, n.ProcessDefinitionKey())
	if err != nil {
		return nil, nil, err
	}
	nodeDef, ok := def.FlowNode(n.FlowNodeDefinitionId)
	if !ok {
		return nil, nil, newEngineErrorf("process %s has no flow node %s", def.Id, n.FlowNodeDefinitionId)
	}
	return def, nodeDef, nil
}

func (b *EngineBatch) node(ctx context.Context, flowNodeInstanceKey int64) (*runtime.FlowNodeInstance, error) {
	if n, ok := b.nodes[flowNodeInstanceKey]; ok {
		return n, nil
	}
	n, err := b.engine.persistence.FindFlowNodeInstanceByKey(ctx, flowNodeInstanceKey)
	if err != nil {
		return nil, err
	}
	b.nodes[flowNodeInstanceKey] = &n
	return &n, nil
}

func (b *EngineBatch) saveNode(n *runtime.FlowNodeInstance) {
	n.LastUpdateDate = b.now
	b.nodes[n.Key] = n
	b.dirtyNodes[n.Key] = struct{}{}
}

func (b *EngineBatch) isDirtyNode(flowNodeInstanceKey int64) bool {
	_, ok := b.dirtyNodes[flowNodeInstanceKey]
	return ok
}

// flowNodes returns the flow nodes of a process instance matching predicate, staged
// versions shadowing stored ones, in key order.
func (b *EngineBatch) flowNodes(ctx context.Context, processInstanceKey int64, predicate func(runtime.FlowNodeInstance) bool) ([]*runtime.FlowNodeInstance, error) {
	matches := func(n runtime.FlowNodeInstance) bool {
		return predicate == nil || predicate(n)
	}
	seen := map[int64]struct{}{}
	res := make([]*runtime.FlowNodeInstance, 0)
	stored := b.engine.persistence.QueryFlowNodeInstances(ctx, processInstanceKey, func(n runtime.FlowNodeInstance) bool {
		_, staged := b.nodes[n.Key]
		return staged || matches(n)
	})
	for n, err := range stored {
		if err != nil {
			return nil, fmt.Errorf("failed to query flow nodes of process instance %d: %w", processInstanceKey, err)
		}
		seen[n.Key] = struct{}{}
		staged, ok := b.nodes[n.Key]
		if !ok {
			loaded := n
			staged = &loaded
			b.nodes[n.Key] = staged
		}
		if matches(*staged) {
			res = append(res, staged)
		}
	}
	for key, n := range b.nodes {
		if _, ok := seen[key]; ok || n.RootContainerKey != processInstanceKey {
			continue
		}
		if matches(*n) {
			res = append(res, n)
		}
	}
	slices.SortFunc(res, func(a, b *runtime.FlowNodeInstance) int { return cmp.Compare(a.Key, b.Key) })
	return res, nil
}

// connectorGroup returns the connectors of a group with staged versions shadowing stored ones.
func (b *EngineBatch) connectorGroup(ctx context.Context, containerKey int64, containerType runtime.ContainerType, activationEvent runtime.ActivationEvent) ([]*runtime.ConnectorInstance, error) {
	stored, err := b.engine.persistence.FindConnectorInstances(ctx, containerKey, containerType, activationEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to load connectors of %d: %w", containerKey, err)
	}
	seen := map[int64]struct{}{}
	group := make([]runtime.ConnectorInstance, 0, len(stored))
	for _, c := range stored {
		seen[c.Key] = struct{}{}
		if staged, ok := b.connectors[c.Key]; ok {
			group = append(group, *staged)
			continue
		}
		loaded := c
		b.connectors[c.Key] = &loaded
		group = append(group, c)
	}
	for key, c := range b.connectors {
		if _, ok := seen[key]; ok {
			continue
		}
		if c.ContainerKey == containerKey && c.ContainerType == containerType && c.ActivationEvent == activationEvent {
			group = append(group, *c)
		}
	}
	runtime.SortByExecutionOrder(group)
	res := make([]*runtime.ConnectorInstance, 0, len(group))
	for _, c := range group {
		res = append(res, b.connectors[c.Key])
	}
	return res, nil
}

func (b *EngineBatch) saveConnector(c *runtime.ConnectorInstance) {
	c.LastUpdate = b.now
	b.connectors[c.Key] = c
	b.dirtyConnectors[c.Key] = struct{}{}
}

// tokenSet returns the live tokens of a process instance, taking the process lock first.
func (b *EngineBatch) tokenSet(ctx context.Context, processInstanceKey int64) (*runtime.TokenSet, error) {
	if _, err := b.lockProcess(ctx, processInstanceKey); err != nil {
		return nil, err
	}
	if set, ok := b.tokenSets[processInstanceKey]; ok {
		return set, nil
	}
	set, err := b.engine.persistence.FindTokenSet(ctx, processInstanceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens of process instance %d: %w", processInstanceKey, err)
	}
	b.tokenSets[processInstanceKey] = &set
	return &set, nil
}

func (b *EngineBatch) saveTokenSet(set *runtime.TokenSet) {
	b.tokenSets[set.ProcessInstanceKey] = set
	b.dirtyTokenSets[set.ProcessInstanceKey] = struct{}{}
	b.tokensChanged[set.ProcessInstanceKey] = struct{}{}
}

func (b *EngineBatch) saveHiddenTask(task runtime.HiddenTask) {
	b.hiddenTasks = append(b.hiddenTasks, task)
}

func (b *EngineBatch) deleteHiddenTask(activityInstanceKey int64, userKey int64) {
	b.hiddenTaskDeletes = append(b.hiddenTaskDeletes, runtime.HiddenTask{ActivityInstanceKey: activityInstanceKey, UserKey: userKey})
}

func (b *EngineBatch) deleteHiddenTasksForActivity(activityInstanceKey int64) {
	b.hiddenActivityDeletes = append(b.hiddenActivityDeletes, activityInstanceKey)
}

func (b *EngineBatch) saveIncident(incident runtime.Incident) {
	b.incidents = append(b.incidents, incident)
}

func (b *EngineBatch) saveDefinition(def *runtime.ProcessDefinition) {
	b.definitions = append(b.definitions, def)
}

// newItem creates a work item that is committed to the outbox with the batch and enqueued afterwards.
func (b *EngineBatch) newItem(kind runtime.WorkKind, processInstanceKey int64) runtime.WorkItem {
	item := runtime.NewWorkItem(kind, processInstanceKey)
	item.EnqueuedAt = b.now
	return item
}

func (b *EngineBatch) emit(items ...runtime.WorkItem) {
	b.emitted = append(b.emitted, items...)
}

func (b *EngineBatch) AddPostFlushAction(f func()) {
	b.postFlushActions = append(b.postFlushActions, f)
}

func (b *EngineBatch) release() {
	for i := len(b.unlocks) - 1; i >= 0; i-- {
		b.unlocks[i]()
	}
	b.unlocks = nil
	clear(b.lockedNodes)
	clear(b.lockedProcesses)
}

// Flush commits the batch together with the emitted work items, releases its locks,
// hands the items to the queue and runs the post flush actions. Items the queue
// refuses stay in the outbox for RelayOutbox. A lost optimistic lock race is
// reported as ErrConcurrentModification.
func (b *EngineBatch) Flush(ctx context.Context) (err error) {
	defer b.release()

	if err := b.reevaluateParkedGateways(ctx); err != nil {
		return err
	}

	sb := b.engine.persistence.NewBatch()
	var errJoin error
	for _, def := range b.definitions {
		errJoin = errors.Join(errJoin, sb.SaveProcessDefinition(ctx, def))
	}
	for _, key := range sortedKeys(b.dirtyProcesses) {
		errJoin = errors.Join(errJoin, sb.SaveProcessInstance(ctx, *b.processes[key]))
	}
	for _, key := range sortedKeys(b.dirtyNodes) {
		errJoin = errors.Join(errJoin, sb.SaveFlowNodeInstance(ctx, *b.nodes[key]))
	}
	for _, key := range sortedKeys(b.dirtyConnectors) {
		errJoin = errors.Join(errJoin, sb.SaveConnectorInstance(ctx, *b.connectors[key]))
	}
	for _, key := range sortedKeys(b.dirtyTokenSets) {
		errJoin = errors.Join(errJoin, sb.SaveTokenSet(ctx, *b.tokenSets[key]))
	}
	for _, task := range b.hiddenTasks {
		errJoin = errors.Join(errJoin, sb.SaveHiddenTask(ctx, task))
	}
	for _, task := range b.hiddenTaskDeletes {
		errJoin = errors.Join(errJoin, sb.DeleteHiddenTask(ctx, task.ActivityInstanceKey, task.UserKey))
	}
	for _, key := range b.hiddenActivityDeletes {
		errJoin = errors.Join(errJoin, sb.DeleteHiddenTasksForActivity(ctx, key))
	}
	for _, incident := range b.incidents {
		errJoin = errors.Join(errJoin, sb.SaveIncident(ctx, incident))
	}
	for _, item := range b.emitted {
		errJoin = errors.Join(errJoin, sb.SaveOutboxItem(ctx, item))
	}
	if errJoin != nil {
		return fmt.Errorf("failed to stage batch: %w", errJoin)
	}

	if err := sb.Flush(ctx); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			b.engine.metrics.VersionConflicts.Add(ctx, 1)
			return fmt.Errorf("%w: %w", ErrConcurrentModification, err)
		}
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	b.release()

	if _, err := b.engine.relay(ctx, b.emitted); err != nil {
		b.engine.logger.Warn("committed work items left in the outbox", "item", b.item.Id, "count", len(b.emitted), "error", err)
	}
	for _, action := range b.postFlushActions {
		action()
	}
	return nil
}

// reevaluateParkedGateways wakes inclusive gateways whose decision may depend on tokens
// that moved in this batch.
func (b *EngineBatch) reevaluateParkedGateways(ctx context.Context) error {
	for _, pik := range sortedKeys(b.tokensChanged) {
		if pi, ok := b.processes[pik]; ok && pi.State.IsTerminal() {
			continue
		}
		parked, err := b.flowNodes(ctx, pik, func(n runtime.FlowNodeInstance) bool {
			return isParkedGateway(n) && n.Gateway.GatewayType == runtime.GatewayTypeInclusive
		})
		if err != nil {
			return err
		}
		for _, gw := range parked {
			if b.isDirtyNode(gw.Key) {
				continue
			}
			item := b.newItem(runtime.WorkReevaluateGateway, pik)
			item.FlowNodeInstanceKey = gw.Key
			item.FlowNodeDefinitionId = gw.FlowNodeDefinitionId
			b.emit(item)
		}
	}
	return nil
}

func isParkedGateway(n runtime.FlowNodeInstance) bool {
	return n.Kind == runtime.FlowNodeKindGateway && !n.Terminal && !n.Stable && !n.StateExecuting
}

func sortedKeys[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}
