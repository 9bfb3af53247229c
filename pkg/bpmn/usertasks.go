package bpmn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// humanTask loads a waiting human task under its lock.
func (engine *Engine) humanTask(ctx context.Context, batch *EngineBatch, flowNodeInstanceKey int64) (*runtime.FlowNodeInstance, error) {
	if err := batch.lockNode(ctx, flowNodeInstanceKey); err != nil {
		return nil, err
	}
	n, err := batch.node(ctx, flowNodeInstanceKey)
	if err != nil {
		return nil, errors.Join(newEngineErrorf("failed to find human task with key: %d", flowNodeInstanceKey), err)
	}
	if n.Kind != runtime.FlowNodeKindHumanTask || n.HumanTask == nil {
		return nil, newEngineErrorf("flow node instance %d (%s) is not a human task", n.Key, n.FlowNodeDefinitionId)
	}
	if n.Terminal {
		return nil, newEngineErrorf("human task %d already reached state %s", n.Key, n.State)
	}
	return n, nil
}

// updateHumanTask runs f on the human task and commits the result.
func (engine *Engine) updateHumanTask(ctx context.Context, flowNodeInstanceKey int64, f func(batch *EngineBatch, n *runtime.FlowNodeInstance) error) error {
	batch := engine.newEngineBatch(runtime.WorkItem{FlowNodeInstanceKey: flowNodeInstanceKey})
	n, err := engine.humanTask(ctx, batch, flowNodeInstanceKey)
	if err != nil {
		batch.release()
		return err
	}
	if err := f(batch, n); err != nil {
		batch.release()
		return err
	}
	return batch.Flush(ctx)
}

// AssignHumanTask sets the assignee of a human task. A previous claim is dropped.
func (engine *Engine) AssignHumanTask(ctx context.Context, flowNodeInstanceKey int64, userKey int64) error {
	return engine.updateHumanTask(ctx, flowNodeInstanceKey, func(batch *EngineBatch, n *runtime.FlowNodeInstance) error {
		n.HumanTask.AssigneeKey = userKey
		n.HumanTask.ClaimedDate = time.Time{}
		batch.saveNode(n)
		return nil
	})
}

// ClaimHumanTask makes userKey the assignee of an unclaimed human task.
func (engine *Engine) ClaimHumanTask(ctx context.Context, flowNodeInstanceKey int64, userKey int64) error {
	if userKey <= 0 {
		return newEngineErrorf("cannot claim human task %d without a user, got user key %d", flowNodeInstanceKey, userKey)
	}
	return engine.updateHumanTask(ctx, flowNodeInstanceKey, func(batch *EngineBatch, n *runtime.FlowNodeInstance) error {
		hidden, err := engine.persistence.IsTaskHidden(ctx, n.Key, userKey)
		if err != nil {
			return fmt.Errorf("failed to read hidden state of task %d: %w", n.Key, err)
		}
		if hidden {
			return fmt.Errorf("%w: task %d, user %d", ErrTaskHidden, n.Key, userKey)
		}
		if !n.HumanTask.ClaimedDate.IsZero() && n.HumanTask.AssigneeKey != userKey {
			return fmt.Errorf("%w: task %d is claimed by %d", ErrTaskAlreadyClaimed, n.Key, n.HumanTask.AssigneeKey)
		}
		n.HumanTask.AssigneeKey = userKey
		n.HumanTask.ClaimedDate = batch.now
		batch.saveNode(n)
		return nil
	})
}

// ReleaseHumanTask removes the assignee of a human task.
func (engine *Engine) ReleaseHumanTask(ctx context.Context, flowNodeInstanceKey int64) error {
	return engine.updateHumanTask(ctx, flowNodeInstanceKey, func(batch *EngineBatch, n *runtime.FlowNodeInstance) error {
		n.HumanTask.AssigneeKey = 0
		n.HumanTask.ClaimedDate = time.Time{}
		batch.saveNode(n)
		return nil
	})
}

// HideTask hides a human task from one user. The record is removed once the task finishes.
func (engine *Engine) HideTask(ctx context.Context, flowNodeInstanceKey int64, userKey int64) error {
	return engine.updateHumanTask(ctx, flowNodeInstanceKey, func(batch *EngineBatch, n *runtime.FlowNodeInstance) error {
		batch.saveHiddenTask(runtime.HiddenTask{
			ActivityInstanceKey: n.Key,
			UserKey:             userKey,
			HiddenAt:            batch.now,
		})
		return nil
	})
}

func (engine *Engine) UnhideTask(ctx context.Context, flowNodeInstanceKey int64, userKey int64) error {
	return engine.updateHumanTask(ctx, flowNodeInstanceKey, func(batch *EngineBatch, n *runtime.FlowNodeInstance) error {
		batch.deleteHiddenTask(n.Key, userKey)
		return nil
	})
}

// IsTaskHidden reports whether the human task is hidden from the user.
func (engine *Engine) IsTaskHidden(ctx context.Context, flowNodeInstanceKey int64, userKey int64) (bool, error) {
	return engine.persistence.IsTaskHidden(ctx, flowNodeInstanceKey, userKey)
}

// CompleteHumanTask completes a human task on behalf of userKey. When userKey is not the
// assignee, the assignee is recorded as executor and userKey as substitute.
func (engine *Engine) CompleteHumanTask(ctx context.Context, flowNodeInstanceKey int64, userKey int64, variables map[string]any) error {
	n, err := engine.persistence.FindFlowNodeInstanceByKey(ctx, flowNodeInstanceKey)
	if err != nil {
		return errors.Join(newEngineErrorf("failed to find human task with key: %d", flowNodeInstanceKey), err)
	}
	if n.Kind != runtime.FlowNodeKindHumanTask {
		return newEngineErrorf("flow node instance %d (%s) is not a human task", n.Key, n.FlowNodeDefinitionId)
	}
	item := runtime.NewWorkItem(runtime.WorkCompleteFlowNode, n.ProcessInstanceKey())
	item.FlowNodeInstanceKey = n.Key
	item.FlowNodeDefinitionId = n.FlowNodeDefinitionId
	item.ExecutedBy = userKey
	item.Variables = variables
	item.EnqueuedAt = engine.now()
	return engine.queue.Enqueue(ctx, item)
}
