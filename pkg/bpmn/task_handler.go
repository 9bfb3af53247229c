// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package bpmn

import (
	"sync"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// TaskHandlerFunc runs an automatic activity. It must call Complete or Fail on the job,
// a job left open keeps the activity waiting for CompleteFlowNode.
type TaskHandlerFunc func(job ActivatedJob)

type taskHandlerScope int

const (
	taskHandlerForId taskHandlerScope = iota
	taskHandlerForType
)

type taskHandlerKey struct {
	scope taskHandlerScope
	match string
}

// TaskHandlerRegistration identifies a registered handler for RemoveHandler.
type TaskHandlerRegistration struct {
	key     taskHandlerKey
	handler TaskHandlerFunc
}

// taskHandlerRegistry keeps one handler per flow node id and one per task type.
// Registering again for the same id or type replaces the previous handler.
type taskHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[taskHandlerKey]*TaskHandlerRegistration
}

func (r *taskHandlerRegistry) add(reg *TaskHandlerRegistration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = map[taskHandlerKey]*TaskHandlerRegistration{}
	}
	r.handlers[reg.key] = reg
}

func (r *taskHandlerRegistry) remove(reg *TaskHandlerRegistration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// a replaced registration no longer owns the key
	if r.handlers[reg.key] == reg {
		delete(r.handlers, reg.key)
	}
}

// find prefers the handler registered for the flow node id over the one for its task type.
func (r *taskHandlerRegistry) find(nodeDef *runtime.FlowNodeDefinition) TaskHandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.handlers[taskHandlerKey{scope: taskHandlerForId, match: nodeDef.Id}]; ok {
		return reg.handler
	}
	if reg, ok := r.handlers[taskHandlerKey{scope: taskHandlerForType, match: nodeDef.HandlerType()}]; ok {
		return reg.handler
	}
	return nil
}

type TaskHandlerTarget interface {
	// Id selects the activity with the given flow node definition id.
	Id(id string) TaskHandlerBuilder

	// Type selects activities with the given task type. An activity without a
	// task type is matched by its id.
	Type(taskType string) TaskHandlerBuilder
}

type TaskHandlerBuilder interface {
	// Handler registers f for the selected activities.
	Handler(f func(job ActivatedJob)) *TaskHandlerRegistration
}

type taskHandlerCommand struct {
	registry *taskHandlerRegistry
	key      taskHandlerKey
}

// NewTaskHandler starts the registration of a handler for automatic activities.
// A handler runs while the activity is executed, an activity without a handler waits for CompleteFlowNode.
func (engine *Engine) NewTaskHandler() TaskHandlerTarget {
	return taskHandlerCommand{registry: &engine.taskHandlers}
}

func (c taskHandlerCommand) Id(id string) TaskHandlerBuilder {
	c.key = taskHandlerKey{scope: taskHandlerForId, match: id}
	return c
}

func (c taskHandlerCommand) Type(taskType string) TaskHandlerBuilder {
	c.key = taskHandlerKey{scope: taskHandlerForType, match: taskType}
	return c
}

func (c taskHandlerCommand) Handler(f func(job ActivatedJob)) *TaskHandlerRegistration {
	reg := &TaskHandlerRegistration{key: c.key, handler: f}
	c.registry.add(reg)
	return reg
}

// RemoveHandler unregisters a handler returned by Handler.
func (engine *Engine) RemoveHandler(reg *TaskHandlerRegistration) {
	engine.taskHandlers.remove(reg)
}

func (engine *Engine) findTaskHandler(nodeDef *runtime.FlowNodeDefinition) TaskHandlerFunc {
	return engine.taskHandlers.find(nodeDef)
}
