// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package storage

import (
	"context"
	"errors"
	"iter"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned by Flush when an entity was changed since it was loaded.
	ErrVersionConflict = errors.New("version conflict")
	// ErrImmutableField is returned by Flush when a write tries to change a field fixed at creation.
	ErrImmutableField = errors.New("immutable field changed")
)

// Storage is the read side of the persistence layer. All writes go through a Batch.
type Storage interface {
	ProcessDefinitionStorageReader
	ProcessInstanceStorageReader
	FlowNodeInstanceStorageReader
	ConnectorInstanceStorageReader
	TokenStorageReader
	HiddenTaskStorageReader
	IncidentStorageReader
	OutboxStorageReader

	GenerateId() int64
	NewBatch() Batch
}

// Batch collects writes that are committed atomically by Flush.
//
// Versioned entities are written with the version they were loaded with.
// New entities carry version 0. Flush fails with ErrVersionConflict and
// writes nothing if any stored version differs, on success every stored
// version is the written one plus one.
type Batch interface {
	ProcessDefinitionStorageWriter
	ProcessInstanceStorageWriter
	FlowNodeInstanceStorageWriter
	ConnectorInstanceStorageWriter
	TokenStorageWriter
	HiddenTaskStorageWriter
	IncidentStorageWriter
	OutboxStorageWriter

	Flush(ctx context.Context) error
}

type ProcessDefinitionStorageReader interface {
	FindProcessDefinitionByKey(ctx context.Context, processDefinitionKey int64) (*runtime.ProcessDefinition, error)
	// FindLatestProcessDefinitionById returns the definition with the highest version for the id
	FindLatestProcessDefinitionById(ctx context.Context, processDefinitionId string) (*runtime.ProcessDefinition, error)
}

type ProcessDefinitionStorageWriter interface {
	SaveProcessDefinition(ctx context.Context, definition *runtime.ProcessDefinition) error
}

type ProcessInstanceStorageReader interface {
	FindProcessInstanceByKey(ctx context.Context, processInstanceKey int64) (runtime.ProcessInstance, error)
	// FindProcessInstancesByCaller returns process instances started by the given flow node instance
	FindProcessInstancesByCaller(ctx context.Context, callerKey int64) ([]runtime.ProcessInstance, error)
}

type ProcessInstanceStorageWriter interface {
	// SaveProcessInstance assigns RootProcessInstanceKey on first persistence when it is unset
	// and rejects later changes of it with ErrImmutableField.
	SaveProcessInstance(ctx context.Context, processInstance runtime.ProcessInstance) error
}

type FlowNodeInstanceStorageReader interface {
	FindFlowNodeInstanceByKey(ctx context.Context, flowNodeInstanceKey int64) (runtime.FlowNodeInstance, error)
	// QueryFlowNodeInstances yields flow node instances of the process instance tree
	// under rootContainerKey that satisfy predicate, in key order.
	QueryFlowNodeInstances(ctx context.Context, rootContainerKey int64, predicate func(runtime.FlowNodeInstance) bool) iter.Seq2[runtime.FlowNodeInstance, error]
}

type FlowNodeInstanceStorageWriter interface {
	SaveFlowNodeInstance(ctx context.Context, flowNodeInstance runtime.FlowNodeInstance) error
}

type ConnectorInstanceStorageReader interface {
	FindConnectorInstanceByKey(ctx context.Context, connectorInstanceKey int64) (runtime.ConnectorInstance, error)
	// FindConnectorInstances returns the connector group of a container for an activation event,
	// ordered by execution order
	FindConnectorInstances(ctx context.Context, containerKey int64, containerType runtime.ContainerType, activationEvent runtime.ActivationEvent) ([]runtime.ConnectorInstance, error)
}

type ConnectorInstanceStorageWriter interface {
	// SaveConnectorInstance uses Revision as the optimistic lock counter.
	SaveConnectorInstance(ctx context.Context, connectorInstance runtime.ConnectorInstance) error
}

type TokenStorageReader interface {
	FindTokenSet(ctx context.Context, processInstanceKey int64) (runtime.TokenSet, error)
}

type TokenStorageWriter interface {
	SaveTokenSet(ctx context.Context, tokenSet runtime.TokenSet) error
}

type HiddenTaskStorageReader interface {
	IsTaskHidden(ctx context.Context, activityInstanceKey int64, userKey int64) (bool, error)
	FindHiddenTasks(ctx context.Context, activityInstanceKey int64) ([]runtime.HiddenTask, error)
}

type HiddenTaskStorageWriter interface {
	SaveHiddenTask(ctx context.Context, hiddenTask runtime.HiddenTask) error
	DeleteHiddenTask(ctx context.Context, activityInstanceKey int64, userKey int64) error
	DeleteHiddenTasksForActivity(ctx context.Context, activityInstanceKey int64) error
}

type IncidentStorageReader interface {
	FindIncidentByKey(ctx context.Context, incidentKey int64) (runtime.Incident, error)
	FindIncidentsByProcessInstanceKey(ctx context.Context, processInstanceKey int64) ([]runtime.Incident, error)
}

type IncidentStorageWriter interface {
	SaveIncident(ctx context.Context, incident runtime.Incident) error
}

// The outbox holds work items committed together with the state that produced them
// until they are handed to the work queue.
type OutboxStorageReader interface {
	// FindOutboxItems returns up to limit items in id order
	FindOutboxItems(ctx context.Context, limit int) ([]runtime.WorkItem, error)
}

type OutboxStorageWriter interface {
	SaveOutboxItem(ctx context.Context, item runtime.WorkItem) error
	// DeleteOutboxItem ignores ids that are not in the outbox.
	DeleteOutboxItem(ctx context.Context, itemId string) error
}
