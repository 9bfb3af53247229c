// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package exporter

import "time"

// EventExporter receives engine events after the change that caused them was committed.
// Implementations must not block the caller for long.
type EventExporter interface {
	NewProcessEvent(event *ProcessEvent)
	NewProcessInstanceEvent(event *ProcessInstanceEvent)
	EndProcessEvent(event *ProcessInstanceEvent)
	NewElementEvent(event *ProcessInstanceEvent, elementInfo *ElementInfo)
	NewIncidentEvent(event *ProcessInstanceEvent, incident *IncidentInfo)
}

type Intent string

const (
	ElementCreated    Intent = "ELEMENT_CREATED"
	ElementReady      Intent = "ELEMENT_READY"
	ElementExecuting  Intent = "ELEMENT_EXECUTING"
	ElementCompleted  Intent = "ELEMENT_COMPLETED"
	ElementFailed     Intent = "ELEMENT_FAILED"
	ElementAborted    Intent = "ELEMENT_ABORTED"
	ElementCancelled  Intent = "ELEMENT_CANCELLED"
	SequenceFlowTaken Intent = "SEQUENCE_FLOW_TAKEN"
	ConnectorExecuted Intent = "CONNECTOR_EXECUTED"
	ConnectorFailed   Intent = "CONNECTOR_FAILED"
)

type ProcessEvent struct {
	ProcessId  string `json:"processId"`
	ProcessKey int64  `json:"processKey"`
	Version    int32  `json:"version"`
}

type ProcessInstanceEvent struct {
	ProcessId          string    `json:"processId"`
	ProcessKey         int64     `json:"processKey"`
	Version            int32     `json:"version"`
	ProcessInstanceKey int64     `json:"processInstanceKey"`
	State              string    `json:"state"`
	StateCategory      string    `json:"stateCategory"`
	Timestamp          time.Time `json:"timestamp"`
}

type ElementInfo struct {
	ElementType string `json:"elementType"`
	ElementId   string `json:"elementId"`
	ElementKey  int64  `json:"elementKey,omitempty"`
	Intent      Intent `json:"intent"`
}

type IncidentInfo struct {
	IncidentKey         int64  `json:"incidentKey"`
	Kind                string `json:"kind"`
	FlowNodeInstanceKey int64  `json:"flowNodeInstanceKey,omitempty"`
	Message             string `json:"message"`
}
