// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package runtime

import (
	"errors"
	"fmt"
	"time"
)

type FlowNodeKind string

const (
	FlowNodeKindActivity              FlowNodeKind = "ACTIVITY"
	FlowNodeKindLoopActivity          FlowNodeKind = "LOOP_ACTIVITY"
	FlowNodeKindMultiInstanceActivity FlowNodeKind = "MULTI_INSTANCE_ACTIVITY"
	FlowNodeKindHumanTask             FlowNodeKind = "HUMAN_TASK"
	FlowNodeKindGateway               FlowNodeKind = "GATEWAY"
	FlowNodeKindEvent                 FlowNodeKind = "EVENT"
)

func (k FlowNodeKind) IsActivity() bool {
	switch k {
	case FlowNodeKindActivity, FlowNodeKindLoopActivity, FlowNodeKindMultiInstanceActivity, FlowNodeKindHumanTask:
		return true
	}
	return false
}

// Positions inside FlowNodeInstance.LogicalGroups.
const (
	LogicalGroupProcessDefinition     = 0
	LogicalGroupRootProcessInstance   = 1
	LogicalGroupParentActivity        = 2
	LogicalGroupParentProcessInstance = 3

	logicalGroupCount = 4
)

var ErrLogicalGroupIndex = errors.New("logical group index out of range")

// FlowNodeInstance is the persisted record of one activation of a flow node.
// Exactly one payload pointer matching Kind is set, activities additionally carry Activity.
type FlowNodeInstance struct {
	Key                  int64                    `json:"key"`
	Name                 string                   `json:"n"`
	Kind                 FlowNodeKind             `json:"k"`
	FlowNodeDefinitionId string                   `json:"fdi"`
	RootContainerKey     int64                    `json:"rck"`
	ParentContainerKey   int64                    `json:"pck"`
	LogicalGroups        [logicalGroupCount]int64 `json:"lg"`
	State                FlowNodeState            `json:"s"`
	PreviousState        FlowNodeState            `json:"ps"`
	ReachedStateDate     time.Time                `json:"rsd"`
	LastUpdateDate       time.Time                `json:"lud"`
	DisplayName          string                   `json:"dn,omitempty"`
	DisplayDescription   string                   `json:"dd,omitempty"`
	TokenCount           int                      `json:"tc"`
	TokenKey             int64                    `json:"tk,omitempty"`
	LoopCounter          int                      `json:"lc"`
	ExecutedBy           int64                    `json:"eb,omitempty"`
	ExecutedBySubstitute int64                    `json:"ebs,omitempty"`
	StateExecuting       bool                     `json:"se"`
	StateCategory        StateCategory            `json:"sc"`
	Terminal             bool                     `json:"t"`
	Stable               bool                     `json:"st"`
	Version              int64                    `json:"ver"`

	Activity      *ActivityPayload      `json:"a,omitempty"`
	Gateway       *GatewayPayload       `json:"g,omitempty"`
	Loop          *LoopPayload          `json:"l,omitempty"`
	MultiInstance *MultiInstancePayload `json:"mi,omitempty"`
	HumanTask     *HumanTaskPayload     `json:"ht,omitempty"`
	Event         *EventPayload         `json:"e,omitempty"`
}

type ActivityPayload struct {
	AbortedByBoundary int64 `json:"abb,omitempty"`
}

type GatewayType string

const (
	GatewayTypeParallel  GatewayType = "PARALLEL"
	GatewayTypeInclusive GatewayType = "INCLUSIVE"
	GatewayTypeExclusive GatewayType = "EXCLUSIVE"
)

type GatewayPayload struct {
	GatewayType GatewayType `json:"gt"`
	HitBys      HitBys      `json:"hb"`
	// Pending holds the incoming transitions an exclusive merge still expects after it fired.
	// Arrivals on them are discarded.
	Pending HitBys `json:"pd,omitempty"`
}

type LoopPayload struct {
	LoopMax             int    `json:"lm"`
	LoopCondition       string `json:"lcn,omitempty"`
	TestBefore          bool   `json:"tb"`
	CurrentIterationKey int64  `json:"cik,omitempty"`
}

type MultiInstancePayload struct {
	Sequential                  bool   `json:"seq"`
	LoopCardinality             int    `json:"card"`
	LoopDataInputRef            string `json:"ldir,omitempty"`
	NumberOfActiveInstances     int    `json:"noa"`
	NumberOfCompletedInstances  int    `json:"noc"`
	NumberOfTerminatedInstances int    `json:"not"`
}

// Started returns how many children the multi-instance activity has created so far.
func (m *MultiInstancePayload) Started() int {
	return m.NumberOfActiveInstances + m.NumberOfCompletedInstances + m.NumberOfTerminatedInstances
}

type HumanTaskPayload struct {
	ActorKey        int64     `json:"ak,omitempty"`
	AssigneeKey     int64     `json:"ask,omitempty"`
	ClaimedDate     time.Time `json:"cd,omitzero"`
	Priority        int       `json:"p"`
	ExpectedEndDate time.Time `json:"eed,omitzero"`
}

type EventType string

const (
	EventTypeStart             EventType = "START"
	EventTypeEnd               EventType = "END"
	EventTypeIntermediateThrow EventType = "INTERMEDIATE_THROW"
	EventTypeIntermediateCatch EventType = "INTERMEDIATE_CATCH"
	EventTypeBoundary          EventType = "BOUNDARY"
)

type EventPayload struct {
	EventType  EventType `json:"et"`
	AttachedTo int64     `json:"at,omitempty"`
}

func (n *FlowNodeInstance) LogicalGroup(index int) (int64, error) {
	if index < 0 || index >= logicalGroupCount {
		return 0, fmt.Errorf("%w: %d", ErrLogicalGroupIndex, index)
	}
	return n.LogicalGroups[index], nil
}

func (n *FlowNodeInstance) SetLogicalGroup(index int, value int64) error {
	if index < 0 || index >= logicalGroupCount {
		return fmt.Errorf("%w: %d", ErrLogicalGroupIndex, index)
	}
	n.LogicalGroups[index] = value
	return nil
}

func (n *FlowNodeInstance) ProcessInstanceKey() int64 {
	return n.LogicalGroups[LogicalGroupParentProcessInstance]
}

func (n *FlowNodeInstance) RootProcessInstanceKey() int64 {
	return n.LogicalGroups[LogicalGroupRootProcessInstance]
}

func (n *FlowNodeInstance) ProcessDefinitionKey() int64 {
	return n.LogicalGroups[LogicalGroupProcessDefinition]
}

// IsChild reports whether the node runs as an iteration of a loop or multi-instance parent.
func (n *FlowNodeInstance) IsChild() bool {
	return n.ParentContainerKey != 0 && n.ParentContainerKey != n.ProcessInstanceKey()
}

// MustExecuteOnAbortOrCancelProcess decides whether the node takes an abort or cancel
// work item itself. Executing loops and multi-instance activities defer to their children.
func (n *FlowNodeInstance) MustExecuteOnAbortOrCancelProcess() bool {
	switch n.Kind {
	case FlowNodeKindLoopActivity, FlowNodeKindMultiInstanceActivity:
		if n.State == FlowNodeStateExecuting {
			return false
		}
	}
	return n.Stable
}

func (n FlowNodeInstance) Clone() FlowNodeInstance {
	if n.Activity != nil {
		a := *n.Activity
		n.Activity = &a
	}
	if n.Gateway != nil {
		g := *n.Gateway
		g.HitBys = n.Gateway.HitBys.Clone()
		g.Pending = n.Gateway.Pending.Clone()
		n.Gateway = &g
	}
	if n.Loop != nil {
		l := *n.Loop
		n.Loop = &l
	}
	if n.MultiInstance != nil {
		m := *n.MultiInstance
		n.MultiInstance = &m
	}
	if n.HumanTask != nil {
		h := *n.HumanTask
		n.HumanTask = &h
	}
	if n.Event != nil {
		e := *n.Event
		n.Event = &e
	}
	return n
}
