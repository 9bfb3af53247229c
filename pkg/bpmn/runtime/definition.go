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
	"sync"
)

// ProcessDefinition is the immutable graph a process instance executes.
// Index must be called once before the definition is shared.
type ProcessDefinition struct {
	Key         int64                  `yaml:"key" json:"key"`
	Id          string                 `yaml:"id" json:"id"`
	Name        string                 `yaml:"name" json:"name"`
	Version     int32                  `yaml:"version" json:"version"`
	FlowNodes   []FlowNodeDefinition   `yaml:"flowNodes" json:"flowNodes"`
	Transitions []TransitionDefinition `yaml:"transitions" json:"transitions"`

	nodes       map[string]int
	transitions map[string]int
	outgoing    map[string][]string
	incoming    map[string][]string

	reachMu sync.Mutex
	reach   map[string]map[string]struct{}
}

type FlowNodeDefinition struct {
	Id                string                   `yaml:"id" json:"id"`
	Name              string                   `yaml:"name" json:"name"`
	Description       string                   `yaml:"description" json:"description"`
	Kind              FlowNodeKind             `yaml:"kind" json:"kind"`
	GatewayType       GatewayType              `yaml:"gatewayType" json:"gatewayType"`
	EventType         EventType                `yaml:"eventType" json:"eventType"`
	AttachedTo        string                   `yaml:"attachedTo" json:"attachedTo"`
	TaskType          string                   `yaml:"taskType" json:"taskType"`
	CalledElement     string                   `yaml:"calledElement" json:"calledElement"`
	DefaultTransition string                   `yaml:"defaultTransition" json:"defaultTransition"`
	Loop              *LoopDefinition          `yaml:"loop" json:"loop"`
	MultiInstance     *MultiInstanceDefinition `yaml:"multiInstance" json:"multiInstance"`
	HumanTask         *HumanTaskDefinition     `yaml:"humanTask" json:"humanTask"`
	Connectors        []ConnectorDefinition    `yaml:"connectors" json:"connectors"`
}

// HandlerType is the key task handlers are registered under, the node id unless TaskType is set.
func (f *FlowNodeDefinition) HandlerType() string {
	if f.TaskType != "" {
		return f.TaskType
	}
	return f.Id
}

type LoopDefinition struct {
	// LoopMax bounds the number of iterations, negative means unbounded
	LoopMax       int    `yaml:"loopMax" json:"loopMax"`
	LoopCondition string `yaml:"loopCondition" json:"loopCondition"`
	TestBefore    bool   `yaml:"testBefore" json:"testBefore"`
}

type MultiInstanceDefinition struct {
	Sequential bool `yaml:"sequential" json:"sequential"`
	// LoopCardinality is a number or an expression evaluating to one
	LoopCardinality  string `yaml:"loopCardinality" json:"loopCardinality"`
	LoopDataInputRef string `yaml:"loopDataInputRef" json:"loopDataInputRef"`
}

type HumanTaskDefinition struct {
	ActorKey int64 `yaml:"actorKey" json:"actorKey"`
	Priority int   `yaml:"priority" json:"priority"`
	// ExpectedDuration is an ISO-8601 duration added to the creation date
	ExpectedDuration string `yaml:"expectedDuration" json:"expectedDuration"`
}

type ConnectorDefinition struct {
	Name            string            `yaml:"name" json:"name"`
	ConnectorId     string            `yaml:"connectorId" json:"connectorId"`
	Version         string            `yaml:"version" json:"version"`
	ActivationEvent ActivationEvent   `yaml:"activationEvent" json:"activationEvent"`
	ExecutionOrder  int               `yaml:"executionOrder" json:"executionOrder"`
	Inputs          map[string]string `yaml:"inputs" json:"inputs"`
	Outputs         map[string]string `yaml:"outputs" json:"outputs"`
}

type TransitionDefinition struct {
	Id        string `yaml:"id" json:"id"`
	SourceRef string `yaml:"sourceRef" json:"sourceRef"`
	TargetRef string `yaml:"targetRef" json:"targetRef"`
	Condition string `yaml:"condition" json:"condition"`
}

var ErrInvalidDefinition = errors.New("invalid process definition")

// Index validates references and builds the lookup tables.
func (d *ProcessDefinition) Index() error {
	d.nodes = make(map[string]int, len(d.FlowNodes))
	d.transitions = make(map[string]int, len(d.Transitions))
	d.outgoing = map[string][]string{}
	d.incoming = map[string][]string{}
	d.reach = map[string]map[string]struct{}{}

	var errJoin error
	for i, n := range d.FlowNodes {
		if n.Id == "" {
			errJoin = errors.Join(errJoin, fmt.Errorf("%w: flow node #%d has no id", ErrInvalidDefinition, i))
			continue
		}
		if _, ok := d.nodes[n.Id]; ok {
			errJoin = errors.Join(errJoin, fmt.Errorf("%w: duplicate flow node id %s", ErrInvalidDefinition, n.Id))
		}
		d.nodes[n.Id] = i
	}
	for i, t := range d.Transitions {
		if _, ok := d.transitions[t.Id]; ok {
			errJoin = errors.Join(errJoin, fmt.Errorf("%w: duplicate transition id %s", ErrInvalidDefinition, t.Id))
		}
		d.transitions[t.Id] = i
		if _, ok := d.nodes[t.SourceRef]; !ok {
			errJoin = errors.Join(errJoin, fmt.Errorf("%w: transition %s has unknown source %s", ErrInvalidDefinition, t.Id, t.SourceRef))
		}
		if _, ok := d.nodes[t.TargetRef]; !ok {
			errJoin = errors.Join(errJoin, fmt.Errorf("%w: transition %s has unknown target %s", ErrInvalidDefinition, t.Id, t.TargetRef))
		}
		d.outgoing[t.SourceRef] = append(d.outgoing[t.SourceRef], t.Id)
		d.incoming[t.TargetRef] = append(d.incoming[t.TargetRef], t.Id)
	}
	for _, n := range d.FlowNodes {
		if n.DefaultTransition != "" {
			idx, ok := d.transitions[n.DefaultTransition]
			if !ok || d.Transitions[idx].SourceRef != n.Id {
				errJoin = errors.Join(errJoin, fmt.Errorf("%w: default transition %s is not an outgoing transition of %s", ErrInvalidDefinition, n.DefaultTransition, n.Id))
			}
		}
		if n.AttachedTo != "" {
			if _, ok := d.nodes[n.AttachedTo]; !ok {
				errJoin = errors.Join(errJoin, fmt.Errorf("%w: boundary event %s attached to unknown node %s", ErrInvalidDefinition, n.Id, n.AttachedTo))
			}
		}
		orders := map[ActivationEvent]map[int]string{}
		for _, c := range n.Connectors {
			if c.ActivationEvent != ActivationOnEnter && c.ActivationEvent != ActivationOnFinish {
				errJoin = errors.Join(errJoin, fmt.Errorf("%w: connector %s of %s has activation event %q", ErrInvalidDefinition, c.Name, n.Id, c.ActivationEvent))
				continue
			}
			if orders[c.ActivationEvent] == nil {
				orders[c.ActivationEvent] = map[int]string{}
			}
			if other, ok := orders[c.ActivationEvent][c.ExecutionOrder]; ok {
				errJoin = errors.Join(errJoin, fmt.Errorf("%w: connectors %s and %s of %s share execution order %d", ErrInvalidDefinition, other, c.Name, n.Id, c.ExecutionOrder))
			}
			orders[c.ActivationEvent][c.ExecutionOrder] = c.Name
		}
	}
	return errJoin
}

func (d *ProcessDefinition) FlowNode(id string) (*FlowNodeDefinition, bool) {
	i, ok := d.nodes[id]
	if !ok {
		return nil, false
	}
	return &d.FlowNodes[i], true
}

func (d *ProcessDefinition) Transition(id string) (*TransitionDefinition, bool) {
	i, ok := d.transitions[id]
	if !ok {
		return nil, false
	}
	return &d.Transitions[i], true
}

// Outgoing returns the outgoing transitions of a node in declaration order.
func (d *ProcessDefinition) Outgoing(nodeId string) []*TransitionDefinition {
	ids := d.outgoing[nodeId]
	res := make([]*TransitionDefinition, 0, len(ids))
	for _, id := range ids {
		res = append(res, &d.Transitions[d.transitions[id]])
	}
	return res
}

// Incoming returns the ids of the incoming transitions of a node.
func (d *ProcessDefinition) Incoming(nodeId string) []string {
	return d.incoming[nodeId]
}

func (d *ProcessDefinition) StartNodes() []string {
	var res []string
	for _, n := range d.FlowNodes {
		if n.Kind == FlowNodeKindEvent && n.EventType == EventTypeStart && len(d.incoming[n.Id]) == 0 {
			res = append(res, n.Id)
		}
	}
	return res
}

// CanReach reports whether a token sitting in from can ever arrive at to.
// Boundary events count as reachable from the node they are attached to.
func (d *ProcessDefinition) CanReach(from, to string) bool {
	if from == to {
		return true
	}
	d.reachMu.Lock()
	defer d.reachMu.Unlock()
	set, ok := d.reach[from]
	if !ok {
		set = d.reachableFrom(from)
		d.reach[from] = set
	}
	_, ok = set[to]
	return ok
}

func (d *ProcessDefinition) reachableFrom(from string) map[string]struct{} {
	boundaries := map[string][]string{}
	for _, n := range d.FlowNodes {
		if n.AttachedTo != "" {
			boundaries[n.AttachedTo] = append(boundaries[n.AttachedTo], n.Id)
		}
	}
	seen := map[string]struct{}{}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		next := append([]string{}, boundaries[cur]...)
		for _, tid := range d.outgoing[cur] {
			next = append(next, d.Transitions[d.transitions[tid]].TargetRef)
		}
		for _, n := range next {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return seen
}
