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
	"maps"
	"time"
)

// StateCategory is the coarse mode of a process instance or flow node.
// Once it leaves NORMAL it never returns.
type StateCategory string

const (
	StateCategoryNormal     StateCategory = "NORMAL"
	StateCategoryAborting   StateCategory = "ABORTING"
	StateCategoryCancelling StateCategory = "CANCELLING"
)

// IsExiting reports whether the category drives nodes towards abort or cancel.
func (c StateCategory) IsExiting() bool {
	return c == StateCategoryAborting || c == StateCategoryCancelling
}

// ExitEvent returns the transition event that realizes the category on a node.
func (c StateCategory) ExitEvent() TransitionEvent {
	if c == StateCategoryCancelling {
		return EventCancel
	}
	return EventAbort
}

// Effective combines a node category with the category of its process instance.
// A stricter category always wins.
func (c StateCategory) Effective(other StateCategory) StateCategory {
	rank := func(s StateCategory) int {
		switch s {
		case StateCategoryCancelling:
			return 2
		case StateCategoryAborting:
			return 1
		}
		return 0
	}
	if rank(other) > rank(c) {
		return other
	}
	if c == "" {
		return StateCategoryNormal
	}
	return c
}

type ProcessInstanceState string

const (
	ProcessInstanceActive    ProcessInstanceState = "ACTIVE"
	ProcessInstanceCompleted ProcessInstanceState = "COMPLETED"
	ProcessInstanceAborted   ProcessInstanceState = "ABORTED"
	ProcessInstanceCancelled ProcessInstanceState = "CANCELLED"
)

func (s ProcessInstanceState) IsTerminal() bool {
	return s == ProcessInstanceCompleted || s == ProcessInstanceAborted || s == ProcessInstanceCancelled
}

type CallerType string

const (
	CallerTypeNone         CallerType = ""
	CallerTypeCallActivity CallerType = "CALL_ACTIVITY"
)

// NoInterruptingEvent marks a process instance that was not interrupted by an event.
const NoInterruptingEvent int64 = -1

const stringIndexCount = 5

var ErrStringIndex = errors.New("string index out of range")

type ProcessInstance struct {
	Key                    int64                    `json:"key"`
	ProcessDefinitionKey   int64                    `json:"pdk"`
	RootProcessInstanceKey int64                    `json:"rpik"` // assigned once, at first persistence
	ContainerKey           int64                    `json:"ck,omitempty"`
	CallerKey              int64                    `json:"clk,omitempty"`
	CallerType             CallerType               `json:"clt,omitempty"`
	State                  ProcessInstanceState     `json:"s"`
	StateCategory          StateCategory            `json:"sc"`
	StringIndexes          [stringIndexCount]string `json:"si"`
	Variables              map[string]any           `json:"v,omitempty"`
	StartDate              time.Time                `json:"sd"`
	EndDate                time.Time                `json:"ed,omitzero"`
	LastUpdate             time.Time                `json:"lu"`
	InterruptingEventKey   int64                    `json:"iek"` // last boundary event that interrupted an activity
	Version                int64                    `json:"ver"`
}

func (pi ProcessInstance) IsRoot() bool {
	return pi.RootProcessInstanceKey == 0 || pi.RootProcessInstanceKey == pi.Key
}

func (pi *ProcessInstance) StringIndex(i int) (string, error) {
	if i < 0 || i >= stringIndexCount {
		return "", fmt.Errorf("%w: %d", ErrStringIndex, i)
	}
	return pi.StringIndexes[i], nil
}

func (pi *ProcessInstance) SetStringIndex(i int, value string) error {
	if i < 0 || i >= stringIndexCount {
		return fmt.Errorf("%w: %d", ErrStringIndex, i)
	}
	pi.StringIndexes[i] = value
	return nil
}

// SetVariables merges variables into the process scope.
func (pi *ProcessInstance) SetVariables(variables map[string]any) {
	if len(variables) == 0 {
		return
	}
	if pi.Variables == nil {
		pi.Variables = make(map[string]any, len(variables))
	}
	maps.Copy(pi.Variables, variables)
}

// Clone returns a copy that shares no mutable state with pi.
func (pi ProcessInstance) Clone() ProcessInstance {
	pi.Variables = maps.Clone(pi.Variables)
	return pi
}
