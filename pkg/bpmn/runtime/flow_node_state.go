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

// FlowNodeState of a flow node instance.
//
//	              (Created)
//	                  |  INITIALIZE
//	                  v
//	               ┌─────┐   FAIL    ┌──────┐  SKIP   ┌─────────┐
//	               │Ready│---------->│Failed│-------->│Completed│
//	               └─────┘<----------└──────┘         └─────────┘
//	                  |      RETRY      ^                  ^
//	          EXECUTE v                 | FAIL             | COMPLETE
//	             ┌─────────┐------------+                  |
//	   LOOP +--->│Executing│-------------------------------+
//	        +----└─────────┘
//
//	ABORT and CANCEL lead from every non-terminal state to Aborted and Cancelled.
type FlowNodeState int32

const (
	FlowNodeStateCreated FlowNodeState = iota
	FlowNodeStateReady
	FlowNodeStateExecuting
	FlowNodeStateCompleted
	FlowNodeStateFailed
	FlowNodeStateAborted
	FlowNodeStateCancelled
)

func MapFlowNodeState(s string) FlowNodeState {
	switch s {
	case "CREATED":
		return FlowNodeStateCreated
	case "READY":
		return FlowNodeStateReady
	case "EXECUTING":
		return FlowNodeStateExecuting
	case "COMPLETED":
		return FlowNodeStateCompleted
	case "FAILED":
		return FlowNodeStateFailed
	case "ABORTED":
		return FlowNodeStateAborted
	case "CANCELLED":
		return FlowNodeStateCancelled
	default:
		return -1
	}
}

func (s FlowNodeState) String() string {
	switch s {
	case FlowNodeStateCreated:
		return "CREATED"
	case FlowNodeStateReady:
		return "READY"
	case FlowNodeStateExecuting:
		return "EXECUTING"
	case FlowNodeStateCompleted:
		return "COMPLETED"
	case FlowNodeStateFailed:
		return "FAILED"
	case FlowNodeStateAborted:
		return "ABORTED"
	case FlowNodeStateCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int32(s))
	}
}

func (s FlowNodeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *FlowNodeState) UnmarshalText(data []byte) error {
	mapped := MapFlowNodeState(string(data))
	if mapped < 0 {
		return fmt.Errorf("unknown flow node state %q", string(data))
	}
	*s = mapped
	return nil
}

// IsStable reports whether a node in this state waits for an external trigger.
func (s FlowNodeState) IsStable() bool {
	return s == FlowNodeStateReady || s == FlowNodeStateExecuting || s == FlowNodeStateFailed
}

func (s FlowNodeState) IsTerminal() bool {
	return s == FlowNodeStateCompleted || s == FlowNodeStateAborted || s == FlowNodeStateCancelled
}

type TransitionEvent string

const (
	EventInitialize TransitionEvent = "INITIALIZE"
	EventExecute    TransitionEvent = "EXECUTE"
	EventComplete   TransitionEvent = "COMPLETE"
	EventFail       TransitionEvent = "FAIL"
	EventRetry      TransitionEvent = "RETRY"
	EventSkip       TransitionEvent = "SKIP"
	EventLoop       TransitionEvent = "LOOP"
	EventAbort      TransitionEvent = "ABORT"
	EventCancel     TransitionEvent = "CANCEL"
)

type transitionKey struct {
	from  FlowNodeState
	event TransitionEvent
}

var transitions = map[transitionKey]FlowNodeState{
	{FlowNodeStateCreated, EventInitialize}: FlowNodeStateReady,
	{FlowNodeStateReady, EventExecute}:      FlowNodeStateExecuting,
	{FlowNodeStateReady, EventFail}:         FlowNodeStateFailed,
	{FlowNodeStateExecuting, EventComplete}: FlowNodeStateCompleted,
	{FlowNodeStateExecuting, EventFail}:     FlowNodeStateFailed,
	{FlowNodeStateExecuting, EventLoop}:     FlowNodeStateExecuting,
	{FlowNodeStateFailed, EventRetry}:       FlowNodeStateReady,
	{FlowNodeStateFailed, EventSkip}:        FlowNodeStateCompleted,
}

var ErrIllegalStateTransition = errors.New("illegal state transition")

// IllegalTransitionError describes a rejected transition. It unwraps to ErrIllegalStateTransition.
type IllegalTransitionError struct {
	FlowNodeInstanceKey int64
	From                FlowNodeState
	Event               TransitionEvent
	Category            StateCategory
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("flow node instance %d: event %s not allowed in state %s (category %s)", e.FlowNodeInstanceKey, e.Event, e.From, e.Category)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalStateTransition
}

// NextState resolves event against state under category without mutating anything.
func NextState(state FlowNodeState, event TransitionEvent, category StateCategory, kind FlowNodeKind) (FlowNodeState, bool) {
	switch category {
	case StateCategoryAborting:
		if event != EventAbort && event != EventCancel {
			return state, false
		}
	case StateCategoryCancelling:
		if event != EventCancel {
			return state, false
		}
	}
	if state.IsTerminal() {
		return state, false
	}
	switch event {
	case EventAbort:
		return FlowNodeStateAborted, true
	case EventCancel:
		return FlowNodeStateCancelled, true
	case EventLoop:
		if kind != FlowNodeKindLoopActivity && kind != FlowNodeKindMultiInstanceActivity {
			return state, false
		}
	}
	next, ok := transitions[transitionKey{state, event}]
	return next, ok
}

// Transition moves the node along event. Stable and Terminal are recomputed
// and the previous state is kept for reporting.
func (n *FlowNodeInstance) Transition(event TransitionEvent, at time.Time) error {
	next, ok := NextState(n.State, event, n.StateCategory.Effective(StateCategoryNormal), n.Kind)
	if !ok {
		return &IllegalTransitionError{
			FlowNodeInstanceKey: n.Key,
			From:                n.State,
			Event:               event,
			Category:            n.StateCategory,
		}
	}
	n.PreviousState = n.State
	n.State = next
	n.ReachedStateDate = at
	n.LastUpdateDate = at
	n.Terminal = next.IsTerminal()
	n.Stable = next.IsStable() && !n.StateExecuting
	return nil
}

// BeginExecuting marks the node as mid-transition, a handler or connector group is running.
func (n *FlowNodeInstance) BeginExecuting() {
	n.StateExecuting = true
	n.Stable = false
}

func (n *FlowNodeInstance) EndExecuting() {
	n.StateExecuting = false
	n.Stable = n.State.IsStable()
}

// Park leaves the node waiting without a running handler, and not eligible for category propagation.
func (n *FlowNodeInstance) Park() {
	n.StateExecuting = false
	n.Stable = false
}

// ReEnter is the loop re-entry. It resets the execution scoped fields only.
func (n *FlowNodeInstance) ReEnter(at time.Time) error {
	n.StateExecuting = false
	return n.Transition(EventLoop, at)
}
