// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package bpmn

import (
	"errors"
	"fmt"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

var (
	// ErrIllegalStateTransition is returned when an event does not apply to the state and category of a node.
	ErrIllegalStateTransition = runtime.ErrIllegalStateTransition
	// ErrConcurrentModification is returned when a commit lost the optimistic lock race.
	// The whole work item is retried from a fresh load.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrUnreachableGatewayState is reported when an inclusive gateway cannot decide yet.
	// The gateway stays parked, it is not a failure.
	ErrUnreachableGatewayState = errors.New("inclusive gateway cannot decide which branches are still active")
	ErrTokenNotLive            = errors.New("token is not live")
	ErrTaskAlreadyClaimed      = errors.New("task is already claimed")
	ErrTaskHidden              = errors.New("task is hidden for the user")
)

type BpmnEngineError struct {
	Msg string
}

func (e *BpmnEngineError) Error() string {
	return e.Msg
}

// newEngineErrorf uses fmt.Sprintf(format, a...) to format the message
func newEngineErrorf(format string, a ...any) error {
	return &BpmnEngineError{
		Msg: fmt.Sprintf(format, a...),
	}
}

type ExpressionEvaluationError struct {
	Msg string
	Err error
}

func (e *ExpressionEvaluationError) Error() string {
	if e.Err != nil {
		return e.Msg + "\nerror: " + e.Err.Error()
	}
	return e.Msg
}

func (e *ExpressionEvaluationError) Unwrap() error {
	return e.Err
}

// ConnectorExecutionError reports a failed connector body. Retryable is false once the
// connector reached the attempt limit and an incident was written.
type ConnectorExecutionError struct {
	ConnectorInstanceKey int64
	ConnectorId          string
	Attempts             int
	Retryable            bool
	Err                  error
}

func (e *ConnectorExecutionError) Error() string {
	return fmt.Sprintf("connector %s (%d) failed after %d attempt(s): %v", e.ConnectorId, e.ConnectorInstanceKey, e.Attempts, e.Err)
}

func (e *ConnectorExecutionError) Unwrap() error {
	return e.Err
}

// isFatal reports errors that retrying the same work item cannot fix.
func isFatal(err error) bool {
	if errors.Is(err, ErrIllegalStateTransition) {
		return true
	}
	var expressionErr *ExpressionEvaluationError
	if errors.As(err, &expressionErr) {
		return true
	}
	var engineErr *BpmnEngineError
	return errors.As(err, &engineErr)
}

// incidentKindOf maps a fatal error to the incident it produces.
func incidentKindOf(err error) runtime.IncidentKind {
	var expressionErr *ExpressionEvaluationError
	var connectorErr *ConnectorExecutionError
	switch {
	case errors.Is(err, ErrIllegalStateTransition):
		return runtime.IncidentIllegalStateTransition
	case errors.As(err, &expressionErr):
		return runtime.IncidentExpressionEvaluation
	case errors.As(err, &connectorErr):
		return runtime.IncidentConnectorFailure
	}
	return runtime.IncidentUnexpected
}
