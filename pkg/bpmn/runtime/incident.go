package runtime

import "time"

type IncidentKind string

const (
	IncidentIllegalStateTransition IncidentKind = "ILLEGAL_STATE_TRANSITION"
	IncidentConnectorFailure       IncidentKind = "CONNECTOR_FAILURE"
	IncidentTaskFailure            IncidentKind = "TASK_FAILURE"
	IncidentExpressionEvaluation   IncidentKind = "EXPRESSION_EVALUATION"
	IncidentUnexpected             IncidentKind = "UNEXPECTED"
)

// Incident records a work item that could not make progress and waits for an operator.
// NodeFailed is set when the flow node FlowNodeInstanceKey sits in FAILED because of it.
type Incident struct {
	Key                  int64        `json:"key"`
	Kind                 IncidentKind `json:"kind"`
	ProcessInstanceKey   int64        `json:"pik"`
	FlowNodeInstanceKey  int64        `json:"fnik,omitempty"`
	ConnectorInstanceKey int64        `json:"cik,omitempty"`
	Message              string       `json:"msg"`
	WorkItem             *WorkItem    `json:"wi,omitempty"`
	NodeFailed           bool         `json:"nf,omitempty"`
	CreatedAt            time.Time    `json:"ca"`
	ResolvedAt           time.Time    `json:"ra,omitzero"`
}

func (i Incident) IsResolved() bool {
	return !i.ResolvedAt.IsZero()
}

type IncidentResolution string

const (
	// ResolutionRetry re-runs the failed step.
	ResolutionRetry IncidentResolution = "RETRY"
	// ResolutionSkip marks the failed connector or node as done and moves on.
	ResolutionSkip IncidentResolution = "SKIP"
	// ResolutionFail moves the owning node to FAILED. It is a no-op when the node already failed.
	ResolutionFail IncidentResolution = "FAIL"
)
