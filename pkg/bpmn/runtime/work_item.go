package runtime

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type WorkKind string

const (
	// WorkExecuteFlowNode delivers a token along TransitionId to FlowNodeDefinitionId.
	WorkExecuteFlowNode WorkKind = "EXECUTE_FLOW_NODE"
	// WorkExecuteConnectors runs the next connector of the node's group for ActivationEvent.
	WorkExecuteConnectors WorkKind = "EXECUTE_CONNECTORS"
	// WorkCompleteFlowNode completes a node that waits for an external trigger.
	WorkCompleteFlowNode WorkKind = "COMPLETE_FLOW_NODE"
	// WorkChildFinished tells a loop or multi-instance node that the child SourceKey reached a terminal state.
	WorkChildFinished  WorkKind = "CHILD_FINISHED"
	WorkAbortFlowNode  WorkKind = "ABORT_FLOW_NODE"
	WorkCancelFlowNode WorkKind = "CANCEL_FLOW_NODE"
	// WorkInterruptByBoundary aborts the activity and continues from boundary event FlowNodeDefinitionId.
	WorkInterruptByBoundary WorkKind = "INTERRUPT_BY_BOUNDARY"
	// WorkReevaluateGateway asks a waiting inclusive gateway to decide again.
	WorkReevaluateGateway WorkKind = "REEVALUATE_GATEWAY"
	WorkRetryFlowNode     WorkKind = "RETRY_FLOW_NODE"
	WorkSkipFlowNode      WorkKind = "SKIP_FLOW_NODE"
)

const (
	PriorityForward = 0
	PriorityExit    = 10
)

// WorkItem is one unit of engine progress. It is produced by committed
// transitions and consumed by exactly one worker at a time.
type WorkItem struct {
	Id                   string          `json:"id"`
	Kind                 WorkKind        `json:"kind"`
	ProcessInstanceKey   int64           `json:"pik"`
	FlowNodeInstanceKey  int64           `json:"fnik,omitempty"`
	SourceKey            int64           `json:"sk,omitempty"`
	FlowNodeDefinitionId string          `json:"fdi,omitempty"`
	ParentContainerKey   int64           `json:"pck,omitempty"`
	TransitionId         string          `json:"tid,omitempty"`
	TokenKey             int64           `json:"tk,omitempty"`
	ActivationEvent      ActivationEvent `json:"ae,omitempty"`
	Variables            map[string]any  `json:"v,omitempty"`
	ExecutedBy           int64           `json:"eb,omitempty"`
	Priority             int             `json:"p"`
	Attempts             int             `json:"att"`
	NotBefore            time.Time       `json:"nb,omitzero"`
	EnqueuedAt           time.Time       `json:"ea,omitzero"`
}

// NewWorkItem assigns a fresh id. Exit kinds get the exit priority.
func NewWorkItem(kind WorkKind, processInstanceKey int64) WorkItem {
	item := WorkItem{
		Id:                 ulid.Make().String(),
		Kind:               kind,
		ProcessInstanceKey: processInstanceKey,
		Priority:           PriorityForward,
	}
	if kind == WorkAbortFlowNode || kind == WorkCancelFlowNode {
		item.Priority = PriorityExit
	}
	return item
}
