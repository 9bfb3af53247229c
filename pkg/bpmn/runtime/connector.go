package runtime

import (
	"slices"
	"time"
)

type ContainerType string

const (
	ContainerTypeFlowNode ContainerType = "FLOWNODE"
	ContainerTypeProcess  ContainerType = "PROCESS"
)

type ActivationEvent string

const (
	ActivationOnEnter  ActivationEvent = "ON_ENTER"
	ActivationOnFinish ActivationEvent = "ON_FINISH"
)

type ConnectorState string

const (
	ConnectorToBeExecuted ConnectorState = "TO_BE_EXECUTED"
	ConnectorToReExecute  ConnectorState = "TO_RE_EXECUTE"
	ConnectorExecuting    ConnectorState = "EXECUTING"
	ConnectorDone         ConnectorState = "DONE"
	ConnectorFailed       ConnectorState = "FAILED"
	ConnectorSkipped      ConnectorState = "SKIPPED"
	ConnectorAborted      ConnectorState = "ABORTED"
	ConnectorCancelled    ConnectorState = "CANCELLED"
)

// IsFinished reports whether the connector no longer holds back its group.
func (s ConnectorState) IsFinished() bool {
	switch s {
	case ConnectorDone, ConnectorSkipped, ConnectorAborted, ConnectorCancelled:
		return true
	}
	return false
}

func (s ConnectorState) IsExecutable() bool {
	return s == ConnectorToBeExecuted || s == ConnectorToReExecute
}

type ConnectorInstance struct {
	Key             int64           `json:"key"`
	ContainerKey    int64           `json:"ck"`
	ContainerType   ContainerType   `json:"ct"`
	ConnectorId     string          `json:"cid"`
	Version         string          `json:"cv"`
	Name            string          `json:"n"`
	ActivationEvent ActivationEvent `json:"ae"`
	State           ConnectorState  `json:"s"`
	ExecutionOrder  int             `json:"eo"`
	Attempts        int             `json:"att"`
	LastError       string          `json:"le,omitempty"`
	ClaimedBy       string          `json:"cb,omitempty"` // id of the work item executing the body
	LastUpdate      time.Time       `json:"lu"`
	// Revision is the optimistic lock counter, Version is the connector definition version.
	Revision int64 `json:"rev"`
}

// SortByExecutionOrder orders connectors of a group ascending, keys break ties.
func SortByExecutionOrder(connectors []ConnectorInstance) {
	slices.SortFunc(connectors, func(a, b ConnectorInstance) int {
		if a.ExecutionOrder != b.ExecutionOrder {
			return a.ExecutionOrder - b.ExecutionOrder
		}
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
}
