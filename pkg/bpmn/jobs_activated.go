package bpmn

import (
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// ActivatedJob is the view a task handler gets of the activity it runs for.
// The handler must call Complete or Fail, the first call wins.
type ActivatedJob interface {
	// Key of the flow node instance the job runs for
	Key() int64
	ProcessInstanceKey() int64
	ProcessDefinitionId() string
	ProcessDefinitionVersion() int32
	ProcessDefinitionKey() int64

	// ElementId is the flow node definition id of the activity
	ElementId() string

	// LoopCounter is the 1-based iteration when the job runs inside a loop or multi-instance activity, 0 otherwise
	LoopCounter() int

	// Variable reads the process variables, including the iteration locals loopCounter and item
	Variable(key string) any
	Variables() map[string]any

	// SetOutputVariable is merged into the process instance variables on Complete
	SetOutputVariable(key string, value any)
	OutputVariables() map[string]any

	// CreatedAt is the time of the work item that executed the activity
	CreatedAt() time.Time

	Fail(reason string)
	Complete()
}

type jobOutcome int

const (
	jobPending jobOutcome = iota
	jobCompleted
	jobFailed
)

type activatedJob struct {
	node      *runtime.FlowNodeInstance
	def       *runtime.ProcessDefinition
	nodeDef   *runtime.FlowNodeDefinition
	createdAt time.Time

	variables map[string]any
	output    map[string]any

	outcome jobOutcome
	reason  string
}

func newActivatedJob(n *runtime.FlowNodeInstance, def *runtime.ProcessDefinition, nodeDef *runtime.FlowNodeDefinition, variables map[string]any, now time.Time) *activatedJob {
	return &activatedJob{
		node:      n,
		def:       def,
		nodeDef:   nodeDef,
		createdAt: now,
		variables: variables,
		output:    map[string]any{},
	}
}

func (aj *activatedJob) Key() int64                      { return aj.node.Key }
func (aj *activatedJob) ProcessInstanceKey() int64       { return aj.node.ProcessInstanceKey() }
func (aj *activatedJob) ProcessDefinitionId() string     { return aj.def.Id }
func (aj *activatedJob) ProcessDefinitionVersion() int32 { return aj.def.Version }
func (aj *activatedJob) ProcessDefinitionKey() int64     { return aj.def.Key }
func (aj *activatedJob) ElementId() string               { return aj.nodeDef.Id }
func (aj *activatedJob) LoopCounter() int                { return aj.node.LoopCounter }
func (aj *activatedJob) CreatedAt() time.Time            { return aj.createdAt }
func (aj *activatedJob) Variable(key string) any         { return aj.variables[key] }
func (aj *activatedJob) Variables() map[string]any       { return aj.variables }
func (aj *activatedJob) OutputVariables() map[string]any { return aj.output }

func (aj *activatedJob) SetOutputVariable(key string, value any) {
	aj.output[key] = value
}

func (aj *activatedJob) Fail(reason string) {
	if aj.outcome == jobPending {
		aj.outcome = jobFailed
		aj.reason = reason
	}
}

func (aj *activatedJob) Complete() {
	if aj.outcome == jobPending {
		aj.outcome = jobCompleted
	}
}
