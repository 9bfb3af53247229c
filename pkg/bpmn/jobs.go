package bpmn

import (
	"context"
	"fmt"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
)

// runTaskHandler calls the handler registered for an activity while the activity is executed.
// A completed job completes the activity with the job's output variables, a failed one moves it to
// FAILED and raises an incident. A handler that does neither leaves the activity waiting.
func (engine *Engine) runTaskHandler(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, def *runtime.ProcessDefinition, nodeDef *runtime.FlowNodeDefinition, handler TaskHandlerFunc) error {
	pi, err := batch.lockProcess(ctx, n.ProcessInstanceKey())
	if err != nil {
		return err
	}
	job := newActivatedJob(n, def, nodeDef, withLocals(pi.Variables, iterationLocals(n, nodeDef, pi.Variables)), batch.now)
	func() {
		defer func() {
			if r := recover(); r != nil {
				job.outcome = jobFailed
				job.reason = fmt.Sprintf("task handler panicked: %v", r)
			}
		}()
		handler(job)
	}()

	switch job.outcome {
	case jobCompleted:
		return engine.completeFlowNode(ctx, batch, n, job.output)
	case jobFailed:
		engine.logger.Warn("task handler failed", "element", nodeDef.Id, "flowNode", n.Key, "processInstance", pi.Key, "reason", job.reason)
		if err := engine.transitionNode(ctx, batch, n, runtime.EventFail); err != nil {
			return err
		}
		engine.raiseIncident(ctx, batch, pi, runtime.Incident{
			Kind:                runtime.IncidentTaskFailure,
			ProcessInstanceKey:  pi.Key,
			FlowNodeInstanceKey: n.Key,
			Message:             job.reason,
			NodeFailed:          true,
		})
	}
	return nil
}
