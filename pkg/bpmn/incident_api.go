package bpmn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ResolveIncident lets the process instance make progress again.
//
// When the incident left its flow node FAILED, ResolutionRetry runs the failed step again
// and ResolutionSkip skips it. For a failed work item, ResolutionRetry enqueues the item again,
// ResolutionSkip drops it together with the token it delivered and ResolutionFail moves its
// flow node to FAILED.
func (engine *Engine) ResolveIncident(ctx context.Context, key int64, resolution runtime.IncidentResolution) (err error) {
	ctx, resolveIncidentSpan := engine.tracer.Start(ctx, fmt.Sprintf("incident:%d", key))
	defer func() {
		if err != nil {
			resolveIncidentSpan.RecordError(err)
			resolveIncidentSpan.SetStatus(codes.Error, err.Error())
		}
		resolveIncidentSpan.End()
	}()

	incident, err := engine.persistence.FindIncidentByKey(ctx, key)
	if err != nil {
		return errors.Join(newEngineErrorf("failed to find incident with key: %d", key), err)
	}
	resolveIncidentSpan.SetAttributes(
		attribute.Int64(otelPkg.AttributeIncidentKey, incident.Key),
		attribute.Int64(otelPkg.AttributeProcessInstanceKey, incident.ProcessInstanceKey),
	)
	if incident.IsResolved() {
		return errors.New("incident already resolved")
	}

	batch := engine.newEngineBatch(runtime.WorkItem{
		ProcessInstanceKey:  incident.ProcessInstanceKey,
		FlowNodeInstanceKey: incident.FlowNodeInstanceKey,
	})
	if err := engine.resolveIncident(ctx, batch, incident, resolution); err != nil {
		batch.release()
		return err
	}
	incident.ResolvedAt = batch.now
	batch.saveIncident(incident)
	return batch.Flush(ctx)
}

func (engine *Engine) resolveIncident(ctx context.Context, batch *EngineBatch, incident runtime.Incident, resolution runtime.IncidentResolution) error {
	if incident.NodeFailed {
		var kind runtime.WorkKind
		switch resolution {
		case runtime.ResolutionRetry:
			kind = runtime.WorkRetryFlowNode
		case runtime.ResolutionSkip:
			kind = runtime.WorkSkipFlowNode
		case runtime.ResolutionFail:
			// the node is FAILED already
			return nil
		default:
			return newEngineErrorf("unknown incident resolution %s", resolution)
		}
		item := batch.newItem(kind, incident.ProcessInstanceKey)
		item.FlowNodeInstanceKey = incident.FlowNodeInstanceKey
		batch.emit(item)
		return nil
	}

	switch resolution {
	case runtime.ResolutionRetry:
		if incident.WorkItem == nil {
			return newEngineErrorf("incident %d has no work item to retry", incident.Key)
		}
		retry := *incident.WorkItem
		retry.Attempts = 0
		retry.NotBefore = time.Time{}
		retry.EnqueuedAt = batch.now
		batch.emit(retry)
	case runtime.ResolutionSkip:
		return engine.dropDelivery(ctx, batch, incident.WorkItem)
	case runtime.ResolutionFail:
		if incident.FlowNodeInstanceKey == 0 {
			return newEngineErrorf("incident %d is not bound to a flow node", incident.Key)
		}
		if err := batch.lockNode(ctx, incident.FlowNodeInstanceKey); err != nil {
			return err
		}
		n, err := batch.node(ctx, incident.FlowNodeInstanceKey)
		if err != nil {
			return err
		}
		if n.Terminal {
			return nil
		}
		n.EndExecuting()
		return engine.transitionNode(ctx, batch, n, runtime.EventFail)
	default:
		return newEngineErrorf("unknown incident resolution %s", resolution)
	}
	return nil
}

// FindIncidents returns the incidents of a process instance.
func (engine *Engine) FindIncidents(ctx context.Context, processInstanceKey int64) ([]runtime.Incident, error) {
	incidents, err := engine.persistence.FindIncidentsByProcessInstanceKey(ctx, processInstanceKey)
	if err != nil {
		return nil, errors.Join(newEngineErrorf("failed to find incidents of process instance %d", processInstanceKey), err)
	}
	return incidents, nil
}
