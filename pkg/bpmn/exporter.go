package bpmn

import (
	"context"
	"time"

	"github.com/pbinitiative/zenexec/pkg/bpmn/exporter"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AddEventExporter registers an EventExporter instance
func (engine *Engine) AddEventExporter(exporter exporter.EventExporter) {
	engine.exporters = append(engine.exporters, exporter)
}

func (engine *Engine) exportNewProcessEvent(def *runtime.ProcessDefinition) {
	event := exporter.ProcessEvent{
		ProcessId:  def.Id,
		ProcessKey: def.Key,
		Version:    def.Version,
	}
	for _, exp := range engine.exporters {
		exp.NewProcessEvent(&event)
	}
}

// instanceEvent snapshots the process instance, exporters run after the commit.
func (engine *Engine) instanceEvent(ctx context.Context, pi *runtime.ProcessInstance, at time.Time) exporter.ProcessInstanceEvent {
	event := exporter.ProcessInstanceEvent{
		ProcessKey:         pi.ProcessDefinitionKey,
		ProcessInstanceKey: pi.Key,
		State:              string(pi.State),
		StateCategory:      string(pi.StateCategory),
		Timestamp:          at,
	}
	if def, err := engine.definitions.Get(ctx, pi.ProcessDefinitionKey); err == nil {
		event.ProcessId = def.Id
		event.Version = def.Version
	}
	return event
}

// processStarted counts the new instance and announces it once the batch committed.
func (engine *Engine) processStarted(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance) {
	event := engine.instanceEvent(ctx, pi, batch.now)
	ctx = context.WithoutCancel(ctx)
	batch.AddPostFlushAction(func() {
		attrs := metric.WithAttributes(attribute.Int64(otelPkg.AttributeProcessDefinitionKey, pi.ProcessDefinitionKey))
		engine.metrics.ProcessesStarted.Add(ctx, 1, attrs)
		engine.metrics.ProcessesRunning.Add(ctx, 1)
		for _, exp := range engine.exporters {
			exp.NewProcessInstanceEvent(&event)
		}
	})
}

func (engine *Engine) processEnded(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance) {
	event := engine.instanceEvent(ctx, pi, batch.now)
	ctx = context.WithoutCancel(ctx)
	batch.AddPostFlushAction(func() {
		attrs := metric.WithAttributes(attribute.String(otelPkg.AttributeProcessState, event.State))
		engine.metrics.ProcessesEnded.Add(ctx, 1, attrs)
		engine.metrics.ProcessesRunning.Add(ctx, -1)
		for _, exp := range engine.exporters {
			exp.EndProcessEvent(&event)
		}
	})
}

func (engine *Engine) exportElementEvent(ctx context.Context, batch *EngineBatch, n *runtime.FlowNodeInstance, intent exporter.Intent) {
	if len(engine.exporters) == 0 {
		return
	}
	pi, err := batch.process(ctx, n.ProcessInstanceKey())
	if err != nil {
		return
	}
	event := engine.instanceEvent(ctx, pi, batch.now)
	info := exporter.ElementInfo{
		ElementType: string(n.Kind),
		ElementId:   n.FlowNodeDefinitionId,
		ElementKey:  n.Key,
		Intent:      intent,
	}
	batch.AddPostFlushAction(func() {
		for _, exp := range engine.exporters {
			exp.NewElementEvent(&event, &info)
		}
	})
}

func (engine *Engine) exportSequenceFlowEvent(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, transitionId string) {
	if len(engine.exporters) == 0 {
		return
	}
	event := engine.instanceEvent(ctx, pi, batch.now)
	info := exporter.ElementInfo{
		ElementType: "SEQUENCE_FLOW",
		ElementId:   transitionId,
		Intent:      exporter.SequenceFlowTaken,
	}
	batch.AddPostFlushAction(func() {
		for _, exp := range engine.exporters {
			exp.NewElementEvent(&event, &info)
		}
	})
}

func (engine *Engine) exportConnectorEvent(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, c *runtime.ConnectorInstance, intent exporter.Intent) {
	if len(engine.exporters) == 0 {
		return
	}
	event := engine.instanceEvent(ctx, pi, batch.now)
	info := exporter.ElementInfo{
		ElementType: "CONNECTOR",
		ElementId:   c.ConnectorId,
		ElementKey:  c.Key,
		Intent:      intent,
	}
	batch.AddPostFlushAction(func() {
		for _, exp := range engine.exporters {
			exp.NewElementEvent(&event, &info)
		}
	})
}

func (engine *Engine) exportIncidentEvent(ctx context.Context, batch *EngineBatch, pi *runtime.ProcessInstance, incident runtime.Incident) {
	event := engine.instanceEvent(ctx, pi, batch.now)
	info := exporter.IncidentInfo{
		IncidentKey:         incident.Key,
		Kind:                string(incident.Kind),
		FlowNodeInstanceKey: incident.FlowNodeInstanceKey,
		Message:             incident.Message,
	}
	ctx = context.WithoutCancel(ctx)
	batch.AddPostFlushAction(func() {
		engine.metrics.IncidentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String(otelPkg.AttributeIncidentKind, info.Kind)))
		for _, exp := range engine.exporters {
			exp.NewIncidentEvent(&event, &info)
		}
	})
}
