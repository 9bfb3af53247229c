package otel

import (
	"errors"

	"go.opentelemetry.io/otel/metric"
)

type EngineMetrics struct {
	ProcessesStarted   metric.Int64Counter
	ProcessesEnded     metric.Int64Counter
	ProcessesRunning   metric.Int64UpDownCounter
	TokensActive       metric.Int64UpDownCounter
	WorkItemsProcessed metric.Int64Counter
	WorkItemsRetried   metric.Int64Counter
	VersionConflicts   metric.Int64Counter
	ConnectorsExecuted metric.Int64Counter
	ConnectorsFailed   metric.Int64Counter
	PropagatedExits    metric.Int64Counter
	IncidentsCreated   metric.Int64Counter
	WorkItemDuration   metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*EngineMetrics, error) {
	var errJoin error

	processesStarted, err := meter.Int64Counter("processes_started", metric.WithDescription("Number of processes started"))
	errJoin = errors.Join(errJoin, err)

	processesEnded, err := meter.Int64Counter("processes_ended", metric.WithDescription("Number of processes that reached a terminal state"))
	errJoin = errors.Join(errJoin, err)

	processesRunning, err := meter.Int64UpDownCounter("processes_running", metric.WithDescription("Number of processes currently running"))
	errJoin = errors.Join(errJoin, err)

	tokensActive, err := meter.Int64UpDownCounter("tokens_active", metric.WithDescription("Number of live tokens"))
	errJoin = errors.Join(errJoin, err)

	workItemsProcessed, err := meter.Int64Counter("work_items_processed", metric.WithDescription("Number of work items acknowledged"))
	errJoin = errors.Join(errJoin, err)

	workItemsRetried, err := meter.Int64Counter("work_items_retried", metric.WithDescription("Number of work items returned to the queue"))
	errJoin = errors.Join(errJoin, err)

	versionConflicts, err := meter.Int64Counter("version_conflicts", metric.WithDescription("Number of commits rejected by optimistic locking"))
	errJoin = errors.Join(errJoin, err)

	connectorsExecuted, err := meter.Int64Counter("connectors_executed", metric.WithDescription("Number of connector executions that finished"))
	errJoin = errors.Join(errJoin, err)

	connectorsFailed, err := meter.Int64Counter("connectors_failed", metric.WithDescription("Number of connector executions that failed"))
	errJoin = errors.Join(errJoin, err)

	propagatedExits, err := meter.Int64Counter("propagated_exits", metric.WithDescription("Number of exit work items created by state category propagation"))
	errJoin = errors.Join(errJoin, err)

	incidentsCreated, err := meter.Int64Counter("incidents_created", metric.WithDescription("Number of incidents created"))
	errJoin = errors.Join(errJoin, err)

	workItemDuration, err := meter.Float64Histogram("work_item_duration", metric.WithUnit("ms"), metric.WithDescription("Time spent handling a work item, milliseconds"))
	errJoin = errors.Join(errJoin, err)

	metrics := EngineMetrics{
		ProcessesStarted:   processesStarted,
		ProcessesEnded:     processesEnded,
		ProcessesRunning:   processesRunning,
		TokensActive:       tokensActive,
		WorkItemsProcessed: workItemsProcessed,
		WorkItemsRetried:   workItemsRetried,
		VersionConflicts:   versionConflicts,
		ConnectorsExecuted: connectorsExecuted,
		ConnectorsFailed:   connectorsFailed,
		PropagatedExits:    propagatedExits,
		IncidentsCreated:   incidentsCreated,
		WorkItemDuration:   workItemDuration,
	}
	return &metrics, errJoin
}
