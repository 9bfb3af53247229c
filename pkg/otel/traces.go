package otel

const (
	Prefix                        = "bpmn-"
	AttributeProcessInstanceKey   = Prefix + "instance-key"
	AttributeProcessDefinitionKey = Prefix + "definition-key"
	AttributeProcessId            = Prefix + "process-id"
	AttributeFlowNodeInstanceKey  = Prefix + "flow-node-key"
	AttributeFlowNodeDefinitionId = Prefix + "flow-node-id"
	AttributeFlowNodeKind         = Prefix + "flow-node-kind"
	AttributeConnectorInstanceKey = Prefix + "connector-key"
	AttributeWorkItemId           = Prefix + "work-item-id"
	AttributeWorkKind             = Prefix + "work-kind"
	AttributeStateCategory        = Prefix + "state-category"
	AttributeTransitionEvent      = Prefix + "transition-event"
	AttributeProcessState         = Prefix + "process-state"
	AttributeIncidentKind         = Prefix + "incident-kind"
	AttributeIncidentKey          = Prefix + "incident-key"

	SpanStatusToken = Prefix + "token-status"
)
