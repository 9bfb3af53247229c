package exporter

import (
	"encoding/json"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/hashicorp/go-hclog"
)

const (
	DefaultTopic = "zenexec.events"

	// EventTypeMetadataKey carries the envelope type so subscribers can route without decoding.
	EventTypeMetadataKey          = "event_type"
	ProcessInstanceKeyMetadataKey = "process_instance_key"
)

type EventType string

const (
	EventProcessDeployed        EventType = "PROCESS_DEPLOYED"
	EventProcessInstanceCreated EventType = "PROCESS_INSTANCE_CREATED"
	EventProcessInstanceEnded   EventType = "PROCESS_INSTANCE_ENDED"
	EventElement                EventType = "ELEMENT"
	EventIncident               EventType = "INCIDENT"
)

// Envelope is the JSON payload of every published message.
type Envelope struct {
	Type     EventType             `json:"type"`
	Process  *ProcessEvent         `json:"process,omitempty"`
	Instance *ProcessInstanceEvent `json:"instance,omitempty"`
	Element  *ElementInfo          `json:"element,omitempty"`
	Incident *IncidentInfo         `json:"incident,omitempty"`
}

// WatermillExporter publishes events to a watermill publisher. Publish errors
// are logged and dropped.
type WatermillExporter struct {
	publisher message.Publisher
	topic     string
	logger    hclog.Logger
}

func NewWatermillExporter(publisher message.Publisher, topic string) *WatermillExporter {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillExporter{
		publisher: publisher,
		topic:     topic,
		logger:    hclog.Default().Named("watermill-exporter"),
	}
}

var _ EventExporter = (*WatermillExporter)(nil)

func (e *WatermillExporter) NewProcessEvent(event *ProcessEvent) {
	e.publish(Envelope{Type: EventProcessDeployed, Process: event})
}

func (e *WatermillExporter) NewProcessInstanceEvent(event *ProcessInstanceEvent) {
	e.publish(Envelope{Type: EventProcessInstanceCreated, Instance: event})
}

func (e *WatermillExporter) EndProcessEvent(event *ProcessInstanceEvent) {
	e.publish(Envelope{Type: EventProcessInstanceEnded, Instance: event})
}

func (e *WatermillExporter) NewElementEvent(event *ProcessInstanceEvent, elementInfo *ElementInfo) {
	e.publish(Envelope{Type: EventElement, Instance: event, Element: elementInfo})
}

func (e *WatermillExporter) NewIncidentEvent(event *ProcessInstanceEvent, incident *IncidentInfo) {
	e.publish(Envelope{Type: EventIncident, Instance: event, Incident: incident})
}

func (e *WatermillExporter) publish(envelope Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		e.logger.Error("failed to encode event", "type", envelope.Type, "err", err)
		return
	}
	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(EventTypeMetadataKey, string(envelope.Type))
	if envelope.Instance != nil {
		msg.Metadata.Set(ProcessInstanceKeyMetadataKey, strconv.FormatInt(envelope.Instance.ProcessInstanceKey, 10))
	}
	if err := e.publisher.Publish(e.topic, msg); err != nil {
		e.logger.Error("failed to publish event", "type", envelope.Type, "err", err)
	}
}
