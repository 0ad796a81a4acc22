// Package events defines event types and structures for flow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single stream all flow events are published to.
const Topic = "pathway.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Trigger events.
	FlowTriggeredEvent EventType = "flow.triggered"

	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	FlowName  string         `json:"flow_name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, flowName string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		FlowName:  flowName,
		Metadata:  make(map[string]any),
	}
}

// FlowTriggered asks the activator to start an instance of a flow. TriggerID
// identifies the source that fired (schedule, queue, API).
type FlowTriggered struct {
	BaseEvent

	TriggerID string         `json:"trigger_id"`
	Variables map[string]any `json:"variables,omitempty"`
	Actor     string         `json:"actor,omitempty"`
}

func (e FlowTriggered) GetType() EventType {
	return FlowTriggeredEvent
}

type ExecutionStarted struct {
	BaseEvent

	InstanceID string         `json:"instance_id"`
	Variables  map[string]any `json:"variables,omitempty"`
	Initiator  string         `json:"initiator,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	InstanceID   string         `json:"instance_id"`
	DurationMs   int64          `json:"duration_ms"`
	NodesVisited int            `json:"nodes_visited"`
	Variables    map[string]any `json:"variables,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	InstanceID   string         `json:"instance_id"`
	Error        string         `json:"error"`
	DurationMs   int64          `json:"duration_ms"`
	NodesVisited int            `json:"nodes_visited"`
	Variables    map[string]any `json:"variables,omitempty"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	InstanceID  string `json:"instance_id"`
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}
