// Package events defines the lifecycle and notification events published by the workflow engine
// and the error detection workflows.
package events

import (
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every event; consumers filter on the event_type metadata.
const Topic = "nurix.workflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
	WorkflowExecutionCancelledEvent EventType = "workflow.execution.cancelled"

	WorkflowStepCompletedEvent EventType = "workflow.step.completed"
	WorkflowStepFailedEvent    EventType = "workflow.step.failed"

	WorkflowSignalReceivedEvent EventType = "workflow.signal.received"

	ErrorNotificationEvent EventType = "errors.notification"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type WorkflowExecutionStarted struct {
	BaseEvent

	Kind string `json:"kind"`
}

func (e WorkflowExecutionStarted) GetType() EventType { return WorkflowExecutionStartedEvent }

type WorkflowExecutionCompleted struct {
	BaseEvent

	Kind     string        `json:"kind"`
	Duration time.Duration `json:"duration"`
}

func (e WorkflowExecutionCompleted) GetType() EventType { return WorkflowExecutionCompletedEvent }

type WorkflowExecutionFailed struct {
	BaseEvent

	Kind     string        `json:"kind"`
	Step     string        `json:"step"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e WorkflowExecutionFailed) GetType() EventType { return WorkflowExecutionFailedEvent }

type WorkflowExecutionCancelled struct {
	BaseEvent

	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
	Iteration int    `json:"iteration"`
}

func (e WorkflowExecutionCancelled) GetType() EventType { return WorkflowExecutionCancelledEvent }

type WorkflowStepCompleted struct {
	BaseEvent

	Step      string             `json:"step"`
	Iteration int                `json:"iteration"`
	Attempts  int                `json:"attempts"`
	Outcome   models.StepOutcome `json:"outcome"`
}

func (e WorkflowStepCompleted) GetType() EventType { return WorkflowStepCompletedEvent }

type WorkflowStepFailed struct {
	BaseEvent

	Step      string `json:"step"`
	Iteration int    `json:"iteration"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error"`
}

func (e WorkflowStepFailed) GetType() EventType { return WorkflowStepFailedEvent }

type WorkflowSignalReceived struct {
	BaseEvent

	SignalID string `json:"signal_id"`
	Signal   string `json:"signal"`
}

func (e WorkflowSignalReceived) GetType() EventType { return WorkflowSignalReceivedEvent }

// ErrorNotification announces errors at or above a workflow's severity threshold.
type ErrorNotification struct {
	BaseEvent

	Source      string            `json:"source"`
	MaxSeverity models.Severity   `json:"max_severity"`
	Threshold   models.Severity   `json:"threshold"`
	Errors      []models.ErrorLog `json:"errors"`
	Iteration   int               `json:"iteration"`
}

func (e ErrorNotification) GetType() EventType { return ErrorNotificationEvent }
