package catalog

import (
	"context"
	"log/slog"

	"github.com/SaiNageswarS/NurixLearn/pkg/eventbus"
	"github.com/SaiNageswarS/NurixLearn/pkg/events"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
)

// Notification announces errors at or above a severity threshold.
type Notification struct {
	WorkflowID  string
	Source      string
	Iteration   int
	MaxSeverity models.Severity
	Threshold   models.Severity
	Errors      []models.ErrorLog
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// EventNotifier publishes notifications as ErrorNotification events.
type EventNotifier struct {
	publisher eventbus.EventPublisher
}

func NewEventNotifier(publisher eventbus.EventPublisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) Notify(ctx context.Context, notification Notification) error {
	return n.publisher.Publish(ctx, notification.WorkflowID, events.ErrorNotification{
		BaseEvent:   events.NewBaseEvent(events.ErrorNotificationEvent, notification.WorkflowID),
		Source:      notification.Source,
		MaxSeverity: notification.MaxSeverity,
		Threshold:   notification.Threshold,
		Errors:      notification.Errors,
		Iteration:   notification.Iteration,
	})
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	n.logger.WarnContext(ctx, "errors require attention",
		"workflow_id", notification.WorkflowID,
		"source", notification.Source,
		"iteration", notification.Iteration,
		"max_severity", notification.MaxSeverity,
		"threshold", notification.Threshold,
		"errors", len(notification.Errors))

	return nil
}
