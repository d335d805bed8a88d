package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
)

const (
	errorCollection      = "errors"
	detectionCollection  = "detections"
	reportCollection     = "reports"
	evaluationCollection = "evaluations"
)

// DetectionSummary is the status record of a detection or monitoring run.
type DetectionSummary struct {
	WorkflowID     string          `json:"workflow_id"`
	Kind           string          `json:"kind"`
	Source         string          `json:"source"`
	Status         string          `json:"status"`
	Iteration      int             `json:"iteration"`
	ErrorsDetected int             `json:"errors_detected"`
	OpenErrors     int             `json:"open_errors"`
	MaxSeverity    models.Severity `json:"max_severity,omitempty"`
	Notified       bool            `json:"notified"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

const (
	SummaryAwaitingResolution = "awaiting_resolution"
	SummaryClean              = "clean"
	SummaryMonitoring         = "monitoring"
	SummaryCompleted          = "completed"
)

// ErrorReport is generated once per detection run.
type ErrorReport struct {
	WorkflowID  string                  `json:"workflow_id"`
	Source      string                  `json:"source"`
	GeneratedAt time.Time               `json:"generated_at"`
	TotalErrors int                     `json:"total_errors"`
	BySeverity  map[models.Severity]int `json:"by_severity"`
	MaxSeverity models.Severity         `json:"max_severity,omitempty"`
	Notified    bool                    `json:"notified"`
	Errors      []models.ErrorLog       `json:"errors"`
}

// DetectionResult is the result of a completed detect_error execution.
type DetectionResult struct {
	WorkflowID     string          `json:"workflow_id"`
	Source         string          `json:"source"`
	ErrorsDetected int             `json:"errors_detected"`
	ErrorsResolved int             `json:"errors_resolved"`
	ErrorsIgnored  int             `json:"errors_ignored"`
	MaxSeverity    models.Severity `json:"max_severity,omitempty"`
	Notified       bool            `json:"notified"`
	CompletedAt    time.Time       `json:"completed_at"`
}

// GradeEvaluation is the oracle's verdict as returned to graders.
type GradeEvaluation struct {
	Score    float64             `json:"correctness_score"`
	Errors   []models.ScoreError `json:"errors_found"`
	Feedback string              `json:"feedback"`
}

// GradeResult is the result of a completed grade_solution execution.
type GradeResult struct {
	JobID                 string             `json:"job_id"`
	SocketID              string             `json:"socket_id"`
	EvaluationID          string             `json:"evaluation_id"`
	TotalAttempts         int64              `json:"total_attempts"`
	CumulativeBoundingBox models.BoundingBox `json:"cumulative_bounding_box"`
	Evaluation            GradeEvaluation    `json:"evaluation"`
	SolutionComplete      bool               `json:"solution_complete"`
	Y                     float64            `json:"y"`
}

// errorLogID is deterministic so a re-run save step overwrites instead of duplicating.
func errorLogID(workflowID string, iteration, index int) string {
	return fmt.Sprintf("%s-%d-%d", workflowID, iteration, index)
}

func errorLogKey(workflowID, errorID string) string {
	return persistence.Key(errorCollection, workflowID, errorID)
}

// ErrorLogs lists the error logs of one execution.
func ErrorLogs(ctx context.Context, store persistence.Store, workflowID string) ([]models.ErrorLog, error) {
	logs, err := persistence.ListJSON[models.ErrorLog](ctx, store, persistence.Prefix(errorCollection, workflowID))
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs of %s: %w", workflowID, err)
	}

	out := make([]models.ErrorLog, len(logs))
	for i, l := range logs {
		out[i] = *l
	}

	return out, nil
}

// Report loads the error report of a detection run.
func Report(ctx context.Context, store persistence.Store, workflowID string) (*ErrorReport, error) {
	var report ErrorReport
	if err := persistence.GetJSON(ctx, store, persistence.Key(reportCollection, workflowID), &report); err != nil {
		return nil, err
	}

	return &report, nil
}

// Summary loads the status record of a detection or monitoring run.
func Summary(ctx context.Context, store persistence.Store, workflowID string) (*DetectionSummary, error) {
	var summary DetectionSummary
	if err := persistence.GetJSON(ctx, store, persistence.Key(detectionCollection, workflowID), &summary); err != nil {
		return nil, err
	}

	return &summary, nil
}

func saveSummary(ctx context.Context, store persistence.Store, summary DetectionSummary) error {
	return persistence.PutJSON(ctx, store, persistence.Key(detectionCollection, summary.WorkflowID), summary)
}

// Evaluation loads a persisted grading evaluation.
func Evaluation(ctx context.Context, store persistence.Store, evaluationID string) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := persistence.GetJSON(ctx, store, persistence.Key(evaluationCollection, evaluationID), &eval); err != nil {
		return nil, err
	}

	return &eval, nil
}

// saveFindings persists findings as open error logs. Logs that already exist keep their current
// state, which makes a repeated save harmless.
func saveFindings(
	ctx context.Context,
	store persistence.Store,
	workflowID, source string,
	iteration int,
	findings []models.Finding,
	indexes []int,
	now time.Time,
) ([]string, error) {
	ids := make([]string, 0, len(findings))

	for i, f := range findings {
		id := errorLogID(workflowID, iteration, indexes[i])
		key := errorLogKey(workflowID, id)
		ids = append(ids, id)

		if _, err := store.Get(ctx, key); err == nil {
			continue
		} else if !persistence.IsNotFound(err) {
			return nil, err
		}

		log := models.ErrorLog{
			ID:         id,
			Message:    f.Message,
			Severity:   f.Severity,
			Status:     models.ErrorOpen,
			Source:     source,
			WorkflowID: workflowID,
			Step:       f.Step,
			ErrorType:  f.ErrorType,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := persistence.PutJSON(ctx, store, key, log); err != nil {
			return nil, fmt.Errorf("failed to save error log %s: %w", id, err)
		}
	}

	return ids, nil
}

func loadErrorLogs(ctx context.Context, store persistence.Store, workflowID string, ids []string) ([]models.ErrorLog, error) {
	out := make([]models.ErrorLog, 0, len(ids))

	for _, id := range ids {
		var log models.ErrorLog
		if err := persistence.GetJSON(ctx, store, errorLogKey(workflowID, id), &log); err != nil {
			return nil, err
		}

		out = append(out, log)
	}

	return out, nil
}

// transitionOpen moves open logs (all of them, or only errorID) to status and reports how many
// changed and how many stay open.
func transitionOpen(
	ctx context.Context,
	store persistence.Store,
	workflowID, errorID string,
	status models.ErrorStatus,
	resolution string,
	now time.Time,
) (changed, open int, err error) {
	logs, err := ErrorLogs(ctx, store, workflowID)
	if err != nil {
		return 0, 0, err
	}

	for i := range logs {
		log := &logs[i]

		if (errorID == "" || log.ID == errorID) && log.Transition(status, resolution, now) {
			if err := persistence.PutJSON(ctx, store, errorLogKey(workflowID, log.ID), log); err != nil {
				return changed, 0, fmt.Errorf("failed to update error log %s: %w", log.ID, err)
			}

			changed++
		}

		if log.Status == models.ErrorOpen {
			open++
		}
	}

	return changed, open, nil
}
