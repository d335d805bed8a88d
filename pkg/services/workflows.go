package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/coherence"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/fingerprint"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
)

// Workflows is the dispatcher facing API of the workflow engine.
type Workflows struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	store   persistence.Store
	policy  *coherence.Policy
	logger  *slog.Logger
}

func NewWorkflows(
	eng *engine.Engine,
	cat *catalog.Catalog,
	store persistence.Store,
	policy *coherence.Policy,
	logger *slog.Logger,
) *Workflows {
	return &Workflows{
		engine:  eng,
		catalog: cat,
		store:   store,
		policy:  policy,
		logger:  logger.With("module", "workflows_service"),
	}
}

// Start validates input for kind and starts an execution. Invalid input never reaches the engine.
func (w *Workflows) Start(ctx context.Context, kind string, input xjson.RawMessage) (string, error) {
	prepared, err := w.prepare(kind, input)
	if err != nil {
		return "", err
	}

	id, err := w.engine.Start(ctx, kind, prepared)
	if err != nil {
		return "", fmt.Errorf("failed to start %s: %w", kind, err)
	}

	w.logger.InfoContext(ctx, "Started workflow", "workflow_id", id, "kind", kind)

	return id, nil
}

func (w *Workflows) prepare(kind string, input xjson.RawMessage) (any, error) {
	op := "start_" + kind

	decode := func(v any) error {
		if len(input) == 0 {
			return NewValidationError(op, "request body is required", ErrInvalidRequest)
		}

		if err := xjson.Unmarshal(input, v); err != nil {
			return NewValidationError(op, "malformed request body: "+err.Error(), ErrInvalidRequest)
		}

		return nil
	}

	var err error

	switch kind {
	case catalog.KindDetectError:
		var in catalog.DetectionInput
		if err = decode(&in); err == nil {
			err = w.catalog.PrepareDetection(&in)
		}

		return in, validation(op, err)
	case catalog.KindErrorMonitoring:
		var in catalog.MonitorInput
		if err = decode(&in); err == nil {
			err = w.catalog.PrepareMonitor(&in)
		}

		return in, validation(op, err)
	case catalog.KindGradeSolution:
		var in catalog.GradeInput
		if err = decode(&in); err == nil {
			err = w.catalog.PrepareGrade(&in)
		}

		return in, validation(op, err)
	default:
		return nil, NewValidationError(op, fmt.Sprintf("unknown workflow kind %q", kind), ErrUnknownKind)
	}
}

func validation(op string, err error) error {
	if err == nil || codeOf(err) != "" {
		return err
	}

	return NewValidationError(op, err.Error(), err)
}

// Signal delivers a named signal to a running execution.
func (w *Workflows) Signal(ctx context.Context, id, name string, payload xjson.RawMessage) (string, error) {
	if id == "" {
		return "", NewValidationError("signal", "workflow id is required", ErrWorkflowIDRequired)
	}

	var body any
	if len(payload) > 0 {
		var probe any
		if err := xjson.Unmarshal(payload, &probe); err != nil {
			return "", NewValidationError("signal", "malformed signal payload: "+err.Error(), ErrInvalidRequest)
		}

		body = payload
	}

	signalID, err := w.engine.Signal(ctx, id, name, body)
	if err != nil {
		if IsConflictError(err) {
			return "", &ServiceError{Op: "signal", Code: CodeConflict, Message: err.Error(), Err: err}
		}

		return "", err
	}

	return signalID, nil
}

// ExecutionView is the status of one execution as returned by Query.
type ExecutionView struct {
	models.ExecutionSummary

	Cursor     int                 `json:"cursor"`
	Suspension *models.Suspension  `json:"suspension,omitempty"`
	Error      string              `json:"error,omitempty"`
	History    []models.StepRecord `json:"history"`
	Result     xjson.RawMessage    `json:"result,omitempty"`
}

func (w *Workflows) Query(ctx context.Context, id string) (*ExecutionView, error) {
	exec, err := w.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ExecutionView{
		ExecutionSummary: exec.Summary(),
		Cursor:           exec.Cursor,
		Suspension:       exec.Suspension,
		Error:            exec.Error,
		History:          exec.History,
		Result:           exec.Result,
	}, nil
}

func (w *Workflows) History(ctx context.Context, id string) ([]models.StepRecord, error) {
	return w.engine.GetHistory(ctx, id)
}

func (w *Workflows) Result(ctx context.Context, id string) (xjson.RawMessage, error) {
	return w.engine.GetResult(ctx, id)
}

func (w *Workflows) ListActive(ctx context.Context) ([]models.ExecutionSummary, error) {
	return w.engine.ListActive(ctx)
}

// ErrorLogs reads the error logs of an execution through the cache. Entries are owned by the
// execution and go stale as soon as it checkpoints again.
func (w *Workflows) ErrorLogs(ctx context.Context, id string) ([]models.ErrorLog, bool, error) {
	if _, err := w.engine.Get(ctx, id); err != nil {
		return nil, false, err
	}

	key, err := fingerprint.Namespaced("workflow-errors", map[string]any{"workflow_id": id})
	if err != nil {
		return nil, false, err
	}

	owner := coherence.WorkflowOwner(id)

	payload, hit, err := w.policy.ReadThrough(ctx, key, func(ctx context.Context) (*coherence.Computed, error) {
		version, err := w.engine.Version(ctx, id)
		if err != nil {
			return nil, err
		}

		logs, err := catalog.ErrorLogs(ctx, w.store, id)
		if err != nil {
			return nil, err
		}

		raw, err := xjson.Marshal(logs)
		if err != nil {
			return nil, err
		}

		return &coherence.Computed{Payload: raw, Versions: map[coherence.Owner]int64{owner: version}}, nil
	})
	if err != nil {
		return nil, false, err
	}

	var logs []models.ErrorLog
	if err := xjson.Unmarshal(payload, &logs); err != nil {
		return nil, false, fmt.Errorf("failed to decode error logs: %w", err)
	}

	return logs, hit, nil
}

// Report returns the error report generated by a detection run.
func (w *Workflows) Report(ctx context.Context, id string) (*catalog.ErrorReport, error) {
	report, err := catalog.Report(ctx, w.store, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, &ServiceError{Op: "report", Code: CodeNotFound, Message: "no report for workflow " + id, Err: err}
		}

		return nil, err
	}

	return report, nil
}

// Summary returns the detection status record of a detection or monitoring run.
func (w *Workflows) Summary(ctx context.Context, id string) (*catalog.DetectionSummary, error) {
	return catalog.Summary(ctx, w.store, id)
}

// ListErrorLogs lists error logs across every execution, newest first.
func (w *Workflows) ListErrorLogs(ctx context.Context, filter catalog.ErrorLogFilter) ([]models.ErrorLog, error) {
	logs, err := catalog.ListErrorLogs(ctx, w.store, filter)
	if err != nil {
		return nil, validation("list_errors", err)
	}

	return logs, nil
}

// ErrorStats counts every error log by severity, status and source.
func (w *Workflows) ErrorStats(ctx context.Context) (*catalog.ErrorStatistics, error) {
	return catalog.ErrorStats(ctx, w.store)
}
