package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
)

const (
	stateFindings    = "findings"
	stateErrorIDs    = "error_ids"
	stateMaxSeverity = "max_severity"
	stateNotified    = "notified"
)

// ResolutionTimeoutNote is the resolution recorded on errors closed by the wait timing out.
const ResolutionTimeoutNote = "timeout"

func (c *Catalog) detectErrorDefinition() *engine.Definition {
	return &engine.Definition{
		Kind: KindDetectError,
		Steps: []engine.Step{
			{Name: "scan", Run: c.scan},
			{Name: "save", Run: c.saveErrors},
			{Name: "analyze_severity", Run: analyzeSeverity},
			{Name: "notify", Run: c.notifyDetection},
			{Name: "update_status", Run: c.updateDetectionStatus},
			{Name: "generate_report", Run: c.generateReport},
			{Name: "wait_for_resolution", Await: &engine.Await{
				Signals:   []string{models.SignalResolveError, models.SignalIgnoreError},
				Timeout:   resolutionTimeout,
				Satisfied: c.nothingOpen,
				OnSignal:  c.onResolution,
				OnTimeout: c.autoResolve,
			}},
		},
		Finish: c.finishDetection,
	}
}

func detectionInput(sc *engine.StepContext) (DetectionInput, error) {
	var in DetectionInput
	if err := sc.Input(&in); err != nil {
		return in, engine.Permanent(fmt.Errorf("failed to decode input: %w", err))
	}

	return in, nil
}

func (c *Catalog) scan(ctx context.Context, sc *engine.StepContext) error {
	var target ScanTarget
	if err := sc.Input(&target); err != nil {
		return engine.Permanent(fmt.Errorf("failed to decode input: %w", err))
	}

	findings, err := c.scanner.Scan(ctx, target)
	if err != nil {
		return stepError(err)
	}

	sc.Detail(fmt.Sprintf("%d findings", len(findings)))

	return sc.Save(stateFindings, findings)
}

func (c *Catalog) saveErrors(ctx context.Context, sc *engine.StepContext) error {
	in, err := detectionInput(sc)
	if err != nil {
		return err
	}

	var findings []models.Finding
	if _, err := sc.Load(stateFindings, &findings); err != nil {
		return err
	}

	indexes := make([]int, len(findings))
	for i := range indexes {
		indexes[i] = i
	}

	ids, err := saveFindings(ctx, sc.Store(), sc.WorkflowID(), in.Source, sc.Iteration(), findings, indexes, sc.Now())
	if err != nil {
		return err
	}

	c.invalidate(ctx, sc.WorkflowID())

	return sc.Save(stateErrorIDs, ids)
}

func analyzeSeverity(_ context.Context, sc *engine.StepContext) error {
	var findings []models.Finding
	if _, err := sc.Load(stateFindings, &findings); err != nil {
		return err
	}

	maxSeverity := models.MaxSeverity(findings)
	if maxSeverity == "" {
		sc.Detail("no errors")
	} else {
		sc.Detail("max severity " + string(maxSeverity))
	}

	return sc.Save(stateMaxSeverity, maxSeverity)
}

func (c *Catalog) notifyDetection(ctx context.Context, sc *engine.StepContext) error {
	in, err := detectionInput(sc)
	if err != nil {
		return err
	}

	var (
		maxSeverity models.Severity
		ids         []string
	)

	if _, err := sc.Load(stateMaxSeverity, &maxSeverity); err != nil {
		return err
	}

	if _, err := sc.Load(stateErrorIDs, &ids); err != nil {
		return err
	}

	if maxSeverity == "" || !maxSeverity.AtLeast(in.SeverityThreshold) {
		sc.Skip(fmt.Sprintf("max severity %q below threshold %q", maxSeverity, in.SeverityThreshold))

		return sc.Save(stateNotified, false)
	}

	logs, err := loadErrorLogs(ctx, sc.Store(), sc.WorkflowID(), ids)
	if err != nil {
		return err
	}

	sent, err := sc.Once(ctx, "notify", func(ctx context.Context) error {
		return c.notifier.Notify(ctx, Notification{
			WorkflowID:  sc.WorkflowID(),
			Source:      in.Source,
			Iteration:   sc.Iteration(),
			MaxSeverity: maxSeverity,
			Threshold:   in.SeverityThreshold,
			Errors:      atLeast(logs, in.SeverityThreshold),
		})
	})
	if err != nil {
		return err
	}

	if !sent {
		sc.Detail("notification already sent")
	}

	return sc.Save(stateNotified, true)
}

func atLeast(logs []models.ErrorLog, threshold models.Severity) []models.ErrorLog {
	out := make([]models.ErrorLog, 0, len(logs))

	for _, l := range logs {
		if l.Severity.AtLeast(threshold) {
			out = append(out, l)
		}
	}

	return out
}

func (c *Catalog) updateDetectionStatus(ctx context.Context, sc *engine.StepContext) error {
	in, err := detectionInput(sc)
	if err != nil {
		return err
	}

	summary, err := c.detectionSummary(ctx, sc, in.Source)
	if err != nil {
		return err
	}

	summary.Status = SummaryAwaitingResolution
	if summary.OpenErrors == 0 {
		summary.Status = SummaryClean
	}

	if err := saveSummary(ctx, sc.Store(), summary); err != nil {
		return err
	}

	c.invalidate(ctx, sc.WorkflowID())
	sc.Detail(summary.Status)

	return nil
}

func (c *Catalog) detectionSummary(ctx context.Context, sc *engine.StepContext, source string) (DetectionSummary, error) {
	var (
		maxSeverity models.Severity
		notified    bool
	)

	if _, err := sc.Load(stateMaxSeverity, &maxSeverity); err != nil {
		return DetectionSummary{}, err
	}

	if _, err := sc.Load(stateNotified, &notified); err != nil {
		return DetectionSummary{}, err
	}

	logs, err := ErrorLogs(ctx, sc.Store(), sc.WorkflowID())
	if err != nil {
		return DetectionSummary{}, err
	}

	open := 0

	for _, l := range logs {
		if l.Status == models.ErrorOpen {
			open++
		}
	}

	return DetectionSummary{
		WorkflowID:     sc.WorkflowID(),
		Kind:           sc.Kind(),
		Source:         source,
		Iteration:      sc.Iteration(),
		ErrorsDetected: len(logs),
		OpenErrors:     open,
		MaxSeverity:    maxSeverity,
		Notified:       notified,
		UpdatedAt:      sc.Now(),
	}, nil
}

func (c *Catalog) generateReport(ctx context.Context, sc *engine.StepContext) error {
	in, err := detectionInput(sc)
	if err != nil {
		return err
	}

	var (
		maxSeverity models.Severity
		notified    bool
	)

	if _, err := sc.Load(stateMaxSeverity, &maxSeverity); err != nil {
		return err
	}

	if _, err := sc.Load(stateNotified, &notified); err != nil {
		return err
	}

	logs, err := ErrorLogs(ctx, sc.Store(), sc.WorkflowID())
	if err != nil {
		return err
	}

	report := ErrorReport{
		WorkflowID:  sc.WorkflowID(),
		Source:      in.Source,
		GeneratedAt: sc.Now(),
		TotalErrors: len(logs),
		BySeverity:  make(map[models.Severity]int),
		MaxSeverity: maxSeverity,
		Notified:    notified,
		Errors:      logs,
	}

	for _, l := range logs {
		report.BySeverity[l.Severity]++
	}

	if err := persistence.PutJSON(ctx, sc.Store(), persistence.Key(reportCollection, report.WorkflowID), report); err != nil {
		return err
	}

	c.invalidate(ctx, sc.WorkflowID())

	return nil
}

func resolutionTimeout(sc *engine.StepContext) (time.Duration, error) {
	in, err := detectionInput(sc)
	if err != nil {
		return 0, err
	}

	d, err := time.ParseDuration(in.ResolutionTimeout)
	if err != nil || d <= 0 {
		return 0, engine.Permanent(fmt.Errorf("%w: resolution_timeout %q", ErrInvalidInput, in.ResolutionTimeout))
	}

	return d, nil
}

func (c *Catalog) nothingOpen(ctx context.Context, sc *engine.StepContext) (bool, error) {
	logs, err := ErrorLogs(ctx, sc.Store(), sc.WorkflowID())
	if err != nil {
		return false, err
	}

	for _, l := range logs {
		if l.Status == models.ErrorOpen {
			return false, nil
		}
	}

	sc.Detail("no open errors")

	return true, nil
}

// onResolution applies a resolve_error or ignore_error signal. An empty error_id targets every
// open error; the wait completes once none are left open.
func (c *Catalog) onResolution(ctx context.Context, sc *engine.StepContext, sig models.Signal) (bool, error) {
	var payload models.ResolutionPayload
	if len(sig.Payload) > 0 {
		if err := xjson.Unmarshal(sig.Payload, &payload); err != nil {
			sc.Logger().WarnContext(ctx, "ignoring signal with malformed payload", "signal_id", sig.ID, "error", err)
			sc.Detail("malformed payload")

			return false, nil
		}
	}

	status := models.ErrorResolved
	if sig.Name == models.SignalIgnoreError {
		status = models.ErrorIgnored
	}

	resolution := payload.Note
	if resolution == "" {
		resolution = sig.Name
	}

	changed, open, err := transitionOpen(ctx, sc.Store(), sc.WorkflowID(), payload.ErrorID, status, resolution, sc.Now())
	if err != nil {
		return false, err
	}

	if changed > 0 {
		c.invalidate(ctx, sc.WorkflowID())
	}

	sc.Detail(fmt.Sprintf("%d %s, %d open", changed, status, open))

	return open == 0, nil
}

func (c *Catalog) autoResolve(ctx context.Context, sc *engine.StepContext) error {
	changed, _, err := transitionOpen(ctx, sc.Store(), sc.WorkflowID(), "", models.ErrorResolved, ResolutionTimeoutNote, sc.Now())
	if err != nil {
		return err
	}

	if changed > 0 {
		c.invalidate(ctx, sc.WorkflowID())
	}

	sc.Detail(fmt.Sprintf("%d auto-resolved", changed))

	return nil
}

func (c *Catalog) finishDetection(ctx context.Context, sc *engine.StepContext) (any, error) {
	in, err := detectionInput(sc)
	if err != nil {
		return nil, err
	}

	summary, err := c.detectionSummary(ctx, sc, in.Source)
	if err != nil {
		return nil, err
	}

	summary.Status = SummaryCompleted
	if err := saveSummary(ctx, sc.Store(), summary); err != nil {
		return nil, err
	}

	c.invalidate(ctx, sc.WorkflowID())

	logs, err := ErrorLogs(ctx, sc.Store(), sc.WorkflowID())
	if err != nil {
		return nil, err
	}

	result := DetectionResult{
		WorkflowID:     sc.WorkflowID(),
		Source:         in.Source,
		ErrorsDetected: len(logs),
		MaxSeverity:    summary.MaxSeverity,
		Notified:       summary.Notified,
		CompletedAt:    sc.Now(),
	}

	for _, l := range logs {
		switch l.Status {
		case models.ErrorResolved:
			result.ErrorsResolved++
		case models.ErrorIgnored:
			result.ErrorsIgnored++
		case models.ErrorOpen:
		}
	}

	return result, nil
}
