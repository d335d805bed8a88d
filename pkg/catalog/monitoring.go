package catalog

import (
	"context"
	"fmt"

	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
)

const (
	// stateSeen maps finding keys to the error log first recorded for them.
	stateSeen   = "seen"
	stateNewIDs = "new_error_ids"
)

func (c *Catalog) errorMonitoringDefinition() *engine.Definition {
	return &engine.Definition{
		Kind: KindErrorMonitoring,
		Steps: []engine.Step{
			{Name: "scan", Run: c.scan},
			{Name: "save", Run: c.saveNewErrors},
			{Name: "notify", Run: c.notifyNewErrors},
			{Name: "update_status", Run: c.updateMonitorStatus},
		},
		Repeat: &engine.Repeat{
			StopSignal: models.SignalStopMonitoring,
			Schedule: func(sc *engine.StepContext) (engine.Schedule, error) {
				in, err := monitorInput(sc)
				if err != nil {
					return nil, err
				}

				schedule, err := models.ParseSchedule(in.Schedule)
				if err != nil {
					return nil, engine.Permanent(err)
				}

				return schedule, nil
			},
		},
	}
}

func monitorInput(sc *engine.StepContext) (MonitorInput, error) {
	var in MonitorInput
	if err := sc.Input(&in); err != nil {
		return in, engine.Permanent(fmt.Errorf("failed to decode input: %w", err))
	}

	return in, nil
}

// saveNewErrors records only findings no earlier iteration has seen.
func (c *Catalog) saveNewErrors(ctx context.Context, sc *engine.StepContext) error {
	in, err := monitorInput(sc)
	if err != nil {
		return err
	}

	var findings []models.Finding
	if _, err := sc.Load(stateFindings, &findings); err != nil {
		return err
	}

	seen := map[string]string{}
	if _, err := sc.Load(stateSeen, &seen); err != nil {
		return err
	}

	var (
		fresh   []models.Finding
		indexes []int
	)

	for i, f := range findings {
		if _, ok := seen[f.Key()]; ok {
			continue
		}

		fresh = append(fresh, f)
		indexes = append(indexes, i)
	}

	ids, err := saveFindings(ctx, sc.Store(), sc.WorkflowID(), in.Source, sc.Iteration(), fresh, indexes, sc.Now())
	if err != nil {
		return err
	}

	for i, f := range fresh {
		seen[f.Key()] = ids[i]
	}

	if len(ids) > 0 {
		c.invalidate(ctx, sc.WorkflowID())
	}

	sc.Detail(fmt.Sprintf("%d new of %d", len(ids), len(findings)))

	if err := sc.Save(stateSeen, seen); err != nil {
		return err
	}

	return sc.Save(stateNewIDs, ids)
}

func (c *Catalog) notifyNewErrors(ctx context.Context, sc *engine.StepContext) error {
	in, err := monitorInput(sc)
	if err != nil {
		return err
	}

	var ids []string
	if _, err := sc.Load(stateNewIDs, &ids); err != nil {
		return err
	}

	logs, err := loadErrorLogs(ctx, sc.Store(), sc.WorkflowID(), ids)
	if err != nil {
		return err
	}

	urgent := atLeast(logs, in.SeverityThreshold)
	if len(urgent) == 0 {
		sc.Skip("no new errors at or above " + string(in.SeverityThreshold))

		return sc.Save(stateNotified, false)
	}

	findings := make([]models.Finding, len(urgent))
	for i, l := range urgent {
		findings[i] = models.Finding{Severity: l.Severity}
	}

	sent, err := sc.Once(ctx, "notify", func(ctx context.Context) error {
		return c.notifier.Notify(ctx, Notification{
			WorkflowID:  sc.WorkflowID(),
			Source:      in.Source,
			Iteration:   sc.Iteration(),
			MaxSeverity: models.MaxSeverity(findings),
			Threshold:   in.SeverityThreshold,
			Errors:      urgent,
		})
	})
	if err != nil {
		return err
	}

	if sent {
		sc.Detail(fmt.Sprintf("%d errors notified", len(urgent)))
	} else {
		sc.Detail("notification already sent")
	}

	return sc.Save(stateNotified, true)
}

func (c *Catalog) updateMonitorStatus(ctx context.Context, sc *engine.StepContext) error {
	in, err := monitorInput(sc)
	if err != nil {
		return err
	}

	var notified bool
	if _, err := sc.Load(stateNotified, &notified); err != nil {
		return err
	}

	logs, err := ErrorLogs(ctx, sc.Store(), sc.WorkflowID())
	if err != nil {
		return err
	}

	summary := DetectionSummary{
		WorkflowID:     sc.WorkflowID(),
		Kind:           sc.Kind(),
		Source:         in.Source,
		Status:         SummaryMonitoring,
		Iteration:      sc.Iteration(),
		ErrorsDetected: len(logs),
		Notified:       notified,
		UpdatedAt:      sc.Now(),
	}

	findings := make([]models.Finding, 0, len(logs))

	for _, l := range logs {
		findings = append(findings, models.Finding{Severity: l.Severity})

		if l.Status == models.ErrorOpen {
			summary.OpenErrors++
		}
	}

	summary.MaxSeverity = models.MaxSeverity(findings)

	if err := saveSummary(ctx, sc.Store(), summary); err != nil {
		return err
	}

	c.invalidate(ctx, sc.WorkflowID())

	return nil
}
