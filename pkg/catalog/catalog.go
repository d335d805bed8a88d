// Package catalog defines the evaluation workflows run by the engine: one-shot error detection,
// recurring error monitoring and cumulative solution grading.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dario.cat/mergo"
	"github.com/SaiNageswarS/NurixLearn/pkg/coherence"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
)

const (
	KindDetectError     = "detect_error"
	KindErrorMonitoring = "error_monitoring"
	KindGradeSolution   = "grade_solution"
)

var ErrMissingDependency = errors.New("catalog dependency missing")

// Invalidator drops cached responses derived from an owner's state.
type Invalidator interface {
	Invalidate(ctx context.Context, owner coherence.Owner) error
}

// Defaults fill the optional fields of workflow inputs.
type Defaults struct {
	SeverityThreshold models.Severity
	ResolutionTimeout time.Duration
	MonitorSchedule   string
}

var DefaultDefaults = Defaults{
	SeverityThreshold: models.SeverityHigh,
	ResolutionTimeout: 24 * time.Hour,
	MonitorSchedule:   models.DefaultMonitorSchedule,
}

type Config struct {
	Scanner     Scanner
	Notifier    Notifier
	Oracle      oracle.Client
	Tracker     *session.Tracker
	Invalidator Invalidator
	Logger      *slog.Logger
	Defaults    Defaults
}

type Catalog struct {
	scanner     Scanner
	notifier    Notifier
	oracle      oracle.Client
	tracker     *session.Tracker
	invalidator Invalidator
	logger      *slog.Logger
	defaults    Defaults
}

func New(cfg Config) (*Catalog, error) {
	if cfg.Oracle == nil || cfg.Tracker == nil {
		return nil, fmt.Errorf("%w: oracle and session tracker are required", ErrMissingDependency)
	}

	if err := mergo.Merge(&cfg.Defaults, DefaultDefaults); err != nil {
		return nil, fmt.Errorf("failed to apply catalog defaults: %w", err)
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Scanner == nil {
		cfg.Scanner = NewOracleScanner(cfg.Oracle)
	}

	if cfg.Notifier == nil {
		cfg.Notifier = NewLogNotifier(cfg.Logger)
	}

	return &Catalog{
		scanner:     cfg.Scanner,
		notifier:    cfg.Notifier,
		oracle:      cfg.Oracle,
		tracker:     cfg.Tracker,
		invalidator: cfg.Invalidator,
		logger:      cfg.Logger.With("module", "catalog"),
		defaults:    cfg.Defaults,
	}, nil
}

func (c *Catalog) Defaults() Defaults { return c.defaults }

func (c *Catalog) Definitions() []*engine.Definition {
	return []*engine.Definition{
		c.detectErrorDefinition(),
		c.errorMonitoringDefinition(),
		c.gradeSolutionDefinition(),
	}
}

// Register adds every catalog workflow to e.
func (c *Catalog) Register(e *engine.Engine) error {
	for _, def := range c.Definitions() {
		if err := e.Register(def); err != nil {
			return fmt.Errorf("failed to register %s: %w", def.Kind, err)
		}
	}

	return nil
}

// invalidate drops caches owned by the workflow. Failures only cost freshness checks later.
func (c *Catalog) invalidate(ctx context.Context, workflowID string) {
	if c.invalidator == nil {
		return
	}

	if err := c.invalidator.Invalidate(ctx, coherence.WorkflowOwner(workflowID)); err != nil {
		c.logger.WarnContext(ctx, "failed to invalidate workflow caches", "workflow_id", workflowID, "error", err)
	}
}

// stepError marks oracle failures that cannot improve on retry as permanent.
func stepError(err error) error {
	if errors.Is(err, oracle.ErrRejected) || oracle.IsInvalidResult(err) {
		return engine.Permanent(err)
	}

	return err
}
