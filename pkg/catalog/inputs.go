package catalog

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/go-playground/validator/v10"
)

var ErrInvalidInput = errors.New("invalid workflow input")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func inputValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	return validate
}

// ScanTarget is the submission an error scan evaluates.
type ScanTarget struct {
	Source        string              `json:"source" validate:"required"`
	SocketID      string              `json:"socket_id,omitempty"`
	QuestionURL   string              `json:"question_url" validate:"required,url"`
	SolutionURL   string              `json:"solution_url" validate:"required,url"`
	Region        *models.BoundingBox `json:"region,omitempty"`
	ErrorPatterns []string            `json:"error_patterns,omitempty" validate:"omitempty,dive,required"`
}

type DetectionInput struct {
	ScanTarget

	SeverityThreshold models.Severity `json:"severity_threshold,omitempty" validate:"omitempty,oneof=low medium high critical"`
	// ResolutionTimeout is a Go duration such as "24h".
	ResolutionTimeout string `json:"resolution_timeout,omitempty"`
}

type MonitorInput struct {
	ScanTarget

	SeverityThreshold models.Severity `json:"severity_threshold,omitempty" validate:"omitempty,oneof=low medium high critical"`
	// Schedule is a duration, a cron descriptor or a cron expression.
	Schedule string `json:"schedule,omitempty"`
}

type GradeInput struct {
	SocketID    string              `json:"socket_id" validate:"required"`
	UserID      string              `json:"user_id,omitempty"`
	AttemptID   string              `json:"question_attempt_id,omitempty"`
	QuestionURL string              `json:"question_url" validate:"required,url"`
	SolutionURL string              `json:"solution_url" validate:"required,url"`
	Region      *models.BoundingBox `json:"bounding_box" validate:"required"`
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func validateTarget(t ScanTarget) error {
	if t.Region != nil {
		if err := t.Region.Validate(); err != nil {
			return invalid(err)
		}
	}

	return nil
}

// PrepareDetection validates in and fills its defaults.
func (c *Catalog) PrepareDetection(in *DetectionInput) error {
	if err := inputValidator().Struct(in); err != nil {
		return invalid(err)
	}

	if err := validateTarget(in.ScanTarget); err != nil {
		return err
	}

	if err := mergo.Merge(in, DetectionInput{
		SeverityThreshold: c.defaults.SeverityThreshold,
		ResolutionTimeout: c.defaults.ResolutionTimeout.String(),
	}); err != nil {
		return err
	}

	if d, err := time.ParseDuration(in.ResolutionTimeout); err != nil || d <= 0 {
		return invalid(fmt.Errorf("resolution_timeout %q must be a positive duration", in.ResolutionTimeout))
	}

	return nil
}

// PrepareMonitor validates in and fills its defaults.
func (c *Catalog) PrepareMonitor(in *MonitorInput) error {
	if err := inputValidator().Struct(in); err != nil {
		return invalid(err)
	}

	if err := validateTarget(in.ScanTarget); err != nil {
		return err
	}

	if err := mergo.Merge(in, MonitorInput{
		SeverityThreshold: c.defaults.SeverityThreshold,
		Schedule:          c.defaults.MonitorSchedule,
	}); err != nil {
		return err
	}

	if _, err := models.ParseSchedule(in.Schedule); err != nil {
		return invalid(err)
	}

	return nil
}

func (c *Catalog) PrepareGrade(in *GradeInput) error {
	if err := inputValidator().Struct(in); err != nil {
		return invalid(err)
	}

	if err := in.Region.Validate(); err != nil {
		return invalid(err)
	}

	return nil
}
