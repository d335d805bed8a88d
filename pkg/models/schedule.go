package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultMonitorSchedule is the sleep between monitoring iterations.
const DefaultMonitorSchedule = "@every 5m"

// ErrInvalidSchedule is returned when a schedule spec is neither a duration nor a cron expression.
var ErrInvalidSchedule = errors.New("invalid schedule")

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule computes when the next monitoring iteration is due. Spec accepts a Go duration
// ("90s", "5m"), a descriptor ("@every 5m", "@hourly") or a five-field cron expression.
type Schedule struct {
	Spec string `json:"spec"`

	cron cron.Schedule
}

func ParseSchedule(spec string) (*Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultMonitorSchedule
	}

	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("%w: %q must be positive", ErrInvalidSchedule, spec)
		}

		return &Schedule{Spec: spec, cron: cron.Every(d)}, nil
	}

	parsed, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidSchedule, spec, err)
	}

	return &Schedule{Spec: spec, cron: parsed}, nil
}

// Next returns the first due time strictly after from.
func (s *Schedule) Next(from time.Time) time.Time {
	return s.cron.Next(from)
}
