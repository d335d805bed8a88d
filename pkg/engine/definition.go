package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
)

// Definition is an ordered pipeline of steps. With Repeat set the pipeline loops until the stop
// signal arrives; otherwise Finish builds the result once the last step has run.
type Definition struct {
	Kind   string
	Steps  []Step
	Repeat *Repeat
	Finish func(ctx context.Context, sc *StepContext) (any, error)
}

// Step is either an activity (Run) or a suspension point (Await).
type Step struct {
	Name  string
	Run   func(ctx context.Context, sc *StepContext) error
	Await *Await
	// Retry overrides the engine's retry policy for this step.
	Retry *RetryPolicy
}

// Await parks the execution until a listened signal completes it or the timeout elapses.
type Await struct {
	Signals []string
	Timeout func(sc *StepContext) (time.Duration, error)
	// Satisfied, when set, is checked before suspending; a satisfied wait is skipped.
	Satisfied func(ctx context.Context, sc *StepContext) (bool, error)
	// OnSignal consumes one signal; done completes the wait.
	OnSignal func(ctx context.Context, sc *StepContext, sig models.Signal) (done bool, err error)
	// OnTimeout runs once when the deadline passes without the wait completing.
	OnTimeout func(ctx context.Context, sc *StepContext) error
}

// Repeat turns the pipeline into a loop. StopSignal is checked at each loop boundary and wakes
// the sleep between iterations.
type Repeat struct {
	StopSignal string
	Schedule   func(sc *StepContext) (Schedule, error)
}

// Schedule yields the due time of the next iteration. *models.Schedule implements it.
type Schedule interface {
	Next(from time.Time) time.Time
}

func (d *Definition) validate() error {
	if d.Kind == "" {
		return fmt.Errorf("%w: kind is required", ErrInvalidDefinition)
	}

	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidDefinition, d.Kind)
	}

	seen := make(map[string]bool, len(d.Steps))

	for i, s := range d.Steps {
		switch {
		case s.Name == "":
			return fmt.Errorf("%w: %s step %d has no name", ErrInvalidDefinition, d.Kind, i)
		case seen[s.Name]:
			return fmt.Errorf("%w: %s step %q is duplicated", ErrInvalidDefinition, d.Kind, s.Name)
		case (s.Run == nil) == (s.Await == nil):
			return fmt.Errorf("%w: %s step %q needs exactly one of Run or Await", ErrInvalidDefinition, d.Kind, s.Name)
		case s.Await != nil && (s.Await.Timeout == nil || s.Await.OnSignal == nil || len(s.Await.Signals) == 0):
			return fmt.Errorf("%w: %s await %q needs signals, timeout and OnSignal", ErrInvalidDefinition, d.Kind, s.Name)
		}

		seen[s.Name] = true
	}

	if d.Repeat != nil && (d.Repeat.StopSignal == "" || d.Repeat.Schedule == nil) {
		return fmt.Errorf("%w: %s repeat needs a stop signal and a schedule", ErrInvalidDefinition, d.Kind)
	}

	if d.Repeat == nil && d.Finish == nil {
		return fmt.Errorf("%w: %s needs Finish", ErrInvalidDefinition, d.Kind)
	}

	return nil
}
