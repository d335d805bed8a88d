package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/qmuntal/stateless"
)

const (
	triggerStart    = "start"
	triggerComplete = "complete"
	triggerFail     = "fail"
	triggerCancel   = "cancel"
)

// newLifecycle binds a status state machine to exec.Status. Terminal states permit nothing.
func newLifecycle(exec *models.WorkflowExecution) *stateless.StateMachine {
	sm := stateless.NewStateMachineWithExternalStorage(
		func(_ context.Context) (stateless.State, error) {
			return exec.Status, nil
		},
		func(_ context.Context, state stateless.State) error {
			status, ok := state.(models.ExecutionStatus)
			if !ok {
				return fmt.Errorf("%w: unexpected state %v", ErrInvalidTransition, state)
			}

			exec.Status = status

			return nil
		},
		stateless.FiringImmediate,
	)

	sm.Configure(models.ExecutionScheduled).
		Permit(triggerStart, models.ExecutionRunning).
		Permit(triggerCancel, models.ExecutionCancelled).
		Permit(triggerFail, models.ExecutionFailed)

	sm.Configure(models.ExecutionRunning).
		Permit(triggerComplete, models.ExecutionCompleted).
		Permit(triggerFail, models.ExecutionFailed).
		Permit(triggerCancel, models.ExecutionCancelled)

	sm.Configure(models.ExecutionCompleted)
	sm.Configure(models.ExecutionFailed)
	sm.Configure(models.ExecutionCancelled)

	return sm
}

// transition fires trigger against exec and stamps the timestamps the new status implies.
func transition(ctx context.Context, exec *models.WorkflowExecution, trigger string, at time.Time) error {
	from := exec.Status

	if err := newLifecycle(exec).FireCtx(ctx, trigger); err != nil {
		exec.Status = from

		return fmt.Errorf("%w: %s from %s: %w", ErrInvalidTransition, trigger, from, err)
	}

	if exec.Status.Terminal() {
		exec.CompletedAt = &at
		exec.Suspension = nil
	}

	return nil
}
