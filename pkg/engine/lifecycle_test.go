package engine

import (
	"context"
	"testing"
	"time"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    models.ExecutionStatus
		trigger string
		want    models.ExecutionStatus
		wantErr bool
	}{
		{from: models.ExecutionScheduled, trigger: triggerStart, want: models.ExecutionRunning},
		{from: models.ExecutionScheduled, trigger: triggerCancel, want: models.ExecutionCancelled},
		{from: models.ExecutionScheduled, trigger: triggerFail, want: models.ExecutionFailed},
		{from: models.ExecutionScheduled, trigger: triggerComplete, wantErr: true},
		{from: models.ExecutionRunning, trigger: triggerComplete, want: models.ExecutionCompleted},
		{from: models.ExecutionRunning, trigger: triggerFail, want: models.ExecutionFailed},
		{from: models.ExecutionRunning, trigger: triggerCancel, want: models.ExecutionCancelled},
		{from: models.ExecutionRunning, trigger: triggerStart, wantErr: true},
		{from: models.ExecutionCompleted, trigger: triggerFail, wantErr: true},
		{from: models.ExecutionFailed, trigger: triggerStart, wantErr: true},
		{from: models.ExecutionCancelled, trigger: triggerComplete, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+tt.trigger, func(t *testing.T) {
			t.Parallel()

			at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
			exec := &models.WorkflowExecution{ID: "wf", Status: tt.from}

			err := transition(t.Context(), exec, tt.trigger, at)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, exec.Status)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, exec.Status)

			if tt.want.Terminal() {
				require.NotNil(t, exec.CompletedAt)
				assert.Equal(t, at, *exec.CompletedAt)
			} else {
				assert.Nil(t, exec.CompletedAt)
			}
		})
	}
}

func TestRetryPolicyAttempts(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{Attempts: 4, Base: time.Millisecond, Max: 2 * time.Millisecond}

	attempts, err := policy.attempt(t.Context(), func(_ context.Context, _ int) error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 4, attempts)

	attempts, err = policy.attempt(t.Context(), func(_ context.Context, _ int) error {
		return Permanent(assert.AnError)
	})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, attempts)
}
