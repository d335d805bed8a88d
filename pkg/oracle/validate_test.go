package oracle_test

import (
	"testing"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		check   func(t *testing.T, r *oracle.ScoreResult)
	}{
		{
			name: "complete response",
			raw: `{
				"question_analysis": {"problem_type": "linear equation"},
				"working_note_analysis": {"final_answer": "x = 4"},
				"correctness_score": 85.5,
				"errors_found": [{"step": "2", "error_type": "sign", "description": "dropped minus", "severity": "high"}],
				"feedback": "Check the sign in step 2."
			}`,
			check: func(t *testing.T, r *oracle.ScoreResult) {
				t.Helper()
				assert.InDelta(t, 85.5, r.Score, 0.0001)
				assert.True(t, r.Complete())
				require.Len(t, r.Errors, 1)
				assert.Equal(t, models.ScoreError{Step: "2", ErrorType: "sign", Description: "dropped minus", Severity: "high"}, r.Errors[0])
				assert.Equal(t, "linear equation", r.QuestionAnalysis["problem_type"])
			},
		},
		{
			name: "score out of range becomes zero",
			raw:  `{"correctness_score": 140, "errors_found": [], "feedback": ""}`,
			check: func(t *testing.T, r *oracle.ScoreResult) {
				t.Helper()
				assert.Zero(t, r.Score)
				assert.False(t, r.Complete())
			},
		},
		{
			name: "non numeric score becomes zero",
			raw:  `{"correctness_score": "high", "errors_found": [], "feedback": "ok"}`,
			check: func(t *testing.T, r *oracle.ScoreResult) {
				t.Helper()
				assert.Zero(t, r.Score)
			},
		},
		{
			name: "errors_found not a list becomes empty",
			raw:  `{"correctness_score": 50, "errors_found": "none", "feedback": "ok"}`,
			check: func(t *testing.T, r *oracle.ScoreResult) {
				t.Helper()
				assert.Empty(t, r.Errors)
				assert.NotNil(t, r.Errors)
			},
		},
		{
			name: "string errors are kept as descriptions",
			raw:  `{"correctness_score": 50, "errors_found": ["arithmetic slip", ""], "feedback": "ok"}`,
			check: func(t *testing.T, r *oracle.ScoreResult) {
				t.Helper()
				assert.Equal(t, []models.ScoreError{{Description: "arithmetic slip"}}, r.Errors)
			},
		},
		{name: "missing feedback", raw: `{"correctness_score": 50, "errors_found": []}`, wantErr: true},
		{name: "feedback wrong type", raw: `{"correctness_score": 50, "errors_found": [], "feedback": 3}`, wantErr: true},
		{name: "not json", raw: `the model said hello`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := oracle.ParseResult([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, oracle.IsInvalidResult(err))

				return
			}

			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}
