// Package oracle is the client side of the scoring oracle: the remote model that grades a
// handwritten solution against a printed problem.
package oracle

import (
	"context"
	"errors"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
)

var (
	// ErrRejected marks a request the oracle refused; retrying it cannot succeed.
	ErrRejected = errors.New("oracle rejected request")
	// ErrInvalidResult marks a response that does not satisfy the result schema.
	ErrInvalidResult = errors.New("invalid oracle result")
)

// Request references the two images and an optional region of the solution to grade.
type Request struct {
	QuestionURL string              `json:"question_url"`
	SolutionURL string              `json:"solution_url"`
	Region      *models.BoundingBox `json:"region,omitempty"`
}

// ScoreResult is a validated oracle response.
type ScoreResult struct {
	Score               float64             `json:"correctness_score"`
	Errors              []models.ScoreError `json:"errors_found"`
	Feedback            string              `json:"feedback"`
	QuestionAnalysis    map[string]any      `json:"question_analysis,omitempty"`
	WorkingNoteAnalysis map[string]any      `json:"working_note_analysis,omitempty"`
}

// CompletionThreshold is the score from which a solution counts as complete.
const CompletionThreshold = 80.0

func (r *ScoreResult) Complete() bool {
	return r.Score >= CompletionThreshold
}

type Client interface {
	Evaluate(ctx context.Context, req Request) (*ScoreResult, error)
}
