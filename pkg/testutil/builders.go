// Package testutil provides test data builders for grading requests and oracle results.
package testutil

import (
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
)

// NewGradeInput creates a grading request with default values that can be overridden.
func NewGradeInput(overrides ...func(*catalog.GradeInput)) catalog.GradeInput {
	in := catalog.GradeInput{
		SocketID:    "S1",
		QuestionURL: "https://cdn.example.com/q/42.png",
		SolutionURL: "https://cdn.example.com/s/42.png",
		Region:      &models.BoundingBox{MinX: 100, MaxX: 300, MinY: 100, MaxY: 200},
	}

	for _, override := range overrides {
		override(&in)
	}

	return in
}

func WithSocket(socketID string) func(*catalog.GradeInput) {
	return func(in *catalog.GradeInput) {
		in.SocketID = socketID
	}
}

// WithRegion sets a copy of region so builders never share a pointer.
func WithRegion(region models.BoundingBox) func(*catalog.GradeInput) {
	return func(in *catalog.GradeInput) {
		in.Region = &region
	}
}

func WithoutRegion() func(*catalog.GradeInput) {
	return func(in *catalog.GradeInput) {
		in.Region = nil
	}
}

// NewScoreResult creates an oracle verdict with no errors.
func NewScoreResult(score float64, errs ...models.ScoreError) *oracle.ScoreResult {
	if errs == nil {
		errs = []models.ScoreError{}
	}

	return &oracle.ScoreResult{
		Score:    score,
		Errors:   errs,
		Feedback: "feedback",
	}
}
