package catalog

import (
	"context"
	"fmt"

	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
	"github.com/google/uuid"
)

const (
	stateScore        = "score"
	stateEvaluationID = "evaluation_id"
	stateSession      = "session"
)

type sessionSnapshot struct {
	TotalAttempts    int64              `json:"total_attempts"`
	CumulativeRegion models.BoundingBox `json:"cumulative_region"`
}

func (c *Catalog) gradeSolutionDefinition() *engine.Definition {
	return &engine.Definition{
		Kind: KindGradeSolution,
		Steps: []engine.Step{
			{Name: "evaluate", Run: c.evaluate},
			{Name: "save_evaluation", Run: saveEvaluation},
			{Name: "append_attempt", Run: c.appendAttempt},
		},
		Finish: finishGrade,
	}
}

func gradeInput(sc *engine.StepContext) (GradeInput, error) {
	var in GradeInput
	if err := sc.Input(&in); err != nil {
		return in, engine.Permanent(fmt.Errorf("failed to decode input: %w", err))
	}

	if in.Region == nil {
		return in, engine.Permanent(fmt.Errorf("%w: bounding_box is required", ErrInvalidInput))
	}

	return in, nil
}

// EvaluationID is derived from the grading execution so a re-run step rewrites the same record.
func EvaluationID(workflowID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("nurix:evaluation:"+workflowID)).String()
}

func (c *Catalog) evaluate(ctx context.Context, sc *engine.StepContext) error {
	in, err := gradeInput(sc)
	if err != nil {
		return err
	}

	result, err := c.oracle.Evaluate(ctx, oracle.Request{
		QuestionURL: in.QuestionURL,
		SolutionURL: in.SolutionURL,
		Region:      in.Region,
	})
	if err != nil {
		return stepError(err)
	}

	sc.Detail(fmt.Sprintf("score %.1f", result.Score))

	return sc.Save(stateScore, result)
}

func saveEvaluation(ctx context.Context, sc *engine.StepContext) error {
	in, err := gradeInput(sc)
	if err != nil {
		return err
	}

	var result oracle.ScoreResult
	if _, err := sc.Load(stateScore, &result); err != nil {
		return err
	}

	eval := models.Evaluation{
		ID:          EvaluationID(sc.WorkflowID()),
		WorkflowID:  sc.WorkflowID(),
		SocketID:    in.SocketID,
		UserID:      in.UserID,
		QuestionURL: in.QuestionURL,
		SolutionURL: in.SolutionURL,
		Region:      in.Region,
		Score:       result.Score,
		Errors:      result.Errors,
		Feedback:    result.Feedback,
		CreatedAt:   sc.Now(),
	}

	if err := persistence.PutJSON(ctx, sc.Store(), persistence.Key(evaluationCollection, eval.ID), eval); err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	return sc.Save(stateEvaluationID, eval.ID)
}

func (c *Catalog) appendAttempt(ctx context.Context, sc *engine.StepContext) error {
	in, err := gradeInput(sc)
	if err != nil {
		return err
	}

	var evaluationID string
	if _, err := sc.Load(stateEvaluationID, &evaluationID); err != nil {
		return err
	}

	state, err := c.tracker.AppendAttempt(ctx, session.AttemptInput{
		SocketID:    in.SocketID,
		QuestionRef: in.QuestionURL,
		SolutionRef: in.SolutionURL,
		Region:      *in.Region,
		ResultRef:   evaluationID,
	})
	if err != nil {
		return err
	}

	sc.Detail(fmt.Sprintf("attempt %d", state.TotalAttempts))

	return sc.Save(stateSession, sessionSnapshot{
		TotalAttempts:    state.TotalAttempts,
		CumulativeRegion: state.CumulativeRegion,
	})
}

func finishGrade(_ context.Context, sc *engine.StepContext) (any, error) {
	in, err := gradeInput(sc)
	if err != nil {
		return nil, err
	}

	var (
		result       oracle.ScoreResult
		evaluationID string
		snapshot     sessionSnapshot
	)

	if _, err := sc.Load(stateScore, &result); err != nil {
		return nil, err
	}

	if _, err := sc.Load(stateEvaluationID, &evaluationID); err != nil {
		return nil, err
	}

	if _, err := sc.Load(stateSession, &snapshot); err != nil {
		return nil, err
	}

	errorsFound := result.Errors
	if errorsFound == nil {
		errorsFound = []models.ScoreError{}
	}

	return GradeResult{
		JobID:                 sc.WorkflowID(),
		SocketID:              in.SocketID,
		EvaluationID:          evaluationID,
		TotalAttempts:         snapshot.TotalAttempts,
		CumulativeBoundingBox: snapshot.CumulativeRegion,
		Evaluation: GradeEvaluation{
			Score:    result.Score,
			Errors:   errorsFound,
			Feedback: result.Feedback,
		},
		SolutionComplete: result.Complete(),
		Y:                in.Region.MidY(),
	}, nil
}
