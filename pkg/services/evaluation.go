package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/catalog"
	"github.com/SaiNageswarS/NurixLearn/pkg/coherence"
	"github.com/SaiNageswarS/NurixLearn/pkg/engine"
	"github.com/SaiNageswarS/NurixLearn/pkg/fingerprint"
)

// Evaluation serves the cumulative grading endpoint.
type Evaluation struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	policy  *coherence.Policy
	logger  *slog.Logger
}

func NewEvaluation(eng *engine.Engine, cat *catalog.Catalog, policy *coherence.Policy, logger *slog.Logger) *Evaluation {
	return &Evaluation{
		engine:  eng,
		catalog: cat,
		policy:  policy,
		logger:  logger.With("module", "evaluation_service"),
	}
}

// GradeResponse is a grading result and whether it was served from the cache.
type GradeResponse struct {
	*catalog.GradeResult

	CacheHit bool `json:"cache_hit"`
}

// Grade returns the graded attempt for in. A cached response is served only while the session
// it was computed against has not changed; otherwise a grade_solution execution runs to
// completion and its result is cached under the request fingerprint.
func (s *Evaluation) Grade(ctx context.Context, in catalog.GradeInput) (*GradeResponse, error) {
	if err := s.catalog.PrepareGrade(&in); err != nil {
		return nil, NewValidationError("grade", err.Error(), err)
	}

	key, err := fingerprint.DeriveGrade(fingerprint.GradeDescriptor{
		SocketID:    in.SocketID,
		QuestionRef: in.QuestionURL,
		SolutionRef: in.SolutionURL,
		Region:      *in.Region,
		UserID:      in.UserID,
		AttemptRef:  in.AttemptID,
	})
	if err != nil {
		return nil, NewValidationError("grade", err.Error(), err)
	}

	payload, hit, err := s.policy.ReadThrough(ctx, key, func(ctx context.Context) (*coherence.Computed, error) {
		return s.compute(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	var result catalog.GradeResult
	if err := xjson.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode grade result: %w", err)
	}

	s.logger.InfoContext(ctx, "Graded attempt",
		"socket_id", in.SocketID,
		"job_id", result.JobID,
		"total_attempts", result.TotalAttempts,
		"cache_hit", hit)

	return &GradeResponse{GradeResult: &result, CacheHit: hit}, nil
}

func (s *Evaluation) compute(ctx context.Context, in catalog.GradeInput) (*coherence.Computed, error) {
	id, err := s.engine.Start(ctx, catalog.KindGradeSolution, in)
	if err != nil {
		return nil, fmt.Errorf("failed to start grading: %w", err)
	}

	if _, err := s.engine.Wait(ctx, id); err != nil {
		return nil, err
	}

	raw, err := s.engine.GetResult(ctx, id)
	if err != nil {
		return nil, err
	}

	var result catalog.GradeResult
	if err := xjson.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode grade result: %w", err)
	}

	return &coherence.Computed{
		Payload: raw,
		Versions: map[coherence.Owner]int64{
			coherence.SessionOwner(in.SocketID): result.TotalAttempts,
		},
	}, nil
}
