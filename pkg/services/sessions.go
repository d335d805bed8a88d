package services

import (
	"context"
	"log/slog"

	"github.com/SaiNageswarS/NurixLearn/pkg/coherence"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/session"
)

// Sessions exposes session statistics and the administrative reset.
type Sessions struct {
	tracker *session.Tracker
	policy  *coherence.Policy
	logger  *slog.Logger
}

func NewSessions(tracker *session.Tracker, policy *coherence.Policy, logger *slog.Logger) *Sessions {
	return &Sessions{
		tracker: tracker,
		policy:  policy,
		logger:  logger.With("module", "sessions_service"),
	}
}

func (s *Sessions) Stats(ctx context.Context, socketID string) (*models.SessionStats, error) {
	if socketID == "" {
		return nil, NewValidationError("session_stats", "socket_id is required", ErrSocketIDRequired)
	}

	return s.tracker.Stats(ctx, socketID)
}

// Reset deletes the session state and every cached response that depended on it.
func (s *Sessions) Reset(ctx context.Context, socketID string) error {
	if socketID == "" {
		return NewValidationError("session_reset", "socket_id is required", ErrSocketIDRequired)
	}

	if _, err := s.tracker.Get(ctx, socketID); err != nil {
		return err
	}

	if err := s.tracker.Reset(ctx, socketID); err != nil {
		return err
	}

	return s.Invalidate(ctx, socketID)
}

// Invalidate drops the cached responses owned by a session without touching its state.
func (s *Sessions) Invalidate(ctx context.Context, socketID string) error {
	if socketID == "" {
		return NewValidationError("cache_invalidate", "socket_id is required", ErrSocketIDRequired)
	}

	if err := s.policy.Invalidate(ctx, coherence.SessionOwner(socketID)); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Invalidated session cache", "socket_id", socketID)

	return nil
}
